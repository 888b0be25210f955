package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

var extinfAttrRe = regexp.MustCompile(`(\w+)="([^"]*)"`) //nolint:gochecknoglobals // fixed parse pattern, not configuration

// ExtinfEntry is one parsed #EXTINF line: its duration and any attributes.
type ExtinfEntry struct {
	DurationSeconds float64
	Tags            Tags
}

// ParseExtinf parses an HLS "#EXTINF:<duration>,<title attrs>" line's
// payload (the part after the colon, without the leading "#EXTINF:"),
// extracting duration and optional title="..."/artist="..." attributes.
func ParseExtinf(payload string) ExtinfEntry {
	durationPart, attrPart, _ := strings.Cut(payload, ",")

	duration, _ := strconv.ParseFloat(strings.TrimSpace(durationPart), 64)

	entry := ExtinfEntry{DurationSeconds: duration}

	for _, match := range extinfAttrRe.FindAllStringSubmatch(attrPart, -1) {
		switch strings.ToLower(match[1]) {
		case "title":
			entry.Tags.Title = match[2]
		case "artist":
			entry.Tags.Artist = match[2]
		}
	}

	return entry
}
