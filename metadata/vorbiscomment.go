package metadata

import "strings"

// ParseVorbisComments parses a Vorbis comment block's KEY=VALUE pairs
// (already stripped of the vendor string and comment count) into Tags,
// recognising TITLE/ARTIST/ALBUM case-insensitively.
func ParseVorbisComments(comments []string) Tags {
	var tags Tags

	for _, c := range comments {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}

		switch strings.ToUpper(key) {
		case "TITLE":
			tags.Title = value
		case "ARTIST":
			tags.Artist = value
		case "ALBUM":
			tags.Album = value
		}
	}

	return tags
}
