package metadata

import "strings"

// ICYMaxMetadataBytes is the hard protocol ceiling for one ICY inline
// metadata block: a single length byte × 16, so 255×16 = 4080 bytes. This
// is not an implementation choice; ICY framing has no way to express a
// larger block.
const ICYMaxMetadataBytes = 255 * 16

// ParseICYMetadata parses one decoded ICY inline metadata block (already
// stripped of its length byte and trailing NUL padding), extracting
// StreamTitle='...' and splitting on the first " - " into artist/title.
func ParseICYMetadata(block string) Tags {
	streamTitle, ok := extractStreamTitle(block)
	if !ok || streamTitle == "" {
		return Tags{}
	}

	if artist, title, split := strings.Cut(streamTitle, " - "); split {
		return Tags{Artist: artist, Title: title}
	}

	return Tags{Title: streamTitle}
}

func extractStreamTitle(block string) (string, bool) {
	const key = "StreamTitle='"

	start := strings.Index(block, key)
	if start < 0 {
		return "", false
	}

	start += len(key)

	end := strings.Index(block[start:], "';")
	if end < 0 {
		return "", false
	}

	return block[start : start+end], true
}

// ICYMetadataBlockLength converts the single length byte read from the
// stream (immediately after bytes_until_meta bytes of audio) into the
// number of metadata bytes that follow.
func ICYMetadataBlockLength(lengthByte byte) int {
	return int(lengthByte) * 16
}
