// Package metadata extracts Track Info (title/artist/album/art) from the
// tag formats the player's sources carry: ID3v1/v2 trailers and headers,
// Vorbis comments, MP4 atoms, ICY inline blocks, HLS EXTINF attributes,
// and ID3-in-MPEG-TS. Each extractor is independent and best-effort: a
// malformed or absent tag yields a zero-value Tags, never an error that
// would abort playback.
package metadata

import (
	"bytes"
	"strings"
	"unicode/utf16"
)

// Tags is the common result of every extractor in this package.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Art    []byte // raw embedded image bytes, if any
}

// id3v1Size is the fixed trailer size ID3v1 always occupies.
const id3v1Size = 128

// ParseID3v1 parses a 128-byte ID3v1 trailer. data must be exactly
// id3v1Size bytes and begin with "TAG".
func ParseID3v1(data []byte) (Tags, bool) {
	if len(data) != id3v1Size || string(data[0:3]) != "TAG" {
		return Tags{}, false
	}

	return Tags{
		Title:  trimID3v1Field(data[3:33]),
		Artist: trimID3v1Field(data[33:63]),
		Album:  trimID3v1Field(data[63:93]),
	}, true
}

func trimID3v1Field(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}

	return strings.TrimRight(string(field), " ")
}

const (
	id3v2HeaderSize = 10
	syncsafeBits    = 7
)

// ParseID3v2Size reads the syncsafe 4-byte size field from an ID3v2 header
// and returns the total tag size (header + frames), or ok=false if header
// doesn't start with "ID3".
func ParseID3v2Size(header []byte) (size int, ok bool) {
	if len(header) < id3v2HeaderSize || string(header[0:3]) != "ID3" {
		return 0, false
	}

	return decodeSyncsafe(header[6:10]) + id3v2HeaderSize, true
}

func decodeSyncsafe(b []byte) int {
	n := 0
	for _, v := range b {
		n = (n << syncsafeBits) | int(v&0x7F)
	}

	return n
}

// frontCoverPictureType is the APIC picture-type byte for "front cover".
const frontCoverPictureType = 3

// apicPriority ranks an APIC picture type for "pick the best embedded art"
// purposes: front cover always wins, any other type is preferred over none.
func apicPriority(pictureType byte) int {
	if pictureType == frontCoverPictureType {
		return 1000
	}

	return int(pictureType)
}

// ParseID3v2Frames walks the frame body following an ID3v2 header (body
// must NOT include the 10-byte header), extracting TIT2/TPE1/TALB text
// frames and an APIC image, preferring picture-type 3 (front cover).
func ParseID3v2Frames(body []byte) Tags {
	var (
		tags        Tags
		bestArt     []byte
		bestArtType = -1
	)

	pos := 0
	for pos+id3v2HeaderSize <= len(body) {
		id := string(body[pos : pos+4])
		if id == "\x00\x00\x00\x00" {
			break
		}

		frameSize := int(uint32(body[pos+4])<<24 | uint32(body[pos+5])<<16 | uint32(body[pos+6])<<8 | uint32(body[pos+7]))
		frameStart := pos + id3v2HeaderSize
		frameEnd := frameStart + frameSize

		if frameSize < 0 || frameEnd > len(body) {
			break
		}

		frameBody := body[frameStart:frameEnd]

		switch id {
		case "TIT2":
			tags.Title = decodeID3Text(frameBody)
		case "TPE1":
			tags.Artist = decodeID3Text(frameBody)
		case "TALB":
			tags.Album = decodeID3Text(frameBody)
		case "APIC":
			if pictureType, img, ok := parseAPIC(frameBody); ok && apicPriority(pictureType) > bestArtType {
				bestArt = img
				bestArtType = apicPriority(pictureType)
			}
		}

		pos = frameEnd
	}

	if bestArt != nil {
		tags.Art = bestArt
	}

	return tags
}

// parseAPIC extracts the picture-type byte and raw image bytes from an
// APIC frame body: encoding(1) mimetype(\0-term) picturetype(1) desc(\0 or
// \0\0-term) imagedata.
func parseAPIC(body []byte) (pictureType byte, image []byte, ok bool) {
	if len(body) < 2 {
		return 0, nil, false
	}

	encoding := body[0]
	rest := body[1:]

	mimeEnd := bytes.IndexByte(rest, 0)
	if mimeEnd < 0 || mimeEnd+2 > len(rest) {
		return 0, nil, false
	}

	pictureType = rest[mimeEnd+1]
	descStart := mimeEnd + 2

	descEnd, textWidth := findTextTerminator(rest[descStart:], encoding)
	if descEnd < 0 {
		return 0, nil, false
	}

	imageStart := descStart + descEnd + textWidth
	if imageStart > len(rest) {
		return 0, nil, false
	}

	return pictureType, rest[imageStart:], true
}

// findTextTerminator locates the null terminator for an ID3v2 text string
// given its encoding byte, returning the terminator's offset and its byte
// width (1 for Latin-1/UTF-8, 2 for UTF-16).
func findTextTerminator(data []byte, encoding byte) (offset, width int) {
	if encoding == 1 || encoding == 2 {
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] == 0 && data[i+1] == 0 {
				return i, 2
			}
		}

		return -1, 2
	}

	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i, 1
	}

	return -1, 1
}

// decodeID3Text decodes an ID3v2 text frame body: the first byte selects
// the encoding (0=ISO-8859-1, 1=UTF-16 with BOM, 2=UTF-16BE, 3=UTF-8).
// Characters that can't be represented are dropped rather than replaced.
func decodeID3Text(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	encoding := body[0]
	text := body[1:]

	switch encoding {
	case 0:
		return decodeLatin1(text)
	case 3:
		return strings.ToValidUTF8(stripTrailingNul(string(text)), "")
	case 1:
		return decodeUTF16(text, true)
	case 2:
		return decodeUTF16(text, false)
	default:
		return decodeLatin1(text)
	}
}

func stripTrailingNul(s string) string {
	return strings.TrimRight(s, "\x00")
}

func decodeLatin1(b []byte) string {
	b = bytes.TrimRight(b, "\x00")

	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}

	return string(runes)
}

// decodeUTF16 decodes a UTF-16 byte sequence, determining byte order from
// a leading BOM when detectBOM is true, defaulting to big-endian when no
// BOM is present or detectBOM is false.
func decodeUTF16(b []byte, detectBOM bool) string {
	bigEndian := true

	if detectBOM && len(b) >= 2 {
		switch {
		case b[0] == 0xFF && b[1] == 0xFE:
			bigEndian = false
			b = b[2:]
		case b[0] == 0xFE && b[1] == 0xFF:
			bigEndian = true
			b = b[2:]
		}
	}

	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}

	units := make([]uint16, 0, len(b)/2)

	for i := 0; i+1 < len(b); i += 2 {
		if bigEndian {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		} else {
			units = append(units, uint16(b[i+1])<<8|uint16(b[i]))
		}
	}

	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}

	// utf16.Decode turns unpaired surrogates into U+FFFD; drop those.
	runes := utf16.Decode(units)
	kept := runes[:0]

	for _, r := range runes {
		if r != 0xFFFD {
			kept = append(kept, r)
		}
	}

	return string(kept)
}
