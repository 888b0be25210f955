package metadata

import (
	"bytes"
	"strings"
)

// TSID3Result is what ParseTSID3 reports: any tags found plus the total
// byte length of the ID3 block so the caller can skip it before handing
// the remaining bytes to the MPEG-TS demuxer / decoder.
type TSID3Result struct {
	Tags   Tags
	Length int
}

// ParseTSID3 inspects the start of one MPEG-TS segment (or PES payload)
// for a leading "ID3" tag TXXX and PRIV frames are
// additionally scanned for an embedded "StreamTitle=" value, the way some
// HLS radio encoders smuggle ICY-style metadata through ID3-in-TS.
func ParseTSID3(data []byte) (TSID3Result, bool) {
	totalSize, ok := ParseID3v2Size(data)
	if !ok || totalSize > len(data) {
		return TSID3Result{}, false
	}

	body := data[id3v2HeaderSize:totalSize]
	tags := ParseID3v2Frames(body)

	if streamTitle, found := scanStreamTitleFrames(body); found {
		if artist, title, split := strings.Cut(streamTitle, " - "); split {
			tags.Artist = artist
			tags.Title = title
		} else {
			tags.Title = streamTitle
		}
	}

	return TSID3Result{Tags: tags, Length: totalSize}, true
}

// scanStreamTitleFrames walks TXXX and PRIV frames looking for a
// "StreamTitle=" payload, which some encoders embed instead of (or
// alongside) TIT2/TPE1.
func scanStreamTitleFrames(body []byte) (string, bool) {
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

		if id == "TXXX" || id == "PRIV" {
			if title, found := findStreamTitle(body[frameStart:frameEnd]); found {
				return title, true
			}
		}

		pos = frameEnd
	}

	return "", false
}

func findStreamTitle(frameBody []byte) (string, bool) {
	const key = "StreamTitle="

	idx := bytes.Index(frameBody, []byte(key))
	if idx < 0 {
		return "", false
	}

	value := frameBody[idx+len(key):]
	value = bytes.TrimRight(value, "\x00")
	value = bytes.Trim(value, "';")

	return string(value), len(value) > 0
}
