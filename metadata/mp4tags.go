package metadata

import (
	"io"

	mp4 "github.com/abema/go-mp4"
)

// ParseMP4Tags extracts title/artist/album/cover art from an M4A/MP4
// container's moov/udta/meta/ilst atom tree (the conventional iTunes-style
// metadata box), using the same abema/go-mp4 box walker the ALAC/AAC-in-MP4
// decoders already depend on for sample tables. Each ilst child
// (e.g. "\xa9nam") wraps a nested "data" box carrying the actual payload.
func ParseMP4Tags(rs io.ReadSeeker) (Tags, error) {
	var tags Tags

	ilsts, err := mp4.ExtractBox(rs, nil, mp4.BoxPath{
		mp4.StrToBoxType("moov"), mp4.StrToBoxType("udta"),
		mp4.StrToBoxType("meta"), mp4.StrToBoxType("ilst"),
	})
	if err != nil || len(ilsts) == 0 {
		return tags, nil //nolint:nilerr // missing metadata atom is not an error, just no tags
	}

	ilst := ilsts[0]

	tags.Title = extractIlstDataString(rs, ilst, "\xa9nam")
	tags.Artist = extractIlstDataString(rs, ilst, "\xa9ART")
	tags.Album = extractIlstDataString(rs, ilst, "\xa9alb")
	tags.Art = extractIlstDataBytes(rs, ilst, "covr")

	return tags, nil
}

func extractIlstDataBox(rs io.ReadSeeker, ilst *mp4.BoxInfo, tagFourCC string) ([]byte, bool) {
	boxes, err := mp4.ExtractBoxWithPayload(rs, ilst, mp4.BoxPath{
		mp4.StrToBoxType(tagFourCC), mp4.StrToBoxType("data"),
	})
	if err != nil || len(boxes) == 0 {
		return nil, false
	}

	data, ok := boxes[0].Payload.(*mp4.Data)
	if !ok {
		return nil, false
	}

	return data.Data, true
}

func extractIlstDataString(rs io.ReadSeeker, ilst *mp4.BoxInfo, tagFourCC string) string {
	raw, ok := extractIlstDataBox(rs, ilst, tagFourCC)
	if !ok {
		return ""
	}

	return string(raw)
}

func extractIlstDataBytes(rs io.ReadSeeker, ilst *mp4.BoxInfo, tagFourCC string) []byte {
	raw, ok := extractIlstDataBox(rs, ilst, tagFourCC)
	if !ok {
		return nil
	}

	return raw
}
