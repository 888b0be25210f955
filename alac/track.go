package alac

import (
	"encoding/binary"
	"fmt"
	"io"

	mp4 "github.com/abema/go-mp4"
)

// SampleInfo is the exported form of sampleInfo, the byte offset and size
// of one encoded audio packet inside an MP4 container. Exposed so
// decode/m4a can reuse this package's MP4 box walking for both ALAC and
// AAC-in-MP4 tracks ( M4A decoder dispatches on the stsd sample
// entry FourCC between the two).
type SampleInfo struct {
	Offset uint64
	Size   uint32
}

// FindAudioTrack walks the MP4 box tree looking for the first track whose
// stsd sample entry FourCC is one of wantFourCCs (e.g. "alac" or "mp4a"),
// generalising this package's original ALAC-only findALACTrack/
// extractCookie into a dispatcher decode/m4a can drive for either codec.
func FindAudioTrack(rs io.ReadSeeker, wantFourCCs ...string) (fourCC string, cookie []byte, samples []SampleInfo, err error) {
	stbls, err := mp4.ExtractBox(rs, nil, mp4.BoxPath{
		mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(),
		mp4.BoxTypeMinf(), mp4.BoxTypeStbl(),
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("reading container structure: %w", err)
	}

	for _, stbl := range stbls {
		entryFourCC, rawCookie, extractErr := extractSampleEntry(rs, stbl, wantFourCCs)
		if extractErr != nil {
			continue
		}

		internalSamples, tableErr := buildSampleTable(rs, stbl)
		if tableErr != nil {
			return "", nil, nil, fmt.Errorf("building sample table: %w", tableErr)
		}

		exported := make([]SampleInfo, len(internalSamples))
		for i, s := range internalSamples {
			exported[i] = SampleInfo{Offset: s.offset, Size: s.size}
		}

		return entryFourCC, rawCookie, exported, nil
	}

	return "", nil, nil, errNoALACTrack
}

// extractSampleEntry is extractCookie generalised to any FourCC in
// wantFourCCs, returning which one matched.
func extractSampleEntry(rs io.ReadSeeker, stbl *mp4.BoxInfo, wantFourCCs []string) (string, []byte, error) {
	stsds, err := mp4.ExtractBox(rs, stbl, mp4.BoxPath{mp4.BoxTypeStsd()})
	if err != nil || len(stsds) == 0 {
		return "", nil, errNoALACTrack
	}

	stsd := stsds[0]
	payloadSize := int(stsd.Size - stsd.HeaderSize)
	data := make([]byte, payloadSize)

	if _, err := rs.Seek(int64(stsd.Offset+stsd.HeaderSize), io.SeekStart); err != nil {
		return "", nil, fmt.Errorf("seeking to stsd payload: %w", err)
	}

	if _, err := io.ReadFull(rs, data); err != nil {
		return "", nil, fmt.Errorf("reading stsd payload: %w", err)
	}

	if len(data) < stsdPayloadHeader {
		return "", nil, errNoALACTrack
	}

	entryCount := binary.BigEndian.Uint32(data[4:8])
	pos := stsdPayloadHeader

	for range entryCount {
		if pos+sampleEntryHeaderSize > len(data) {
			break
		}

		entrySize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if entrySize < sampleEntryHeaderSize+sampleEntryBaseSize || pos+entrySize > len(data) {
			pos += entrySize

			continue
		}

		entryFourCC := string(data[pos+4 : pos+8])
		if !containsString(wantFourCCs, entryFourCC) {
			pos += entrySize

			continue
		}

		version := binary.BigEndian.Uint16(data[pos+sampleEntryHeaderSize+8 : pos+sampleEntryHeaderSize+10])

		skip := sampleEntryHeaderSize + sampleEntryBaseSize
		if version == 1 {
			skip += sampleEntryV1Extra
		}

		cookieStart := pos + skip
		cookieEnd := pos + entrySize

		if cookieStart >= cookieEnd {
			return "", nil, errInvalidCookie
		}

		return entryFourCC, data[cookieStart:cookieEnd], nil
	}

	return "", nil, errNoALACTrack
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}
