package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errBadOggPage is returned when a page's capture pattern doesn't match.
var errBadOggPage = errors.New("opus: bad Ogg page capture pattern")

// oggPage is one parsed Ogg page: the packets it holds, the last of which
// is only the first part of a packet when continuesNext is set.
type oggPage struct {
	packets       [][]byte
	continuesNext bool
	granulePos    uint64
}

// readOggPage reads one Ogg page from r. CRC is not verified: this is a
// playback decoder, not a stream validator, and a corrupt page will simply
// fail further downstream in the Opus decode step.
func readOggPage(r io.Reader) (oggPage, error) {
	var header [27]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return oggPage{}, fmt.Errorf("reading page header: %w", err) //nolint:wrapcheck // EOF must propagate as-is for callers checking io.EOF
	}

	if string(header[:4]) != "OggS" {
		return oggPage{}, errBadOggPage
	}

	granule := binary.LittleEndian.Uint64(header[6:14])
	numSegments := int(header[26])

	segmentTable := make([]byte, numSegments)
	if _, err := io.ReadFull(r, segmentTable); err != nil {
		return oggPage{}, fmt.Errorf("reading segment table: %w", err)
	}

	page := oggPage{granulePos: granule}

	var current []byte

	for _, segLen := range segmentTable {
		buf := make([]byte, segLen)
		if segLen > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return oggPage{}, fmt.Errorf("reading segment: %w", err)
			}
		}

		current = append(current, buf...)

		if segLen < 255 {
			page.packets = append(page.packets, current)
			current = nil
		}
	}

	if len(current) > 0 {
		page.packets = append(page.packets, current)
		page.continuesNext = true
	}

	return page, nil
}
