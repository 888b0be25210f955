package hls_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/hls"
)

// buildTSPacket constructs one 188-byte TS packet with the given PID,
// payload-unit-start flag and payload bytes (truncated to fit). A payload
// shorter than 184 bytes is padded with an adaptation field of stuffing
// bytes in front of it, as real muxers do, so the payload ends exactly at
// the end of the packet.
func buildTSPacket(pid int, payloadStart bool, payload []byte) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47

	pkt[1] = byte((pid >> 8) & 0x1F)
	if payloadStart {
		pkt[1] |= 0x40
	}

	pkt[2] = byte(pid & 0xFF)
	pkt[3] = 0x10 // adaptation_field_control = 01 (payload only), continuity 0

	if stuffing := 184 - len(payload); stuffing > 0 {
		pkt[3] = 0x30 // adaptation_field_control = 11 (adaptation field + payload)
		pkt[4] = byte(stuffing - 1)

		for i := 6; i < 4+stuffing; i++ {
			pkt[i] = 0xFF // pkt[5] stays 0x00: no adaptation flags set
		}

		copy(pkt[4+stuffing:], payload)

		return pkt
	}

	n := copy(pkt[4:], payload)
	_ = n

	return pkt
}

// buildPATPacket builds a PAT payload. Indices are offset by 1 throughout
// because the demuxer's parser treats payload[0] as a pointer_field and
// reads the actual table starting at payload[1:].
func buildPATPacket(pmtPID int) []byte {
	pat := make([]byte, 184)
	pat[0] = 0x00 // pointer_field: table starts immediately after
	pat[1] = 0x00 // table_id = PAT
	pat[2] = 0x00
	pat[3] = 13 // section_length low byte, must be >= 9

	pat[11] = byte(0xE0 | ((pmtPID >> 8) & 0x1F))
	pat[12] = byte(pmtPID & 0xFF)

	return buildTSPacket(0x0000, true, pat)
}

// buildPMTPacket builds a PMT payload with a single elementary stream
// entry and no program descriptors, using the same pointer_field offset
// convention as buildPATPacket.
func buildPMTPacket(pmtPID, esPID, streamType int) []byte {
	pmt := make([]byte, 184)
	pmt[0] = 0x00 // pointer_field
	pmt[1] = 0x02 // table_id = PMT
	pmt[2] = 0x00
	pmt[3] = 18 // section_length low byte
	pmt[11] = 0xE0
	pmt[12] = 0x00 // program_info_length = 0

	pmt[13] = byte(streamType)
	pmt[14] = byte(0xE0 | ((esPID >> 8) & 0x1F))
	pmt[15] = byte(esPID & 0xFF)
	pmt[16] = 0xF0
	pmt[17] = 0x00 // ES_info_length = 0

	return buildTSPacket(pmtPID, true, pmt)
}

func buildPESPacket(pid int, audio []byte) []byte {
	pes := make([]byte, 0, 184)
	pes = append(pes, 0x00, 0x00, 0x01) // PES start code
	pes = append(pes, 0xC0)             // stream id
	pes = append(pes, 0x00, 0x00)       // PES packet length (unused by parser)
	pes = append(pes, 0x80, 0x00)       // flags
	pes = append(pes, 0x00)             // PES_header_data_length = 0, so header ends at byte 9
	pes = append(pes, audio...)

	return buildTSPacket(pid, true, pes)
}

func TestLooksLikeTransportStream(t *testing.T) {
	t.Parallel()

	require.True(t, hls.LooksLikeTransportStream([]byte{0x47, 0x00}))
	require.False(t, hls.LooksLikeTransportStream([]byte{0xFF, 0x00}))
	require.False(t, hls.LooksLikeTransportStream(nil))
}

func TestDemuxerExtractsAACAudioFromPATPMTPES(t *testing.T) {
	t.Parallel()

	const pmtPID = 0x100
	const audioPID = 0x101

	audio := []byte("AACFRAMEDATA")

	var ts []byte
	ts = append(ts, buildPATPacket(pmtPID)...)
	ts = append(ts, buildPMTPacket(pmtPID, audioPID, 0x0F)...)
	ts = append(ts, buildPESPacket(audioPID, audio)...)

	demux := hls.NewDemuxer()

	out, err := demux.Demux(ts)
	require.NoError(t, err)
	require.Equal(t, audio, out)
	require.Equal(t, hls.AudioCodecAAC, demux.Codec())
}

func TestDemuxerCachesPIDAcrossSegments(t *testing.T) {
	t.Parallel()

	const pmtPID = 0x100
	const audioPID = 0x101

	demux := hls.NewDemuxer()

	var first []byte
	first = append(first, buildPATPacket(pmtPID)...)
	first = append(first, buildPMTPacket(pmtPID, audioPID, 0x03)...)
	first = append(first, buildPESPacket(audioPID, []byte("FIRST"))...)

	out, err := demux.Demux(first)
	require.NoError(t, err)
	require.Equal(t, []byte("FIRST"), out)
	require.Equal(t, hls.AudioCodecMP3, demux.Codec())

	// Second segment has no PAT/PMT at all, just audio PES packets; the
	// cached PID must still resolve it.
	second := buildPESPacket(audioPID, []byte("SECOND"))

	out, err = demux.Demux(second)
	require.NoError(t, err)
	require.Equal(t, []byte("SECOND"), out)
}

func TestDemuxReturnsErrNotTransportStreamForNonTSData(t *testing.T) {
	t.Parallel()

	demux := hls.NewDemuxer()

	_, err := demux.Demux([]byte("not a ts stream"))
	require.ErrorIs(t, err, hls.ErrNotTransportStream)
}
