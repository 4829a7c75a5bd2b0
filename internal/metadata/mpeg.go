package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
)

// MPEG audio version ids as encoded in the frame header.
const (
	mpeg25 = 0
	mpeg2  = 2
	mpeg1  = 3
)

var (
	// kbps, indexed by [v1?][layer-1][index]
	mpegBitrates = [2][3][16]int{
		{ // MPEG-2 / 2.5
			{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
			{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
			{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		},
		{ // MPEG-1
			{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
			{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
			{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
		},
	}

	mpegSampleRates = map[int][3]int{
		mpeg1:  {44100, 48000, 32000},
		mpeg2:  {22050, 24000, 16000},
		mpeg25: {11025, 12000, 8000},
	}
)

type mpegFrame struct {
	version    int
	layer      int
	bitrate    int // bits per second
	sampleRate int
	channels   int
	length     int
}

// samplesPerFrame is 384 for layer I, 1152 for layer II and for MPEG-1 layer III, 576 otherwise.
func (f mpegFrame) samplesPerFrame() int {
	switch {
	case f.layer == 1:
		return 384
	case f.layer == 2 || f.version == mpeg1:
		return 1152
	default:
		return 576
	}
}

func (f mpegFrame) codec() string {
	v := map[int]string{mpeg1: "1", mpeg2: "2", mpeg25: "2.5"}[f.version]
	return fmt.Sprintf("MPEG %s Layer %d", v, f.layer)
}

// id3Length returns the byte length of a leading ID3v2 tag, or 0.
func id3Length(data []byte) int {
	if len(data) < 10 || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}
	// syncsafe integer: 7 significant bits per byte
	n := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	n += 10
	if data[5]&0x10 != 0 {
		n += 10
	}
	return n
}

// skipID3 returns data past a leading ID3v2 tag; a tag longer than data leaves nothing.
func skipID3(data []byte) []byte {
	n := id3Length(data)
	if n > len(data) {
		return nil
	}
	return data[n:]
}

func parseFrameHeader(h []byte) (mpegFrame, bool) {
	if len(h) < 4 || h[0] != 0xFF || h[1]&0xE0 != 0xE0 {
		return mpegFrame{}, false
	}

	version := int(h[1]>>3) & 0x03
	layerBits := int(h[1]>>1) & 0x03
	bitrateIdx := int(h[2]>>4) & 0x0F
	rateIdx := int(h[2]>>2) & 0x03
	padding := int(h[2]>>1) & 0x01
	mode := int(h[3]>>6) & 0x03

	if version == 1 || layerBits == 0 || bitrateIdx == 0 || bitrateIdx == 15 || rateIdx == 3 {
		return mpegFrame{}, false
	}

	f := mpegFrame{version: version, layer: 4 - layerBits, channels: 2}
	if mode == 3 {
		f.channels = 1
	}

	v1 := 0
	if version == mpeg1 {
		v1 = 1
	}
	f.bitrate = mpegBitrates[v1][f.layer-1][bitrateIdx] * 1000
	f.sampleRate = mpegSampleRates[version][rateIdx]

	if f.layer == 1 {
		f.length = (12*f.bitrate/f.sampleRate + padding) * 4
	} else {
		f.length = f.samplesPerFrame()/8*f.bitrate/f.sampleRate + padding
	}

	return f, f.length > 4
}

// findFrame locates the first frame header at or after start that is followed by another valid header.
func findFrame(data []byte, start int) (int, mpegFrame, bool) {
	for i := start; i+4 <= len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		f, ok := parseFrameHeader(data[i:])
		if !ok {
			continue
		}
		next := i + f.length
		if next+4 > len(data) {
			return i, f, true
		}
		if _, ok := parseFrameHeader(data[next:]); ok {
			return i, f, true
		}
	}
	return 0, mpegFrame{}, false
}

// xingFrames returns the frame count from a Xing/Info or VBRI header in the first frame.
func xingFrames(frame []byte, f mpegFrame) (int, bool) {
	var offset int
	switch {
	case f.version == mpeg1 && f.channels == 2:
		offset = 36
	case f.version == mpeg1 || f.channels == 2:
		offset = 21
	default:
		offset = 13
	}

	if len(frame) >= offset+12 {
		tag := string(frame[offset : offset+4])
		if tag == "Xing" || tag == "Info" {
			flags := binary.BigEndian.Uint32(frame[offset+4:])
			if flags&0x1 != 0 {
				return int(binary.BigEndian.Uint32(frame[offset+8:])), true
			}
		}
	}

	if len(frame) >= 36+18 && string(frame[36:40]) == "VBRI" {
		return int(binary.BigEndian.Uint32(frame[36+14:])), true
	}

	return 0, false
}

// parseMPEG reads the first audio frame after any ID3v2 tag. Duration uses the VBR header
// frame count when present, otherwise the constant bitrate and the file size.
func parseMPEG(data []byte, size int64) (*models.AudioFeatures, error) {
	start := id3Length(data)
	if start >= len(data) {
		return nil, fmt.Errorf("mpeg: %w", errUnknownFormat)
	}

	pos, f, ok := findFrame(data, start)
	if !ok {
		return nil, fmt.Errorf("mpeg: %w", errUnknownFormat)
	}

	features := &models.AudioFeatures{
		SampleRate: f.sampleRate,
		Bitrate:    f.bitrate,
		Codec:      f.codec(),
		Container:  "MPEG",
	}

	audioBytes := size - int64(pos)
	if frames, ok := xingFrames(data[pos:], f); ok && frames > 0 {
		features.Duration = float64(frames*f.samplesPerFrame()) / float64(f.sampleRate)
		if size > 0 && features.Duration > 0 {
			features.Bitrate = int(float64(audioBytes) * 8 / features.Duration)
		}
	} else if size > 0 && f.bitrate > 0 {
		features.Duration = float64(audioBytes) * 8 / float64(f.bitrate)
	}

	return features, nil
}
