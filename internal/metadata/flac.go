package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
	"github.com/go-flac/go-flac"
)

const streamInfoLength = 34

// parseFLAC reads the STREAMINFO block. Metadata blocks that run past the prefix are tolerated
// as long as STREAMINFO, which is always first, was read.
func parseFLAC(data []byte, size int64) (*models.AudioFeatures, error) {
	var info []byte

	if f, err := flac.ParseMetadata(bytes.NewReader(data)); err == nil {
		for _, block := range f.Meta {
			if block.Type == flac.StreamInfo {
				info = block.Data
				break
			}
		}
	}

	// "fLaC" + 4-byte block header + STREAMINFO body
	if info == nil && len(data) >= 8+streamInfoLength && data[4]&0x7f == byte(flac.StreamInfo) {
		info = data[8 : 8+streamInfoLength]
	}

	if len(info) < streamInfoLength {
		return nil, fmt.Errorf("flac: %w", errUnknownFormat)
	}

	// bytes 10..17: sample rate (20 bits), channels-1 (3), bits per sample-1 (5), total samples (36)
	packed := binary.BigEndian.Uint64(info[10:18])
	sampleRate := int(packed >> 44)
	totalSamples := packed & 0xFFFFFFFFF

	features := &models.AudioFeatures{
		SampleRate: sampleRate,
		Codec:      "FLAC",
		Container:  "FLAC",
	}

	if sampleRate > 0 && totalSamples > 0 {
		features.Duration = float64(totalSamples) / float64(sampleRate)
		if size > 0 {
			features.Bitrate = int(float64(size) * 8 / features.Duration)
		}
	}

	return features, nil
}
