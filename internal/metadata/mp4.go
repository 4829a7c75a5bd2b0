package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
)

// parseMP4 reads the movie header and the first audio sample entry. Both live in the moov box,
// which is only found when the file was written with moov ahead of mdat.
func parseMP4(data []byte, size int64) (*models.AudioFeatures, error) {
	features := &models.AudioFeatures{Container: "MPEG-4"}
	if len(data) >= 12 {
		features.Container = fmt.Sprintf("MPEG-4/%s", bytes.TrimSpace(data[8:12]))
	}

	if i := bytes.Index(data, []byte("mvhd")); i >= 0 {
		body := data[i+4:]
		var timescale, duration uint64
		switch {
		case len(body) >= 32 && body[0] == 1:
			timescale = uint64(binary.BigEndian.Uint32(body[20:24]))
			duration = binary.BigEndian.Uint64(body[24:32])
		case len(body) >= 20:
			timescale = uint64(binary.BigEndian.Uint32(body[12:16]))
			duration = uint64(binary.BigEndian.Uint32(body[16:20]))
		}
		if timescale > 0 {
			features.Duration = float64(duration) / float64(timescale)
		}
	}

	for _, codec := range []struct{ fourcc, name string }{
		{"mp4a", "AAC"},
		{"alac", "ALAC"},
		{"ac-3", "AC-3"},
		{"Opus", "Opus"},
	} {
		i := bytes.Index(data, []byte(codec.fourcc))
		// sample entry: 6 reserved, 2 data ref, 8 reserved, 2 channels, 2 sample size,
		// 4 pre-defined/reserved, 4 sample rate (16.16)
		if i < 0 || len(data) < i+4+32 {
			continue
		}
		entry := data[i+4:]
		features.Codec = codec.name
		features.SampleRate = int(binary.BigEndian.Uint32(entry[24:28]) >> 16)
		break
	}

	if features.Duration > 0 && size > 0 {
		features.Bitrate = int(float64(size) * 8 / features.Duration)
	}

	if features.Duration == 0 && features.Codec == "" {
		return nil, fmt.Errorf("mp4: %w", errUnknownFormat)
	}
	return features, nil
}
