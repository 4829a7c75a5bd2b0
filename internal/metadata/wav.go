package metadata

import (
	"bytes"
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
	"github.com/go-audio/wav"
)

// parseWAV reads the fmt chunk. Duration comes from the data chunk header when present,
// otherwise from the file size.
func parseWAV(data []byte, size int64) (*models.AudioFeatures, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", errUnknownFormat)
	}

	bitrate := int(d.SampleRate) * int(d.BitDepth) * int(d.NumChans)
	features := &models.AudioFeatures{
		SampleRate: int(d.SampleRate),
		Bitrate:    bitrate,
		Codec:      wavCodec(d.WavAudioFormat),
		Container:  "WAVE",
	}

	if dur, err := d.Duration(); err == nil && dur > 0 {
		features.Duration = dur.Seconds()
	} else if size > 44 && bitrate > 0 {
		features.Duration = float64(size-44) * 8 / float64(bitrate)
	}

	return features, nil
}

func wavCodec(format uint16) string {
	switch format {
	case 1:
		return "PCM"
	case 3:
		return "IEEE float"
	case 0xFFFE:
		return "PCM (extensible)"
	default:
		return fmt.Sprintf("WAVE format %d", format)
	}
}
