package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
)

// parseOgg reads the identification header of the first logical stream.
// Duration needs the last page's granule position, which a prefix does not contain.
func parseOgg(data []byte) (*models.AudioFeatures, error) {
	features := &models.AudioFeatures{Container: "Ogg"}

	if i := bytes.Index(data, []byte("\x01vorbis")); i >= 0 && len(data) >= i+7+17 {
		id := data[i+7:]
		features.Codec = "Vorbis I"
		features.SampleRate = int(binary.LittleEndian.Uint32(id[5:9]))
		if nominal := int32(binary.LittleEndian.Uint32(id[13:17])); nominal > 0 {
			features.Bitrate = int(nominal)
		}
		return features, nil
	}

	if i := bytes.Index(data, []byte("OpusHead")); i >= 0 && len(data) >= i+16 {
		features.Codec = "Opus"
		features.SampleRate = 48000
		return features, nil
	}

	if bytes.Contains(data, []byte("\x7fFLAC")) {
		features.Codec = "FLAC"
		return features, nil
	}

	return nil, fmt.Errorf("ogg: %w", errUnknownFormat)
}
