package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/audiosplit-api/internal/segment"
)

// Static errors for WAV handling.
var (
	// ErrInvalidWAV is returned when the input is not a readable WAV file.
	ErrInvalidWAV = errors.New("invalid WAV file")
	// ErrUnsupportedFormat is returned for non-PCM encodings or unknown bit depths.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// WAV format tags accepted by ReadWAV.
const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Format describes the PCM layout of a decoded file.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// MaxAmplitude returns the largest sample value representable at bitDepth.
// 8-bit WAV samples are unsigned.
func MaxAmplitude(bitDepth int) (int, error) {
	switch bitDepth {
	case 8:
		return 255, nil
	case 16, 24, 32:
		return 1<<(bitDepth-1) - 1, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit", ErrUnsupportedFormat, bitDepth)
	}
}

// ReadWAV decodes a PCM WAV stream into a sample buffer.
func ReadWAV(r io.ReadSeeker) (*segment.SampleBuffer, Format, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, Format{}, ErrInvalidWAV
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return nil, Format{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("read PCM buffer: %w", err)
	}

	format := Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	maxAmp, err := MaxAmplitude(format.BitDepth)
	if err != nil {
		return nil, Format{}, err
	}

	samples, err := segment.NewSampleBuffer(buf.Data, format.SampleRate, format.Channels, maxAmp)
	if err != nil {
		return nil, Format{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	return samples, format, nil
}

// WriteWAV encodes interleaved samples as a PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int, f Format) error {
	enc := wav.NewEncoder(w, f.SampleRate, f.BitDepth, f.Channels, formatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: f.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}
