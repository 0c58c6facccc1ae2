// Package audio decodes input recordings to PCM and writes segments back as
// WAV files. Containers other than WAV are converted with ffmpeg first.
package audio

import "context"

// Converter turns an arbitrary audio file into a PCM WAV file.
type Converter interface {
	// ToWAV returns the path of a WAV rendition of inputPath. WAV inputs are
	// returned unchanged; other formats are converted into outputDir.
	// The caller owns any file created in outputDir.
	ToWAV(ctx context.Context, inputPath, outputDir string) (string, error)
}
