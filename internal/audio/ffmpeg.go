package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrConversion is returned when ffmpeg fails to produce a WAV file.
var ErrConversion = errors.New("audio conversion failed")

// FFmpegConverter implements Converter using the ffmpeg CLI.
type FFmpegConverter struct {
	ffmpegPath string
}

// NewFFmpegConverter creates a new FFmpegConverter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegConverter(ffmpegPath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegConverter{ffmpegPath: ffmpegPath}
}

// IsWAV reports whether path has a .wav extension.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ToWAV implements Converter.ToWAV.
func (c *FFmpegConverter) ToWAV(ctx context.Context, inputPath, outputDir string) (string, error) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return "", fmt.Errorf("input file does not exist: %s", inputPath)
	}

	if IsWAV(inputPath) {
		return inputPath, nil
	}

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".wav")

	args := []string{
		"-y", // Overwrite output
		"-i", inputPath,
		"-vn",               // Drop any video stream
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-f", "wav",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v, stderr: %s", ErrConversion, err, stderr.String())
	}

	return outputPath, nil
}

// Verify interface implementation at compile time.
var _ Converter = (*FFmpegConverter)(nil)
