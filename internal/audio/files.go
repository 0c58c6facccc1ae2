package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Prefix returns the input file name without directory and extension.
func Prefix(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SegmentFilename returns the file name of segment index, e.g. "talk_003.wav".
func SegmentFilename(prefix string, index int) string {
	return fmt.Sprintf("%s_%03d.wav", prefix, index)
}

// ManifestFilename returns the file name of the time-range manifest.
func ManifestFilename(prefix string) string {
	return prefix + ".json"
}
