package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/bootstrap"
	"github.com/maauso/audiosplit-api/internal/job"
)

// ErrInputNotFound is returned when the audio file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// SplitCmd creates the split command.
// The env parameter provides injectable dependencies for testing.
func SplitCmd(env *Env) *cobra.Command {
	var (
		window    float64
		threshold float64
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "split <audio-file>",
		Short: "Split an audio file at silence boundaries",
		Long: `Split an audio file into clips separated by silence.

The recording is scanned with a sliding energy window. A new clip starts
wherever a window rises above the silence threshold after a quiet one.
Files other than WAV are converted with ffmpeg first.

Defaults come from WINDOW_DURATION, SILENCE_THRESHOLD and OUTPUT_DIR.`,
		Example: `  audiosplit split interview.wav
  audiosplit split lecture.mp3 --window 0.4 --threshold 0.001 -o clips/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return runSplit(cmd, env, args[0], splitFlags{
				window:       window,
				windowSet:    flags.Changed("window"),
				threshold:    threshold,
				thresholdSet: flags.Changed("threshold"),
				outputDir:    outputDir,
			})
		},
	}

	cmd.Flags().Float64VarP(&window, "window", "w", 0, "Energy window length in seconds (0 < w <= 10)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Normalized silence threshold (0 <= t < 1)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for clips and manifest")

	return cmd
}

type splitFlags struct {
	window       float64
	windowSet    bool
	threshold    float64
	thresholdSet bool
	outputDir    string
}

func runSplit(cmd *cobra.Command, env *Env, inputPath string, flags splitFlags) error {
	ctx := cmd.Context()

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}

	cfg, err := env.LoadConfig()
	if err != nil {
		return err
	}
	if flags.windowSet {
		cfg.WindowDuration = flags.window
	}
	if flags.thresholdSet {
		cfg.SilenceThreshold = flags.threshold
	}
	if flags.outputDir != "" {
		cfg.OutputDir = flags.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLoggerTo(env.Stderr)
	deps, err := bootstrap.NewDependencies(cfg, logger, job.WithFlatOutput())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath) // #nosec G304 - path is given by the user
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, err := deps.SplitService.Process(ctx, job.SplitInput{
		Filename: filepath.Base(inputPath),
		Audio:    data,
	})
	if err != nil {
		return err
	}

	for _, w := range out.Warnings {
		fmt.Fprintf(env.Stderr, "warning: %s\n", w)
	}
	for _, s := range out.Segments {
		fmt.Fprintf(env.Stdout, "%03d  %s - %s  %s\n", s.Index, s.StartTime, s.EndTime, s.Location)
	}
	fmt.Fprintf(env.Stdout, "%d segment(s), manifest: %s\n", len(out.Segments), out.ManifestLocation)

	return nil
}
