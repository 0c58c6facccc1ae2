package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the audiosplit command tree.
func NewRootCmd(env *Env, version, commit string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audiosplit",
		Short: "Split recordings into clips at silent passages",
		Long: `audiosplit cuts a recording wherever sound resumes after silence.

Each clip is written as <name>_NNN.wav next to a <name>.json manifest that maps
clip numbers to their start and end times.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)

	rootCmd.AddCommand(SplitCmd(env))
	rootCmd.AddCommand(VersionCmd(env, version, commit))

	return rootCmd
}

// VersionCmd creates the version command.
func VersionCmd(env *Env, version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(env.Stdout, "audiosplit %s (commit: %s)\n", version, commit)
		},
	}
}
