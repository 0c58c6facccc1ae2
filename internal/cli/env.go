// Package cli implements the audiosplit command-line interface.
package cli

import (
	"io"
	"os"

	"github.com/maauso/audiosplit-api/internal/config"
)

// Env holds injectable dependencies for CLI commands.
// Tests replace the writers and the config loader.
type Env struct {
	Stdout     io.Writer
	Stderr     io.Writer
	LoadConfig func() (*config.Config, error)
}

// DefaultEnv returns an Env wired to the process streams and environment.
func DefaultEnv() *Env {
	return &Env{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: config.Load,
	}
}
