// Package cli provides the aabsign command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/logging"
)

// Exit codes for the CLI.
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitInvalidInput = 2
)

// Environment variables holding credentials. Passwords are never accepted as flags.
const (
	EnvKeystorePassword = "AABSIGN_KEYSTORE_PASSWORD"
	EnvKeyPassword      = "AABSIGN_KEY_PASSWORD"
	EnvServer           = "AABSIGN_SERVER"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	Server  string
	Verbose bool
	Quiet   bool
}

// app is shared by every subcommand once the root pre-run has executed.
type app struct {
	flags  GlobalFlags
	logger zerolog.Logger
	getenv func(string) string
}

func newRootCmd(a *app, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aabsign",
		Short: "Sign Android App Bundles through a signer deployment",
		Long: `aabsign uploads an unsigned .aab and its keystore to a signer server,
waits for the remote signing job and downloads the signed bundle.

Credentials are read from the environment:
  ` + EnvKeystorePassword + `   keystore password
  ` + EnvKeyPassword + `        key password`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			switch {
			case a.flags.Verbose:
				level = "debug"
			case a.flags.Quiet:
				level = "warn"
			}
			a.logger = logging.NewWithWriter(level, zerolog.ConsoleWriter{
				Out:        cmd.ErrOrStderr(),
				TimeFormat: time.Kitchen,
			})
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := a.getenv(EnvServer)
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&a.flags.Server, "server", server, "signer server base URL")
	cmd.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&a.flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newSignCmd(a))
	cmd.AddCommand(newValidateCmd(a))
	return cmd
}

func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo, args []string, getenv func(string) string) error {
	a := &app{getenv: getenv}
	cmd := newRootCmd(a, info)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, signerrors.ErrValidation):
		return ExitInvalidInput
	default:
		return ExitError
	}
}
