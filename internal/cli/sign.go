package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Testers-Community/android-aab-signer/internal/apiclient"
	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/session"
)

// ErrSigningFailed is returned when the attempt ends in the failed phase.
var ErrSigningFailed = errors.New("signing failed")

type signOptions struct {
	aab          string
	keystore     string
	alias        string
	out          string
	pollInterval time.Duration
}

// phaseLines are the progress lines printed on each transition.
var phaseLines = map[session.Phase]string{
	session.PhaseUploading:  "Uploading files...",
	session.PhaseTriggering: "Starting signing job...",
	session.PhaseSigning:    "Signing...",
}

func newSignCmd(a *app) *cobra.Command {
	opts := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an .aab and download the result",
		Long: `Upload an unsigned bundle and keystore, wait for the signing job and save the
signed archive. Ctrl-C stops waiting; the remote job is not cancelled.

Examples:
  AABSIGN_KEYSTORE_PASSWORD=... AABSIGN_KEY_PASSWORD=... \
    aabsign sign --aab app-release.aab --keystore release.jks --alias upload`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSign(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.aab, "aab", "", "path to the unsigned .aab")
	cmd.Flags().StringVar(&opts.keystore, "keystore", "", "path to the keystore (.jks, .keystore, .p12, .pfx)")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "key alias inside the keystore")
	cmd.Flags().StringVar(&opts.out, "out", "", "output path (default signed-aab-<run>.zip)")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", session.DefaultPollInterval, "status poll interval")
	_ = cmd.MarkFlagRequired("aab")
	_ = cmd.MarkFlagRequired("keystore")
	_ = cmd.MarkFlagRequired("alias")

	return cmd
}

func runSign(ctx context.Context, a *app, opts *signOptions, w io.Writer) error {
	aab, err := openInput(opts.aab)
	if err != nil {
		return err
	}
	defer aab.Close()
	keystore, err := openInput(opts.keystore)
	if err != nil {
		return err
	}
	defer keystore.Close()

	client := apiclient.New(a.flags.Server, &http.Client{})
	o := session.New(client, session.Options{
		PollInterval:    opts.pollInterval,
		MissingRunDelay: opts.pollInterval,
		OnTransition: func(_ session.Phase, to session.Attempt) {
			if line, ok := phaseLines[to.Phase]; ok {
				fmt.Fprintln(w, line)
			}
		},
	}, a.logger)
	defer o.Close()

	req := session.Request{
		AAB:              aab.file(),
		Keystore:         keystore.file(),
		KeystorePassword: a.getenv(EnvKeystorePassword),
		KeyAlias:         opts.alias,
		KeyPassword:      a.getenv(EnvKeyPassword),
	}
	if err := o.Submit(ctx, req); err != nil {
		if errors.Is(err, signerrors.ErrValidation) {
			return err
		}
		return failed(w, o.Snapshot())
	}

	attempt, err := o.Wait(ctx)
	if err != nil {
		o.Reset()
		fmt.Fprintln(w, "Stopped waiting. The signing job keeps running remotely.")
		return err
	}
	if attempt.Phase != session.PhaseCompleted {
		return failed(w, attempt)
	}

	out := opts.out
	if out == "" {
		out = fmt.Sprintf("signed-aab-%d.zip", attempt.RunID)
	}
	if err := download(ctx, client, attempt.ArtifactURL, out); err != nil {
		fmt.Fprintln(w, signerrors.UserMessage(err))
		fmt.Fprintln(w, signerrors.ContactHint)
		return err
	}
	fmt.Fprintf(w, "Signed bundle saved to %s\n", out)
	return nil
}

func failed(w io.Writer, a session.Attempt) error {
	msg := a.Error
	if msg == "" {
		msg = signerrors.MsgGeneric
	}
	fmt.Fprintln(w, msg)
	fmt.Fprintln(w, signerrors.ContactHint)
	return fmt.Errorf("%w: %s", ErrSigningFailed, msg)
}

// download writes to a temporary file first so a failed transfer never
// leaves a truncated archive at out.
func download(ctx context.Context, c *apiclient.Client, artifactURL, out string) error {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".aabsign-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := c.Download(ctx, artifactURL, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return os.Rename(tmp.Name(), out)
}

type input struct {
	f    *os.File
	name string
	size int64
}

func openInput(path string) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &input{f: f, name: filepath.Base(path), size: info.Size()}, nil
}

func (in *input) file() session.File {
	return session.File{Name: in.name, Size: in.size, Body: in.f}
}

func (in *input) Close() error {
	return in.f.Close()
}
