package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Testers-Community/android-aab-signer/internal/validation"
)

type validateOptions struct {
	aab      string
	keystore string
	alias    string
}

func newValidateCmd(a *app) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check inputs locally without contacting the server",
		Long: `Run the same checks the server applies before signing: file extensions and
sizes, the key alias and the presence of both passwords.

Examples:
  aabsign validate --aab app-release.aab --keystore release.jks --alias upload`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.aab, "aab", "", "path to the unsigned .aab")
	cmd.Flags().StringVar(&opts.keystore, "keystore", "", "path to the keystore")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "key alias inside the keystore")
	_ = cmd.MarkFlagRequired("aab")
	_ = cmd.MarkFlagRequired("keystore")
	_ = cmd.MarkFlagRequired("alias")

	return cmd
}

func runValidate(a *app, opts *validateOptions, w io.Writer) error {
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

	checks := []func() error{
		func() error { return validation.AABFile(aab.name, aab.size) },
		func() error { return validation.KeystoreFile(keystore.name, keystore.size) },
		func() error {
			return validation.SigningParams(validation.Params{
				KeystorePassword: a.getenv(EnvKeystorePassword),
				KeyAlias:         opts.alias,
				KeyPassword:      a.getenv(EnvKeyPassword),
			})
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			fmt.Fprintln(w, err.Error())
			return err
		}
	}
	fmt.Fprintln(w, "Inputs look good.")
	return nil
}
