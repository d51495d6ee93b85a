// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/repochat/internal/keystore"
)

// secretKeys are the keys repochat reads.
var secretKeys = []string{
	keystore.KeyProviderAPIKey,
	keystore.KeyRepositoryOwner,
	keystore.KeyRepositoryName,
	keystore.KeyRepositoryToken,
}

// isSensitive reports whether a key's value is masked by default.
func isSensitive(key string) bool {
	return key == keystore.KeyProviderAPIKey || key == keystore.KeyRepositoryToken
}

// maskSecret keeps the last four characters of a long value.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", 8) + value[len(value)-4:]
}

// envSource returns the environment variable supplying key, if any.
func envSource(store *keystore.EnvStore, key string) (string, bool) {
	name := store.EnvName(key)
	v, ok := os.LookupEnv(name)
	return name, ok && v != ""
}

func newSecretsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage credentials and repository coordinates",
		Long: `Manage the keystore (~/.repochat/secrets.json, mode 0600).

Keys:
  provider.api_key     API key for the AI provider
  repository.owner     GitHub owner (user or organization)
  repository.name      GitHub repository name
  repository.token     GitHub token; without it the repository is read-only

Each key can also come from the environment, e.g. REPOCHAT_REPOSITORY_TOKEN,
which takes precedence over the file.`,
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.AddCommand(newSecretsSetCmd(opts))
	cmd.AddCommand(newSecretsGetCmd(opts))
	cmd.AddCommand(newSecretsListCmd(opts))
	cmd.AddCommand(newSecretsDeleteCmd(opts))
	cmd.AddCommand(newSecretsClearCmd(opts))
	return cmd
}

func newSecretsSetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a value (read from stdin when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				var err error
				value, err = readSecret(cmd, key)
				if err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("no value given for %s", key)
			}

			if err := opts.fileSecrets().Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s saved\n", RenderStatus("ok"), key)
			return nil
		},
	}
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
// SECURITY: Secrets typed at a terminal never appear on screen.
func readSecret(cmd *cobra.Command, key string) (string, error) {
	in := cmd.InOrStdin()
	if in == os.Stdin && IsTTY() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", key)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}

func newSecretsGetCmd(opts *globalOptions) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value (sensitive values are masked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			store := opts.secrets()
			value, ok, err := store.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", key)
			}

			if isSensitive(key) && !show {
				value = maskSecret(value)
			}
			fmt.Fprint(cmd.OutOrStdout(), value)
			if name, ok := envSource(store, key); ok {
				fmt.Fprintf(cmd.OutOrStdout(), " (from %s)", name)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print sensitive values in full")
	return cmd
}

func newSecretsListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show which keys are set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := opts.secrets()
			out := cmd.OutOrStdout()
			for _, key := range secretKeys {
				_, ok, err := store.Get(key)
				if err != nil {
					return err
				}
				status := DimStyle.Render("not set")
				if ok {
					status = SuccessStyle.Render("set")
					if name, fromEnv := envSource(store, key); fromEnv {
						status += DimStyle.Render(" (" + name + ")")
					}
				}
				fmt.Fprintln(out, RenderField(key, status))
			}
			return nil
		},
	}
}

func newSecretsDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a value from the keystore file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.fileSecrets().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s deleted\n", RenderStatus("ok"), args[0])
			return nil
		},
	}
}

func newSecretsClearCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every value from the keystore file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd, "Remove every stored secret?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			if err := opts.fileSecrets().Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s keystore cleared\n", RenderStatus("ok"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
