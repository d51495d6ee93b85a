// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jeranaias/repochat/internal/config"
	"github.com/jeranaias/repochat/internal/keystore"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	secretsPath string

	// fs backs the keystore file.
	fs afero.Fs
}

// loadConfig loads the file named by --config, or the first config file
// found in the config directory.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromPath(o.configPath)
	}
	return config.Load()
}

// configWritePath is where config set writes.
func (o *globalOptions) configWritePath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPathTOML()
}

// secrets opens the keystore with the environment layered on top.
func (o *globalOptions) secrets() *keystore.EnvStore {
	return keystore.NewEnvStore(o.fileSecrets())
}

// fileSecrets opens the keystore file alone.
func (o *globalOptions) fileSecrets() *keystore.FileStore {
	path := o.secretsPath
	if path == "" {
		path = keystore.DefaultPath()
	}
	return keystore.NewFileStore(o.fs, path)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRoot builds the repochat command tree.
func NewRoot() *cobra.Command {
	return newRoot(&globalOptions{fs: afero.NewOsFs()})
}

func newRoot(opts *globalOptions) *cobra.Command {
	chat := newChatCmd(opts)

	cmd := &cobra.Command{
		Use:   "repochat",
		Short: "Chat with an AI about a GitHub repository and commit its answers",
		Long: `repochat is a terminal chat client bound to one GitHub repository.

Talk to the AI as usual. Slash commands browse the repository (/read,
/files, /structure, /commits) or stage a change (/create, /edit, /write).
After a change is staged, the code block in the AI's next reply is
committed to the repository.

Credentials and the repository live in the keystore:
  repochat secrets set repository.owner acme
  repochat secrets set repository.name widgets
  repochat secrets set repository.token <token>
  repochat secrets set provider.api_key <key>`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		// chat is the default command.
		RunE: chat.RunE,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetVersionTemplate(fmt.Sprintf("repochat version %s\n  Git commit: %s\n  Build date: %s\n", Version, GitCommit, BuildDate))

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.repochat/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.secretsPath, "secrets", "", "keystore file (default ~/.repochat/secrets.json)")
	cmd.Flags().AddFlagSet(chat.Flags())

	cmd.AddCommand(chat)
	cmd.AddCommand(newSecretsCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// loadDotenvBestEffort loads .env from the working directory, then from
// the config directory. Variables already set are never overridden.
func loadDotenvBestEffort() {
	_ = godotenv.Load()
	if dir, err := config.ConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
}

// Execute runs the root command against os.Args.
func Execute() error {
	loadDotenvBestEffort()
	return NewRoot().ExecuteContext(context.Background())
}
