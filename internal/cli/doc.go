// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the repochat command-line host.
//
// It wires configuration, logging, the keystore, the AI provider, the
// repository client and the message store into one orchestrator.Orchestrator
// and drives it from an interactive prompt.
//
// # Commands
//
//   - chat: interactive session (the default when no command is given)
//   - secrets: manage credentials and repository coordinates
//   - history: inspect or prune the persisted conversation
//   - config: view and modify the configuration file
//
// # Usage
//
//	if err := cli.Execute(); err != nil {
//	    os.Exit(cli.ExitCode(err))
//	}
package cli
