// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator runs a repochat conversation.
//
// An Orchestrator owns the message log and the pending file operations.
// Each line of input is either a command (read, edit, create, ...) that
// resolves to a system message, or a chat turn sent to the AI provider.
//
// File changes take two turns. A create, edit or write command records a
// pending operation; the next assistant reply is scanned for a fenced code
// block, which is validated and committed to the repository. Until a usable
// block arrives the operation stays pending and every context window sent to
// the provider starts with an instruction describing it.
//
// # Failure handling
//
//   - Provider and repository failures become system messages.
//   - Store failures are logged and counted; the conversation continues in
//     memory with locally generated message ids.
//   - Validator rejections are logged and leave the operation pending.
//
// # Usage
//
//	o, err := orchestrator.New(orchestrator.Deps{
//	    Provider:   prov,
//	    Repository: client,
//	    Store:      store,
//	    Logger:     logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer o.Close()
//	_ = o.LoadHistory(ctx)
//	turn, err := o.SendMessage(ctx, "/edit README.md")
package orchestrator
