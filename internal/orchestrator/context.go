// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/pending"
)

// =============================================================================
// CONTEXT WINDOW
// =============================================================================

// contextWindow returns the messages sent to the provider: the last window
// messages of the log in order, preceded by a pending-operation instruction
// when any operation is pending. The instruction is never logged.
func (o *Orchestrator) contextWindow() []model.Message {
	o.mu.RLock()
	recent := model.LastN(o.log, o.window)
	o.mu.RUnlock()

	ops := o.tracker.All()
	if len(ops) == 0 {
		return recent
	}

	out := make([]model.Message, 0, len(recent)+1)
	out = append(out, model.NewMessage(model.RoleSystem, o.pendingInstruction(ops), o.now()))
	return append(out, recent...)
}

// pendingInstruction tells the provider how to answer while file
// operations wait for content.
func (o *Orchestrator) pendingInstruction(ops []pending.Operation) string {
	var sb strings.Builder

	if o.repo != nil {
		fmt.Fprintf(&sb, "You are helping change files in the repository %s.\n", o.repo.FullName())
	}
	sb.WriteString("These file operations are waiting for content:\n")
	for _, op := range ops {
		fmt.Fprintf(&sb, "- %s %s\n", op.Kind, op.Path)
	}

	for _, op := range ops {
		if op.Kind != pending.Update {
			continue
		}
		fmt.Fprintf(&sb, "\nCurrent content of %s (revision %s):\n", op.Path, shortRevision(op.PriorRevision))
		sb.WriteString(fence(op.Path, op.PriorContent))
	}

	sb.WriteString("\nAnswer with the complete new content of the file inside a single fenced code block")
	if len(ops) > 1 {
		sb.WriteString(", or one block per file with the file path after the language on the opening fence line")
	}
	sb.WriteString(". Do not say that you have written, committed or saved anything: ")
	sb.WriteString("the file is committed to the repository after your reply.")
	return sb.String()
}
