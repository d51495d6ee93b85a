// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/orchestrator"
)

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderer prints conversation messages. Assistant replies are rendered as
// markdown when a glamour renderer is available.
type renderer struct {
	md     *glamour.TermRenderer
	styled bool
}

// newRenderer builds a renderer. markdown is ignored when stdout is not a
// terminal so piped output stays plain.
func newRenderer(markdown bool, width int) *renderer {
	r := &renderer{styled: ColorsEnabled()}
	if !markdown || !IsStdoutTTY() {
		return r
	}
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		r.md = md
	}
	return r
}

// markdown renders content, falling back to the raw text.
func (r *renderer) markdown(content string) string {
	if r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return out
}

// message renders one message. User messages are not echoed back; the
// prompt already shows them.
func (r *renderer) message(m model.Message) string {
	switch m.Role {
	case model.RoleUser:
		return ""
	case model.RoleAssistant:
		body := r.markdown(m.Content)
		return roleLabel(m.Role) + "\n" + strings.TrimRight(body, "\n") + "\n"
	default:
		if !r.styled {
			return m.Content + "\n"
		}
		return systemStyle.Render(m.Content) + "\n"
	}
}

// turn prints what a turn appended.
func (r *renderer) turn(w io.Writer, t orchestrator.Turn) {
	if t.Cleared {
		fmt.Fprintln(w, SuccessStyle.Render("Conversation cleared."))
		return
	}
	for _, m := range t.Appended {
		if out := r.message(m); out != "" {
			fmt.Fprintln(w, out)
		}
	}
}

// transcript prints the last n messages, users included.
func (r *renderer) transcript(w io.Writer, msgs []model.Message, n int) {
	for _, m := range model.LastN(msgs, n) {
		if m.Role == model.RoleUser {
			fmt.Fprintf(w, "%s %s\n\n", roleLabel(m.Role)+":", m.Content)
			continue
		}
		fmt.Fprintln(w, r.message(m))
	}
}
