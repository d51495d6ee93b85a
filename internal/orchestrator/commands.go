// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/repochat/internal/commands"
	"github.com/jeranaias/repochat/internal/diff"
	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/pending"
	"github.com/jeranaias/repochat/internal/repo"
)

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// HandleCommand runs one prefixed command. The command text is appended as
// a user message, followed by one system message with the outcome. Unknown
// verbs, missing arguments, missing write access and repository failures all
// resolve to that system message; the returned error is ErrClosed or the
// context's error when ctx is already done.
func (o *Orchestrator) HandleCommand(ctx context.Context, input string) (Turn, error) {
	if strings.TrimSpace(input) == "" {
		return Turn{}, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}

	end, err := o.begin(turnCommand)
	if err != nil {
		return Turn{}, err
	}
	defer end()

	res := o.parser.Parse(input)

	// clear wipes the log, so its own command text is not kept.
	if res.Command != nil && res.Command.Name == commands.CmdClear {
		o.clear(ctx)
		return Turn{Cleared: true}, nil
	}

	var turn Turn
	turn.Appended = append(turn.Appended, o.appendMessage(ctx, model.RoleUser, res.RawInput))

	reply := o.dispatch(ctx, res)
	turn.Appended = append(turn.Appended, o.appendMessage(ctx, model.RoleSystem, reply))

	o.logger.Debug("command handled", zap.String("command", res.Name()), zap.String("argument", res.Argument))
	return turn, nil
}

// dispatch returns the system message text for a parsed command.
func (o *Orchestrator) dispatch(ctx context.Context, res commands.ParseResult) string {
	cmd := res.Command
	if cmd == nil {
		if res.Verb == "" {
			return o.registry.HelpText(o.prefix)
		}
		return fmt.Sprintf("Unknown command: %s%s. Type %shelp for the command list.", o.prefix, res.Verb, o.prefix)
	}

	if cmd.ArgRequired && res.Argument == "" {
		return fmt.Sprintf("Usage: %s%s", o.prefix, cmd.Usage)
	}

	// Commands that need no repository.
	switch cmd.Name {
	case commands.CmdHelp:
		return o.registry.HelpText(o.prefix)
	case commands.CmdDiff:
		return o.describePending()
	case commands.CmdCancel:
		return o.cancel(res.Argument)
	case commands.CmdStatus:
		return o.status(ctx)
	}

	if o.repo == nil {
		return o.noRepositoryMessage()
	}

	if cmd.NeedsWrite {
		if ok, msg := o.checkWriteAccess(ctx); !ok {
			return msg
		}
	}

	p := pending.NormalizePath(res.Argument)

	switch cmd.Name {
	case commands.CmdRead:
		return o.read(ctx, p)
	case commands.CmdStructure:
		return o.structure(ctx, p)
	case commands.CmdFiles:
		return o.files(ctx, p)
	case commands.CmdCommits:
		return o.commits(ctx)
	case commands.CmdCreate:
		return o.create(ctx, p)
	case commands.CmdEdit:
		return o.edit(ctx, p)
	case commands.CmdWrite:
		return o.write(ctx, p)
	case commands.CmdDelete:
		return o.delete(ctx, p)
	default:
		return fmt.Sprintf("Unknown command: %s%s. Type %shelp for the command list.", o.prefix, res.Verb, o.prefix)
	}
}

// checkWriteAccess probes the repository. A failed probe counts as no access.
func (o *Orchestrator) checkWriteAccess(ctx context.Context) (bool, string) {
	if !o.repo.HasToken() {
		return false, o.noWriteAccessMessage()
	}
	ok, err := o.repo.TestWriteAccess(ctx)
	if err != nil {
		o.setLastError(err)
		o.logger.Warn("write access probe failed", zap.Error(err))
		return false, fmt.Sprintf("Could not verify write access. %s", o.describeRepoError("", err))
	}
	if !ok {
		return false, o.noWriteAccessMessage()
	}
	return true, ""
}

// repoFailure records a repository error and returns its description.
func (o *Orchestrator) repoFailure(op, p string, err error) string {
	o.setLastError(err)
	o.logger.Warn("repository command failed", zap.String("op", op), zap.String("path", p), zap.Error(err))
	return o.describeRepoError(p, err)
}

func (o *Orchestrator) markLoaded(p string) {
	o.mu.Lock()
	o.loaded[p] = true
	o.mu.Unlock()
}

// =============================================================================
// BROWSE COMMANDS
// =============================================================================

func (o *Orchestrator) read(ctx context.Context, p string) string {
	fc, err := o.repo.Fetch(ctx, p)
	if err != nil {
		return o.repoFailure("read", p, err)
	}
	o.markLoaded(p)
	return fmt.Sprintf("%s (revision %s):\n\n%s", p, shortRevision(fc.Revision), fence(p, fc.Content))
}

func (o *Orchestrator) structure(ctx context.Context, p string) string {
	files, err := o.repo.Tree(ctx, p)
	if err != nil {
		return o.repoFailure("structure", p, err)
	}
	title := fmt.Sprintf("Structure of %s:", o.repo.FullName())
	if p != "" {
		title = fmt.Sprintf("Structure of %s/%s:", o.repo.FullName(), p)
	}
	return formatListing(title, files, false)
}

func (o *Orchestrator) files(ctx context.Context, p string) string {
	files, err := o.repo.ListDirectory(ctx, p)
	if err != nil {
		return o.repoFailure("files", p, err)
	}
	title := fmt.Sprintf("Files in %s:", o.repo.FullName())
	if p != "" {
		title = fmt.Sprintf("Files in %s:", p)
	}
	return formatListing(title, files, true)
}

func (o *Orchestrator) commits(ctx context.Context) string {
	changes, err := o.repo.RecentChanges(ctx, repo.DefaultChangesLimit)
	if err != nil {
		return o.repoFailure("commits", "", err)
	}
	return formatChanges(changes)
}

// =============================================================================
// CHANGE COMMANDS
// =============================================================================

func (o *Orchestrator) create(ctx context.Context, p string) string {
	exists, err := o.repo.FileExists(ctx, p)
	if err != nil {
		return o.repoFailure("create", p, err)
	}
	if exists {
		return fmt.Sprintf("%s already exists. Use %sedit %s to change it.", p, o.prefix, p)
	}

	o.tracker.SetCreate(p)
	return fmt.Sprintf("Ready to create %s. Describe what it should contain; the code block in the next reply will be committed.", p)
}

func (o *Orchestrator) edit(ctx context.Context, p string) string {
	fc, err := o.repo.Fetch(ctx, p)
	if err != nil {
		if isNotFound(err) {
			return fmt.Sprintf("%s was not found. Use %screate %s to add it.", p, o.prefix, p)
		}
		return o.repoFailure("edit", p, err)
	}

	o.tracker.SetUpdate(p, fc.Content, fc.Revision)
	o.markLoaded(p)
	return fmt.Sprintf("Editing %s (revision %s). Describe the change; the code block in the next reply will be committed.\n\nCurrent content:\n\n%s",
		p, shortRevision(fc.Revision), fence(p, fc.Content))
}

func (o *Orchestrator) write(ctx context.Context, p string) string {
	fc, err := o.repo.Fetch(ctx, p)
	switch {
	case err == nil:
		o.tracker.SetUpdate(p, fc.Content, fc.Revision)
		o.markLoaded(p)
		return fmt.Sprintf("%s exists (revision %s); the code block in the next reply will replace it.", p, shortRevision(fc.Revision))
	case isNotFound(err):
		o.tracker.SetCreate(p)
		return fmt.Sprintf("%s does not exist yet; the code block in the next reply will create it.", p)
	default:
		return o.repoFailure("write", p, err)
	}
}

func (o *Orchestrator) delete(ctx context.Context, p string) string {
	res, err := o.repo.DeleteFile(ctx, p, commitMessage("Delete", p))
	if err != nil {
		o.metrics.CommitFailuresTotal.WithLabelValues("delete").Inc()
		return o.repoFailure("delete", p, err)
	}

	o.tracker.Remove(p)
	o.mu.Lock()
	delete(o.loaded, p)
	o.mu.Unlock()

	o.metrics.CommitsTotal.WithLabelValues("delete").Inc()
	o.logger.Info("deleted file", zap.String("path", p), zap.String("commit", res.CommitID))
	return commitSummary("Deleted", p, res, diff.Stats{})
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func (o *Orchestrator) describePending() string {
	ops := o.tracker.All()
	if len(ops) == 0 {
		return "No pending operations."
	}

	var sb strings.Builder
	sb.WriteString("Pending operations:")
	for _, op := range ops {
		fmt.Fprintf(&sb, "\n  %-6s  %s", op.Kind, op.Path)
		if op.Kind == pending.Update {
			fmt.Fprintf(&sb, " (from revision %s)", shortRevision(op.PriorRevision))
		}
	}
	return sb.String()
}

func (o *Orchestrator) cancel(arg string) string {
	if arg == "" {
		n := o.tracker.Len()
		o.tracker.Clear()
		if n == 0 {
			return "No pending operations."
		}
		return fmt.Sprintf("Cancelled %d pending operation(s).", n)
	}

	p := pending.NormalizePath(arg)
	if !o.tracker.Remove(p) {
		return fmt.Sprintf("Nothing is pending for %s.", p)
	}
	return fmt.Sprintf("Cancelled the pending operation for %s.", p)
}

func (o *Orchestrator) status(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("Status:")
	fmt.Fprintf(&sb, "\n  Provider:      %s", o.label)

	if o.repo == nil {
		sb.WriteString("\n  Repository:    not configured")
		sb.WriteString("\n  Write access:  no")
	} else {
		fmt.Fprintf(&sb, "\n  Repository:    %s", o.repo.FullName())
		access := "no"
		if o.repo.HasToken() {
			ok, err := o.repo.TestWriteAccess(ctx)
			switch {
			case err != nil:
				o.logger.Warn("write access probe failed", zap.Error(err))
				access = "unknown (" + err.Error() + ")"
			case ok:
				access = "yes"
			}
		} else {
			access = "no (read-only, no token)"
		}
		fmt.Fprintf(&sb, "\n  Write access:  %s", access)
	}

	fmt.Fprintf(&sb, "\n  Pending:       %d", o.tracker.Len())

	state := o.Snapshot()
	if len(state.LoadedFiles) == 0 {
		sb.WriteString("\n  Loaded files:  none")
	} else {
		fmt.Fprintf(&sb, "\n  Loaded files:  %s", strings.Join(state.LoadedFiles, ", "))
	}
	fmt.Fprintf(&sb, "\n  Messages:      %d", len(state.Messages))
	return sb.String()
}
