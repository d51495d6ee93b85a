// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/repochat/internal/codeblock"
	"github.com/jeranaias/repochat/internal/diff"
	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/pending"
	"github.com/jeranaias/repochat/internal/repo"
)

// =============================================================================
// EXTRACTION PASS
// =============================================================================

// commitMessage is the fixed commit message for an operation.
func commitMessage(verb, p string) string {
	return fmt.Sprintf("%s %s via repochat", verb, p)
}

func kindVerb(k pending.Kind) string {
	if k == pending.Update {
		return "Update"
	}
	return "Create"
}

// commitPending scans an assistant reply for content for each pending
// operation, in path order, and commits what passes the validator.
// Operations without a usable block stay pending for the next turn. With
// several operations pending, only blocks naming their path count.
func (o *Orchestrator) commitPending(ctx context.Context, reply string) []model.Message {
	var out []model.Message

	ops := o.tracker.All()
	extract := codeblock.ExtractFor
	if len(ops) > 1 {
		extract = codeblock.ExtractNamed
	}

	for _, op := range ops {
		block, ok := extract(reply, op.Path)
		if !ok {
			o.logger.Debug("no code block for pending operation", zap.String("path", op.Path))
			continue
		}

		if err := o.validator.Validate(op.Path, block); err != nil {
			o.metrics.ValidationRejectionsTotal.Inc()
			o.logger.Info("code block rejected", zap.String("path", op.Path), zap.Error(err))
			continue
		}

		if o.repo == nil {
			continue
		}

		msg := commitMessage(kindVerb(op.Kind), op.Path)
		var (
			res repo.CommitResult
			err error
		)
		switch op.Kind {
		case pending.Update:
			res, err = o.repo.UpdateFile(ctx, op.Path, block.Content, msg)
		default:
			res, err = o.repo.CreateFile(ctx, op.Path, block.Content, msg)
		}

		if err != nil {
			o.metrics.CommitFailuresTotal.WithLabelValues(op.Kind.String()).Inc()
			o.setLastError(err)
			o.logger.Warn("commit failed",
				zap.String("path", op.Path),
				zap.String("kind", op.Kind.String()),
				zap.Error(err))
			out = append(out, o.appendMessage(ctx, model.RoleSystem, o.describeCommitError(op.Path, err)))
			continue
		}

		changes := diff.Compute(op.PriorContent, block.Content).Stats
		o.tracker.Remove(op.Path)
		o.metrics.CommitsTotal.WithLabelValues(op.Kind.String()).Inc()
		o.logger.Info("committed pending operation",
			zap.String("path", op.Path),
			zap.String("kind", op.Kind.String()),
			zap.String("revision", res.Revision),
			zap.Int("lines_added", changes.Added),
			zap.Int("lines_removed", changes.Removed))
		out = append(out, o.appendMessage(ctx, model.RoleSystem, commitSummary("Committed", op.Path, res, changes)))
	}

	return out
}

func (o *Orchestrator) describeCommitError(p string, err error) string {
	if errors.Is(err, repo.ErrConflict) {
		return o.describeRepoError(p, err)
	}
	return fmt.Sprintf("Could not commit %s. %s The operation is still pending.", p, o.describeRepoError(p, err))
}

// commitSummary describes a successful write. Zero stats are omitted.
func commitSummary(verb, p string, res repo.CommitResult, changes diff.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", verb, p)

	var details []string
	if changes.Changed() {
		details = append(details, changes.String()+" lines")
	}
	if res.Revision != "" {
		details = append(details, "revision "+res.Revision)
	}
	if res.CommitID != "" {
		details = append(details, "commit "+shortRevision(res.CommitID))
	}
	if len(details) > 0 {
		sb.WriteString(" (" + strings.Join(details, ", ") + ")")
	}
	sb.WriteString(".")

	if res.ViewURL != "" {
		sb.WriteString("\nView: " + res.ViewURL)
	}
	return sb.String()
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
