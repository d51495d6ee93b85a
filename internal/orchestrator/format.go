// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/repochat/internal/provider"
	"github.com/jeranaias/repochat/internal/repo"
	"github.com/jeranaias/repochat/internal/util"
)

const (
	// maxListing caps the entries shown by files and structure.
	maxListing = 200

	// maxNameWidth caps the name column of listings.
	maxNameWidth = 60
)

// fenceLanguages maps extensions to fence tags where they differ.
var fenceLanguages = map[string]string{
	".py": "python", ".rb": "ruby", ".rs": "rust", ".js": "javascript",
	".ts": "typescript", ".sh": "bash", ".yml": "yaml", ".md": "markdown",
	".kt": "kotlin", ".cs": "csharp", ".h": "c", ".hpp": "cpp", ".cc": "cpp",
}

// fence wraps content in a fenced block tagged from p's extension. The fence
// grows past any backtick run inside content.
func fence(p, content string) string {
	ext := strings.ToLower(path.Ext(p))
	lang, ok := fenceLanguages[ext]
	if !ok {
		lang = strings.TrimPrefix(ext, ".")
	}

	ticks := "```"
	for strings.Contains(content, ticks) {
		ticks += "`"
	}

	var sb strings.Builder
	sb.WriteString(ticks + lang + "\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(ticks + "\n")
	return sb.String()
}

// shortRevision abbreviates a blob or commit id.
func shortRevision(rev string) string {
	if rev == "" {
		return "unknown"
	}
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// =============================================================================
// LISTINGS
// =============================================================================

// formatListing renders files as aligned name and size columns.
func formatListing(title string, files []repo.File, relative bool) string {
	if len(files) == 0 {
		return title + "\n(empty)"
	}

	shown := files
	if len(shown) > maxListing {
		shown = shown[:maxListing]
	}

	names := make([]string, len(shown))
	width := 0
	for i, f := range shown {
		name := f.Path
		if relative {
			name = f.Name
		}
		if f.IsDir {
			name += "/"
		}
		names[i] = name
		if w := runewidth.StringWidth(name); w > width {
			width = w
		}
	}
	if width > maxNameWidth {
		width = maxNameWidth
	}

	var sb strings.Builder
	sb.WriteString(title)
	for i, f := range shown {
		sb.WriteString("\n  ")
		if f.IsDir {
			sb.WriteString(names[i])
			continue
		}
		sb.WriteString(util.PadWidth(names[i], width))
		sb.WriteString("  ")
		sb.WriteString(formatSize(f.Size))
	}
	if len(files) > len(shown) {
		fmt.Fprintf(&sb, "\n  ... and %d more", len(files)-len(shown))
	}
	return sb.String()
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatChanges renders recent commits, newest first.
func formatChanges(changes []repo.Change) string {
	if len(changes) == 0 {
		return "No commits found."
	}

	var sb strings.Builder
	sb.WriteString("Recent commits:")
	for _, c := range changes {
		fmt.Fprintf(&sb, "\n  %s  %s", shortRevision(c.ID), util.TruncateRunes(util.OneLine(c.Summary), 72))
		if c.Author != "" {
			fmt.Fprintf(&sb, " (%s", c.Author)
			if !c.When.IsZero() {
				fmt.Fprintf(&sb, ", %s", c.When.Format("2006-01-02 15:04"))
			}
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// =============================================================================
// ERROR DESCRIPTIONS
// =============================================================================

// describeProviderError renders a provider failure for the conversation.
func describeProviderError(err error) string {
	var perr *provider.ProviderError
	if errors.As(err, &perr) && perr.Status != 0 {
		return fmt.Sprintf("AI provider error (%s, HTTP %d): %s", perr.Provider, perr.Status, perr.Message)
	}
	return fmt.Sprintf("AI provider error: %v", err)
}

// describeRepoError renders a repository failure for the conversation.
func (o *Orchestrator) describeRepoError(p string, err error) string {
	var terr *repo.TransportError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Sprintf("%s was not found in the repository.", p)
	case errors.Is(err, repo.ErrAlreadyExists):
		return fmt.Sprintf("%s already exists. Use %sedit %s to change it.", p, o.prefix, p)
	case errors.Is(err, repo.ErrConflict):
		return fmt.Sprintf("Commit conflict on %s: the file changed since it was read. Reissue %sedit %s and try again.", p, o.prefix, p)
	case errors.Is(err, repo.ErrReadOnly):
		return o.noWriteAccessMessage()
	case errors.Is(err, repo.ErrIsDirectory):
		return fmt.Sprintf("%s is a directory.", p)
	case errors.Is(err, repo.ErrNotDirectory):
		return fmt.Sprintf("%s is a file, not a directory.", p)
	case errors.Is(err, repo.ErrNotConfigured):
		return o.noRepositoryMessage()
	case errors.As(err, &terr):
		return fmt.Sprintf("Repository request failed: %v", terr)
	default:
		return fmt.Sprintf("Repository error: %v", err)
	}
}

func (o *Orchestrator) noRepositoryMessage() string {
	return "No repository is configured. Set repository.owner and repository.name with `repochat secrets set`."
}

func (o *Orchestrator) noWriteAccessMessage() string {
	name := "the repository"
	if o.repo != nil {
		name = o.repo.FullName()
	}
	return fmt.Sprintf("Write access is not available for %s. Configure repository.token with a token that has push permission.", name)
}
