// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repo is the GitHub client behind the repository commands.
//
// Writes use optimistic concurrency: every update and delete carries the blob
// revision the server must still hold. The client never retries; callers
// surface ErrConflict to the user and let them re-read the file.
package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Configuration defaults.
const (
	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond throttles outbound calls.
	DefaultRequestsPerSecond = 5.0

	// DefaultChangesLimit is the number of changesets /commits shows.
	DefaultChangesLimit = 5
)

// Config locates the repository and carries the credentials.
type Config struct {
	Owner  string
	Name   string
	Branch string // empty selects the repository default branch
	Token  string // empty gives a read-only client

	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string

	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client reads and writes files in one repository branch.
type Client struct {
	gh      *github.Client
	owner   string
	name    string
	branch  string
	token   bool
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a client. A nil logger disables logging.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Owner) == "" || strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = cfg.Timeout
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid repository base URL: %w", err)
		}
		gh.BaseURL = u
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		gh:      gh,
		owner:   cfg.Owner,
		name:    cfg.Name,
		branch:  cfg.Branch,
		token:   cfg.Token != "",
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:  logger.With(zap.String("repository", cfg.Owner+"/"+cfg.Name)),
	}, nil
}

// FullName returns "owner/name".
func (c *Client) FullName() string {
	return c.owner + "/" + c.name
}

// Branch returns the configured branch, or "" for the default branch.
func (c *Client) Branch() string {
	return c.branch
}

// HasToken reports whether writes can be attempted.
func (c *Client) HasToken() bool {
	return c.token
}

// cleanPath turns user input into a repository-relative path.
func cleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// wait applies the outbound rate limit.
func (c *Client) wait(ctx context.Context, op, p string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Path: p, Err: err}
	}
	return nil
}

func (c *Client) getOptions() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: c.branch}
}

func (c *Client) branchPtr() *string {
	if c.branch == "" {
		return nil
	}
	return github.String(c.branch)
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Fetch returns the decoded content of a file and its current revision.
func (c *Client) Fetch(ctx context.Context, filePath string) (FileContent, error) {
	p := cleanPath(filePath)
	if err := c.wait(ctx, "read", p); err != nil {
		return FileContent{}, err
	}

	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.name, p, c.getOptions())
	if err != nil {
		return FileContent{}, classify("read", p, resp, err, nil)
	}
	if file == nil {
		if dir != nil {
			return FileContent{}, fmt.Errorf("read %s: %w", p, ErrIsDirectory)
		}
		return FileContent{}, fmt.Errorf("read %s: %w", p, ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return FileContent{}, &TransportError{Op: "read", Path: p, Err: err}
	}

	c.logger.Debug("read file", zap.String("path", p), zap.Int("bytes", len(content)))
	return FileContent{Path: p, Content: content, Revision: file.GetSHA()}, nil
}

// ReadFile returns the decoded content of a file.
func (c *Client) ReadFile(ctx context.Context, filePath string) (string, error) {
	fc, err := c.Fetch(ctx, filePath)
	if err != nil {
		return "", err
	}
	return fc.Content, nil
}

// Revision returns the latest revision id of a file.
func (c *Client) Revision(ctx context.Context, filePath string) (string, error) {
	fc, err := c.Fetch(ctx, filePath)
	if err != nil {
		return "", err
	}
	return fc.Revision, nil
}

// FileExists reports whether a file is present. Only a NotFound outcome
// maps to false; other failures are returned.
func (c *Client) FileExists(ctx context.Context, filePath string) (bool, error) {
	_, err := c.Fetch(ctx, filePath)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ListDirectory returns the immediate children of dirPath, directories
// first, each group sorted by name.
func (c *Client) ListDirectory(ctx context.Context, dirPath string) ([]File, error) {
	p := cleanPath(dirPath)
	if err := c.wait(ctx, "list", p); err != nil {
		return nil, err
	}

	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.name, p, c.getOptions())
	if err != nil {
		return nil, classify("list", p, resp, err, nil)
	}
	if file != nil {
		return nil, fmt.Errorf("list %s: %w", p, ErrNotDirectory)
	}

	files := make([]File, 0, len(dir))
	for _, entry := range dir {
		files = append(files, File{
			Path:     entry.GetPath(),
			Name:     entry.GetName(),
			IsDir:    entry.GetType() == "dir",
			Size:     entry.GetSize(),
			Revision: entry.GetSHA(),
		})
	}
	sortFiles(files)
	return files, nil
}

// Tree returns every entry below dirPath using one recursive tree request.
// Entries are sorted by path.
func (c *Client) Tree(ctx context.Context, dirPath string) ([]File, error) {
	p := cleanPath(dirPath)
	if err := c.wait(ctx, "tree", p); err != nil {
		return nil, err
	}

	ref := c.branch
	if ref == "" {
		ref = "HEAD"
	}
	tree, resp, err := c.gh.Git.GetTree(ctx, c.owner, c.name, ref, true)
	if err != nil {
		return nil, classify("tree", p, resp, err, nil)
	}
	if tree.GetTruncated() {
		c.logger.Warn("repository tree truncated by server", zap.Int("entries", len(tree.Entries)))
	}

	prefix := ""
	if p != "" {
		prefix = p + "/"
	}

	var files []File
	for _, e := range tree.Entries {
		entryPath := e.GetPath()
		if prefix != "" && !strings.HasPrefix(entryPath, prefix) {
			continue
		}
		files = append(files, File{
			Path:     entryPath,
			Name:     path.Base(entryPath),
			IsDir:    e.GetType() == "tree",
			Size:     e.GetSize(),
			Revision: e.GetSHA(),
		})
	}
	if p != "" && len(files) == 0 {
		return nil, fmt.Errorf("tree %s: %w", p, ErrNotFound)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// RecentChanges returns up to limit changesets on the branch, newest first.
func (c *Client) RecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = DefaultChangesLimit
	}
	if err := c.wait(ctx, "commits", ""); err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		SHA:         c.branch,
		ListOptions: github.ListOptions{PerPage: limit},
	}
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, c.owner, c.name, opts)
	if err != nil {
		return nil, classify("commits", "", resp, err, nil)
	}

	changes := make([]Change, 0, len(commits))
	for _, rc := range commits {
		if len(changes) == limit {
			break
		}
		commit := rc.GetCommit()
		changes = append(changes, Change{
			ID:      rc.GetSHA(),
			Summary: commit.GetMessage(),
			Author:  commit.GetAuthor().GetName(),
			When:    commit.GetAuthor().GetDate().Time,
		})
	}
	return changes, nil
}

// TestWriteAccess reports whether the token may push to the repository.
// It only reads repository metadata.
func (c *Client) TestWriteAccess(ctx context.Context) (bool, error) {
	if !c.token {
		return false, nil
	}
	if err := c.wait(ctx, "access", ""); err != nil {
		return false, err
	}

	repository, resp, err := c.gh.Repositories.Get(ctx, c.owner, c.name)
	if err != nil {
		return false, classify("access", "", resp, err, nil)
	}
	perms := repository.Permissions
	return perms["push"] || perms["maintain"] || perms["admin"], nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// CreateFile adds a new file. It fails with ErrAlreadyExists when the path
// is taken; existence is not checked beforehand.
func (c *Client) CreateFile(ctx context.Context, filePath, content, message string) (CommitResult, error) {
	p := cleanPath(filePath)
	if !c.token {
		return CommitResult{}, ErrReadOnly
	}
	if err := c.wait(ctx, "create", p); err != nil {
		return CommitResult{}, err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		Branch:  c.branchPtr(),
	}
	res, resp, err := c.gh.Repositories.CreateFile(ctx, c.owner, c.name, p, opts)
	if err != nil {
		return CommitResult{}, classify("create", p, resp, err, ErrAlreadyExists)
	}

	result := commitResult(res)
	c.logger.Info("created file", zap.String("path", p), zap.String("commit", result.CommitID))
	return result, nil
}

// UpdateFile replaces a file's content. It reads the current revision and
// submits the write against it; ErrConflict means another writer won.
func (c *Client) UpdateFile(ctx context.Context, filePath, content, message string) (CommitResult, error) {
	p := cleanPath(filePath)
	if !c.token {
		return CommitResult{}, ErrReadOnly
	}

	revision, err := c.Revision(ctx, p)
	if err != nil {
		return CommitResult{}, err
	}
	return c.UpdateFileAt(ctx, p, content, message, revision)
}

// UpdateFileAt replaces a file's content only if the server still holds
// revision.
func (c *Client) UpdateFileAt(ctx context.Context, filePath, content, message, revision string) (CommitResult, error) {
	p := cleanPath(filePath)
	if !c.token {
		return CommitResult{}, ErrReadOnly
	}
	if err := c.wait(ctx, "update", p); err != nil {
		return CommitResult{}, err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		SHA:     github.String(revision),
		Branch:  c.branchPtr(),
	}
	res, resp, err := c.gh.Repositories.UpdateFile(ctx, c.owner, c.name, p, opts)
	if err != nil {
		return CommitResult{}, classify("update", p, resp, err, ErrConflict)
	}

	result := commitResult(res)
	c.logger.Info("updated file", zap.String("path", p), zap.String("commit", result.CommitID))
	return result, nil
}

// DeleteFile removes a file at its current revision.
func (c *Client) DeleteFile(ctx context.Context, filePath, message string) (CommitResult, error) {
	p := cleanPath(filePath)
	if !c.token {
		return CommitResult{}, ErrReadOnly
	}

	revision, err := c.Revision(ctx, p)
	if err != nil {
		return CommitResult{}, err
	}
	if err := c.wait(ctx, "delete", p); err != nil {
		return CommitResult{}, err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     github.String(revision),
		Branch:  c.branchPtr(),
	}
	res, resp, err := c.gh.Repositories.DeleteFile(ctx, c.owner, c.name, p, opts)
	if err != nil {
		return CommitResult{}, classify("delete", p, resp, err, ErrConflict)
	}

	result := commitResult(res)
	c.logger.Info("deleted file", zap.String("path", p), zap.String("commit", result.CommitID))
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func commitResult(res *github.RepositoryContentResponse) CommitResult {
	if res == nil {
		return CommitResult{}
	}
	result := CommitResult{
		CommitID: res.Commit.GetSHA(),
		Message:  res.Commit.GetMessage(),
		ViewURL:  res.Commit.GetHTMLURL(),
	}
	if res.Content != nil {
		result.Revision = res.Content.GetSHA()
		if u := res.Content.GetHTMLURL(); u != "" {
			result.ViewURL = u
		}
	}
	return result
}

func sortFiles(files []File) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		return files[i].Name < files[j].Name
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
