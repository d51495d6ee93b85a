// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/provider"
	"github.com/jeranaias/repochat/internal/repo"
	"github.com/jeranaias/repochat/internal/storage"
)

// =============================================================================
// FAKE REPOSITORY
// =============================================================================

type commitCall struct {
	Op      string
	Path    string
	Content string
	Message string
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu        sync.Mutex
	files     map[string]repo.FileContent
	token     bool
	writable  bool
	probeErr  error
	createErr error
	updateErr error
	deleteErr error
	fetchErr  error
	changes   []repo.Change
	calls     []commitCall
	revs      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files:    make(map[string]repo.FileContent),
		token:    true,
		writable: true,
	}
}

func (f *fakeRepo) put(p, content, rev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = repo.FileContent{Path: p, Content: content, Revision: rev}
}

func (f *fakeRepo) commits() []commitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commitCall(nil), f.calls...)
}

func (f *fakeRepo) FullName() string { return "acme/widgets" }

func (f *fakeRepo) HasToken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeRepo) Fetch(_ context.Context, p string) (repo.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return repo.FileContent{}, f.fetchErr
	}
	fc, ok := f.files[p]
	if !ok {
		return repo.FileContent{}, repo.ErrNotFound
	}
	return fc, nil
}

func (f *fakeRepo) FileExists(ctx context.Context, p string) (bool, error) {
	_, err := f.Fetch(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeRepo) ListDirectory(_ context.Context, dir string) ([]repo.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]repo.File)
	for p, fc := range f.files {
		rel := p
		if dir != "" {
			if !strings.HasPrefix(p, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, dir+"/")
		}
		if i := strings.Index(rel, "/"); i >= 0 {
			name := rel[:i]
			seen[name] = repo.File{Path: path.Join(dir, name), Name: name, IsDir: true}
			continue
		}
		seen[rel] = repo.File{Path: p, Name: rel, Size: len(fc.Content), Revision: fc.Revision}
	}
	if len(seen) == 0 && dir != "" {
		return nil, repo.ErrNotFound
	}

	out := make([]repo.File, 0, len(seen))
	for _, file := range seen {
		out = append(out, file)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeRepo) Tree(_ context.Context, dir string) ([]repo.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []repo.File
	for p, fc := range f.files {
		if dir != "" && !strings.HasPrefix(p, dir+"/") {
			continue
		}
		out = append(out, repo.File{Path: p, Name: path.Base(p), Size: len(fc.Content), Revision: fc.Revision})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeRepo) RecentChanges(_ context.Context, limit int) ([]repo.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.changes) > limit {
		return append([]repo.Change(nil), f.changes[:limit]...), nil
	}
	return append([]repo.Change(nil), f.changes...), nil
}

func (f *fakeRepo) TestWriteAccess(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.token && f.writable, nil
}

// commit records a call and returns a result. The caller holds mu.
func (f *fakeRepo) commit(op, p, content, message string) repo.CommitResult {
	f.calls = append(f.calls, commitCall{Op: op, Path: p, Content: content, Message: message})
	f.revs++
	rev := fmt.Sprintf("blob%04d", f.revs)
	if op != "delete" {
		f.files[p] = repo.FileContent{Path: p, Content: content, Revision: rev}
	} else {
		delete(f.files, p)
		rev = ""
	}
	return repo.CommitResult{
		Revision: rev,
		Message:  message,
		CommitID: fmt.Sprintf("c0ffee%04d", f.revs),
		ViewURL:  "https://github.com/acme/widgets/blob/main/" + p,
	}
}

func (f *fakeRepo) CreateFile(_ context.Context, p, content, message string) (repo.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		f.calls = append(f.calls, commitCall{Op: "create", Path: p, Content: content, Message: message})
		return repo.CommitResult{}, f.createErr
	}
	if _, ok := f.files[p]; ok {
		return repo.CommitResult{}, repo.ErrAlreadyExists
	}
	return f.commit("create", p, content, message), nil
}

func (f *fakeRepo) UpdateFile(_ context.Context, p, content, message string) (repo.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		f.calls = append(f.calls, commitCall{Op: "update", Path: p, Content: content, Message: message})
		return repo.CommitResult{}, f.updateErr
	}
	if _, ok := f.files[p]; !ok {
		return repo.CommitResult{}, repo.ErrNotFound
	}
	return f.commit("update", p, content, message), nil
}

func (f *fakeRepo) DeleteFile(_ context.Context, p, message string) (repo.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return repo.CommitResult{}, f.deleteErr
	}
	if _, ok := f.files[p]; !ok {
		return repo.CommitResult{}, repo.ErrNotFound
	}
	return f.commit("delete", p, "", message), nil
}

// =============================================================================
// FAKE PROVIDERS AND STORES
// =============================================================================

// failingProvider fails every Converse call with err.
type failingProvider struct {
	err    error
	calls  int
	closed bool
}

func (p *failingProvider) Name() string { return "failing" }

func (p *failingProvider) Initialize(provider.Options) error { return nil }

func (p *failingProvider) Converse(context.Context, []model.Message) (string, error) {
	p.calls++
	return "", p.err
}

func (p *failingProvider) Close() error {
	p.closed = true
	return nil
}

// brokenStore fails every call, as an unavailable database would.
type brokenStore struct{}

var errStoreDown = &storage.PersistenceError{Op: "append", Err: errors.New("database is locked")}

func (brokenStore) Append(context.Context, model.Message, string) (string, error) {
	return "", errStoreDown
}
func (brokenStore) LoadAll(context.Context) ([]model.Message, error) { return nil, errStoreDown }
func (brokenStore) Clear(context.Context) error                      { return errStoreDown }
func (brokenStore) Count(context.Context) (int, error)               { return 0, errStoreDown }
func (brokenStore) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, errStoreDown
}
func (brokenStore) Close() error { return nil }
