// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repo

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE GITHUB
// =============================================================================

type fakeFile struct {
	content string
	sha     string
}

// fakeGitHub serves the subset of the REST API the client uses, enforcing
// blob revisions like the real contents API.
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]fakeFile
	commits  int
	push     bool
	failNext int // status to return once for the next contents request
	lastAuth string
	lastRef  string
}

func blobSHA(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newFakeGitHub(files map[string]string) *fakeGitHub {
	f := &fakeGitHub{files: map[string]fakeFile{}, push: true}
	for p, c := range files {
		f.files[p] = fakeFile{content: c, sha: blobSHA(c)}
	}
	return f
}

func (f *fakeGitHub) content(p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[p].content
}

func (f *fakeGitHub) has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok
}

func (f *fakeGitHub) ref() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRef
}

func (f *fakeGitHub) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeGitHub) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *fakeGitHub) failOnce(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = status
}

func (f *fakeGitHub) setPush(push bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push = push
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/octo/demo", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{
			"full_name":   "octo/demo",
			"permissions": map[string]bool{"pull": true, "push": f.push},
		})
	})

	mux.HandleFunc("/repos/octo/demo/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")

		if f.failNext != 0 {
			status := f.failNext
			f.failNext = 0
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}

		p := r.PathValue("path")
		switch r.Method {
		case http.MethodGet:
			f.lastRef = r.URL.Query().Get("ref")
			f.serveGet(w, p)
		case http.MethodPut:
			f.servePut(w, r, p)
		case http.MethodDelete:
			f.serveDelete(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("GET /repos/octo/demo/git/trees/{ref}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastRef = r.PathValue("ref")
		var entries []map[string]any
		dirs := map[string]bool{}
		for p, file := range f.files {
			entries = append(entries, map[string]any{"path": p, "type": "blob", "size": len(file.content), "sha": file.sha})
			for d := path.Dir(p); d != "."; d = path.Dir(d) {
				dirs[d] = true
			}
		}
		for d := range dirs {
			entries = append(entries, map[string]any{"path": d, "type": "tree"})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sha": "root", "tree": entries, "truncated": false})
	})

	mux.HandleFunc("GET /repos/octo/demo/commits", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastRef = r.URL.Query().Get("sha")
		var out []map[string]any
		for i := 0; i < 7; i++ {
			out = append(out, map[string]any{
				"sha": fmt.Sprintf("c%d", i),
				"commit": map[string]any{
					"message": fmt.Sprintf("change %d", i),
					"author":  map[string]any{"name": "Ann", "date": "2025-01-02T03:04:05Z"},
				},
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	return mux
}

func (f *fakeGitHub) serveGet(w http.ResponseWriter, p string) {
	if file, ok := f.files[p]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(file.content)),
			"sha":      file.sha,
			"path":     p,
			"name":     path.Base(p),
			"size":     len(file.content),
		})
		return
	}

	var entries []map[string]any
	seen := map[string]bool{}
	for fp, file := range f.files {
		if !strings.HasPrefix(fp, p+"/") {
			continue
		}
		rest := strings.TrimPrefix(fp, p+"/")
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := rest[:i]
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, map[string]any{"type": "dir", "name": dir, "path": p + "/" + dir})
			}
			continue
		}
		entries = append(entries, map[string]any{"type": "file", "name": rest, "path": fp, "size": len(file.content), "sha": file.sha})
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["name"].(string) > entries[j]["name"].(string) })
	writeJSON(w, http.StatusOK, entries)
}

type putBody struct {
	Message string `json:"message"`
	Content []byte `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (f *fakeGitHub) commitResponse(w http.ResponseWriter, status int, p, message string, file *fakeFile) {
	f.commits++
	resp := map[string]any{
		"commit": map[string]any{
			"sha":      fmt.Sprintf("commit%d", f.commits),
			"message":  message,
			"html_url": "https://github.com/octo/demo/commit/" + fmt.Sprint(f.commits),
		},
	}
	if file != nil {
		resp["content"] = map[string]any{
			"sha":      file.sha,
			"path":     p,
			"html_url": "https://github.com/octo/demo/blob/main/" + p,
		}
	}
	writeJSON(w, status, resp)
}

func (f *fakeGitHub) servePut(w http.ResponseWriter, r *http.Request, p string) {
	var body putBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.lastRef = body.Branch

	existing, exists := f.files[p]
	switch {
	case body.SHA == "" && exists:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case body.SHA != "" && !exists:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	case body.SHA != "" && body.SHA != existing.sha:
		writeJSON(w, http.StatusConflict, map[string]string{"message": "lib/foo.txt does not match " + body.SHA})
		return
	}

	file := fakeFile{content: string(body.Content), sha: blobSHA(string(body.Content))}
	f.files[p] = file
	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	f.commitResponse(w, status, p, body.Message, &file)
}

func (f *fakeGitHub) serveDelete(w http.ResponseWriter, r *http.Request, p string) {
	var body putBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	existing, ok := f.files[p]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if body.SHA != existing.sha {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "sha mismatch"})
		return
	}
	delete(f.files, p)
	f.commitResponse(w, http.StatusOK, p, body.Message, nil)
}

func newTestClient(t *testing.T, fake *fakeGitHub, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		Owner:             "octo",
		Name:              "demo",
		Branch:            "main",
		Token:             token,
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
	}, nil)
	require.NoError(t, err)
	return c
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RequiresCoordinates(t *testing.T) {
	_, err := New(context.Background(), Config{Owner: "octo"}, nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestClient_ReadFile(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"lib/foo.txt": "hello"})
	c := newTestClient(t, fake, "tok")
	ctx := context.Background()

	got, err := c.ReadFile(ctx, "/lib/foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "main", fake.ref())
	assert.Equal(t, "Bearer tok", fake.auth())

	rev, err := c.Revision(ctx, "lib/foo.txt")
	require.NoError(t, err)
	assert.Equal(t, blobSHA("hello"), rev)

	_, err = c.ReadFile(ctx, "missing.txt")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = c.ReadFile(ctx, "lib")
	assert.True(t, errors.Is(err, ErrIsDirectory), "got %v", err)
}

func TestClient_FileExists(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"a.txt": "a"})
	c := newTestClient(t, fake, "")
	ctx := context.Background()

	ok, err := c.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.FileExists(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.failOnce(http.StatusBadGateway)
	_, err = c.FileExists(ctx, "a.txt")
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, te.Status)
}

func TestClient_ListDirectory(t *testing.T) {
	fake := newFakeGitHub(map[string]string{
		"lib/foo.txt":   "hello",
		"lib/bar.go":    "package lib",
		"lib/sub/x.txt": "x",
	})
	c := newTestClient(t, fake, "")

	files, err := c.ListDirectory(context.Background(), "lib")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.True(t, files[0].IsDir)
	assert.Equal(t, "sub", files[0].Name)
	assert.Equal(t, "bar.go", files[1].Name)
	assert.Equal(t, "foo.txt", files[2].Name)
	assert.Equal(t, 5, files[2].Size)

	_, err = c.ListDirectory(context.Background(), "lib/foo.txt")
	assert.True(t, errors.Is(err, ErrNotDirectory))

	_, err = c.ListDirectory(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_Tree(t *testing.T) {
	fake := newFakeGitHub(map[string]string{
		"README.md":     "# demo",
		"lib/foo.txt":   "hello",
		"lib/sub/x.txt": "x",
	})
	c := newTestClient(t, fake, "")

	all, err := c.Tree(context.Background(), "")
	require.NoError(t, err)
	var paths []string
	for _, f := range all {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"README.md", "lib", "lib/foo.txt", "lib/sub", "lib/sub/x.txt"}, paths)
	assert.Equal(t, "main", fake.ref())

	sub, err := c.Tree(context.Background(), "lib/sub")
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.Equal(t, "x.txt", sub[0].Name)

	_, err = c.Tree(context.Background(), "docs")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_RecentChanges(t *testing.T) {
	c := newTestClient(t, newFakeGitHub(nil), "")

	changes, err := c.RecentChanges(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, changes, 5)
	assert.Equal(t, "c0", changes[0].ID)
	assert.Equal(t, "change 0", changes[0].Summary)
	assert.Equal(t, "Ann", changes[0].Author)
	assert.Equal(t, 2025, changes[0].When.Year())
}

func TestClient_TestWriteAccess(t *testing.T) {
	fake := newFakeGitHub(nil)

	readOnly := newTestClient(t, fake, "")
	ok, err := readOnly.TestWriteAccess(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "no token means no write access")

	c := newTestClient(t, fake, "tok")
	ok, err = c.TestWriteAccess(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	fake.setPush(false)
	ok, err = c.TestWriteAccess(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_CreateFile(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"exists.txt": "x"})
	c := newTestClient(t, fake, "tok")
	ctx := context.Background()

	res, err := c.CreateFile(ctx, "lib/foo.txt", "hello", "Create lib/foo.txt via repochat")
	require.NoError(t, err)
	assert.Equal(t, blobSHA("hello"), res.Revision)
	assert.Equal(t, "commit1", res.CommitID)
	assert.Equal(t, "Create lib/foo.txt via repochat", res.Message)
	assert.Equal(t, "https://github.com/octo/demo/blob/main/lib/foo.txt", res.ViewURL)
	assert.Equal(t, "hello", fake.content("lib/foo.txt"))
	assert.Equal(t, "main", fake.ref())

	_, err = c.CreateFile(ctx, "exists.txt", "y", "msg")
	assert.True(t, errors.Is(err, ErrAlreadyExists), "got %v", err)
	assert.Equal(t, "x", fake.content("exists.txt"))
}

func TestClient_UpdateFile(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"lib/bar.txt": "old"})
	c := newTestClient(t, fake, "tok")
	ctx := context.Background()

	res, err := c.UpdateFile(ctx, "lib/bar.txt", "new", "Update lib/bar.txt via repochat")
	require.NoError(t, err)
	assert.Equal(t, blobSHA("new"), res.Revision)
	assert.Equal(t, "new", fake.content("lib/bar.txt"))

	_, err = c.UpdateFileAt(ctx, "lib/bar.txt", "newer", "msg", blobSHA("old"))
	assert.True(t, errors.Is(err, ErrConflict), "stale revision must conflict, got %v", err)
	assert.Equal(t, "new", fake.content("lib/bar.txt"))

	_, err = c.UpdateFile(ctx, "missing.txt", "x", "msg")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_DeleteFile(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"tmp.txt": "bye"})
	c := newTestClient(t, fake, "tok")

	res, err := c.DeleteFile(context.Background(), "tmp.txt", "Delete tmp.txt via repochat")
	require.NoError(t, err)
	assert.Empty(t, res.Revision)
	assert.NotEmpty(t, res.CommitID)
	assert.False(t, fake.has("tmp.txt"))

	_, err = c.DeleteFile(context.Background(), "tmp.txt", "again")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_WritesRequireToken(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"a.txt": "a"})
	c := newTestClient(t, fake, "")
	ctx := context.Background()

	_, err := c.CreateFile(ctx, "b.txt", "b", "m")
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.UpdateFile(ctx, "a.txt", "b", "m")
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.DeleteFile(ctx, "a.txt", "m")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, 0, fake.commitCount())
}

func TestClient_ServerErrorIsTransport(t *testing.T) {
	fake := newFakeGitHub(map[string]string{"a.txt": "a"})
	c := newTestClient(t, fake, "tok")

	fake.failOnce(http.StatusInternalServerError)
	_, err := c.CreateFile(context.Background(), "b.txt", "b", "m")
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Equal(t, "create", te.Op)
}

func TestClient_CanceledContext(t *testing.T) {
	c := newTestClient(t, newFakeGitHub(nil), "tok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ReadFile(ctx, "a.txt")
	var te *TransportError
	assert.True(t, errors.As(err, &te), "got %v", err)
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"/":             "",
		"./lib/foo.txt": "lib/foo.txt",
		"/lib//foo.txt": "lib/foo.txt",
		`lib\foo.txt`:   "lib/foo.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanPath(in), "cleanPath(%q)", in)
	}
}
