// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// Error variables for repository outcomes the caller must distinguish.
var (
	// ErrNotConfigured indicates owner or repository name is missing.
	ErrNotConfigured = errors.New("repository not configured")

	// ErrReadOnly indicates a write was attempted without a token.
	ErrReadOnly = errors.New("repository is read-only: no access token configured")

	// ErrNotFound indicates the path does not exist on the target branch.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create targeted an existing path.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates the file changed since its revision was read.
	ErrConflict = errors.New("conflict: file changed since it was read")

	// ErrIsDirectory indicates a file operation targeted a directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotDirectory indicates a listing targeted a file.
	ErrNotDirectory = errors.New("path is not a directory")
)

// TransportError wraps network failures and unexpected HTTP statuses.
// Status is 0 when no response was received.
type TransportError struct {
	Op     string
	Path   string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	target := e.Op
	if e.Path != "" {
		target = e.Op + " " + e.Path
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", target, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", target, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// statusOf extracts the HTTP status from a go-github response or error.
func statusOf(resp *github.Response, err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}

// classify maps a go-github failure to the package error taxonomy.
// onUnprocessable is returned for HTTP 422, whose meaning depends on op.
func classify(op, path string, resp *github.Response, err error, onUnprocessable error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: op, Path: path, Err: err}
	}

	status := statusOf(resp, err)
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%s %s: %w", op, path, ErrConflict)
	case http.StatusUnprocessableEntity:
		if onUnprocessable != nil {
			return fmt.Errorf("%s %s: %w", op, path, onUnprocessable)
		}
	}
	return &TransportError{Op: op, Path: path, Status: status, Err: err}
}
