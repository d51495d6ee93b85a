// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repo

import "time"

// File is a snapshot of one entry in the repository.
type File struct {
	Path     string
	Name     string
	IsDir    bool
	Size     int
	Revision string
}

// FileContent is a decoded file with the revision it was read at.
type FileContent struct {
	Path     string
	Content  string
	Revision string
}

// CommitResult describes a successful write.
type CommitResult struct {
	// Revision is the new blob revision of the path, empty after a delete.
	Revision string
	Message  string
	CommitID string
	ViewURL  string
}

// Change is one entry of the branch history.
type Change struct {
	ID      string
	Summary string
	Author  string
	When    time.Time
}
