// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff computes line-level changes between two revisions of a file.
//
// The orchestrator uses it to report how much a committed update changed:
//
//	r := diff.Compute(prior, next)
//	fmt.Println(r.Stats) // "+3 -1"
//
// Unified renders the same result as a unified diff with context lines.
package diff
