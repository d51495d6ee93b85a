// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation messages.
//
// # Key Types
//
//   - Message: Single immutable entry in the conversation log
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
//	msg := model.NewMessage(model.RoleUser, "/read README.md", time.Now())
//	if msg.Role.Valid() {
//	    log = append(log, msg)
//	}
package model
