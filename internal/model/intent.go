// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "fmt"

// Intent distinguishes publishing a new post from editing an existing one.
// The zero value is a create intent.
type Intent struct {
	remotePostID int64
}

// CreateIntent returns the intent for publishing a new post.
func CreateIntent() Intent {
	return Intent{}
}

// EditIntent returns the intent for editing the remote post with the given ID.
func EditIntent(remotePostID int64) Intent {
	return Intent{remotePostID: remotePostID}
}

// IsEdit reports whether this intent targets an existing remote post.
func (i Intent) IsEdit() bool {
	return i.remotePostID > 0
}

// RemotePostID returns the targeted remote post ID for an edit intent.
// The boolean is false for a create intent.
func (i Intent) RemotePostID() (int64, bool) {
	if i.remotePostID > 0 {
		return i.remotePostID, true
	}
	return 0, false
}

// String implements fmt.Stringer for logging.
func (i Intent) String() string {
	if i.remotePostID > 0 {
		return fmt.Sprintf("edit(%d)", i.remotePostID)
	}
	return "create"
}
