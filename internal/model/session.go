// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// Session group labels used when listing sessions.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupEarlier   = "Earlier"
)

// SessionInfo is one row of the backend's session list.
type SessionInfo struct {
	ID         int64     `json:"id"`
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Group      string    `json:"group"`
	CreateTime time.Time `json:"create_time"`
}

// GroupFor buckets a creation time relative to now by whole elapsed days.
// Zero times are treated as created now.
func GroupFor(created, now time.Time) string {
	if created.IsZero() {
		return GroupToday
	}
	days := int(now.Sub(created).Hours() / 24)
	switch {
	case days <= 0:
		return GroupToday
	case days == 1:
		return GroupYesterday
	default:
		return GroupEarlier
	}
}
