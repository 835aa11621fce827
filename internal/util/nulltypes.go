// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"database/sql"
	"time"
)

// NullInt64FromPtr converts a pointer to int64 into sql.NullInt64.
// Returns a valid NullInt64 if the pointer is non-nil, otherwise returns an invalid one.
func NullInt64FromPtr(ptr *int64) sql.NullInt64 {
	if ptr != nil {
		return sql.NullInt64{Int64: *ptr, Valid: true}
	}
	return sql.NullInt64{}
}

// NullStringFromValue creates a sql.NullString from a string value.
// Returns a valid NullString if the string is non-empty, otherwise returns an invalid one.
func NullStringFromValue(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullStringFromPtr converts a pointer to string into sql.NullString.
// Returns a valid NullString if the pointer is non-nil, otherwise returns an invalid one.
func NullStringFromPtr(ptr *string) sql.NullString {
	if ptr != nil {
		return sql.NullString{String: *ptr, Valid: true}
	}
	return sql.NullString{}
}

// NullTimeFromPtr converts a pointer to time.Time into sql.NullTime.
// Timestamps are stored normalized to UTC.
func NullTimeFromPtr(ptr *time.Time) sql.NullTime {
	if ptr != nil {
		return sql.NullTime{Time: ptr.UTC(), Valid: true}
	}
	return sql.NullTime{}
}

// PtrFromNullTime converts a sql.NullTime into a *time.Time.
func PtrFromNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// PtrFromNullString converts a sql.NullString into a *string.
func PtrFromNullString(ns sql.NullString) *string {
	if ns.Valid {
		s := ns.String
		return &s
	}
	return nil
}

// PtrFromNullInt64 converts a sql.NullInt64 into a *int64.
func PtrFromNullInt64(ni sql.NullInt64) *int64 {
	if ni.Valid {
		v := ni.Int64
		return &v
	}
	return nil
}
