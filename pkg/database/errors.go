// Copyright 2025 Certen Protocol
//
// Package database provides sentinel errors for repository operations.

package database

import "errors"

// ErrNotFound is returned when a requested entity is not found in the database.
var ErrNotFound = errors.New("entity not found")
