// Copyright 2025 Certen Protocol
//
// Package ledger provides sentinel errors for balance ledger operations.

package ledger

import "errors"

// Sentinel errors for balance ledger operations
var (
	// ErrBalanceOverflow is returned when crediting an account would
	// overflow its balance. The reward evaluator treats this as fatal
	// (see pkg/ceremony/rewards.go) — overflow here means the reward
	// amount was misconfigured, not an expected runtime condition.
	ErrBalanceOverflow = errors.New("ledger: balance overflow")
)
