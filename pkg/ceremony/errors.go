// Copyright 2025 Certen Protocol
//
// Sentinel errors for the ceremony module, grouped the way the teacher's
// pkg/ledger/errors.go and pkg/database/errors.go group theirs: one var
// block, one short doc comment per error.

package ceremony

import "errors"

var (
	// ErrNotAuthorised is returned when a caller other than CeremonyMaster
	// invokes AdvancePhase.
	ErrNotAuthorised = errors.New("ceremony: caller is not authorised")

	// ErrWrongPhase is returned when an operation is invoked outside its
	// admission phase (RegisterParticipant outside Registering,
	// RegisterWitnesses outside Witnessing).
	ErrWrongPhase = errors.New("ceremony: operation not admitted in current phase")

	// ErrAlreadyRegistered is returned by RegisterParticipant when caller
	// already holds a ParticipantIndex in the current ceremony.
	ErrAlreadyRegistered = errors.New("ceremony: account already registered this ceremony")

	// ErrOverflow is returned when a registry counter increment would
	// overflow its width.
	ErrOverflow = errors.New("ceremony: counter overflow")

	// ErrTooManyWitnesses is returned when a register_witnesses batch is
	// larger than the caller's peer group.
	ErrTooManyWitnesses = errors.New("ceremony: witness batch exceeds peer group size")

	// ErrNoValidWitnesses is returned when every witness in a batch was
	// filtered out.
	ErrNoValidWitnesses = errors.New("ceremony: no valid witnesses in batch")

	// ErrMultipleMeetupsUnsupported is returned by the reward evaluator
	// when MeetupCount != 1, a scaffolding limitation of this revision
	// (spec.md §4.5, §9).
	ErrMultipleMeetupsUnsupported = errors.New("ceremony: multiple meetups per cycle are not supported")
)
