// Copyright 2025 Certen Protocol
//
// Database Types for the ceremony archive
// These types map to the closed_ceremonies table defined in
// migrations/001_closed_ceremonies.sql

package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClosedCeremony is the off-consensus archive record for one completed
// ceremony cycle: the ballot's winning headcount, how many participants
// cleared the reward bar, and a per-participant breakdown for dashboards.
// Maps to: closed_ceremonies table.
type ClosedCeremony struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	CeremonyIndex        uint32          `db:"ceremony_index" json:"ceremony_index"`
	ParticipantCount     int             `db:"participant_count" json:"participant_count"`
	MeetupCount          int             `db:"meetup_count" json:"meetup_count"`
	WinningNConfirmed    uint32          `db:"winning_n_confirmed" json:"winning_n_confirmed"`
	RewardedCount        int             `db:"rewarded_count" json:"rewarded_count"`
	RewardPerParticipant uint64          `db:"reward_per_participant" json:"reward_per_participant"`
	Details              json.RawMessage `db:"details" json:"details,omitempty"`
	ClosedAt             time.Time       `db:"closed_at" json:"closed_at"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
}

// ParticipantOutcome is one entry of a ClosedCeremony's Details blob: one
// participant's vote, witness counts, and whether they were rewarded.
type ParticipantOutcome struct {
	Account      string `json:"account"`
	Vote         uint32 `json:"vote"`
	WitnessCount int    `json:"witness_count"`
	Reciprocated int    `json:"reciprocated_count"`
	Rewarded     bool   `json:"rewarded"`
}
