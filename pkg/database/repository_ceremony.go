// Copyright 2025 Certen Protocol
//
// ClosedCeremonyRepository - archive of completed ceremony cycles
// Persists ballot outcomes for dashboards and audits, off the
// consensus-critical KV path.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClosedCeremonyRepository handles closed-ceremony archive operations.
type ClosedCeremonyRepository struct {
	client *Client
}

// NewClosedCeremonyRepository creates a new closed-ceremony repository.
func NewClosedCeremonyRepository(client *Client) *ClosedCeremonyRepository {
	return &ClosedCeremonyRepository{client: client}
}

// NewClosedCeremony is used to archive a just-closed ceremony cycle.
type NewClosedCeremony struct {
	CeremonyIndex        uint32
	ParticipantCount     int
	MeetupCount          int
	WinningNConfirmed    uint32
	RewardedCount        int
	RewardPerParticipant uint64
	Outcomes             []ParticipantOutcome
	ClosedAt             time.Time
}

// Archive records the outcome of one ceremony cycle. Archiving the same
// ceremony index twice overwrites the previous record, so a restarted node
// replaying the same cycle boundary doesn't create a duplicate row.
func (r *ClosedCeremonyRepository) Archive(ctx context.Context, input *NewClosedCeremony) (*ClosedCeremony, error) {
	details, err := json.Marshal(input.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ceremony outcomes: %w", err)
	}

	record := &ClosedCeremony{
		ID:                   uuid.New(),
		CeremonyIndex:        input.CeremonyIndex,
		ParticipantCount:     input.ParticipantCount,
		MeetupCount:          input.MeetupCount,
		WinningNConfirmed:    input.WinningNConfirmed,
		RewardedCount:        input.RewardedCount,
		RewardPerParticipant: input.RewardPerParticipant,
		Details:              details,
		ClosedAt:             input.ClosedAt,
	}

	query := `
		INSERT INTO closed_ceremonies (
			id, ceremony_index, participant_count, meetup_count,
			winning_n_confirmed, rewarded_count, reward_per_participant,
			details, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ceremony_index) DO UPDATE SET
			participant_count      = EXCLUDED.participant_count,
			meetup_count            = EXCLUDED.meetup_count,
			winning_n_confirmed     = EXCLUDED.winning_n_confirmed,
			rewarded_count          = EXCLUDED.rewarded_count,
			reward_per_participant  = EXCLUDED.reward_per_participant,
			details                 = EXCLUDED.details,
			closed_at               = EXCLUDED.closed_at
		RETURNING id, created_at`

	err = r.client.QueryRowContext(ctx, query,
		record.ID, record.CeremonyIndex, record.ParticipantCount, record.MeetupCount,
		record.WinningNConfirmed, record.RewardedCount, record.RewardPerParticipant,
		record.Details, record.ClosedAt,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to archive closed ceremony: %w", err)
	}

	return record, nil
}

// Get retrieves the archived outcome of one ceremony cycle.
func (r *ClosedCeremonyRepository) Get(ctx context.Context, ceremonyIndex uint32) (*ClosedCeremony, error) {
	query := `
		SELECT id, ceremony_index, participant_count, meetup_count,
			winning_n_confirmed, rewarded_count, reward_per_participant,
			details, closed_at, created_at
		FROM closed_ceremonies
		WHERE ceremony_index = $1`

	record := &ClosedCeremony{}
	err := r.client.QueryRowContext(ctx, query, ceremonyIndex).Scan(
		&record.ID, &record.CeremonyIndex, &record.ParticipantCount, &record.MeetupCount,
		&record.WinningNConfirmed, &record.RewardedCount, &record.RewardPerParticipant,
		&record.Details, &record.ClosedAt, &record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get closed ceremony: %w", err)
	}

	return record, nil
}

// ListRecent returns the most recently closed ceremonies, newest first.
func (r *ClosedCeremonyRepository) ListRecent(ctx context.Context, limit int) ([]*ClosedCeremony, error) {
	query := `
		SELECT id, ceremony_index, participant_count, meetup_count,
			winning_n_confirmed, rewarded_count, reward_per_participant,
			details, closed_at, created_at
		FROM closed_ceremonies
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := r.client.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent closed ceremonies: %w", err)
	}
	defer rows.Close()

	var records []*ClosedCeremony
	for rows.Next() {
		record := &ClosedCeremony{}
		if err := rows.Scan(
			&record.ID, &record.CeremonyIndex, &record.ParticipantCount, &record.MeetupCount,
			&record.WinningNConfirmed, &record.RewardedCount, &record.RewardPerParticipant,
			&record.Details, &record.ClosedAt, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan closed ceremony: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
