// Copyright 2025 Certen Protocol
//
// C4: Claim Ingestion — register_participant and register_witnesses.

package ceremony

import (
	"fmt"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// RegisterParticipant admits caller into the current ceremony. Admitted
// only during Registering; a caller already holding a ParticipantIndex in
// this ceremony is rejected rather than re-registered.
func (m *Module) RegisterParticipant(caller types.AccountID) (types.Event, error) {
	phase, err := m.CurrentPhase()
	if err != nil {
		return types.Event{}, err
	}
	if phase != types.Registering {
		return types.Event{}, ErrWrongPhase
	}

	c, err := m.CurrentCeremonyIndex()
	if err != nil {
		return types.Event{}, err
	}

	_, exists, err := m.store.ParticipantIndex(c, caller)
	if err != nil {
		return types.Event{}, err
	}
	if exists {
		return types.Event{}, ErrAlreadyRegistered
	}

	count, err := m.store.ParticipantCount(c)
	if err != nil {
		return types.Event{}, err
	}
	if count == ^uint32(0) {
		return types.Event{}, ErrOverflow
	}

	if _, err := m.store.InsertParticipant(c, caller); err != nil {
		return types.Event{}, err
	}

	m.log.Printf("registered participant %s in ceremony %d", caller, c)
	return types.Event{Kind: types.EventParticipantRegistered, Account: caller}, nil
}

// RegisterWitnesses admits a batch of peer co-signatures on caller's
// meetup, filtering invalid ones silently (spec.md §4.4, §7: a malformed
// single witness must not poison the whole batch) and upserting caller's
// witness record. Admitted only during Witnessing.
func (m *Module) RegisterWitnesses(caller types.AccountID, witnesses []types.Witness) error {
	phase, err := m.CurrentPhase()
	if err != nil {
		return err
	}
	if phase != types.Witnessing {
		return ErrWrongPhase
	}

	c, err := m.CurrentCeremonyIndex()
	if err != nil {
		return err
	}

	meetupIdx, assigned, err := m.store.MeetupIndex(c, caller)
	if err != nil {
		return err
	}
	if !assigned {
		// Caller was never assigned a meetup (e.g. registered too late,
		// beyond the 12-participant cap) — nothing to witness against.
		return ErrNoValidWitnesses
	}

	members, err := m.store.GetMeetup(c, meetupIdx)
	if err != nil {
		return err
	}
	peers := make(map[types.AccountID]bool, len(members))
	for _, acc := range members {
		if acc != caller {
			peers[acc] = true
		}
	}

	if len(witnesses) > len(peers) {
		return ErrTooManyWitnesses
	}

	var verified []types.AccountID
	var nConfirmed uint32
	for _, w := range witnesses {
		if !peers[w.Signer] {
			continue
		}
		if w.Claim.CeremonyIndex != c {
			continue
		}
		if w.Claim.MeetupIndex != meetupIdx {
			continue
		}
		if err := m.verifyWitness(w); err != nil {
			continue
		}
		verified = append(verified, w.Signer)
		nConfirmed = w.Claim.NumberOfParticipantsConfirmed
	}

	if len(verified) == 0 {
		return ErrNoValidWitnesses
	}

	if err := m.store.UpsertWitnessRecord(c, caller, verified, nConfirmed); err != nil {
		return err
	}

	m.log.Printf("recorded %d witnesses for %s in ceremony %d (n_confirmed=%d)", len(verified), caller, c, nConfirmed)
	return nil
}

// verifyWitness implements C2's contract for a single witness: reject
// self-signature, then defer to the injected Verifier over the claim's
// canonical encoding. Both failures are reported as a wrapped
// ErrNoValidWitnesses.
func (m *Module) verifyWitness(w types.Witness) error {
	if w.Signer == w.Claim.Claimant {
		return fmt.Errorf("%w: signer equals claimant", ErrNoValidWitnesses)
	}
	if !m.verifier.Verify(types.EncodeClaim(w.Claim), w.Signer, w.Signature) {
		return fmt.Errorf("%w: signature check failed", ErrNoValidWitnesses)
	}
	return nil
}
