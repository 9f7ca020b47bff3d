// Copyright 2025 Certen Protocol
//
// C3: Phase Controller — advance_phase and assign_meetups.

package ceremony

import (
	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// maxMeetupSize caps the single global meetup this revision supports
// (spec.md §4.3.1, §9 Open Questions: geographic partitioning is future
// work, not specified here).
const maxMeetupSize = 12

// AdvancePhase drives the three-phase scheduler. Only CeremonyMaster may
// call it. Every successful call emits exactly one PhaseChanged event. The
// caller check and the single-meetup check fail before any write; writes
// otherwise go straight to the KV with no rollback, so a storage error
// part-way through a transition leaves the earlier writes in place.
func (m *Module) AdvancePhase(caller types.AccountID) (types.Event, error) {
	if caller != m.master {
		return types.Event{}, ErrNotAuthorised
	}

	phase, err := m.CurrentPhase()
	if err != nil {
		return types.Event{}, err
	}
	c, err := m.CurrentCeremonyIndex()
	if err != nil {
		return types.Event{}, err
	}

	var next types.Phase
	var closed *types.CycleOutcome
	switch phase {
	case types.Registering:
		if err := m.assignMeetups(c); err != nil {
			return types.Event{}, err
		}
		next = types.Assigning

	case types.Assigning:
		next = types.Witnessing

	case types.Witnessing:
		outcome, err := m.evaluateRewards(c)
		if err != nil {
			return types.Event{}, err
		}
		closed = outcome
		if err := m.store.Purge(c); err != nil {
			return types.Event{}, err
		}
		nextIndex := c.Next()
		if err := m.setCurrentCeremonyIndex(nextIndex); err != nil {
			return types.Event{}, err
		}
		next = types.Registering

	default:
		next = types.Registering
	}

	if err := m.setCurrentPhase(next); err != nil {
		return types.Event{}, err
	}

	m.log.Printf("advanced ceremony %d phase %s -> %s", c, phase, next)
	return types.Event{Kind: types.EventPhaseChanged, Phase: next, Closed: closed}, nil
}

// assignMeetups forms the single global meetup (spec.md §4.3.1): the first
// min(ParticipantCount, 12) participants, in 1-based registry order.
// Participants beyond the cap are left unassigned — still purged at cycle
// end, but never witnessed or rewarded.
func (m *Module) assignMeetups(c types.CeremonyIndex) error {
	count, err := m.store.ParticipantCount(c)
	if err != nil {
		return err
	}

	size := count
	if size > maxMeetupSize {
		size = maxMeetupSize
	}

	members := make([]types.AccountID, 0, size)
	for p := uint32(1); p <= size; p++ {
		account, err := m.store.GetParticipant(c, p)
		if err != nil {
			return err
		}
		members = append(members, account)
	}

	if err := m.store.SetMeetup(c, 1, members); err != nil {
		return err
	}
	return m.store.SetMeetupCount(c, 1)
}
