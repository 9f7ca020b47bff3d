// Copyright 2025 Certen Protocol
//
// C5: Reward Evaluator — ballot, eligibility predicate, reward issuance.

package ceremony

import (
	"sort"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// minBallotConfidence is the minimum vote count the plurality tally must
// reach for a ballot to produce a decision (spec.md §4.5 Step 1).
const minBallotConfidence = 3

// tally is one candidate n_confirmed value and how many meetup members
// voted for it. ballot inserts each newly seen value at the head of its
// list, so the list starts in most-recently-observed-first order.
type tally struct {
	n     uint32
	count int
}

// evaluateRewards runs once per cycle, on the Witnessing→Registering
// transition. It requires exactly one meetup (spec.md §4.5, §9: a
// scaffolding limitation of this revision), credits CeremonyReward to every
// eligible participant of that meetup, and returns a summary for the
// caller to archive off the consensus-critical path.
func (m *Module) evaluateRewards(c types.CeremonyIndex) (*types.CycleOutcome, error) {
	participantCount, err := m.store.ParticipantCount(c)
	if err != nil {
		return nil, err
	}
	meetupCount, err := m.store.MeetupCount(c)
	if err != nil {
		return nil, err
	}
	if meetupCount != 1 {
		return nil, ErrMultipleMeetupsUnsupported
	}

	members, err := m.store.GetMeetup(c, 1)
	if err != nil {
		return nil, err
	}

	outcome := &types.CycleOutcome{
		CeremonyIndex:    c,
		ParticipantCount: participantCount,
		MeetupCount:      meetupCount,
	}

	nConfirmed, nHonest, decided, err := m.ballot(c, members)
	if err != nil {
		return nil, err
	}
	if !decided {
		m.log.Printf("ceremony %d: ballot reached no decision, no rewards issued", c)
		return outcome, nil
	}
	outcome.WinningNConfirmed = nConfirmed

	for _, p := range members {
		vote, _, err := m.store.GetVote(c, p)
		if err != nil {
			return nil, err
		}
		witnessesOfP, err := m.witnessSetFor(c, p)
		if err != nil {
			return nil, err
		}
		eligible, reciprocated, err := m.isEligible(c, p, nConfirmed, nHonest)
		if err != nil {
			return nil, err
		}
		if eligible {
			if err := m.creditReward(p); err != nil {
				return nil, err
			}
			outcome.RewardedCount++
		}
		outcome.Outcomes = append(outcome.Outcomes, types.ParticipantOutcome{
			Account:      p,
			Vote:         vote,
			WitnessCount: len(witnessesOfP),
			Reciprocated: reciprocated,
			Rewarded:     eligible,
		})
	}

	return outcome, nil
}

// ballot tallies each member's non-zero MeetupParticipantCountVote,
// inserting each newly observed value at the head of tallies (mirroring
// the Rust original's n_vote_candidates.insert(0, (this_vote, 1))), then
// stably sorts by descending count so a tie is broken in favour of the
// most recently introduced value — the ordering spec.md §9 requires be
// preserved exactly, since a different tie-break produces a state-root
// divergence across nodes.
func (m *Module) ballot(c types.CeremonyIndex, members []types.AccountID) (nConfirmed uint32, nHonest int, decided bool, err error) {
	var tallies []tally
	index := make(map[uint32]int)

	for _, p := range members {
		vote, voted, err := m.store.GetVote(c, p)
		if err != nil {
			return 0, 0, false, err
		}
		if !voted || vote == 0 {
			continue
		}
		if i, ok := index[vote]; ok {
			tallies[i].count++
			continue
		}
		tallies = append([]tally{{n: vote, count: 1}}, tallies...)
		for v, i := range index {
			index[v] = i + 1
		}
		index[vote] = 0
	}

	if len(tallies) == 0 {
		return 0, 0, false, nil
	}

	sort.SliceStable(tallies, func(i, j int) bool {
		return tallies[i].count > tallies[j].count
	})

	winner := tallies[0]
	if winner.count < minBallotConfidence {
		return 0, 0, false, nil
	}
	return winner.n, winner.count, true, nil
}

// isEligible implements C5 Step 2's three-part predicate for participant p,
// returning the reciprocation count alongside the verdict for archiving.
func (m *Module) isEligible(c types.CeremonyIndex, p types.AccountID, nConfirmed uint32, nHonest int) (bool, int, error) {
	vote, voted, err := m.store.GetVote(c, p)
	if err != nil {
		return false, 0, err
	}
	if !voted || vote != nConfirmed {
		return false, 0, nil
	}

	witnessesOfP, err := m.witnessSetFor(c, p)
	if err != nil {
		return false, 0, err
	}
	if len(witnessesOfP) == 0 || len(witnessesOfP) < nHonest-1 {
		return false, 0, nil
	}

	reciprocated := 0
	for _, w := range witnessesOfP {
		witnessesOfW, err := m.witnessSetFor(c, w)
		if err != nil {
			return false, reciprocated, err
		}
		for _, acc := range witnessesOfW {
			if acc == p {
				reciprocated++
				break
			}
		}
	}
	if reciprocated < nHonest-1 {
		return false, reciprocated, nil
	}

	return true, reciprocated, nil
}

// witnessSetFor returns the set of accounts that witnessed account in
// ceremony c, or nil if account never received a witness record.
func (m *Module) witnessSetFor(c types.CeremonyIndex, account types.AccountID) ([]types.AccountID, error) {
	w, exists, err := m.store.WitnessIndex(c, account)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return m.store.GetWitnessSet(c, w)
}

// creditReward adds CeremonyReward to p's free balance. Overflow here is
// treated as fatal per spec.md §7: the reward amount was misconfigured,
// not an expected runtime condition, so the transition panics rather than
// silently truncating.
func (m *Module) creditReward(p types.AccountID) error {
	if err := m.balances.CreditReward(p, m.reward); err != nil {
		panic(err)
	}
	m.log.Printf("credited reward to %s", p)
	return nil
}
