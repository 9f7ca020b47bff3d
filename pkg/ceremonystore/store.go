// Package ceremonystore is the ceremony module's C1: a small set of
// typed, double-indexed maps keyed by (ceremony_index, …), with O(1)
// expected get/insert/exists and a bounded prefix purge. It replaces the
// macro-generated storage maps of the Rust original with an explicit API
// over a kv.KV, following the key-layout style of a CometBFT-backed ledger
// store (fixed-width big-endian integer components, account lists as
// concatenated 32-byte ids, one constant byte-slice prefix per registry).
//
// Every index used here is 1-based: 0 is reserved to mean "absent", so a
// read of a key that was never written returns the zero value and can
// never be confused with a key that was written with that value — callers
// distinguish "default" from "present and equal to default" by consulting
// the inverse Index map, exactly as the data model requires.
package ceremonystore

import (
	"encoding/binary"
	"fmt"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/kv"
)

// Store is the registry store for one ceremony module instance. It is not
// safe for concurrent use by multiple goroutines — like the teacher's
// LedgerStore, it assumes single-writer access from the host's transaction
// dispatch loop.
type Store struct {
	kv kv.KV
}

// New creates a Store backed by the given KV.
func New(kv kv.KV) *Store {
	return &Store{kv: kv}
}

// ====== KV key layout ======

var (
	prefixParticipant      = []byte("ceremony:participant:")       // + c(4BE) + p(4BE) -> AccountID (32 bytes)
	prefixParticipantIndex = []byte("ceremony:participant_idx:")    // + c(4BE) + account(32) -> p (4BE)
	prefixMeetup           = []byte("ceremony:meetup:")             // + c(4BE) + m(8BE) -> []AccountID (concat of 32-byte chunks)
	prefixMeetupIndex      = []byte("ceremony:meetup_idx:")         // + c(4BE) + account(32) -> m (8BE)
	prefixWitness          = []byte("ceremony:witness:")            // + c(4BE) + w(8BE) -> []AccountID (set, concat of 32-byte chunks)
	prefixWitnessIndex     = []byte("ceremony:witness_idx:")        // + c(4BE) + account(32) -> w (8BE)
	prefixVote             = []byte("ceremony:vote:")               // + c(4BE) + account(32) -> n (4BE)
	prefixCounter          = []byte("ceremony:counter:")            // + name(1 byte) + c(4BE) -> count (varies)
)

const (
	counterParticipant byte = 'P'
	counterMeetup      byte = 'M'
	counterWitness     byte = 'W'
)

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func ceremonyKey(prefix []byte, c types.CeremonyIndex, rest ...[]byte) []byte {
	out := make([]byte, 0, len(prefix)+4+32)
	out = append(out, prefix...)
	out = append(out, be32(uint32(c))...)
	for _, r := range rest {
		out = append(out, r...)
	}
	return out
}

func counterKey(which byte, c types.CeremonyIndex) []byte {
	out := make([]byte, 0, len(prefixCounter)+1+4)
	out = append(out, prefixCounter...)
	out = append(out, which)
	out = append(out, be32(uint32(c))...)
	return out
}

// ====== Scalar counters ======

func (s *Store) getCounter32(which byte, c types.CeremonyIndex) (uint32, error) {
	b, err := s.kv.Get(counterKey(which, c))
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(b), nil
}

func (s *Store) getCounter64(which byte, c types.CeremonyIndex) (uint64, error) {
	b, err := s.kv.Get(counterKey(which, c))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *Store) putCounter32(which byte, c types.CeremonyIndex, v uint32) error {
	return s.kv.Set(counterKey(which, c), be32(v))
}

func (s *Store) putCounter64(which byte, c types.CeremonyIndex, v uint64) error {
	return s.kv.Set(counterKey(which, c), be64(v))
}

// ParticipantCount returns the number of registered participants in
// ceremony c.
func (s *Store) ParticipantCount(c types.CeremonyIndex) (uint32, error) {
	return s.getCounter32(counterParticipant, c)
}

func (s *Store) setParticipantCount(c types.CeremonyIndex, n uint32) error {
	return s.putCounter32(counterParticipant, c, n)
}

// MeetupCount returns the number of meetups formed in ceremony c (0 or 1
// in this revision — see spec.md §3, exactly one meetup per ceremony).
func (s *Store) MeetupCount(c types.CeremonyIndex) (uint64, error) {
	return s.getCounter64(counterMeetup, c)
}

func (s *Store) setMeetupCount(c types.CeremonyIndex, n uint64) error {
	return s.putCounter64(counterMeetup, c, n)
}

// WitnessCount returns the number of distinct witness records accepted in
// ceremony c.
func (s *Store) WitnessCount(c types.CeremonyIndex) (uint64, error) {
	return s.getCounter64(counterWitness, c)
}

func (s *Store) setWitnessCount(c types.CeremonyIndex, n uint64) error {
	return s.putCounter64(counterWitness, c, n)
}

// ====== ParticipantRegistry / ParticipantIndex ======

// GetParticipant returns the account at position p in ceremony c, or the
// zero AccountID if absent.
func (s *Store) GetParticipant(c types.CeremonyIndex, p uint32) (types.AccountID, error) {
	b, err := s.kv.Get(ceremonyKey(prefixParticipant, c, be32(p)))
	if err != nil {
		return types.AccountID{}, err
	}
	if len(b) != 32 {
		return types.AccountID{}, nil
	}
	return types.AccountIDFromBytes(b), nil
}

// ParticipantIndex returns the 1-based position of account in ceremony c,
// and whether it is registered at all (index 0 means absent).
func (s *Store) ParticipantIndex(c types.CeremonyIndex, account types.AccountID) (uint32, bool, error) {
	b, err := s.kv.Get(ceremonyKey(prefixParticipantIndex, c, account[:]))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 4 {
		return 0, false, nil
	}
	p := binary.BigEndian.Uint32(b)
	return p, p != 0, nil
}

// InsertParticipant writes a new participant at the next available
// position, updating both the forward and inverse registries plus the
// counter. Returns the assigned position.
func (s *Store) InsertParticipant(c types.CeremonyIndex, account types.AccountID) (uint32, error) {
	count, err := s.ParticipantCount(c)
	if err != nil {
		return 0, err
	}
	if count == ^uint32(0) {
		return 0, fmt.Errorf("ceremonystore: participant counter overflow")
	}
	p := count + 1

	if err := s.kv.Set(ceremonyKey(prefixParticipant, c, be32(p)), account[:]); err != nil {
		return 0, err
	}
	if err := s.kv.Set(ceremonyKey(prefixParticipantIndex, c, account[:]), be32(p)); err != nil {
		return 0, err
	}
	if err := s.setParticipantCount(c, p); err != nil {
		return 0, err
	}
	return p, nil
}

// ====== MeetupRegistry / MeetupIndex ======

// GetMeetup returns the ordered member list of meetup m in ceremony c.
func (s *Store) GetMeetup(c types.CeremonyIndex, m uint64) ([]types.AccountID, error) {
	b, err := s.kv.Get(ceremonyKey(prefixMeetup, c, be64(m)))
	if err != nil {
		return nil, err
	}
	return decodeAccountList(b), nil
}

// SetMeetup overwrites the member list of meetup m in ceremony c and
// updates each member's MeetupIndex.
func (s *Store) SetMeetup(c types.CeremonyIndex, m uint64, members []types.AccountID) error {
	if err := s.kv.Set(ceremonyKey(prefixMeetup, c, be64(m)), encodeAccountList(members)); err != nil {
		return err
	}
	for _, acc := range members {
		if err := s.kv.Set(ceremonyKey(prefixMeetupIndex, c, acc[:]), be64(m)); err != nil {
			return err
		}
	}
	return nil
}

// MeetupIndex returns the meetup an account was assigned to in ceremony
// c, and whether it was assigned at all.
func (s *Store) MeetupIndex(c types.CeremonyIndex, account types.AccountID) (uint64, bool, error) {
	b, err := s.kv.Get(ceremonyKey(prefixMeetupIndex, c, account[:]))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, nil
	}
	m := binary.BigEndian.Uint64(b)
	return m, m != 0, nil
}

// SetMeetupCount sets the number of meetups formed in ceremony c.
func (s *Store) SetMeetupCount(c types.CeremonyIndex, n uint64) error {
	return s.setMeetupCount(c, n)
}

// ====== WitnessRegistry / WitnessIndex / vote ======

// GetWitnessSet returns the set of signer accounts accepted at witness
// slot w in ceremony c.
func (s *Store) GetWitnessSet(c types.CeremonyIndex, w uint64) ([]types.AccountID, error) {
	b, err := s.kv.Get(ceremonyKey(prefixWitness, c, be64(w)))
	if err != nil {
		return nil, err
	}
	return decodeAccountList(b), nil
}

func (s *Store) setWitnessSet(c types.CeremonyIndex, w uint64, signers []types.AccountID) error {
	return s.kv.Set(ceremonyKey(prefixWitness, c, be64(w)), encodeAccountList(signers))
}

// WitnessIndex returns the witness slot assigned to account's record in
// ceremony c, and whether one was ever assigned.
func (s *Store) WitnessIndex(c types.CeremonyIndex, account types.AccountID) (uint64, bool, error) {
	b, err := s.kv.Get(ceremonyKey(prefixWitnessIndex, c, account[:]))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, nil
	}
	w := binary.BigEndian.Uint64(b)
	return w, w != 0, nil
}

// UpsertWitnessRecord writes the witness record for claimant in ceremony
// c: if one already exists it is overwritten in place (witness count does
// not grow), otherwise a fresh slot is assigned and the counter bumped.
func (s *Store) UpsertWitnessRecord(c types.CeremonyIndex, claimant types.AccountID, signers []types.AccountID, nConfirmed uint32) error {
	w, exists, err := s.WitnessIndex(c, claimant)
	if err != nil {
		return err
	}
	if !exists {
		count, err := s.WitnessCount(c)
		if err != nil {
			return err
		}
		if count == ^uint64(0) {
			return fmt.Errorf("ceremonystore: witness counter overflow")
		}
		w = count + 1
		if err := s.kv.Set(ceremonyKey(prefixWitnessIndex, c, claimant[:]), be64(w)); err != nil {
			return err
		}
		if err := s.setWitnessCount(c, w); err != nil {
			return err
		}
	}
	if err := s.setWitnessSet(c, w, signers); err != nil {
		return err
	}
	return s.kv.Set(ceremonyKey(prefixVote, c, claimant[:]), be32(nConfirmed))
}

// GetVote returns the participant-count vote recorded for claimant in
// ceremony c, and whether a vote was ever recorded.
func (s *Store) GetVote(c types.CeremonyIndex, claimant types.AccountID) (uint32, bool, error) {
	b, err := s.kv.Get(ceremonyKey(prefixVote, c, claimant[:]))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(b), true, nil
}

// ====== Bulk purge ======

// Purge deletes every row keyed by ceremony c across all seven registries
// and resets the three counters to zero. Work is bounded by the
// ceremony's own counters — participant count, meetup count, witness
// count — rather than an unbounded scan of the KV store, mirroring the
// original pallet's index-range purge loop.
func (s *Store) Purge(c types.CeremonyIndex) error {
	participantCount, err := s.ParticipantCount(c)
	if err != nil {
		return err
	}
	for p := uint32(1); p <= participantCount; p++ {
		account, err := s.GetParticipant(c, p)
		if err != nil {
			return err
		}
		if err := s.kv.Delete(ceremonyKey(prefixParticipant, c, be32(p))); err != nil {
			return err
		}
		if !account.IsZero() {
			if err := s.kv.Delete(ceremonyKey(prefixParticipantIndex, c, account[:])); err != nil {
				return err
			}
			if err := s.kv.Delete(ceremonyKey(prefixMeetupIndex, c, account[:])); err != nil {
				return err
			}
			if err := s.kv.Delete(ceremonyKey(prefixWitnessIndex, c, account[:])); err != nil {
				return err
			}
			if err := s.kv.Delete(ceremonyKey(prefixVote, c, account[:])); err != nil {
				return err
			}
		}
	}

	meetupCount, err := s.MeetupCount(c)
	if err != nil {
		return err
	}
	for m := uint64(1); m <= meetupCount; m++ {
		if err := s.kv.Delete(ceremonyKey(prefixMeetup, c, be64(m))); err != nil {
			return err
		}
	}

	witnessCount, err := s.WitnessCount(c)
	if err != nil {
		return err
	}
	for w := uint64(1); w <= witnessCount; w++ {
		if err := s.kv.Delete(ceremonyKey(prefixWitness, c, be64(w))); err != nil {
			return err
		}
	}

	if err := s.setParticipantCount(c, 0); err != nil {
		return err
	}
	if err := s.setMeetupCount(c, 0); err != nil {
		return err
	}
	return s.setWitnessCount(c, 0)
}

// ====== Account list (en/de)coding ======
//
// Lists of AccountID are stored as a flat concatenation of 32-byte chunks
// rather than JSON, so that order is byte-exact and unambiguous — no
// encoder-dependent whitespace or field ordering can creep into a value
// that participates in consensus state.

func encodeAccountList(accounts []types.AccountID) []byte {
	out := make([]byte, 0, len(accounts)*32)
	for _, a := range accounts {
		out = append(out, a[:]...)
	}
	return out
}

func decodeAccountList(b []byte) []types.AccountID {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / 32
	out := make([]types.AccountID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.AccountIDFromBytes(b[i*32:(i+1)*32]))
	}
	return out
}
