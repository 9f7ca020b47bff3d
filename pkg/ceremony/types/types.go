// Package types holds the ceremony module's value types: account
// identities, the ceremony phase enum, and the claim/witness shapes that
// travel on the wire. It has no dependencies on storage, consensus, or
// cryptography so that pkg/ceremonystore, pkg/ledger, and pkg/ceremony/verify
// can all depend on it without creating import cycles.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AccountID is an opaque, ordered, hashable account identity. It is sized
// to hold either a 32-byte Ed25519 public key or a 20-byte address
// (zero-padded in the high bytes), matching whichever verification scheme
// produced it — see pkg/ceremony/verify.
type AccountID [32]byte

// String renders an AccountID as a 0x-prefixed hex string.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the default AccountID.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// MarshalJSON renders an AccountID as a 0x-prefixed hex string, so
// transactions built from this package read like the rest of the
// ecosystem's account identifiers rather than a raw byte array.
func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses a 0x-prefixed (or bare) hex string into an AccountID.
func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("types: invalid account id hex: %w", err)
	}
	if len(b) > 32 {
		return fmt.Errorf("types: account id too long: %d bytes", len(b))
	}
	var out AccountID
	copy(out[32-len(b):], b)
	*a = out
	return nil
}

// AccountIDFromBytes left-pads b with zeros into an AccountID. It panics
// if b is longer than 32 bytes, since that would silently drop identity
// bits.
func AccountIDFromBytes(b []byte) AccountID {
	if len(b) > 32 {
		panic(fmt.Sprintf("types: account id source too long: %d bytes", len(b)))
	}
	var a AccountID
	copy(a[32-len(b):], b)
	return a
}

// Phase is the ceremony's tagged state.
type Phase uint8

const (
	// Registering admits register_participant calls.
	Registering Phase = iota
	// Assigning is the inter-phase during which meetups have been
	// computed but witnessing has not yet opened.
	Assigning
	// Witnessing admits register_witnesses calls.
	Witnessing
)

// String renders the phase the way the original Rust enum's Debug impl
// would: the bare variant name.
func (p Phase) String() string {
	switch p {
	case Registering:
		return "Registering"
	case Assigning:
		return "Assigning"
	case Witnessing:
		return "Witnessing"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Next returns the phase that follows p in the three-phase cycle.
func (p Phase) Next() Phase {
	switch p {
	case Registering:
		return Assigning
	case Assigning:
		return Witnessing
	default:
		return Registering
	}
}

// CeremonyIndex is a 32-bit monotonically-advancing cycle counter. It
// starts at 1 and wraps to 0 on overflow — deliberately, per the data
// model: 0 is reserved to mean "absent" everywhere else in the store, but
// the ceremony index itself is not used as a lookup key component that
// needs to distinguish absence, so the wrap is harmless to the indexing
// invariant while still being a documented, deliberate choice upstream.
type CeremonyIndex uint32

// Next returns c+1, wrapping to 0 on overflow.
func (c CeremonyIndex) Next() CeremonyIndex {
	return c + 1
}

// ClaimOfAttendance is a claimant's signed assertion of how many people
// attended their meetup.
type ClaimOfAttendance struct {
	Claimant                      AccountID     `json:"claimant"`
	CeremonyIndex                 CeremonyIndex `json:"ceremonyIndex"`
	MeetupIndex                   uint64        `json:"meetupIndex"`
	NumberOfParticipantsConfirmed uint32        `json:"numberOfParticipantsConfirmed"`
}

// Witness is a peer's signed co-attestation of a claimant's claim.
type Witness struct {
	Claim     ClaimOfAttendance `json:"claim"`
	Signature []byte            `json:"signature"`
	Signer    AccountID         `json:"signer"`
}

// EventKind identifies which ceremony event fired.
type EventKind uint8

const (
	// EventPhaseChanged fires on every successful AdvancePhase call.
	EventPhaseChanged EventKind = iota
	// EventParticipantRegistered fires on successful RegisterParticipant.
	EventParticipantRegistered
)

// Event is emitted by the ceremony module on successful state
// transitions. The host runtime is responsible for indexing/broadcasting
// these; the module only produces them.
type Event struct {
	Kind    EventKind
	Phase   Phase         // set for EventPhaseChanged
	Account AccountID     // set for EventParticipantRegistered
	Closed  *CycleOutcome // set for EventPhaseChanged when the transition also closed a cycle
}

// ParticipantOutcome is one meetup member's ballot vote and reward
// eligibility, as recorded when a cycle closes.
type ParticipantOutcome struct {
	Account      AccountID
	Vote         uint32
	WitnessCount int
	Reciprocated int
	Rewarded     bool
}

// CycleOutcome summarizes the ballot and reward issuance of one closed
// ceremony cycle, for archiving off the consensus-critical KV path.
type CycleOutcome struct {
	CeremonyIndex     CeremonyIndex
	ParticipantCount  uint32
	MeetupCount       uint64
	WinningNConfirmed uint32
	RewardedCount     int
	Outcomes          []ParticipantOutcome
}
