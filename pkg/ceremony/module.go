// Copyright 2025 Certen Protocol
//
// Package ceremony is the proof-of-personhood ceremony module: the
// three-phase scheduler (C3), claim ingestion (C4), and reward evaluator
// (C5) that together drive a cycle of register → meet → witness → reward.
// It is the transition function an ABCI application (pkg/consensus)
// dispatches transactions into; by itself it has no notion of blocks,
// transactions, or networking — it is invoked one call at a time, exactly
// as a CometBFT FinalizeBlock handler invokes a state machine.
package ceremony

import (
	"encoding/binary"
	"log"
	"os"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/ceremony/verify"
	"github.com/humanproof-network/ceremonies/pkg/ceremonystore"
	"github.com/humanproof-network/ceremonies/pkg/kv"
	"github.com/humanproof-network/ceremonies/pkg/ledger"
)

// Module is the ceremony state machine. It is not safe for concurrent use
// by multiple goroutines — like pkg/ceremonystore.Store, it assumes
// single-writer access from the host's transaction-dispatch loop.
type Module struct {
	store    *ceremonystore.Store
	balances *ledger.BalanceLedger
	verifier verify.Verifier
	kv       kv.KV
	log      *log.Logger

	master types.AccountID
	reward ledger.Amount
}

var (
	keyCurrentCeremonyIndex = []byte("ceremony:global:current_index")
	keyCurrentPhase         = []byte("ceremony:global:current_phase")
)

// GenesisConfig supplies the values the host's genesis loader must provide
// per spec.md §6: the initial ceremony index, the reward amount, and the
// account authorised to advance phases.
type GenesisConfig struct {
	CurrentCeremonyIndex types.CeremonyIndex
	CeremonyReward       ledger.Amount
	CeremonyMaster       types.AccountID
}

// New constructs a Module over store/balances/verifier, seeding globals
// from genesis on first use. If the KV already holds a CurrentCeremonyIndex
// (a restart, not a fresh chain), the genesis ceremony index and phase are
// not reapplied — the persisted ones win. CeremonyMaster and CeremonyReward
// are not persisted and are always taken from genesis.
func New(store *ceremonystore.Store, balances *ledger.BalanceLedger, verifier verify.Verifier, backing kv.KV, genesis GenesisConfig) (*Module, error) {
	m := &Module{
		store:    store,
		balances: balances,
		verifier: verifier,
		kv:       backing,
		log:      log.New(os.Stderr, "[Ceremony] ", log.LstdFlags),
		master:   genesis.CeremonyMaster,
		reward:   genesis.CeremonyReward,
	}

	existing, err := m.kv.Get(keyCurrentCeremonyIndex)
	if err != nil {
		return nil, err
	}
	if len(existing) != 4 {
		if err := m.setCurrentCeremonyIndex(genesis.CurrentCeremonyIndex); err != nil {
			return nil, err
		}
		if err := m.setCurrentPhase(types.Registering); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CurrentCeremonyIndex returns the active ceremony cycle number.
func (m *Module) CurrentCeremonyIndex() (types.CeremonyIndex, error) {
	b, err := m.kv.Get(keyCurrentCeremonyIndex)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return types.CeremonyIndex(binary.BigEndian.Uint32(b)), nil
}

func (m *Module) setCurrentCeremonyIndex(c types.CeremonyIndex) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(c))
	return m.kv.Set(keyCurrentCeremonyIndex, b)
}

// CurrentPhase returns the active ceremony phase.
func (m *Module) CurrentPhase() (types.Phase, error) {
	b, err := m.kv.Get(keyCurrentPhase)
	if err != nil {
		return types.Registering, err
	}
	if len(b) != 1 {
		return types.Registering, nil
	}
	return types.Phase(b[0]), nil
}

func (m *Module) setCurrentPhase(p types.Phase) error {
	return m.kv.Set(keyCurrentPhase, []byte{byte(p)})
}

// Reward returns the configured per-participant ceremony reward.
func (m *Module) Reward() ledger.Amount {
	return m.reward
}

// Stats reports the current cycle's participant and meetup counts, for
// callers (metrics, dashboards) that only need to observe progress rather
// than mutate state.
func (m *Module) Stats() (participantCount uint32, meetupCount uint64, err error) {
	c, err := m.CurrentCeremonyIndex()
	if err != nil {
		return 0, 0, err
	}
	participantCount, err = m.store.ParticipantCount(c)
	if err != nil {
		return 0, 0, err
	}
	meetupCount, err = m.store.MeetupCount(c)
	if err != nil {
		return 0, 0, err
	}
	return participantCount, meetupCount, nil
}
