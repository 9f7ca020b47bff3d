package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/kv"
)

// BalanceLedger provides the free_balance / set_free_balance capability the
// ceremony module's reward evaluator (C5) consumes. It is the one piece of
// state C5 is allowed to mutate directly — every other registry belongs to
// pkg/ceremonystore and is only ever purged, never credited.
//
// CONCURRENCY: BalanceLedger assumes single-writer access and is designed
// to be called from the host's transaction-dispatch thread only. If you
// need to use it from multiple goroutines, wrap it with your own
// synchronization (e.g. mutex or channel) — the same constraint the
// teacher's LedgerStore documents for its own KV-backed state.
type BalanceLedger struct {
	kv kv.KV
}

// NewBalanceLedger creates a new BalanceLedger instance.
func NewBalanceLedger(kv kv.KV) *BalanceLedger {
	return &BalanceLedger{kv: kv}
}

var keyBalancePrefix = []byte("ledger:balance:") // + account(32) -> amount (8BE)
var keyABCIState = []byte("ledger:abci:state")   // -> ABCIState, for CometBFT recovery

func balanceKey(account types.AccountID) []byte {
	return append(append([]byte{}, keyBalancePrefix...), account[:]...)
}

// FreeBalance returns the current free balance of account. An account
// that has never been credited has a free balance of zero.
func (l *BalanceLedger) FreeBalance(account types.AccountID) (Amount, error) {
	b, err := l.kv.Get(balanceKey(account))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}

// SetFreeBalance overwrites account's free balance.
func (l *BalanceLedger) SetFreeBalance(account types.AccountID, amount Amount) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, amount)
	return l.kv.Set(balanceKey(account), b)
}

// CreditReward adds amount to account's free balance, checked for
// overflow. Per spec.md §4.5/§7, overflow here is treated as fatal by the
// caller (the reward evaluator panics rather than silently truncating) —
// CreditReward itself just reports ErrBalanceOverflow so the caller can
// decide.
func (l *BalanceLedger) CreditReward(account types.AccountID, amount Amount) error {
	current, err := l.FreeBalance(account)
	if err != nil {
		return err
	}
	next := current + amount
	if next < current {
		return ErrBalanceOverflow
	}
	return l.SetFreeBalance(account, next)
}

// SaveABCIState persists the ABCI application state for CometBFT recovery.
// This must be called during Commit() to ensure the state is durable.
func (l *BalanceLedger) SaveABCIState(state *ABCIState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal ABCIState: %w", err)
	}
	return l.kv.Set(keyABCIState, b)
}

// LoadABCIState loads the persisted ABCI state for recovery after restart.
// Returns nil, nil if no state has been persisted yet (fresh start).
func (l *BalanceLedger) LoadABCIState() (*ABCIState, error) {
	b, err := l.kv.Get(keyABCIState)
	if err != nil || len(b) == 0 {
		return nil, nil
	}
	var state ABCIState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ABCIState: %w", err)
	}
	return &state, nil
}
