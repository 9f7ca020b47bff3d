// Copyright 2025 Certen Protocol
//
// Ceremony transaction envelope: the wire format CheckTx/FinalizeBlock
// decode into a pkg/ceremony.Module call.

package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// TxKind identifies which Module operation a Transaction dispatches to.
type TxKind string

const (
	TxRegisterParticipant TxKind = "register_participant"
	TxRegisterWitnesses   TxKind = "register_witnesses"
	TxAdvancePhase        TxKind = "advance_phase"
)

// Transaction is the canonical JSON shape every ceremony tx is submitted
// as. Caller is taken from the payload as given; no signature over the
// transaction is checked, and CheckTx only rejects a zero Caller. Witnesses is only populated for TxRegisterWitnesses.
type Transaction struct {
	Kind      TxKind          `json:"kind"`
	Caller    types.AccountID `json:"caller"`
	Witnesses []types.Witness `json:"witnesses,omitempty"`
}

// decodeTransaction parses and minimally validates a raw tx payload.
func decodeTransaction(raw []byte) (Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Transaction{}, fmt.Errorf("invalid transaction JSON: %w", err)
	}
	switch tx.Kind {
	case TxRegisterParticipant, TxRegisterWitnesses, TxAdvancePhase:
	default:
		return Transaction{}, fmt.Errorf("unknown transaction kind: %q", tx.Kind)
	}
	if tx.Kind == TxRegisterWitnesses && len(tx.Witnesses) == 0 {
		return Transaction{}, fmt.Errorf("register_witnesses requires at least one witness")
	}
	return tx, nil
}
