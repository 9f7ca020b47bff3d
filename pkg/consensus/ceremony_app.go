// Copyright 2025 Certen Protocol
//
// Production ABCI Application for the Ceremony CometBFT Chain
// Dispatches register_participant / register_witnesses / advance_phase
// transactions into pkg/ceremony.Module.

package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/humanproof-network/ceremonies/pkg/ceremony"
	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/database"
	"github.com/humanproof-network/ceremonies/pkg/ledger"
	"github.com/humanproof-network/ceremonies/pkg/metrics"
)

// CeremonyApp implements the ABCI interface over a ceremony.Module. All
// consensus-relevant state lives in the Module (and the BalanceLedger it
// was built with); CeremonyApp itself only tracks height/appHash bookkeeping
// CometBFT needs across restarts.
type CeremonyApp struct {
	logger  *log.Logger
	chainID string

	mu             sync.RWMutex
	latestHeight   int64
	lastCommitHash []byte

	module   *ceremony.Module
	balances *ledger.BalanceLedger
	archive  *database.ClosedCeremonyRepository
}

// SetArchive attaches the off-consensus closed-ceremony archive. Optional —
// a CeremonyApp with no archive set still runs, it just doesn't persist
// cycle outcomes for dashboards/audits.
func (app *CeremonyApp) SetArchive(repo *database.ClosedCeremonyRepository) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.archive = repo
}

// NewCeremonyApp creates a new ABCI application wrapping module. It
// restores persisted ABCI state from balances so CometBFT can resync
// correctly after a restart.
func NewCeremonyApp(module *ceremony.Module, balances *ledger.BalanceLedger, chainID string) *CeremonyApp {
	app := &CeremonyApp{
		logger:   log.New(os.Stderr, "[CeremonyApp] ", log.LstdFlags),
		chainID:  chainID,
		module:   module,
		balances: balances,
	}

	if state, err := balances.LoadABCIState(); err != nil {
		app.logger.Printf("failed to load ABCI state: %v (starting fresh)", err)
	} else if state != nil {
		app.latestHeight = state.LastBlockHeight
		app.lastCommitHash = state.LastBlockAppHash
		app.logger.Printf("restored ABCI state: height=%d appHash=%x", app.latestHeight, app.lastCommitHash)
	}

	return app
}

// Info returns application information.
func (app *CeremonyApp) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	return &abcitypes.ResponseInfo{
		Data:             fmt.Sprintf("Ceremony Consensus Application (chain: %s)", app.chainID),
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  app.latestHeight,
		LastBlockAppHash: app.lastCommitHash,
	}, nil
}

// CheckTx validates an incoming transaction without mutating state.
func (app *CeremonyApp) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	tx, err := decodeTransaction(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	if tx.Caller.IsZero() {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "caller must not be the zero account"}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0, GasWanted: 1, GasUsed: 1, Log: "transaction accepted"}, nil
}

// processCeremonyTransaction dispatches one decoded transaction into the
// module and turns its outcome into an ExecTxResult.
func (app *CeremonyApp) processCeremonyTransaction(raw []byte) abcitypes.ExecTxResult {
	tx, err := decodeTransaction(raw)
	if err != nil {
		return abcitypes.ExecTxResult{Code: 1, Log: err.Error()}
	}

	var event types.Event
	switch tx.Kind {
	case TxRegisterParticipant:
		event, err = app.module.RegisterParticipant(tx.Caller)

	case TxRegisterWitnesses:
		err = app.module.RegisterWitnesses(tx.Caller, tx.Witnesses)
		event = types.Event{} // register_witnesses has no dedicated event kind

	case TxAdvancePhase:
		event, err = app.module.AdvancePhase(tx.Caller)
	}

	if err != nil {
		metrics.TransactionsRejectedTotal.WithLabelValues(string(tx.Kind)).Inc()
		return abcitypes.ExecTxResult{Code: 2, Log: fmt.Sprintf("%s rejected: %v", tx.Kind, err)}
	}

	if tx.Kind == TxRegisterWitnesses {
		metrics.WitnessesSubmittedTotal.Inc()
	}
	if event.Kind == types.EventPhaseChanged {
		metrics.PhaseTransitionsTotal.WithLabelValues(event.Phase.String()).Inc()
		if event.Closed != nil {
			app.recordClosedCycle(event.Closed)
		}
	}

	return abcitypes.ExecTxResult{
		Code:   0,
		Log:    fmt.Sprintf("%s applied", tx.Kind),
		Events: eventToABCI(tx.Kind, event),
	}
}

// recordClosedCycle updates reward metrics and, if an archive repository is
// attached, persists the cycle outcome off the consensus-critical path.
// Archiving failures are logged, never surfaced as a transaction error —
// the ceremony cycle has already closed in consensus state by this point.
func (app *CeremonyApp) recordClosedCycle(outcome *types.CycleOutcome) {
	metrics.RewardsIssuedTotal.Add(float64(outcome.RewardedCount))

	if app.archive == nil {
		return
	}

	participantOutcomes := make([]database.ParticipantOutcome, 0, len(outcome.Outcomes))
	for _, o := range outcome.Outcomes {
		participantOutcomes = append(participantOutcomes, database.ParticipantOutcome{
			Account:      o.Account.String(),
			Vote:         o.Vote,
			WitnessCount: o.WitnessCount,
			Reciprocated: o.Reciprocated,
			Rewarded:     o.Rewarded,
		})
	}

	_, err := app.archive.Archive(context.Background(), &database.NewClosedCeremony{
		CeremonyIndex:        uint32(outcome.CeremonyIndex),
		ParticipantCount:     int(outcome.ParticipantCount),
		MeetupCount:          int(outcome.MeetupCount),
		WinningNConfirmed:    outcome.WinningNConfirmed,
		RewardedCount:        outcome.RewardedCount,
		RewardPerParticipant: uint64(app.module.Reward()),
		Outcomes:             participantOutcomes,
		ClosedAt:             time.Now(),
	})
	if err != nil {
		app.logger.Printf("failed to archive closed ceremony %d: %v", outcome.CeremonyIndex, err)
	}
}

func eventToABCI(kind TxKind, ev types.Event) []abcitypes.Event {
	attrs := []abcitypes.EventAttribute{
		{Key: "kind", Value: string(kind)},
	}
	switch ev.Kind {
	case types.EventPhaseChanged:
		attrs = append(attrs, abcitypes.EventAttribute{Key: "phase", Value: ev.Phase.String()})
	case types.EventParticipantRegistered:
		attrs = append(attrs, abcitypes.EventAttribute{Key: "account", Value: ev.Account.String()})
	}
	return []abcitypes.Event{{Type: "ceremony", Attributes: attrs}}
}

// FinalizeBlock processes every transaction in the block (CometBFT v0.38+).
func (app *CeremonyApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, tx := range req.Txs {
		result := app.processCeremonyTransaction(tx)
		results[i] = &result
	}

	app.logger.Printf("finalized block %d with %d transactions", req.Height, len(req.Txs))
	return &abcitypes.ResponseFinalizeBlock{TxResults: results}, nil
}

// Commit finalizes the block and persists ABCI recovery state.
func (app *CeremonyApp) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.latestHeight++

	appHash, err := app.generateAppHash()
	if err != nil {
		app.logger.Printf("failed to generate app hash: %v", err)
	} else {
		app.lastCommitHash = appHash
	}

	if err := app.balances.SaveABCIState(&ledger.ABCIState{
		LastBlockHeight:  app.latestHeight,
		LastBlockAppHash: app.lastCommitHash,
	}); err != nil {
		app.logger.Printf("failed to persist ABCI state: %v", err)
	}

	app.logger.Printf("committed block %d (hash: %x)", app.latestHeight, app.lastCommitHash)
	app.refreshGauges()

	retainHeight := app.latestHeight - 100
	if retainHeight < 0 {
		retainHeight = 0
	}
	return &abcitypes.ResponseCommit{RetainHeight: retainHeight}, nil
}

// refreshGauges samples the module's point-in-time state into the gauges
// that a counter can't represent (current phase/index/participant/meetup
// counts). Called after every commit, never mid-block, so readers never
// observe a gauge that's ahead of the committed state.
func (app *CeremonyApp) refreshGauges() {
	idx, err := app.module.CurrentCeremonyIndex()
	if err != nil {
		app.logger.Printf("refreshGauges: %v", err)
		return
	}
	phase, err := app.module.CurrentPhase()
	if err != nil {
		app.logger.Printf("refreshGauges: %v", err)
		return
	}
	participants, meetups, err := app.module.Stats()
	if err != nil {
		app.logger.Printf("refreshGauges: %v", err)
		return
	}

	metrics.CurrentCeremonyIndex.Set(float64(idx))
	metrics.CurrentPhase.Set(float64(phase))
	metrics.ParticipantCount.Set(float64(participants))
	metrics.MeetupCount.Set(float64(meetups))
}

// generateAppHash hashes the module's current ceremony index and phase,
// which is all of the state CometBFT needs to detect a fork — every other
// registry in pkg/ceremonystore is purged every cycle and therefore does
// not need to contribute to app-hash continuity across cycles.
func (app *CeremonyApp) generateAppHash() ([]byte, error) {
	idx, err := app.module.CurrentCeremonyIndex()
	if err != nil {
		return nil, err
	}
	phase, err := app.module.CurrentPhase()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf, uint32(idx))
	buf[4] = byte(phase)
	sum := sha256.Sum256(buf)
	return sum[:], nil
}

// Query handles application state queries.
func (app *CeremonyApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	switch req.Path {
	case "/ceremony/phase":
		phase, err := app.module.CurrentPhase()
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: []byte(phase.String())}, nil

	case "/ceremony/index":
		idx, err := app.module.CurrentCeremonyIndex()
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: []byte(fmt.Sprintf("%d", idx))}, nil

	case "/ceremony/balance":
		account := types.AccountIDFromBytes(req.Data)
		balance, err := app.balances.FreeBalance(account)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: []byte(fmt.Sprintf("%d", balance))}, nil

	case "/latest_height":
		return &abcitypes.ResponseQuery{Code: 0, Value: []byte(fmt.Sprintf("%d", app.latestHeight))}, nil

	default:
		return &abcitypes.ResponseQuery{Code: 2, Log: "unknown query path: " + req.Path}, nil
	}
}

// InitChain initializes the application.
func (app *CeremonyApp) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	app.logger.Printf("initializing ceremony ABCI application - chain: %s", req.ChainId)
	return &abcitypes.ResponseInitChain{}, nil
}

// PrepareProposal accepts incoming transactions as-is; validity is
// re-checked individually by CheckTx/FinalizeBlock.
func (app *CeremonyApp) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal rejects proposals containing transactions that don't
// even decode.
func (app *CeremonyApp) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, tx := range req.Txs {
		if _, err := decodeTransaction(tx); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// ExtendVote extends validator votes. Unused by this application.
func (app *CeremonyApp) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

// VerifyVoteExtension verifies vote extensions. Unused by this application.
func (app *CeremonyApp) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// ListSnapshots, OfferSnapshot, LoadSnapshotChunk, ApplySnapshotChunk:
// state-sync is not supported — the ceremony KV store is small enough
// that a new node catches up by replaying blocks.
func (app *CeremonyApp) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *CeremonyApp) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (app *CeremonyApp) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *CeremonyApp) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

// GetChainID returns the chain ID this application was constructed with.
func (app *CeremonyApp) GetChainID() string {
	return app.chainID
}

// GetLatestHeight returns the current committed height.
func (app *CeremonyApp) GetLatestHeight() int64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.latestHeight
}

// Shutdown flushes ABCI recovery state on graceful shutdown.
func (app *CeremonyApp) Shutdown() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if err := app.balances.SaveABCIState(&ledger.ABCIState{
		LastBlockHeight:  app.latestHeight,
		LastBlockAppHash: app.lastCommitHash,
	}); err != nil {
		return fmt.Errorf("failed to save state on shutdown: %w", err)
	}
	app.logger.Printf("state flushed: height=%d hash=%x", app.latestHeight, app.lastCommitHash)
	return nil
}
