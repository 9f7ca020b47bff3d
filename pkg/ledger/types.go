package ledger

// ABCIState stores the ABCI application state needed for CometBFT recovery
// after restart. This ensures Info() returns correct LastBlockHeight and
// LastBlockAppHash so CometBFT can sync properly with the application
// state built on top of this ledger.
type ABCIState struct {
	LastBlockHeight  int64  `json:"lastBlockHeight"`
	LastBlockAppHash []byte `json:"lastBlockAppHash"`
}

// Amount is the balance ledger's unit of account. It is a plain uint64 —
// the ceremony reward is small and fixed, so there is no need for the
// arbitrary-precision arithmetic a general-purpose token ledger would
// require.
type Amount = uint64
