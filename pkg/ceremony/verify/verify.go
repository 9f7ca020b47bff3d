// Package verify implements the ceremony module's C2: signature
// verification over a pluggable scheme. Per spec.md §9 ("Polymorphism
// over signature schemes"), the core treats witness signatures as opaque
// bytes checked through a small capability interface injected at module
// construction — callers choose the scheme, the module never hardcodes
// one.
package verify

import "github.com/humanproof-network/ceremonies/pkg/ceremony/types"

// Verifier checks that sig is a valid signature over msg produced by
// signer. It does not check for self-signature — that is the caller's
// concern (pkg/ceremony's claim ingestion), since "signer == claimant" is
// a ceremony-level rule, not a cryptographic one.
type Verifier interface {
	Verify(msg []byte, signer types.AccountID, sig []byte) bool
}
