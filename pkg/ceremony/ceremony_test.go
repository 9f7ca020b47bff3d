package ceremony

import (
	"crypto/ed25519"
	"testing"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/ceremony/verify"
	"github.com/humanproof-network/ceremonies/pkg/ceremonystore"
	"github.com/humanproof-network/ceremonies/pkg/ledger"
)

const testReward ledger.Amount = 1000

// testAccount is a named Ed25519 identity usable both as an AccountID and
// as a signer, so test scenarios can read like the spec's named-account
// examples (Alice, Bob, ...).
type testAccount struct {
	id   types.AccountID
	priv ed25519.PrivateKey
}

func newTestAccount(t *testing.T) testAccount {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return testAccount{id: verify.AccountFromEd25519PublicKey(pub), priv: priv}
}

// sign produces a Witness where this account attests to claim.
func (a testAccount) witness(claim types.ClaimOfAttendance) types.Witness {
	msg := types.EncodeClaim(claim)
	return types.Witness{
		Claim:     claim,
		Signature: ed25519.Sign(a.priv, msg),
		Signer:    a.id,
	}
}

type testSetup struct {
	module   *Module
	master   testAccount
	accounts map[string]testAccount
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	backing := newMemKV()
	store := ceremonystore.New(backing)
	balances := ledger.NewBalanceLedger(backing)
	verifier := verify.NewEd25519Verifier()

	master := newTestAccount(t)
	m, err := New(store, balances, verifier, backing, GenesisConfig{
		CurrentCeremonyIndex: 1,
		CeremonyReward:       testReward,
		CeremonyMaster:       master.id,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testSetup{module: m, master: master, accounts: make(map[string]testAccount)}
}

func (s *testSetup) account(t *testing.T, name string) testAccount {
	t.Helper()
	if a, ok := s.accounts[name]; ok {
		return a
	}
	a := newTestAccount(t)
	s.accounts[name] = a
	return a
}

func (s *testSetup) advance(t *testing.T) types.Event {
	t.Helper()
	ev, err := s.module.AdvancePhase(s.master.id)
	if err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
	return ev
}

// Scenario 1: Phase machine — three advances return to Registering and
// bump the ceremony index.
func TestPhaseMachineCycle(t *testing.T) {
	s := newTestSetup(t)

	phase, err := s.module.CurrentPhase()
	if err != nil || phase != types.Registering {
		t.Fatalf("initial phase = %v, %v; want Registering, nil", phase, err)
	}
	idx, err := s.module.CurrentCeremonyIndex()
	if err != nil || idx != 1 {
		t.Fatalf("initial index = %v, %v; want 1, nil", idx, err)
	}

	s.advance(t)
	s.advance(t)
	s.advance(t)

	phase, err = s.module.CurrentPhase()
	if err != nil || phase != types.Registering {
		t.Fatalf("phase after 3 advances = %v, %v; want Registering, nil", phase, err)
	}
	idx, err = s.module.CurrentCeremonyIndex()
	if err != nil || idx != 2 {
		t.Fatalf("index after 3 advances = %v, %v; want 2, nil", idx, err)
	}
}

func TestAdvancePhaseRequiresMaster(t *testing.T) {
	s := newTestSetup(t)
	other := s.account(t, "mallory")

	if _, err := s.module.AdvancePhase(other.id); err != ErrNotAuthorised {
		t.Fatalf("AdvancePhase by non-master: err = %v, want ErrNotAuthorised", err)
	}
}

// Scenario 2: Registration.
func TestRegisterParticipant(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")

	if _, err := s.module.RegisterParticipant(alice.id); err != nil {
		t.Fatalf("RegisterParticipant(alice): %v", err)
	}
	if _, err := s.module.RegisterParticipant(bob.id); err != nil {
		t.Fatalf("RegisterParticipant(bob): %v", err)
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	count, err := s.module.store.ParticipantCount(idx)
	if err != nil || count != 2 {
		t.Fatalf("ParticipantCount = %v, %v; want 2, nil", count, err)
	}

	got, err := s.module.store.GetParticipant(idx, 1)
	if err != nil || got != alice.id {
		t.Fatalf("ParticipantRegistry(1,1) = %v; want alice", got)
	}
	got, err = s.module.store.GetParticipant(idx, 2)
	if err != nil || got != bob.id {
		t.Fatalf("ParticipantRegistry(1,2) = %v; want bob", got)
	}

	p, exists, err := s.module.store.ParticipantIndex(idx, bob.id)
	if err != nil || !exists || p != 2 {
		t.Fatalf("ParticipantIndex(bob) = %v, %v, %v; want 2, true, nil", p, exists, err)
	}
}

func TestRegisterParticipantRejectsDuplicate(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")

	if _, err := s.module.RegisterParticipant(alice.id); err != nil {
		t.Fatalf("first RegisterParticipant: %v", err)
	}
	if _, err := s.module.RegisterParticipant(alice.id); err != ErrAlreadyRegistered {
		t.Fatalf("second RegisterParticipant: err = %v, want ErrAlreadyRegistered", err)
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	count, _ := s.module.store.ParticipantCount(idx)
	if count != 1 {
		t.Fatalf("ParticipantCount after rejected duplicate = %d, want 1", count)
	}
}

func TestRegisterParticipantRequiresRegisteringPhase(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	s.advance(t) // Registering -> Assigning

	if _, err := s.module.RegisterParticipant(alice.id); err != ErrWrongPhase {
		t.Fatalf("RegisterParticipant outside Registering: err = %v, want ErrWrongPhase", err)
	}
}

// Scenario 3: Meetup assignment at transition.
func TestMeetupAssignmentAtTransition(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")
	ferdie := s.account(t, "ferdie")

	for _, a := range []testAccount{alice, bob, ferdie} {
		if _, err := s.module.RegisterParticipant(a.id); err != nil {
			t.Fatalf("RegisterParticipant: %v", err)
		}
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t) // Registering -> Assigning, runs assign_meetups

	members, err := s.module.store.GetMeetup(idx, 1)
	if err != nil {
		t.Fatalf("GetMeetup: %v", err)
	}
	want := []types.AccountID{alice.id, bob.id, ferdie.id}
	if len(members) != len(want) {
		t.Fatalf("meetup members = %v, want %v", members, want)
	}
	for i, acc := range want {
		if members[i] != acc {
			t.Errorf("meetup member %d = %v, want %v", i, members[i], acc)
		}
	}

	for _, a := range []testAccount{alice, bob, ferdie} {
		m, assigned, err := s.module.store.MeetupIndex(idx, a.id)
		if err != nil || !assigned || m != 1 {
			t.Errorf("MeetupIndex(%v) = %v, %v, %v; want 1, true, nil", a.id, m, assigned, err)
		}
	}

	s.advance(t) // Assigning -> Witnessing
	s.advance(t) // Witnessing -> Registering (purges ceremony idx)

	for _, a := range []testAccount{alice, bob, ferdie} {
		_, assigned, err := s.module.store.MeetupIndex(idx, a.id)
		if err != nil {
			t.Fatalf("MeetupIndex after purge: %v", err)
		}
		if assigned {
			t.Errorf("MeetupIndex(%v) still assigned after purge", a.id)
		}
	}
}

// Scenario 4: Witness signature verification.
func TestWitnessSignatureVerification(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")

	s.module.RegisterParticipant(alice.id)
	s.module.RegisterParticipant(bob.id)
	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t) // -> Assigning
	s.advance(t) // -> Witnessing

	claim := types.ClaimOfAttendance{
		Claimant:                      alice.id,
		CeremonyIndex:                 idx,
		MeetupIndex:                   1,
		NumberOfParticipantsConfirmed: 3,
	}

	validWitness := bob.witness(claim)
	if err := s.module.RegisterWitnesses(alice.id, []types.Witness{validWitness}); err != nil {
		t.Fatalf("RegisterWitnesses with valid bob witness: %v", err)
	}

	w, exists, err := s.module.store.WitnessIndex(idx, alice.id)
	if err != nil || !exists {
		t.Fatalf("WitnessIndex(alice) = %v, %v, %v", w, exists, err)
	}
	set, err := s.module.store.GetWitnessSet(idx, w)
	if err != nil || len(set) != 1 || set[0] != bob.id {
		t.Fatalf("GetWitnessSet = %v, %v; want [bob]", set, err)
	}
}

func TestWitnessSelfSignatureRejected(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")

	s.module.RegisterParticipant(alice.id)
	s.module.RegisterParticipant(bob.id)
	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t)
	s.advance(t)

	claim := types.ClaimOfAttendance{
		Claimant:                      alice.id,
		CeremonyIndex:                 idx,
		MeetupIndex:                   1,
		NumberOfParticipantsConfirmed: 3,
	}

	selfWitness := alice.witness(claim)
	if err := s.module.RegisterWitnesses(alice.id, []types.Witness{selfWitness}); err != ErrNoValidWitnesses {
		t.Fatalf("RegisterWitnesses with self-signed witness: err = %v, want ErrNoValidWitnesses", err)
	}
}

func TestWitnessMisattributedSignatureRejected(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")

	s.module.RegisterParticipant(alice.id)
	s.module.RegisterParticipant(bob.id)
	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t)
	s.advance(t)

	claim := types.ClaimOfAttendance{
		Claimant:                      alice.id,
		CeremonyIndex:                 idx,
		MeetupIndex:                   1,
		NumberOfParticipantsConfirmed: 3,
	}

	// alice signs, but the witness claims to be bob.
	forged := alice.witness(claim)
	forged.Signer = bob.id

	if err := s.module.RegisterWitnesses(alice.id, []types.Witness{forged}); err != ErrNoValidWitnesses {
		t.Fatalf("RegisterWitnesses with misattributed signature: err = %v, want ErrNoValidWitnesses", err)
	}
}

// Scenario 5: Reward issuance. Five participants (alice, bob, ferdie,
// grace, charlie) all vote n=5, so nHonest=5 and both thresholds are
// nHonest-1=4. alice, bob, ferdie and grace are each witnessed by the other
// three plus charlie, but charlie is witnessed only by alice and bob, so
// alice and bob have 4 reciprocated witnesses while ferdie and grace have 3.
// Charlie has only two witnesses. Dave votes a different n with a single
// witness; eve is never witnessed at all. Only alice and bob are rewarded.
func TestRewardIssuance(t *testing.T) {
	s := newTestSetup(t)
	names := []string{"alice", "bob", "charlie", "dave", "eve", "ferdie", "grace"}
	accounts := make(map[string]testAccount, len(names))
	for _, n := range names {
		a := s.account(t, n)
		accounts[n] = a
		if _, err := s.module.RegisterParticipant(a.id); err != nil {
			t.Fatalf("RegisterParticipant(%s): %v", n, err)
		}
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t) // -> Assigning
	s.advance(t) // -> Witnessing

	claimFor := func(claimant types.AccountID, n uint32) types.ClaimOfAttendance {
		return types.ClaimOfAttendance{
			Claimant:                      claimant,
			CeremonyIndex:                 idx,
			MeetupIndex:                   1,
			NumberOfParticipantsConfirmed: n,
		}
	}

	witnessedBy := func(claimant testAccount, witnesses []testAccount, n uint32) []types.Witness {
		claim := claimFor(claimant.id, n)
		out := make([]types.Witness, 0, len(witnesses))
		for _, w := range witnesses {
			out = append(out, w.witness(claim))
		}
		return out
	}

	must := func(claimant testAccount, witnesses []types.Witness) {
		t.Helper()
		if err := s.module.RegisterWitnesses(claimant.id, witnesses); err != nil {
			t.Fatalf("RegisterWitnesses(%v): %v", claimant.id, err)
		}
	}

	// alice, bob, ferdie, grace: each witnessed by the other three plus
	// charlie (4 witnesses, clearing a threshold of nHonest-1=4).
	fullyWitnessed := []string{"alice", "bob", "ferdie", "grace"}
	for _, n := range fullyWitnessed {
		var peers []testAccount
		for _, p := range fullyWitnessed {
			if p != n {
				peers = append(peers, accounts[p])
			}
		}
		peers = append(peers, accounts["charlie"])
		must(accounts[n], witnessedBy(accounts[n], peers, 5))
	}

	// charlie votes the same n=5 but is witnessed by only two peers.
	must(accounts["charlie"], witnessedBy(accounts["charlie"], []testAccount{accounts["alice"], accounts["bob"]}, 5))

	must(accounts["dave"], witnessedBy(accounts["dave"], []testAccount{accounts["alice"]}, 6))

	// Eve is never witnessed by anyone and submits no witnesses herself:
	// she records no vote at all.

	ev := s.advance(t) // Witnessing -> Registering: runs evaluateRewards then purges idx

	balance := func(a testAccount) ledger.Amount {
		b, err := s.module.balances.FreeBalance(a.id)
		if err != nil {
			t.Fatalf("FreeBalance: %v", err)
		}
		return b
	}

	// ferdie and grace are not witnessed back by charlie, so only alice and
	// bob reach nHonest-1=4 reciprocated witnesses.
	rewarded := []string{"alice", "bob"}
	for _, n := range rewarded {
		if got := balance(accounts[n]); got != testReward {
			t.Errorf("%s balance = %d, want %d", n, got, testReward)
		}
	}
	for _, n := range []string{"charlie", "dave", "eve", "ferdie", "grace"} {
		if got := balance(accounts[n]); got != 0 {
			t.Errorf("%s balance = %d, want 0", n, got)
		}
	}

	if ev.Closed == nil {
		t.Fatal("AdvancePhase event carried no CycleOutcome for the closed cycle")
	}
	if ev.Closed.RewardedCount != len(rewarded) {
		t.Errorf("CycleOutcome.RewardedCount = %d, want %d", ev.Closed.RewardedCount, len(rewarded))
	}
	if ev.Closed.WinningNConfirmed != 5 {
		t.Errorf("CycleOutcome.WinningNConfirmed = %d, want 5", ev.Closed.WinningNConfirmed)
	}
	if len(ev.Closed.Outcomes) != len(names) { // one outcome row per meetup member, voted or not
		t.Errorf("len(CycleOutcome.Outcomes) = %d, want %d", len(ev.Closed.Outcomes), len(names))
	}
}

// Scenario 6: Ballot ambiguity — top tally below confidence threshold
// yields no decision and no rewards.
func TestBallotAmbiguityYieldsNoRewards(t *testing.T) {
	s := newTestSetup(t)
	names := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	accounts := make(map[string]testAccount, len(names))
	for _, n := range names {
		a := s.account(t, n)
		accounts[n] = a
		if _, err := s.module.RegisterParticipant(a.id); err != nil {
			t.Fatalf("RegisterParticipant(%s): %v", n, err)
		}
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t)
	s.advance(t)

	votes := map[string]uint32{"a1": 5, "a2": 5, "a3": 4, "a4": 4, "a5": 6, "a6": 6}
	for _, n := range names {
		claimant := accounts[n]
		claim := types.ClaimOfAttendance{
			Claimant:                      claimant.id,
			CeremonyIndex:                 idx,
			MeetupIndex:                   1,
			NumberOfParticipantsConfirmed: votes[n],
		}
		// Each votes for itself via a single peer witness, to populate
		// MeetupParticipantCountVote without needing reciprocity (reward
		// eligibility is not under test here, only the ballot itself).
		other := accounts[names[(indexOf(names, n)+1)%len(names)]]
		w := other.witness(claim)
		if err := s.module.RegisterWitnesses(claimant.id, []types.Witness{w}); err != nil {
			t.Fatalf("RegisterWitnesses(%s): %v", n, err)
		}
	}

	s.advance(t) // Witnessing -> Registering

	for _, n := range names {
		b, err := s.module.balances.FreeBalance(accounts[n].id)
		if err != nil {
			t.Fatalf("FreeBalance: %v", err)
		}
		if b != 0 {
			t.Errorf("%s balance = %d, want 0 (ambiguous ballot)", n, b)
		}
	}
}

// Scenario 6b: a genuine tie at the confidence threshold is broken in
// favour of the most recently introduced candidate value, matching the
// Rust original's n_vote_candidates.insert(0, ...) head-insertion — not
// the first-observed value. Six members vote 10,20,10,20,10,20 in
// registration order: both 10 and 20 reach tally 3, but 20 was the
// second value introduced, so it ends up at the head of the candidate
// list and wins the stable sort on ties.
func TestBallotTiePicksMostRecentlyIntroducedValue(t *testing.T) {
	s := newTestSetup(t)
	names := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	accounts := make(map[string]testAccount, len(names))
	for _, n := range names {
		a := s.account(t, n)
		accounts[n] = a
		if _, err := s.module.RegisterParticipant(a.id); err != nil {
			t.Fatalf("RegisterParticipant(%s): %v", n, err)
		}
	}

	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t)
	s.advance(t)

	votes := map[string]uint32{"a1": 10, "a2": 20, "a3": 10, "a4": 20, "a5": 10, "a6": 20}
	for _, n := range names {
		claimant := accounts[n]
		claim := types.ClaimOfAttendance{
			Claimant:                      claimant.id,
			CeremonyIndex:                 idx,
			MeetupIndex:                   1,
			NumberOfParticipantsConfirmed: votes[n],
		}
		other := accounts[names[(indexOf(names, n)+1)%len(names)]]
		w := other.witness(claim)
		if err := s.module.RegisterWitnesses(claimant.id, []types.Witness{w}); err != nil {
			t.Fatalf("RegisterWitnesses(%s): %v", n, err)
		}
	}

	ev := s.advance(t) // Witnessing -> Registering

	if ev.Closed == nil {
		t.Fatal("AdvancePhase event carried no CycleOutcome for the closed cycle")
	}
	if ev.Closed.WinningNConfirmed != 20 {
		t.Errorf("CycleOutcome.WinningNConfirmed = %d, want 20 (second-introduced value, head-inserted)", ev.Closed.WinningNConfirmed)
	}
}

func indexOf(names []string, n string) int {
	for i, x := range names {
		if x == n {
			return i
		}
	}
	return -1
}

// Law: a second RegisterWitnesses call by the same account overwrites the
// first in place — witness count does not grow.
func TestRegisterWitnessesOverwritesInPlace(t *testing.T) {
	s := newTestSetup(t)
	alice := s.account(t, "alice")
	bob := s.account(t, "bob")
	charlie := s.account(t, "charlie")

	s.module.RegisterParticipant(alice.id)
	s.module.RegisterParticipant(bob.id)
	s.module.RegisterParticipant(charlie.id)
	idx, _ := s.module.CurrentCeremonyIndex()
	s.advance(t)
	s.advance(t)

	claim := types.ClaimOfAttendance{Claimant: alice.id, CeremonyIndex: idx, MeetupIndex: 1, NumberOfParticipantsConfirmed: 3}
	if err := s.module.RegisterWitnesses(alice.id, []types.Witness{bob.witness(claim)}); err != nil {
		t.Fatalf("first RegisterWitnesses: %v", err)
	}
	if err := s.module.RegisterWitnesses(alice.id, []types.Witness{charlie.witness(claim)}); err != nil {
		t.Fatalf("second RegisterWitnesses: %v", err)
	}

	count, err := s.module.store.WitnessCount(idx)
	if err != nil || count != 1 {
		t.Fatalf("WitnessCount after overwrite = %d, %v; want 1, nil", count, err)
	}

	w, _, _ := s.module.store.WitnessIndex(idx, alice.id)
	set, err := s.module.store.GetWitnessSet(idx, w)
	if err != nil || len(set) != 1 || set[0] != charlie.id {
		t.Fatalf("GetWitnessSet after overwrite = %v, %v; want [charlie]", set, err)
	}
}
