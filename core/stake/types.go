// Package stake implements the stake account data model and state machine:
// Meta, Delegation and Stake, the account-state union they compose into, and
// the merge, split and withdraw arithmetic defined over them. It consults
// core/activation to classify a delegation's activating/effective/
// deactivating status but otherwise has no dependency on how an instruction
// reached it; core/authority and core/processor own signer and dispatch
// concerns respectively.
package stake

import (
	"nhbchain/core/types"
)

// Authorized names the two signing roles of a stake account: the staker
// authority may delegate, deactivate, split and move stake; the withdrawer
// authority may additionally withdraw lamports and change either authority.
type Authorized struct {
	Staker     types.Address
	Withdrawer types.Address
}

// Lockup restricts withdrawal and authority changes until a point in time or
// epoch, unless the named custodian co-signs.
type Lockup struct {
	UnixTimestamp types.UnixTimestamp
	Epoch         types.Epoch
	Custodian     types.Address
}

// InForce reports whether the lockup still restricts the account as of
// clock. A zero lockup (both fields zero) is never in force.
func (l Lockup) InForce(clock types.Clock) bool {
	if l.UnixTimestamp == 0 && l.Epoch == 0 {
		return false
	}
	if l.UnixTimestamp != 0 && clock.UnixTimestamp < l.UnixTimestamp {
		return true
	}
	if l.Epoch != 0 && clock.Epoch < l.Epoch {
		return true
	}
	return false
}

// Expired reports whether neither the timestamp nor epoch bound is still in
// the future, used when comparing two lockups for merge eligibility: two
// accounts with different lockups may still merge if both have expired.
func (l Lockup) Expired(clock types.Clock) bool {
	return !l.InForce(clock)
}

// Meta is the fixed, always-present portion of an initialized stake account.
type Meta struct {
	RentExemptReserve types.Lamports
	Authorized        Authorized
	Lockup            Lockup
}

// Delegation points a stake account's lamports at a vote account and records
// when that pointing began and (if ever) ended.
type Delegation struct {
	Voter types.Address
	// Stake is the delegated lamport amount as of ActivationEpoch; the
	// actual effective/activating/deactivating split as of any later epoch
	// is computed on demand via core/activation, never stored.
	Stake types.Lamports
	// ActivationEpoch is types.MaxEpoch for a delegation bootstrapped at
	// genesis, which is always fully effective.
	ActivationEpoch types.Epoch
	// DeactivationEpoch is types.MaxEpoch until Deactivate is processed.
	DeactivationEpoch types.Epoch
	// Reserved preserves an 8-byte region of the wire format whose meaning
	// this program does not interpret; core/codec round-trips it verbatim.
	Reserved [8]byte
}

// IsBootstrap reports whether this delegation was seeded at genesis rather
// than created by a DelegateStake instruction.
func (d Delegation) IsBootstrap() bool {
	return d.ActivationEpoch == types.MaxEpoch
}

// Stake pairs a Delegation with the vote credits observed the last time this
// account's rewards were settled; reward settlement itself is outside this
// program's scope; only the bookkeeping field is preserved.
type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

// Flags records out-of-band per-account behavior bits, preserved opaquely
// across writes per invariant 7. The one bit defined so far,
// FlagMustFullyActivateBeforeDeactivationIsPermitted, is a legacy artifact
// of an older activation-gating rule this program's instruction set no
// longer enforces; it is carried solely so round-tripped account data does
// not lose information a future program version might still interpret.
type Flags uint8

const (
	FlagsEmpty                                          Flags = 0
	FlagMustFullyActivateBeforeDeactivationIsPermitted  Flags = 1 << 0
)

// Tag identifies which variant of AccountState is populated.
type Tag uint32

const (
	TagUninitialized Tag = 0
	TagInitialized   Tag = 1
	TagStake         Tag = 2
	TagRewardsPool   Tag = 3
)

func (t Tag) String() string {
	switch t {
	case TagUninitialized:
		return "Uninitialized"
	case TagInitialized:
		return "Initialized"
	case TagStake:
		return "Stake"
	case TagRewardsPool:
		return "RewardsPool"
	default:
		return "Unknown"
	}
}

// AccountState is the decoded form of a 200-byte stake account, equivalent
// to the wire format's four-way tagged union. Exactly one of Meta/Stake is
// populated, according to Tag: Uninitialized populates neither, Initialized
// populates only Meta, Stake populates both, and RewardsPool populates
// neither (it is a legacy singleton this program never constructs).
type AccountState struct {
	Tag   Tag
	Meta  *Meta
	Stake *Stake
	Flags Flags
	// Padding preserves the 3 trailing bytes of the wire format verbatim
	// across decode/encode round trips. This program never assigns them
	// meaning, but a state transition must not clobber whatever the runtime
	// or a future program version may have written there.
	Padding [3]byte
}

// Uninitialized constructs the zero account state.
func Uninitialized() AccountState {
	return AccountState{Tag: TagUninitialized}
}
