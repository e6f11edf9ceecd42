package stake

import (
	"nhbchain/core/activation"
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/types"

	"github.com/holiman/uint256"
)

// MergeKind classifies a stake account for merge-eligibility purposes: how
// much of its delegation (if any) has settled into a stable state versus
// still being rate-limited through activation or deactivation.
type MergeKind int

const (
	// MergeKindInactive covers Initialized accounts and Stake accounts
	// whose delegation has fully deactivated (effective stake is zero).
	MergeKindInactive MergeKind = iota
	// MergeKindActivationEpoch covers a Stake account delegated this very
	// epoch: it has an activation epoch equal to the target epoch, so it
	// carries no activating/effective split yet to reconcile.
	MergeKindActivationEpoch
	// MergeKindFullyActive covers a Stake account whose entire delegation
	// is effective, with nothing activating or deactivating.
	MergeKindFullyActive
	// MergeKindTransient covers a Stake account with a nonzero activating
	// or deactivating component; these can never merge with anything.
	MergeKindTransient
)

// RateParams bundles the warmup/cooldown configuration Evaluate needs; it is
// threaded through rather than read from a package-level config so the
// package remains free of any config dependency.
type RateParams struct {
	OriginalRateBps, CurrentRateBps uint64
	NewRateActivationEpoch          *types.Epoch
}

// mergeable is one side of a merge: its classification, its account lamport
// balance (only meaningful for MergeKindInactive, which has no Stake of its
// own to carry a stake amount), its active delegation (nil unless
// ActivationEpoch or FullyActive) and its StakeFlags.
type mergeable struct {
	kind    MergeKind
	balance types.Lamports
	stake   *Stake
	flags   Flags
}

// classifyForMerge determines one account's mergeable classification as of
// clock.Epoch. balance is the account's actual lamport balance, which is
// what an Inactive side contributes to an absorbing merge (not any stake
// field, since an Inactive account by definition has no settled delegation
// amount of its own).
func classifyForMerge(state AccountState, balance types.Lamports, clock types.Clock, history types.StakeHistory, rates RateParams) (mergeable, error) {
	switch state.Tag {
	case TagInitialized:
		return mergeable{kind: MergeKindInactive, balance: balance, flags: FlagsEmpty}, nil
	case TagStake:
		status := activation.Evaluate(
			state.Stake.Delegation.Stake,
			state.Stake.Delegation.ActivationEpoch,
			state.Stake.Delegation.DeactivationEpoch,
			clock.Epoch,
			history,
			rates.OriginalRateBps, rates.CurrentRateBps, rates.NewRateActivationEpoch,
		)
		switch {
		case status.Effective == 0 && status.Activating == 0 && status.Deactivating == 0:
			// Mirrors the reference's Inactive(meta, stake_lamports, flags):
			// the settled delegation amount itself is never consulted again,
			// only the account's raw lamport balance.
			return mergeable{kind: MergeKindInactive, balance: balance, flags: state.Flags}, nil
		case status.Effective == 0:
			return mergeable{kind: MergeKindActivationEpoch, stake: state.Stake, flags: state.Flags}, nil
		case status.Activating == 0 && status.Deactivating == 0:
			return mergeable{kind: MergeKindFullyActive, stake: state.Stake, flags: state.Flags}, nil
		default:
			return mergeable{kind: MergeKindTransient}, nil
		}
	default:
		return mergeable{}, stakeerrors.ErrNotDelegated
	}
}

// MetasCanMerge reports whether two accounts' Meta fields permit a merge:
// identical authorized keys, and either identical lockups or both expired.
func MetasCanMerge(a, b Meta, clock types.Clock) bool {
	if a.Authorized != b.Authorized {
		return false
	}
	if a.Lockup == b.Lockup {
		return true
	}
	return a.Lockup.Expired(clock) && b.Lockup.Expired(clock)
}

// ActiveDelegationsCanMerge reports whether two fully-active delegations may
// combine: same voter, and neither is mid-deactivation.
func ActiveDelegationsCanMerge(a, b Delegation) bool {
	if a.Voter != b.Voter {
		return false
	}
	return a.DeactivationEpoch == types.MaxEpoch && b.DeactivationEpoch == types.MaxEpoch
}

// Merge combines source into destination, returning the resulting
// destination AccountState. destinationBalance and sourceBalance are the
// accounts' lamport balances immediately before the merge; the caller is
// responsible for draining source to Uninitialized and moving its lamports
// to destination afterward regardless of what Merge returns.
//
// Mirrors the reference implementation's direction-sensitive MergeKind
// match: only a destination classified ActivationEpoch or FullyActive ever
// absorbs a source's stake. A plain Inactive destination paired with any
// source leaves the destination's variant untouched (the source's lamports
// still move to it, as free balance, via the caller's unconditional lamport
// relocation) -- merging is not commutative in which side ends up holding
// the combined delegation.
func Merge(destination, source AccountState, destinationBalance, sourceBalance types.Lamports, clock types.Clock, history types.StakeHistory, rates RateParams) (AccountState, error) {
	dst, err := classifyForMerge(destination, destinationBalance, clock, history, rates)
	if err != nil {
		return AccountState{}, err
	}
	src, err := classifyForMerge(source, sourceBalance, clock, history, rates)
	if err != nil {
		return AccountState{}, err
	}

	if !MetasCanMerge(*destination.Meta, *source.Meta, clock) {
		return AccountState{}, stakeerrors.ErrMergeMismatch
	}
	if dst.stake != nil && src.stake != nil {
		if !ActiveDelegationsCanMerge(dst.stake.Delegation, src.stake.Delegation) {
			return AccountState{}, stakeerrors.ErrMergeMismatch
		}
	}

	switch {
	case dst.kind == MergeKindTransient || src.kind == MergeKindTransient:
		return AccountState{}, stakeerrors.ErrMergeTransientStake
	case dst.kind == MergeKindInactive && src.kind == MergeKindInactive:
		return destination, nil
	case dst.kind == MergeKindInactive && src.kind == MergeKindActivationEpoch:
		return destination, nil
	case dst.kind == MergeKindActivationEpoch && src.kind == MergeKindInactive:
		merged := *dst.stake
		merged.Delegation.Stake += src.balance
		return AccountState{Tag: TagStake, Meta: destination.Meta, Stake: &merged, Flags: dst.flags | src.flags}, nil
	case dst.kind == MergeKindActivationEpoch && src.kind == MergeKindActivationEpoch:
		merged := *dst.stake
		// The source account ceases to exist, so its rent-exempt reserve
		// (no longer needed to keep it allocated) joins its stake on the
		// destination side, not just its delegation amount.
		absorbed := src.stake.Delegation.Stake + source.Meta.RentExemptReserve
		merged.CreditsObserved = stakeWeightedCreditsObserved(merged, absorbed, src.stake.CreditsObserved)
		merged.Delegation.Stake += absorbed
		return AccountState{Tag: TagStake, Meta: destination.Meta, Stake: &merged, Flags: dst.flags | src.flags}, nil
	case dst.kind == MergeKindFullyActive && src.kind == MergeKindFullyActive:
		merged := *dst.stake
		merged.CreditsObserved = stakeWeightedCreditsObserved(merged, src.stake.Delegation.Stake, src.stake.CreditsObserved)
		merged.Delegation.Stake += src.stake.Delegation.Stake
		return AccountState{Tag: TagStake, Meta: destination.Meta, Stake: &merged, Flags: FlagsEmpty}, nil
	default:
		return AccountState{}, stakeerrors.ErrMergeMismatch
	}
}

// stakeWeightedCreditsObserved computes the credits-observed value for a
// combined delegation: a weighted average of the two delegations'
// credits_observed, rounded up so the merged account never appears to have
// accrued fewer rewards than either input. Short-circuits when the two
// values already agree, the overwhelmingly common case, to avoid the
// rounding entirely.
func stakeWeightedCreditsObserved(dst Stake, srcStakeAmount types.Lamports, srcCreditsObserved uint64) uint64 {
	if dst.CreditsObserved == srcCreditsObserved {
		return dst.CreditsObserved
	}

	total := dst.Delegation.Stake + srcStakeAmount
	if total == 0 {
		return dst.CreditsObserved
	}

	dstTerm := new(uint256.Int).Mul(new(uint256.Int).SetUint64(dst.Delegation.Stake), new(uint256.Int).SetUint64(dst.CreditsObserved))
	srcTerm := new(uint256.Int).Mul(new(uint256.Int).SetUint64(srcStakeAmount), new(uint256.Int).SetUint64(srcCreditsObserved))
	numerator := new(uint256.Int).Add(dstTerm, srcTerm)
	// Ceiling division: add (total - 1) before dividing.
	numerator.Add(numerator, new(uint256.Int).SetUint64(total-1))
	quotient := new(uint256.Int).Div(numerator, new(uint256.Int).SetUint64(total))
	return quotient.Uint64()
}
