package stake

import (
	"nhbchain/core/activation"
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/types"
)

// Initialize transitions an Uninitialized account into Initialized, given
// the lamports already present in the account (used to derive the
// rent-exempt reserve) and the requested authority/lockup. The caller must
// already have verified the account's current tag is Uninitialized and that
// lamports meets the rent-exemption minimum.
func Initialize(lamports types.Lamports, authorized Authorized, lockup Lockup) AccountState {
	return AccountState{
		Tag: TagInitialized,
		Meta: &Meta{
			RentExemptReserve: lamports,
			Authorized:        authorized,
			Lockup:            lockup,
		},
	}
}

// Authorize reassigns one of the two authority roles on an already
// Initialized or Stake account's Meta. The caller is responsible for
// verifying signer and lockup constraints before calling this.
func Authorize(state AccountState, role types.StakeAuthorize, newAuthority types.Address) (AccountState, error) {
	meta, err := metaOf(state)
	if err != nil {
		return AccountState{}, err
	}
	updated := *meta
	switch role {
	case types.StakeAuthorizeStaker:
		updated.Authorized.Staker = newAuthority
	case types.StakeAuthorizeWithdrawer:
		updated.Authorized.Withdrawer = newAuthority
	}
	out := state
	out.Meta = &updated
	return out, nil
}

// SetLockup replaces any of the three lockup fields named in args, leaving
// the others unchanged. The caller must already have verified the custodian/
// withdrawer signature rules.
func SetLockup(state AccountState, args types.LockupArgs) (AccountState, error) {
	meta, err := metaOf(state)
	if err != nil {
		return AccountState{}, err
	}
	updated := *meta
	if args.UnixTimestamp != nil {
		updated.Lockup.UnixTimestamp = *args.UnixTimestamp
	}
	if args.Epoch != nil {
		updated.Lockup.Epoch = *args.Epoch
	}
	if args.Custodian != nil {
		updated.Lockup.Custodian = *args.Custodian
	}
	out := state
	out.Meta = &updated
	return out, nil
}

// Delegate transitions an Initialized account (or re-delegates a fully
// deactivated Stake account) to point at voter. minimumDelegation enforces
// the cluster's delegation floor. history and rates are consulted only when
// state is already a Stake account, to determine whether its prior
// delegation has fully cooled down.
func Delegate(state AccountState, voter types.Address, amount types.Lamports, clock types.Clock, minimumDelegation types.Lamports, history types.StakeHistory, rates RateParams) (AccountState, error) {
	if amount < minimumDelegation {
		return AccountState{}, stakeerrors.ErrInsufficientDelegation
	}
	meta, err := metaOf(state)
	if err != nil {
		return AccountState{}, err
	}

	// A Stake->Stake rewrite never clears StakeFlags or the trailing padding;
	// only the Initialized->Stake transition below starts that region fresh.
	out := state
	if state.Tag == TagStake {
		// Re-delegation is only permitted once the prior delegation has fully
		// deactivated: it must have been deactivated at all, and its
		// effective stake as of clock.Epoch must have cooled down to zero.
		d := state.Stake.Delegation
		status := activation.Evaluate(d.Stake, d.ActivationEpoch, d.DeactivationEpoch, clock.Epoch, history, rates.OriginalRateBps, rates.CurrentRateBps, rates.NewRateActivationEpoch)
		if d.DeactivationEpoch == types.MaxEpoch || status.Effective != 0 {
			return AccountState{}, stakeerrors.ErrTooSoonToRedelegate
		}
	} else {
		out.Flags = FlagsEmpty
		out.Padding = [3]byte{}
	}

	out.Tag = TagStake
	out.Meta = meta
	out.Stake = &Stake{
		Delegation: Delegation{
			Voter:             voter,
			Stake:             amount,
			ActivationEpoch:   clock.Epoch,
			DeactivationEpoch: types.MaxEpoch,
		},
		CreditsObserved: 0,
	}
	return out, nil
}

// Deactivate schedules a Stake account's delegation to begin cooling down at
// the current epoch.
func Deactivate(state AccountState, clock types.Clock) (AccountState, error) {
	if state.Tag != TagStake {
		return AccountState{}, stakeerrors.ErrNotDelegated
	}
	if state.Stake.Delegation.DeactivationEpoch != types.MaxEpoch {
		return AccountState{}, stakeerrors.ErrInvalidTransition
	}
	updated := *state.Stake
	updated.Delegation.DeactivationEpoch = clock.Epoch
	out := state
	out.Stake = &updated
	return out, nil
}

// DeactivateDelinquent force-deactivates a delegation whose vote account has
// been delinquent for at least minimumDelinquentEpochs consecutive epochs,
// without requiring the staker's signature. lastDelinquentEpoch describes
// the delinquency window the caller has already verified against the
// delinquent voter's own credit history; this function only re-checks the
// width of that window. referenceVoteAccountIsActive must additionally
// attest that a second, known-good vote account voted in every one of those
// same epochs -- proof that the epochs in question actually had a
// functioning cluster to be delinquent against, not that vote history was
// simply missing.
func DeactivateDelinquent(state AccountState, clock types.Clock, lastDelinquentEpoch types.Epoch, minimumDelinquentEpochs uint64, referenceVoteAccountIsActive bool) (AccountState, error) {
	if state.Tag != TagStake {
		return AccountState{}, stakeerrors.ErrNotDelegated
	}
	if state.Stake.Delegation.DeactivationEpoch != types.MaxEpoch {
		return AccountState{}, stakeerrors.ErrInvalidTransition
	}
	if clock.Epoch < lastDelinquentEpoch || clock.Epoch-lastDelinquentEpoch < minimumDelinquentEpochs {
		return AccountState{}, stakeerrors.ErrVoteAccountNotDelinquent
	}
	if !referenceVoteAccountIsActive {
		return AccountState{}, stakeerrors.ErrInsufficientReferenceVotes
	}
	return Deactivate(state, clock)
}

// SplitArithmetic computes the lamport balances each side of a Split
// instruction should end up with. sourceLamports is the source account's
// full current balance (which may exceed its delegated stake plus reserve).
// destinationLamports is the destination account's balance immediately
// before the split (it may already be partially funded by the runtime) and
// destinationRentReserve is the rent-exempt reserve it must hold once the
// split completes.
//
// It rejects splits that would leave a nonzero remaining delegation below
// minimumDelegation on either side, and splits that would let the
// destination account bypass the reserve/minimum-delegation floor by
// borrowing excess, undelegated lamports already sitting in the source
// account (the "magic activation" prevention): when the split drains the
// source entirely, the destination's new stake is reduced by the source's
// own rent-exempt reserve rather than the destination's, since none of the
// source's lamports beyond its reserve were ever "free".
func SplitArithmetic(
	source AccountState,
	splitLamports types.Lamports,
	sourceLamports types.Lamports,
	destinationLamports types.Lamports,
	destinationRentReserve types.Lamports,
	minimumDelegation types.Lamports,
) (remainingSource, destination AccountState, movedLamports types.Lamports, err error) {
	if source.Tag != TagInitialized && source.Tag != TagStake {
		return AccountState{}, AccountState{}, 0, stakeerrors.ErrInvalidTransition
	}
	if splitLamports > sourceLamports {
		return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientFunds
	}

	meta := *source.Meta
	remainingLamports := sourceLamports - splitLamports

	if source.Tag == TagInitialized {
		destMeta := meta
		destMeta.RentExemptReserve = destinationRentReserve
		return source, AccountState{Tag: TagInitialized, Meta: &destMeta}, splitLamports, nil
	}

	delegation := source.Stake.Delegation
	emptiesSource := remainingLamports == meta.RentExemptReserve

	var splitOffStake types.Lamports
	if emptiesSource {
		if splitLamports < meta.RentExemptReserve {
			return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientFunds
		}
		splitOffStake = splitLamports - meta.RentExemptReserve
	} else {
		gap := types.Lamports(0)
		if destinationRentReserve > destinationLamports {
			gap = destinationRentReserve - destinationLamports
		}
		if splitLamports < gap {
			return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientFunds
		}
		splitOffStake = splitLamports - gap
	}

	var remainingStakeAmount types.Lamports
	if emptiesSource {
		remainingStakeAmount = 0
	} else {
		if delegation.Stake < splitOffStake {
			return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientFunds
		}
		remainingStakeAmount = delegation.Stake - splitOffStake
		if remainingStakeAmount < minimumDelegation {
			return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientDelegation
		}
	}
	if splitOffStake < minimumDelegation && splitOffStake != delegation.Stake {
		return AccountState{}, AccountState{}, 0, stakeerrors.ErrInsufficientDelegation
	}

	remainingDelegation := delegation
	remainingDelegation.Stake = remainingStakeAmount
	remainingStake := *source.Stake
	remainingStake.Delegation = remainingDelegation

	destMeta := meta
	destMeta.RentExemptReserve = destinationRentReserve
	destDelegation := delegation
	destDelegation.Stake = splitOffStake
	destStake := Stake{Delegation: destDelegation, CreditsObserved: source.Stake.CreditsObserved}

	remaining := source
	remaining.Meta = &meta
	remaining.Stake = &remainingStake

	dest := AccountState{Tag: TagStake, Meta: &destMeta, Stake: &destStake, Flags: FlagsEmpty}

	return remaining, dest, splitLamports, nil
}

// WithdrawableLamports returns the maximum lamports that may leave the
// account right now: its full balance, minus whatever must remain to cover
// the rent-exempt reserve and any still-effective-or-activating delegation.
func WithdrawableLamports(state AccountState, balance types.Lamports, clock types.Clock, history types.StakeHistory, rates RateParams) (types.Lamports, error) {
	switch state.Tag {
	case TagUninitialized:
		return balance, nil
	case TagInitialized:
		if balance < state.Meta.RentExemptReserve {
			return 0, nil
		}
		return balance - state.Meta.RentExemptReserve, nil
	case TagStake:
		// The legacy withdraw path never consulted the activation-history
		// walk while a delegation's deactivation epoch had not yet arrived:
		// it held the entire delegation reserved, even if stake-history
		// dropout would make the formula report a lower effective amount.
		// Only once clock.Epoch has reached DeactivationEpoch does the
		// cooldown walk's effective figure govern the reserve.
		var staked types.Lamports
		if clock.Epoch < state.Stake.Delegation.DeactivationEpoch {
			staked = state.Stake.Delegation.Stake
		} else {
			status := activation.Evaluate(
				state.Stake.Delegation.Stake,
				state.Stake.Delegation.ActivationEpoch,
				state.Stake.Delegation.DeactivationEpoch,
				clock.Epoch,
				history,
				rates.OriginalRateBps, rates.CurrentRateBps, rates.NewRateActivationEpoch,
			)
			staked = status.Effective
		}
		reserved := state.Meta.RentExemptReserve + staked
		if balance < reserved {
			return 0, nil
		}
		return balance - reserved, nil
	default:
		return 0, stakeerrors.ErrInvalidTransition
	}
}

func metaOf(state AccountState) (*Meta, error) {
	switch state.Tag {
	case TagInitialized, TagStake:
		return state.Meta, nil
	case TagUninitialized:
		return nil, stakeerrors.ErrUninitializedAccount
	default:
		return nil, stakeerrors.ErrInvalidTransition
	}
}
