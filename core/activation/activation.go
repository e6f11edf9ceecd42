// Package activation implements the rate-limited stake activation and
// deactivation arithmetic: the epoch-by-epoch walk that caps how much of a
// delegation's stake can join or leave the effective set in any one epoch,
// bounded by a basis-points share of the cluster's total activating or
// deactivating stake that epoch.
//
// The reference implementation this is distilled from performs this
// computation in 64-bit floating point. That is a source of
// platform-dependent rounding in a consensus-critical computation, so this
// package instead works entirely in checked u128 arithmetic via
// github.com/holiman/uint256, matching the "account_portion *
// cluster_effective * rate_bps / (cluster_portion * 10000)" formulation bit
// for bit on every platform.
package activation

import (
	"nhbchain/core/types"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator is the scale of all *_bps constants below.
const BasisPointsDenominator = 10000

// RateBps returns the warmup/cooldown rate, in basis points, effective at
// the given epoch.
func RateBps(epoch types.Epoch, originalRateBps, currentRateBps uint64, newRateActivationEpoch *types.Epoch) uint64 {
	if newRateActivationEpoch != nil && epoch >= *newRateActivationEpoch {
		return currentRateBps
	}
	return originalRateBps
}

// rateLimitedChange computes how much of accountPortion may move from
// activating/deactivating into the effective set this epoch, given that the
// whole cluster has clusterPortion units contending for a clusterEffective-
// sized share of bandwidth at the given rate. If any of accountPortion,
// clusterPortion or clusterEffective is zero, the result is zero; otherwise
// it saturates at accountPortion.
func rateLimitedChange(accountPortion, clusterPortion, clusterEffective, rateBps uint64) uint64 {
	if accountPortion == 0 || clusterPortion == 0 || clusterEffective == 0 {
		return 0
	}

	numerator := new(uint256.Int).SetUint64(accountPortion)
	numerator.Mul(numerator, new(uint256.Int).SetUint64(clusterEffective))
	numerator.Mul(numerator, new(uint256.Int).SetUint64(rateBps))

	denominator := new(uint256.Int).SetUint64(clusterPortion)
	denominator.Mul(denominator, uint256.NewInt(BasisPointsDenominator))

	if denominator.IsZero() {
		return 0
	}

	quotient := new(uint256.Int).Div(numerator, denominator)
	if quotient.Gt(new(uint256.Int).SetUint64(accountPortion)) {
		return accountPortion
	}
	return quotient.Uint64()
}

// Status reports the effective, activating and deactivating lamports of a
// delegation as of targetEpoch.
type Status struct {
	Effective    types.Lamports
	Activating   types.Lamports
	Deactivating types.Lamports
}

// Evaluate walks stake history from a delegation's activation epoch (and, if
// applicable, its deactivation epoch) up to targetEpoch and returns the
// resulting activation status. It bounds the walk at the earlier of
// targetEpoch and the first epoch missing from history, matching the "stop
// at unknown history" edge case: an account can never be considered more
// active than the history the program has actually observed.
func Evaluate(
	stakeAmount types.Lamports,
	activationEpoch types.Epoch,
	deactivationEpoch types.Epoch,
	targetEpoch types.Epoch,
	history types.StakeHistory,
	originalRateBps, currentRateBps uint64,
	newRateActivationEpoch *types.Epoch,
) Status {
	if activationEpoch == deactivationEpoch && activationEpoch != types.MaxEpoch {
		// Activated and deactivated in the same epoch: the delegation never
		// had a chance to become effective, at any target epoch.
		return Status{}
	}
	if activationEpoch == types.MaxEpoch {
		// Bootstrap delegation: always fully effective, never activating.
		if deactivationEpoch == types.MaxEpoch || targetEpoch < deactivationEpoch {
			return Status{Effective: stakeAmount}
		}
		if targetEpoch == deactivationEpoch {
			return Status{Effective: stakeAmount, Deactivating: stakeAmount}
		}
		effective := walkDeactivating(stakeAmount, deactivationEpoch, targetEpoch, history, originalRateBps, currentRateBps, newRateActivationEpoch)
		return Status{Effective: effective, Deactivating: effective}
	}

	if targetEpoch < activationEpoch {
		return Status{}
	}

	effective, activating := walkActivating(stakeAmount, activationEpoch, targetEpoch, history, originalRateBps, currentRateBps, newRateActivationEpoch)

	switch {
	case deactivationEpoch == types.MaxEpoch:
		return Status{Effective: effective, Activating: activating}
	case targetEpoch < deactivationEpoch:
		return Status{Effective: effective, Activating: activating}
	case targetEpoch == deactivationEpoch:
		// Fully effective as of the start of the deactivation epoch; none of
		// it has had a chance to deactivate yet, and all of it is deactivating.
		return Status{Effective: effective, Deactivating: effective}
	default:
		// Whatever is still effective after the cooldown walk is the amount
		// still deactivating; a fully cooled-down delegation reports all zero.
		finalEffective := walkDeactivating(effective, deactivationEpoch, targetEpoch, history, originalRateBps, currentRateBps, newRateActivationEpoch)
		return Status{Effective: finalEffective, Deactivating: finalEffective}
	}
}

func walkActivating(
	stakeAmount types.Lamports,
	activationEpoch types.Epoch,
	targetEpoch types.Epoch,
	history types.StakeHistory,
	originalRateBps, currentRateBps uint64,
	newRateActivationEpoch *types.Epoch,
) (effective, activating types.Lamports) {
	effective = 0
	activating = stakeAmount
	epoch := activationEpoch

	for epoch < targetEpoch && activating > 0 {
		entry, ok := history.Get(epoch)
		if !ok {
			break
		}
		rate := RateBps(epoch, originalRateBps, currentRateBps, newRateActivationEpoch)
		newlyEffective := rateLimitedChange(activating, entry.Activating, entry.Effective, rate)
		if newlyEffective > activating {
			newlyEffective = activating
		}
		effective += newlyEffective
		activating -= newlyEffective
		epoch++
	}
	return effective, activating
}

func walkDeactivating(
	stakeAmount types.Lamports,
	deactivationEpoch types.Epoch,
	targetEpoch types.Epoch,
	history types.StakeHistory,
	originalRateBps, currentRateBps uint64,
	newRateActivationEpoch *types.Epoch,
) (effective types.Lamports) {
	// Unlike a mid-walk history gap (which just halts further progress at
	// whatever has deactivated so far), a missing entry at the very start of
	// the cooldown means the program never observed the cluster state the
	// deactivation began under: treat the delegation as fully deactivated
	// rather than assume it is still entirely staked.
	if _, ok := history.Get(deactivationEpoch); !ok {
		return 0
	}

	effective = stakeAmount
	epoch := deactivationEpoch

	for epoch < targetEpoch && effective > 0 {
		entry, ok := history.Get(epoch)
		if !ok {
			break
		}
		rate := RateBps(epoch, originalRateBps, currentRateBps, newRateActivationEpoch)
		newlyNotEffective := rateLimitedChange(effective, entry.Deactivating, entry.Effective, rate)
		if newlyNotEffective > effective {
			newlyNotEffective = effective
		}
		effective -= newlyNotEffective
		epoch++
	}
	return effective
}
