package processor

import (
	"encoding/binary"

	"nhbchain/core/activation"
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/stake"
	"nhbchain/core/types"
)

func requireMeta(state stake.AccountState) (*stake.Meta, error) {
	switch state.Tag {
	case stake.TagInitialized, stake.TagStake:
		return state.Meta, nil
	case stake.TagUninitialized:
		return nil, stakeerrors.ErrUninitializedAccount
	default:
		return nil, stakeerrors.ErrInvalidTransition
	}
}

func signerKeys(accounts []*Account) []types.Address {
	keys := make([]types.Address, 0, len(accounts))
	for _, a := range accounts {
		if a.IsSigner {
			keys = append(keys, a.Key)
		}
	}
	return keys
}

func evaluateDelegationStatus(d stake.Delegation, clock types.Clock, history types.StakeHistory, rates stake.RateParams) activation.Status {
	return activation.Evaluate(d.Stake, d.ActivationEpoch, d.DeactivationEpoch, clock.Epoch, history, rates.OriginalRateBps, rates.CurrentRateBps, rates.NewRateActivationEpoch)
}

func putUint64LE(dst []byte, v uint64) {
	binary.LittleEndian.PutUint64(dst, v)
}

func tagName(tag Tag) string {
	switch tag {
	case TagInitialize:
		return "initialize"
	case TagAuthorize:
		return "authorize"
	case TagDelegateStake:
		return "delegate_stake"
	case TagSplit:
		return "split"
	case TagWithdraw:
		return "withdraw"
	case TagDeactivate:
		return "deactivate"
	case TagSetLockup:
		return "set_lockup"
	case TagMerge:
		return "merge"
	case TagAuthorizeWithSeed:
		return "authorize_with_seed"
	case TagInitializeChecked:
		return "initialize_checked"
	case TagAuthorizeChecked:
		return "authorize_checked"
	case TagAuthorizeCheckedWithSeed:
		return "authorize_checked_with_seed"
	case TagSetLockupChecked:
		return "set_lockup_checked"
	case TagGetMinimumDelegation:
		return "get_minimum_delegation"
	case TagDeactivateDelinquent:
		return "deactivate_delinquent"
	case TagMoveStake:
		return "move_stake"
	case TagMoveLamports:
		return "move_lamports"
	default:
		return "unknown"
	}
}
