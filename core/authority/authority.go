// Package authority evaluates the signer and lockup rules that gate every
// stake-account mutation: who may sign as staker or withdrawer, when a
// lockup blocks a change outright, and how a seed-derived account proves its
// authority without a dedicated keypair. It operates on the data types in
// core/stake but holds no state-machine logic of its own; core/processor
// calls into this package before handing off to core/stake.
package authority

import (
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/stake"
	"nhbchain/core/types"
	"nhbchain/crypto"
)

// SignerSet is the set of addresses that signed the current instruction.
type SignerSet map[types.Address]struct{}

// NewSignerSet builds a SignerSet from the signer addresses on an
// instruction's account list.
func NewSignerSet(signers []types.Address) SignerSet {
	set := make(SignerSet, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	return set
}

func (s SignerSet) Contains(addr types.Address) bool {
	_, ok := s[addr]
	return ok
}

// CheckStaker verifies that the staker authority signed the instruction.
func CheckStaker(signers SignerSet, authorized stake.Authorized) error {
	if !signers.Contains(authorized.Staker) {
		return stakeerrors.ErrMissingRequiredSignature
	}
	return nil
}

// CheckWithdrawer verifies that the withdrawer authority signed the
// instruction.
func CheckWithdrawer(signers SignerSet, authorized stake.Authorized) error {
	if !signers.Contains(authorized.Withdrawer) {
		return stakeerrors.ErrMissingRequiredSignature
	}
	return nil
}

// ChangeStaker verifies that either the staker or the withdrawer authority
// signed: the withdrawer may rotate the staker role even without the
// staker's own signature, and the staker role carries no lockup protection.
func ChangeStaker(signers SignerSet, authorized stake.Authorized) error {
	if signers.Contains(authorized.Staker) || signers.Contains(authorized.Withdrawer) {
		return nil
	}
	return stakeerrors.ErrMissingRequiredSignature
}

// ChangeWithdrawer verifies that the current withdrawer authority signed,
// and additionally that the lockup custodian co-signed if the lockup is
// presently in force: reassigning the withdrawer is how a lockup would
// otherwise be bypassed.
func ChangeWithdrawer(signers SignerSet, authorized stake.Authorized, lockup stake.Lockup, clock types.Clock) error {
	if err := CheckWithdrawer(signers, authorized); err != nil {
		return err
	}
	if lockup.InForce(clock) && !signers.Contains(lockup.Custodian) {
		return stakeerrors.ErrLockupInForce
	}
	return nil
}

// CheckWithdrawWithLockup verifies both the withdrawer's signature and, if
// the lockup is in force, the custodian's signature -- the rule that governs
// Withdraw (which would otherwise move lamports out from under a lockup).
// Split and MoveLamports are gated by the staker signature instead.
func CheckWithdrawWithLockup(signers SignerSet, authorized stake.Authorized, lockup stake.Lockup, clock types.Clock) error {
	if err := CheckWithdrawer(signers, authorized); err != nil {
		return err
	}
	if lockup.InForce(clock) && !signers.Contains(lockup.Custodian) {
		return stakeerrors.ErrLockupInForce
	}
	return nil
}

// CheckSetLockup verifies the signer permitted to mutate a lockup: the
// custodian alone while the lockup is in force, otherwise the withdrawer.
func CheckSetLockup(signers SignerSet, authorized stake.Authorized, lockup stake.Lockup, clock types.Clock) error {
	if lockup.InForce(clock) {
		if !signers.Contains(lockup.Custodian) {
			return stakeerrors.ErrCustodianSignatureMissing
		}
		return nil
	}
	return CheckWithdrawer(signers, authorized)
}

// VerifySeededAuthority re-derives base+seed+owner and requires the result
// to equal expected, and requires base itself to have signed. This is how
// AuthorizeWithSeed and AuthorizeCheckedWithSeed prove authority for
// accounts that were never given a dedicated keypair.
func VerifySeededAuthority(signers SignerSet, base types.Address, seed string, owner types.Address, expected types.Address) error {
	if !signers.Contains(base) {
		return stakeerrors.ErrMissingRequiredSignature
	}
	derived, err := crypto.DeriveWithSeed(base, seed, owner)
	if err != nil {
		return err
	}
	if derived != expected {
		return stakeerrors.ErrAddressMismatch
	}
	return nil
}
