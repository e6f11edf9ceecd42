// Package errors enumerates the failure modes of the stake account state
// machine and its instruction processor. Flat sentinels cover conditions
// that carry no extra context; richer types wrap a sentinel via Unwrap so
// callers can still use errors.Is while getting the offending values back
// out with errors.As.
package errors

import (
	"fmt"
	stderrors "errors"
)

var (
	// Codec / account-shape errors.
	ErrWrongLength    = stderrors.New("stake: account data is not the expected length")
	ErrInvalidTag     = stderrors.New("stake: account tag is not a recognized state")
	ErrInvalidAccountData = stderrors.New("stake: account data failed to decode")

	// State-machine invariant errors.
	ErrInvalidTransition   = stderrors.New("stake: transition not permitted from the current account state")
	ErrAlreadyInitialized  = stderrors.New("stake: account is already initialized")
	ErrUninitializedAccount = stderrors.New("stake: account has not been initialized")
	ErrNotDelegated        = stderrors.New("stake: account is not a delegated stake account")
	ErrTooSoonToRedelegate = stderrors.New("stake: stake has been active too recently to redelegate")
	ErrInsufficientDelegation = stderrors.New("stake: delegation is below the minimum stake delegation")
	ErrInsufficientFunds   = stderrors.New("stake: account balance is insufficient for the requested operation")
	ErrMergeMismatch       = stderrors.New("stake: accounts are not eligible to merge")
	ErrMergeTransientStake = stderrors.New("stake: one or both accounts are in a transient activation or deactivation state")
	ErrZeroAmount          = stderrors.New("stake: amount must be nonzero")

	// Authority errors.
	ErrMissingRequiredSignature = stderrors.New("stake: required signature missing")
	ErrLockupInForce            = stderrors.New("stake: lockup is in force")
	ErrCustodianSignatureMissing = stderrors.New("stake: custodian signature required")

	// Lockup and seed-derivation errors.
	ErrAddressMismatch   = stderrors.New("stake: derived address does not match the supplied account")
	ErrSeedTooLong       = stderrors.New("stake: seed exceeds the maximum length")

	// Instruction-decoding and account-shape errors.
	ErrUnknownInstruction = stderrors.New("stake: unrecognized instruction tag")
	ErrRetiredInstruction = stderrors.New("stake: instruction has been retired")
	ErrInvalidInstructionData = stderrors.New("stake: instruction payload failed to decode")
	ErrNotEnoughAccounts  = stderrors.New("stake: not enough accounts supplied for this instruction")
	ErrAccountNotWritable = stderrors.New("stake: account is not writable")
	ErrAccountNotSigner   = stderrors.New("stake: account did not sign the instruction")
	ErrOwnerMismatch      = stderrors.New("stake: account is not owned by the stake program")
	ErrSelfMove           = stderrors.New("stake: source and destination accounts must differ")
	ErrEpochRewardsActive = stderrors.New("stake: cluster is mid epoch-rewards distribution")
	ErrVoteAccountNotDelinquent = stderrors.New("stake: vote account is not delinquent for long enough")
	ErrInsufficientReferenceVotes = stderrors.New("stake: reference vote account did not vote in every recent epoch")
)

// WrongLengthError reports the exact account size mismatch that
// ErrWrongLength summarizes.
type WrongLengthError struct {
	Expected int
	Actual   int
}

func (e *WrongLengthError) Error() string {
	return fmt.Sprintf("stake: expected %d bytes of account data, got %d", e.Expected, e.Actual)
}

func (e *WrongLengthError) Unwrap() error { return ErrWrongLength }

// InvalidTagError reports an account tag word that does not correspond to
// any known StakeAccountState variant.
type InvalidTagError struct {
	Tag uint32
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("stake: tag %d is not a recognized account state", e.Tag)
}

func (e *InvalidTagError) Unwrap() error { return ErrInvalidTag }

// UnknownInstructionError reports the tag value that failed dispatch.
type UnknownInstructionError struct {
	Tag uint32
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("stake: instruction tag %d is not recognized", e.Tag)
}

func (e *UnknownInstructionError) Unwrap() error { return ErrUnknownInstruction }
