// Package processor dispatches decoded stake-program instructions to the
// state machine in core/stake after clearing the authority checks in
// core/authority, mirroring the teacher's big switch-statement transaction
// dispatcher but keyed on the stake program's own instruction tags rather
// than a chain-wide transaction type.
package processor

import (
	"log/slog"

	"nhbchain/config"
	"nhbchain/core/authority"
	"nhbchain/core/codec"
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/events"
	"nhbchain/core/stake"
	"nhbchain/core/types"
)

// Processor executes stake-program instructions against a configured
// cluster (its warmup/cooldown rates, minimum delegation and delinquency
// window) and reports structured events and metrics for each one.
type Processor struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *Metrics
	Emitter events.Emitter
}

// New constructs a Processor. A nil emitter is replaced with a no-op one so
// callers that do not care about events need not supply one.
func New(cfg *config.Config, logger *slog.Logger, metrics *Metrics, emitter events.Emitter) *Processor {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Config: cfg, Logger: logger, Metrics: metrics, Emitter: emitter}
}

func (p *Processor) rateParams() stake.RateParams {
	return stake.RateParams{
		OriginalRateBps:        p.Config.OriginalWarmupCooldownRateBps,
		CurrentRateBps:         p.Config.CurrentWarmupCooldownRateBps,
		NewRateActivationEpoch: p.Config.EffectiveNewRateActivationEpoch(),
	}
}

// Result carries the return-data channel value GetMinimumDelegation uses in
// place of a direct return value, matching the one instruction this program
// must answer without mutating any account.
type Result struct {
	ReturnData []byte
}

// Process decodes and executes one instruction against inv.
func (p *Processor) Process(inv *Invocation) (*Result, error) {
	instr, err := DecodeInstruction(inv.Data)
	if err != nil {
		p.observe("decode_error", err)
		return nil, err
	}

	if inv.EpochRewards.Active && instr.Tag != TagGetMinimumDelegation {
		p.observe(tagName(instr.Tag), stakeerrors.ErrEpochRewardsActive)
		return nil, stakeerrors.ErrEpochRewardsActive
	}

	result, err := p.dispatch(inv, instr)
	p.observe(tagName(instr.Tag), err)
	return result, err
}

func (p *Processor) dispatch(inv *Invocation, instr DecodedInstruction) (*Result, error) {
	switch instr.Tag {
	case TagInitialize:
		return nil, p.processInitialize(inv, instr, false)
	case TagInitializeChecked:
		return nil, p.processInitialize(inv, instr, true)
	case TagAuthorize:
		return nil, p.processAuthorize(inv, instr, false, false)
	case TagAuthorizeChecked:
		return nil, p.processAuthorize(inv, instr, true, false)
	case TagAuthorizeWithSeed:
		return nil, p.processAuthorize(inv, instr, false, true)
	case TagAuthorizeCheckedWithSeed:
		return nil, p.processAuthorize(inv, instr, true, true)
	case TagDelegateStake:
		return nil, p.processDelegateStake(inv)
	case TagSplit:
		return nil, p.processSplit(inv, instr)
	case TagWithdraw:
		return nil, p.processWithdraw(inv, instr)
	case TagDeactivate:
		return nil, p.processDeactivate(inv)
	case TagDeactivateDelinquent:
		return nil, p.processDeactivateDelinquent(inv)
	case TagSetLockup, TagSetLockupChecked:
		return nil, p.processSetLockup(inv, instr)
	case TagMerge:
		return nil, p.processMerge(inv)
	case TagMoveStake:
		return nil, p.processMoveStake(inv, instr)
	case TagMoveLamports:
		return nil, p.processMoveLamports(inv, instr)
	case TagGetMinimumDelegation:
		return p.processGetMinimumDelegation(), nil
	default:
		return nil, &stakeerrors.UnknownInstructionError{Tag: uint32(instr.Tag)}
	}
}

// processInitialize handles accounts[0]=stake account. For the checked
// variant, accounts[1] and accounts[2] are the staker and withdrawer, both
// of which must sign to prove they hold the corresponding keys.
func (p *Processor) processInitialize(inv *Invocation, instr DecodedInstruction, checked bool) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	if err := acct.requireOwnedByProgram(inv.ProgramID); err != nil {
		return err
	}

	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	if current.Tag != stake.TagUninitialized {
		return stakeerrors.ErrAlreadyInitialized
	}

	minBalance := inv.Rent.MinimumBalance(uint64(codec.Size))
	if acct.Lamports < minBalance {
		return stakeerrors.ErrInsufficientFunds
	}

	authorized := instr.Authorized
	lockup := instr.Lockup
	if checked {
		staker, err := inv.account(1)
		if err != nil {
			return err
		}
		withdrawer, err := inv.account(2)
		if err != nil {
			return err
		}
		if err := staker.requireSigner(); err != nil {
			return err
		}
		if err := withdrawer.requireSigner(); err != nil {
			return err
		}
		authorized = stake.Authorized{Staker: staker.Key, Withdrawer: withdrawer.Key}
		lockup = stake.Lockup{}
	}

	next := stake.Initialize(acct.Lamports, authorized, lockup)
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	p.Emitter.Emit(events.StakeInitialized{Account: acct.Key, Staker: authorized.Staker, Withdrawer: authorized.Withdrawer})
	return nil
}

// processAuthorize handles accounts[0]=stake account, accounts[1]=current
// authority (staker or withdrawer, depending on instr.AuthorizeType). The
// checked variants additionally require accounts[2]=new authority to sign;
// the withSeed variants replace accounts[1] with base+seed+owner proof.
func (p *Processor) processAuthorize(inv *Invocation, instr DecodedInstruction, checked, withSeed bool) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	if err := acct.requireOwnedByProgram(inv.ProgramID); err != nil {
		return err
	}

	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	meta, err := requireMeta(current)
	if err != nil {
		return err
	}

	authorityAcct, err := inv.account(1)
	if err != nil {
		return err
	}

	if withSeed {
		if err := authorityAcct.requireSigner(); err != nil {
			return err
		}
		var expected types.Address
		switch instr.AuthorizeType {
		case types.StakeAuthorizeStaker:
			expected = meta.Authorized.Staker
		default:
			expected = meta.Authorized.Withdrawer
		}
		if err := authority.VerifySeededAuthority(authority.NewSignerSet([]types.Address{authorityAcct.Key}), authorityAcct.Key, instr.AuthoritySeed, instr.AuthorityOwner, expected); err != nil {
			return err
		}
	} else {
		signers := authority.NewSignerSet(signerKeys(inv.Accounts))
		switch instr.AuthorizeType {
		case types.StakeAuthorizeStaker:
			if err := authority.ChangeStaker(signers, meta.Authorized); err != nil {
				return err
			}
		default:
			if err := authority.ChangeWithdrawer(signers, meta.Authorized, meta.Lockup, inv.Clock); err != nil {
				return err
			}
		}
	}

	newAuthority := instr.NewAuthority
	if checked {
		newAuthorityAcct, err := inv.account(2)
		if err != nil {
			return err
		}
		if err := newAuthorityAcct.requireSigner(); err != nil {
			return err
		}
		newAuthority = newAuthorityAcct.Key
	}

	old := meta.Authorized.Staker
	if instr.AuthorizeType == types.StakeAuthorizeWithdrawer {
		old = meta.Authorized.Withdrawer
	}

	next, err := stake.Authorize(current, instr.AuthorizeType, newAuthority)
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	p.Emitter.Emit(events.StakeAuthorized{Account: acct.Key, Role: instr.AuthorizeType, OldAuthority: old, NewAuthority: newAuthority})
	return nil
}

// processDelegateStake handles accounts[0]=stake account, accounts[1]=vote
// account (address only -- this program never interprets vote-account
// data).
func (p *Processor) processDelegateStake(inv *Invocation) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	voteAcct, err := inv.account(1)
	if err != nil {
		return err
	}

	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	meta, err := requireMeta(current)
	if err != nil {
		return err
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err := authority.CheckStaker(signers, meta.Authorized); err != nil {
		return err
	}

	next, err := stake.Delegate(current, voteAcct.Key, acct.Lamports, inv.Clock, p.Config.MinimumDelegationLamportsValue(), inv.StakeHistory, p.rateParams())
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	p.Emitter.Emit(events.StakeDelegated{Account: acct.Key, Voter: voteAcct.Key, Stake: acct.Lamports, ActivationEpoch: inv.Clock.Epoch})
	return nil
}

// processDeactivate handles accounts[0]=stake account, accounts[1]=staker
// authority.
func (p *Processor) processDeactivate(inv *Invocation) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	if current.Tag != stake.TagStake {
		return stakeerrors.ErrNotDelegated
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err := authority.CheckStaker(signers, current.Meta.Authorized); err != nil {
		return err
	}

	next, err := stake.Deactivate(current, inv.Clock)
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	p.Emitter.Emit(events.StakeDeactivated{Account: acct.Key, DeactivationEpoch: inv.Clock.Epoch})
	return nil
}

// processDeactivateDelinquent handles accounts[0]=stake account,
// accounts[1]=delegated vote account. No signature is required: delinquency
// is proven by inv.Delinquency rather than by authority.
func (p *Processor) processDeactivateDelinquent(inv *Invocation) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	voteAcct, err := inv.account(1)
	if err != nil {
		return err
	}
	if inv.Delinquency == nil {
		return stakeerrors.ErrVoteAccountNotDelinquent
	}

	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	if current.Tag != stake.TagStake || current.Stake.Delegation.Voter != voteAcct.Key {
		return stakeerrors.ErrNotDelegated
	}

	next, err := stake.DeactivateDelinquent(current, inv.Clock, inv.Delinquency.LastEpochWithCredits, p.Config.MinimumDelinquentEpochsForDeactivation, inv.Delinquency.ReferenceVoteAccountIsActive)
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	p.Emitter.Emit(events.StakeDeactivatedDelinquent{Account: acct.Key, Voter: voteAcct.Key})
	return nil
}

// processSetLockup handles accounts[0]=stake account. The checked variant
// additionally requires accounts[1]=new custodian to sign when a new
// custodian is supplied.
func (p *Processor) processSetLockup(inv *Invocation, instr DecodedInstruction) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}
	meta, err := requireMeta(current)
	if err != nil {
		return err
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err := authority.CheckSetLockup(signers, meta.Authorized, meta.Lockup, inv.Clock); err != nil {
		return err
	}

	args := instr.LockupArgs
	if instr.Tag == TagSetLockupChecked && args.Custodian == nil {
		if custodianAcct, err := inv.account(1); err == nil {
			if err := custodianAcct.requireSigner(); err != nil {
				return err
			}
			key := custodianAcct.Key
			args.Custodian = &key
		}
	}

	next, err := stake.SetLockup(current, args)
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(next)
	if err != nil {
		return err
	}
	copy(acct.Data, encoded)

	lockup := next.Meta.Lockup
	p.Emitter.Emit(events.StakeLockupSet{Account: acct.Key, UnixTimestamp: lockup.UnixTimestamp, Epoch: lockup.Epoch, Custodian: lockup.Custodian})
	return nil
}

// processSplit handles accounts[0]=source stake account, accounts[1]=
// destination account (already allocated by the caller, owned by this
// program, and either Uninitialized or matching source's tag).
func (p *Processor) processSplit(inv *Invocation, instr DecodedInstruction) error {
	source, err := inv.account(0)
	if err != nil {
		return err
	}
	dest, err := inv.account(1)
	if err != nil {
		return err
	}
	if err := source.requireWritable(); err != nil {
		return err
	}
	if err := dest.requireWritable(); err != nil {
		return err
	}
	if source.Key == dest.Key {
		return stakeerrors.ErrSelfMove
	}

	current, err := codec.Decode(source.Data)
	if err != nil {
		return err
	}
	meta, err := requireMeta(current)
	if err != nil {
		return err
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err := authority.CheckStaker(signers, meta.Authorized); err != nil {
		return err
	}

	destRentReserve := inv.Rent.MinimumBalance(uint64(codec.Size))

	remaining, destState, destLamports, err := stake.SplitArithmetic(current, instr.Lamports, source.Lamports, dest.Lamports, destRentReserve, p.Config.MinimumDelegationLamportsValue())
	if err != nil {
		return err
	}

	remainingEncoded, err := codec.Encode(remaining)
	if err != nil {
		return err
	}
	destEncoded, err := codec.Encode(destState)
	if err != nil {
		return err
	}

	copy(source.Data, remainingEncoded)
	copy(dest.Data, destEncoded)
	source.Lamports -= destLamports
	dest.Lamports += destLamports

	p.Emitter.Emit(events.StakeSplit{Source: source.Key, Destination: dest.Key, Lamports: destLamports})
	return nil
}

// processMerge handles accounts[0]=destination stake account,
// accounts[1]=source stake account (consumed: its lamports move to
// destination and it is left Uninitialized).
func (p *Processor) processMerge(inv *Invocation) error {
	dest, err := inv.account(0)
	if err != nil {
		return err
	}
	src, err := inv.account(1)
	if err != nil {
		return err
	}
	if err := dest.requireWritable(); err != nil {
		return err
	}
	if err := src.requireWritable(); err != nil {
		return err
	}
	if dest.Key == src.Key {
		return stakeerrors.ErrSelfMove
	}

	destState, err := codec.Decode(dest.Data)
	if err != nil {
		return err
	}
	srcState, err := codec.Decode(src.Data)
	if err != nil {
		return err
	}
	destMeta, err := requireMeta(destState)
	if err != nil {
		return err
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err := authority.CheckStaker(signers, destMeta.Authorized); err != nil {
		return err
	}

	merged, err := stake.Merge(destState, srcState, dest.Lamports, src.Lamports, inv.Clock, inv.StakeHistory, p.rateParams())
	if err != nil {
		return err
	}

	mergedEncoded, err := codec.Encode(merged)
	if err != nil {
		return err
	}
	copy(dest.Data, mergedEncoded)

	movedLamports := src.Lamports
	dest.Lamports += movedLamports
	src.Lamports = 0
	if err := codec.TransitionUninitialize(src.Data); err != nil {
		return err
	}

	p.Emitter.Emit(events.StakeMerged{Source: src.Key, Destination: dest.Key, Lamports: movedLamports})
	return nil
}

// processWithdraw handles accounts[0]=stake account, accounts[1]=recipient
// (an arbitrary, unconstrained account).
func (p *Processor) processWithdraw(inv *Invocation, instr DecodedInstruction) error {
	acct, err := inv.account(0)
	if err != nil {
		return err
	}
	recipient, err := inv.account(1)
	if err != nil {
		return err
	}
	if err := acct.requireWritable(); err != nil {
		return err
	}
	if err := recipient.requireWritable(); err != nil {
		return err
	}

	current, err := codec.Decode(acct.Data)
	if err != nil {
		return err
	}

	if current.Tag == stake.TagInitialized || current.Tag == stake.TagStake {
		signers := authority.NewSignerSet(signerKeys(inv.Accounts))
		if err := authority.CheckWithdrawWithLockup(signers, current.Meta.Authorized, current.Meta.Lockup, inv.Clock); err != nil {
			return err
		}
	} else {
		if err := acct.requireSigner(); err != nil {
			return err
		}
	}

	withdrawable, err := stake.WithdrawableLamports(current, acct.Lamports, inv.Clock, inv.StakeHistory, p.rateParams())
	if err != nil {
		return err
	}
	if instr.Lamports > withdrawable {
		return stakeerrors.ErrInsufficientFunds
	}

	acct.Lamports -= instr.Lamports
	recipient.Lamports += instr.Lamports
	if acct.Lamports == 0 {
		if err := codec.TransitionUninitialize(acct.Data); err != nil {
			return err
		}
	}

	p.Emitter.Emit(events.StakeWithdrawn{Account: acct.Key, Recipient: recipient.Key, Lamports: instr.Lamports})
	return nil
}

// processMoveStake and processMoveLamports share the validation the
// reference implementation factors into one helper: a nonzero amount,
// source != destination, both writable, both owned by this program, metas
// that are merge-compatible (equal authorities, and equal or both-expired
// lockups), and the staker authority on source signing.
func (p *Processor) moveSharedChecks(inv *Invocation, lamports uint64) (source, dest *Account, sourceState, destState stake.AccountState, err error) {
	if lamports == 0 {
		err = stakeerrors.ErrZeroAmount
		return
	}
	source, err = inv.account(0)
	if err != nil {
		return
	}
	dest, err = inv.account(1)
	if err != nil {
		return
	}
	if err = source.requireWritable(); err != nil {
		return
	}
	if err = dest.requireWritable(); err != nil {
		return
	}
	if source.Key == dest.Key {
		err = stakeerrors.ErrSelfMove
		return
	}
	if err = source.requireOwnedByProgram(inv.ProgramID); err != nil {
		return
	}
	if err = dest.requireOwnedByProgram(inv.ProgramID); err != nil {
		return
	}

	sourceState, err = codec.Decode(source.Data)
	if err != nil {
		return
	}
	destState, err = codec.Decode(dest.Data)
	if err != nil {
		return
	}
	sourceMeta, err2 := requireMeta(sourceState)
	if err2 != nil {
		err = err2
		return
	}
	destMeta, err2 := requireMeta(destState)
	if err2 != nil {
		err = err2
		return
	}
	if !stake.MetasCanMerge(*sourceMeta, *destMeta, inv.Clock) {
		err = stakeerrors.ErrMergeMismatch
		return
	}
	signers := authority.NewSignerSet(signerKeys(inv.Accounts))
	if err = authority.CheckStaker(signers, sourceMeta.Authorized); err != nil {
		return
	}
	return
}

func (p *Processor) processMoveStake(inv *Invocation, instr DecodedInstruction) error {
	source, dest, sourceState, destState, err := p.moveSharedChecks(inv, instr.Lamports)
	if err != nil {
		return err
	}
	if sourceState.Tag != stake.TagStake {
		return stakeerrors.ErrNotDelegated
	}

	rates := p.rateParams()
	status := evaluateDelegationStatus(sourceState.Stake.Delegation, inv.Clock, inv.StakeHistory, rates)
	if status.Activating != 0 || status.Deactivating != 0 {
		return stakeerrors.ErrMergeTransientStake
	}
	if instr.Lamports > status.Effective {
		return stakeerrors.ErrInsufficientFunds
	}

	switch destState.Tag {
	case stake.TagInitialized:
		if instr.Lamports < p.Config.MinimumDelegationLamportsValue() {
			return stakeerrors.ErrInsufficientDelegation
		}
		destState = stake.AccountState{
			Tag:  stake.TagStake,
			Meta: destState.Meta,
			Stake: &stake.Stake{
				Delegation: stake.Delegation{
					Voter:             sourceState.Stake.Delegation.Voter,
					ActivationEpoch:   sourceState.Stake.Delegation.ActivationEpoch,
					DeactivationEpoch: types.MaxEpoch,
				},
				CreditsObserved: sourceState.Stake.CreditsObserved,
			},
		}
	case stake.TagStake:
		if destState.Stake.Delegation.Voter != sourceState.Stake.Delegation.Voter {
			return stakeerrors.ErrMergeMismatch
		}
		destStatus := evaluateDelegationStatus(destState.Stake.Delegation, inv.Clock, inv.StakeHistory, rates)
		if destStatus.Activating != 0 || destStatus.Deactivating != 0 {
			return stakeerrors.ErrMergeTransientStake
		}
	default:
		return stakeerrors.ErrInvalidTransition
	}

	sourceState.Stake.Delegation.Stake -= instr.Lamports
	destState.Stake.Delegation.Stake += instr.Lamports
	sourceState.Flags = stake.FlagsEmpty
	destState.Flags = stake.FlagsEmpty

	if sourceState.Stake.Delegation.Stake == 0 {
		sourceState = stake.AccountState{Tag: stake.TagInitialized, Meta: sourceState.Meta}
	}

	sourceEncoded, err := codec.Encode(sourceState)
	if err != nil {
		return err
	}
	destEncoded, err := codec.Encode(destState)
	if err != nil {
		return err
	}
	copy(source.Data, sourceEncoded)
	copy(dest.Data, destEncoded)
	source.Lamports -= instr.Lamports
	dest.Lamports += instr.Lamports

	p.Emitter.Emit(events.StakeMovedStake{Source: source.Key, Destination: dest.Key, Lamports: instr.Lamports})
	return nil
}

func (p *Processor) processMoveLamports(inv *Invocation, instr DecodedInstruction) error {
	source, dest, sourceState, _, err := p.moveSharedChecks(inv, instr.Lamports)
	if err != nil {
		return err
	}

	withdrawable, err := stake.WithdrawableLamports(sourceState, source.Lamports, inv.Clock, inv.StakeHistory, p.rateParams())
	if err != nil {
		return err
	}
	if instr.Lamports > withdrawable {
		return stakeerrors.ErrInsufficientFunds
	}

	source.Lamports -= instr.Lamports
	dest.Lamports += instr.Lamports

	p.Emitter.Emit(events.StakeMovedLamports{Source: source.Key, Destination: dest.Key, Lamports: instr.Lamports})
	return nil
}

// processGetMinimumDelegation answers via the return-data channel rather
// than by mutating any account, matching the one read-only instruction in
// this program's set.
func (p *Processor) processGetMinimumDelegation() *Result {
	min := p.Config.MinimumDelegationLamportsValue()
	buf := make([]byte, 8)
	putUint64LE(buf, min)
	return &Result{ReturnData: buf}
}

func (p *Processor) observe(label string, err error) {
	if p.Metrics != nil {
		p.Metrics.ObserveInstruction(label, err == nil)
	}
	if err != nil {
		p.Logger.Warn("stake instruction rejected", "instruction", label, "error", err)
	} else {
		p.Logger.Debug("stake instruction applied", "instruction", label)
	}
}
