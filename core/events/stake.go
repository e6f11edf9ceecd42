package events

import (
	"nhbchain/core/types"
	"nhbchain/crypto"
)

const (
	TypeStakeInitialized           = "stake.initialized"
	TypeStakeAuthorized            = "stake.authorized"
	TypeStakeDelegated             = "stake.delegated"
	TypeStakeDeactivated           = "stake.deactivated"
	TypeStakeSplit                 = "stake.split"
	TypeStakeMerged                = "stake.merged"
	TypeStakeWithdrawn             = "stake.withdrawn"
	TypeStakeLockupSet             = "stake.lockup_set"
	TypeStakeMovedStake            = "stake.moved_stake"
	TypeStakeMovedLamports         = "stake.moved_lamports"
	TypeStakeDeactivatedDelinquent = "stake.deactivated_delinquent"
)

// StakeInitialized fires when Initialize sets up a fresh stake account.
type StakeInitialized struct {
	Account    crypto.Address
	Staker     crypto.Address
	Withdrawer crypto.Address
}

func (StakeInitialized) EventType() string { return TypeStakeInitialized }

func (e StakeInitialized) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeInitialized,
		Attributes: map[string]string{
			"account":    formatAddress(e.Account),
			"staker":     formatAddress(e.Staker),
			"withdrawer": formatAddress(e.Withdrawer),
		},
	}
}

// StakeAuthorized fires when Authorize or AuthorizeWithSeed reassigns the
// staker or withdrawer role.
type StakeAuthorized struct {
	Account      crypto.Address
	Role         types.StakeAuthorize
	OldAuthority crypto.Address
	NewAuthority crypto.Address
}

func (StakeAuthorized) EventType() string { return TypeStakeAuthorized }

func (e StakeAuthorized) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeAuthorized,
		Attributes: map[string]string{
			"account":       formatAddress(e.Account),
			"role":          e.Role.String(),
			"old_authority": formatAddress(e.OldAuthority),
			"new_authority": formatAddress(e.NewAuthority),
		},
	}
}

// StakeDelegated fires when DelegateStake (re)delegates an account to a vote
// account.
type StakeDelegated struct {
	Account         crypto.Address
	Voter           crypto.Address
	Stake           uint64
	ActivationEpoch uint64
}

func (StakeDelegated) EventType() string { return TypeStakeDelegated }

func (e StakeDelegated) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeDelegated,
		Attributes: map[string]string{
			"account":          formatAddress(e.Account),
			"voter":            formatAddress(e.Voter),
			"stake":            formatLamports(e.Stake),
			"activation_epoch": formatEpoch(e.ActivationEpoch),
		},
	}
}

// StakeDeactivated fires when Deactivate schedules a delegation to cool down.
type StakeDeactivated struct {
	Account           crypto.Address
	DeactivationEpoch uint64
}

func (StakeDeactivated) EventType() string { return TypeStakeDeactivated }

func (e StakeDeactivated) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeDeactivated,
		Attributes: map[string]string{
			"account":            formatAddress(e.Account),
			"deactivation_epoch": formatEpoch(e.DeactivationEpoch),
		},
	}
}

// StakeSplit fires when Split moves a portion of a delegation into a fresh
// account.
type StakeSplit struct {
	Source      crypto.Address
	Destination crypto.Address
	Lamports    uint64
}

func (StakeSplit) EventType() string { return TypeStakeSplit }

func (e StakeSplit) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeSplit,
		Attributes: map[string]string{
			"source":      formatAddress(e.Source),
			"destination": formatAddress(e.Destination),
			"lamports":    formatLamports(e.Lamports),
		},
	}
}

// StakeMerged fires when Merge folds a source account's lamports and
// delegation into a destination account.
type StakeMerged struct {
	Source      crypto.Address
	Destination crypto.Address
	Lamports    uint64
}

func (StakeMerged) EventType() string { return TypeStakeMerged }

func (e StakeMerged) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeMerged,
		Attributes: map[string]string{
			"source":      formatAddress(e.Source),
			"destination": formatAddress(e.Destination),
			"lamports":    formatLamports(e.Lamports),
		},
	}
}

// StakeWithdrawn fires when Withdraw moves lamports out of a stake account to
// an unconstrained recipient.
type StakeWithdrawn struct {
	Account   crypto.Address
	Recipient crypto.Address
	Lamports  uint64
}

func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

func (e StakeWithdrawn) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeWithdrawn,
		Attributes: map[string]string{
			"account":   formatAddress(e.Account),
			"recipient": formatAddress(e.Recipient),
			"lamports":  formatLamports(e.Lamports),
		},
	}
}

// StakeLockupSet fires when SetLockup changes any lockup field.
type StakeLockupSet struct {
	Account       crypto.Address
	UnixTimestamp int64
	Epoch         uint64
	Custodian     crypto.Address
}

func (StakeLockupSet) EventType() string { return TypeStakeLockupSet }

func (e StakeLockupSet) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeLockupSet,
		Attributes: map[string]string{
			"account":        formatAddress(e.Account),
			"unix_timestamp": formatEpoch(uint64(e.UnixTimestamp)),
			"epoch":          formatEpoch(e.Epoch),
			"custodian":      formatAddress(e.Custodian),
		},
	}
}

// StakeMovedStake fires when MoveStake relocates fully active stake to a
// delegation to the same voter or to an Initialized account.
type StakeMovedStake struct {
	Source      crypto.Address
	Destination crypto.Address
	Lamports    uint64
}

func (StakeMovedStake) EventType() string { return TypeStakeMovedStake }

func (e StakeMovedStake) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeMovedStake,
		Attributes: map[string]string{
			"source":      formatAddress(e.Source),
			"destination": formatAddress(e.Destination),
			"lamports":    formatLamports(e.Lamports),
		},
	}
}

// StakeMovedLamports fires when MoveLamports relocates excess, undelegated
// lamports between two stake accounts under common authority.
type StakeMovedLamports struct {
	Source      crypto.Address
	Destination crypto.Address
	Lamports    uint64
}

func (StakeMovedLamports) EventType() string { return TypeStakeMovedLamports }

func (e StakeMovedLamports) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeMovedLamports,
		Attributes: map[string]string{
			"source":      formatAddress(e.Source),
			"destination": formatAddress(e.Destination),
			"lamports":    formatLamports(e.Lamports),
		},
	}
}

// StakeDeactivatedDelinquent fires when DeactivateDelinquent force-deactivates
// a delegation to a persistently delinquent vote account.
type StakeDeactivatedDelinquent struct {
	Account crypto.Address
	Voter   crypto.Address
}

func (StakeDeactivatedDelinquent) EventType() string { return TypeStakeDeactivatedDelinquent }

func (e StakeDeactivatedDelinquent) Event() *types.Event {
	return &types.Event{
		ID:   newEventID(),
		Type: TypeStakeDeactivatedDelinquent,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"voter":   formatAddress(e.Voter),
		},
	}
}
