package processor

import (
	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/types"
)

// Account is the processor's view of one account passed to an instruction:
// enough of the runtime's account metadata to enforce signer/writable
// checks and to read or rewrite stake-account data, without this program
// depending on how the hosting runtime actually represents accounts.
type Account struct {
	Key        types.Address
	Owner      types.Address
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

// DelinquencyReport is supplied by the caller for DeactivateDelinquent,
// summarizing what the runtime's vote-account and epoch-credit history say
// about a voter without this program needing to parse vote-account data
// itself (vote-account layout belongs to the vote program, out of scope
// here).
type DelinquencyReport struct {
	// LastEpochWithCredits is the most recent epoch in which the voter
	// recorded any credits.
	LastEpochWithCredits types.Epoch
	// ReferenceVoteAccountIsActive attests that a second, known-good vote
	// account voted in every epoch of the delinquency window, satisfying
	// the reference vote account requirement of DeactivateDelinquent.
	ReferenceVoteAccountIsActive bool
}

// Invocation bundles everything Process needs to execute one instruction:
// the decoded instruction, the accounts it names in order, and the sysvar
// state the formulas in core/activation and core/stake consult.
type Invocation struct {
	ProgramID types.Address
	Data      []byte
	Accounts  []*Account

	Clock        types.Clock
	Rent         types.Rent
	StakeHistory types.StakeHistory
	EpochRewards types.EpochRewards

	Delinquency *DelinquencyReport
}

func (inv *Invocation) account(i int) (*Account, error) {
	if i >= len(inv.Accounts) {
		return nil, stakeerrors.ErrNotEnoughAccounts
	}
	return inv.Accounts[i], nil
}

func (a *Account) requireSigner() error {
	if !a.IsSigner {
		return stakeerrors.ErrAccountNotSigner
	}
	return nil
}

func (a *Account) requireWritable() error {
	if !a.IsWritable {
		return stakeerrors.ErrAccountNotWritable
	}
	return nil
}

func (a *Account) requireOwnedByProgram(programID types.Address) error {
	if a.Owner != programID {
		return stakeerrors.ErrOwnerMismatch
	}
	return nil
}
