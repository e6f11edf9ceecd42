package types

import "nhbchain/crypto"

// Address aliases the crypto package's 32-byte account key so that core
// packages need not import crypto directly.
type Address = crypto.Address

// Epoch identifies a cluster epoch. Epochs only move forward.
type Epoch = uint64

// Lamports is the smallest unit of stake, matching the wire format's use of
// unsigned 64-bit integers for all balances.
type Lamports = uint64

// UnixTimestamp is a signed POSIX time, matching Lockup.UnixTimestamp's
// ability to represent times before 1970 in the wire format even though no
// real cluster produces one.
type UnixTimestamp = int64

// MaxEpoch is the sentinel meaning "never", used for DeactivationEpoch on a
// delegation that has not been deactivated and for ActivationEpoch on a
// delegation bootstrapped at genesis.
const MaxEpoch Epoch = ^uint64(0)

// StakeAuthorize selects which of a Meta's two signing roles an Authorize,
// AuthorizeChecked or *WithSeed instruction is addressing.
type StakeAuthorize uint32

const (
	StakeAuthorizeStaker StakeAuthorize = iota
	StakeAuthorizeWithdrawer
)

func (s StakeAuthorize) String() string {
	if s == StakeAuthorizeWithdrawer {
		return "withdrawer"
	}
	return "staker"
}

// LockupArgs carries the optional fields of a SetLockup instruction; a nil
// pointer means "leave this field unchanged".
type LockupArgs struct {
	UnixTimestamp *UnixTimestamp
	Epoch         *Epoch
	Custodian     *Address
}

// AuthorizeWithSeedArgs carries the arguments of AuthorizeWithSeed /
// AuthorizeCheckedWithSeed: the new authority is proven not by a direct
// signature but by re-deriving base+seed+owner and requiring base to sign.
type AuthorizeWithSeedArgs struct {
	NewAuthorized  Address
	AuthorizeType  StakeAuthorize
	AuthoritySeed  string
	AuthorityOwner Address
}
