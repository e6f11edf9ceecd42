package processor

import (
	"encoding/binary"

	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/stake"
	"nhbchain/core/types"
	"nhbchain/crypto"
)

// Tag identifies a stake-program instruction. Values match the positional
// enum this program's instruction set is distilled from, including the
// gap at 15 left by a retired instruction this program deliberately never
// re-uses.
type Tag uint32

const (
	TagInitialize               Tag = 0
	TagAuthorize                Tag = 1
	TagDelegateStake            Tag = 2
	TagSplit                    Tag = 3
	TagWithdraw                 Tag = 4
	TagDeactivate               Tag = 5
	TagSetLockup                Tag = 6
	TagMerge                    Tag = 7
	TagAuthorizeWithSeed        Tag = 8
	TagInitializeChecked        Tag = 9
	TagAuthorizeChecked         Tag = 10
	TagAuthorizeCheckedWithSeed Tag = 11
	TagSetLockupChecked         Tag = 12
	TagGetMinimumDelegation     Tag = 13
	TagDeactivateDelinquent     Tag = 14
	tagRetired                  Tag = 15
	TagMoveStake                Tag = 16
	TagMoveLamports             Tag = 17
)

// reader decodes the bincode-compatible argument encoding used by every
// instruction payload after its leading 4-byte tag: fixed-width integers in
// little-endian order, Option<T> as a one-byte discriminant followed by T
// when present, and String as a u64 length prefix followed by UTF-8 bytes.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, stakeerrors.ErrInvalidInstructionData
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) address() (types.Address, error) {
	b, err := r.bytes(crypto.AddressSize)
	if err != nil {
		return types.Address{}, err
	}
	return crypto.NewAddress(crypto.NHBPrefix, b)
}

func (r *reader) optionAddress() (*types.Address, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	a, err := r.address()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *reader) optionI64() (*int64, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := r.i64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reader) optionU64() (*uint64, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := r.u64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reader) string() (string, error) {
	n, err := r.u64()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// seed reads a length-prefixed string and enforces the 32-byte bound
// crypto.DeriveWithSeed itself applies, so an oversized seed is rejected at
// decode time rather than surfacing as a derivation failure later.
func (r *reader) seed() (string, error) {
	s, err := r.string()
	if err != nil {
		return "", err
	}
	if len(s) > 32 {
		return "", stakeerrors.ErrSeedTooLong
	}
	return s, nil
}

func (r *reader) authorizeType() (types.StakeAuthorize, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	if v > uint32(types.StakeAuthorizeWithdrawer) {
		return 0, stakeerrors.ErrInvalidInstructionData
	}
	return types.StakeAuthorize(v), nil
}

// DecodedInstruction is the parsed form of an instruction's data payload:
// the tag plus whichever argument fields that tag defines.
type DecodedInstruction struct {
	Tag Tag

	// Initialize
	Authorized stake.Authorized
	Lockup     stake.Lockup

	// Authorize / AuthorizeChecked (and their WithSeed variants)
	AuthorizeType types.StakeAuthorize
	NewAuthority  types.Address

	// AuthorizeWithSeed / AuthorizeCheckedWithSeed
	AuthoritySeed  string
	AuthorityOwner types.Address

	// Split / Withdraw / MoveStake / MoveLamports
	Lamports uint64

	// SetLockup / SetLockupChecked
	LockupArgs types.LockupArgs
}

// DecodeInstruction parses a raw instruction payload: a 4-byte little-endian
// tag followed by the bincode-encoded arguments for that tag.
func DecodeInstruction(data []byte) (DecodedInstruction, error) {
	r := &reader{buf: data}
	rawTag, err := r.u32()
	if err != nil {
		return DecodedInstruction{}, stakeerrors.ErrInvalidInstructionData
	}
	tag := Tag(rawTag)

	out := DecodedInstruction{Tag: tag}
	switch tag {
	case TagInitialize, TagInitializeChecked:
		if tag == TagInitialize {
			staker, err := r.address()
			if err != nil {
				return out, err
			}
			withdrawer, err := r.address()
			if err != nil {
				return out, err
			}
			unixTs, err := r.i64()
			if err != nil {
				return out, err
			}
			epoch, err := r.u64()
			if err != nil {
				return out, err
			}
			custodian, err := r.address()
			if err != nil {
				return out, err
			}
			out.Authorized = stake.Authorized{Staker: staker, Withdrawer: withdrawer}
			out.Lockup = stake.Lockup{UnixTimestamp: unixTs, Epoch: epoch, Custodian: custodian}
		}
		// InitializeChecked takes its authorities from the account list
		// (staker and withdrawer must both sign), so it carries no payload
		// beyond the tag.

	case TagAuthorize:
		newAuthority, err := r.address()
		if err != nil {
			return out, err
		}
		authType, err := r.authorizeType()
		if err != nil {
			return out, err
		}
		out.NewAuthority = newAuthority
		out.AuthorizeType = authType

	case TagAuthorizeChecked:
		authType, err := r.authorizeType()
		if err != nil {
			return out, err
		}
		out.AuthorizeType = authType
		// The new authority must sign directly; it is read from the account
		// list rather than the payload.

	case TagAuthorizeWithSeed:
		newAuthority, err := r.address()
		if err != nil {
			return out, err
		}
		authType, err := r.authorizeType()
		if err != nil {
			return out, err
		}
		seed, err := r.seed()
		if err != nil {
			return out, err
		}
		owner, err := r.address()
		if err != nil {
			return out, err
		}
		out.NewAuthority = newAuthority
		out.AuthorizeType = authType
		out.AuthoritySeed = seed
		out.AuthorityOwner = owner

	case TagAuthorizeCheckedWithSeed:
		authType, err := r.authorizeType()
		if err != nil {
			return out, err
		}
		seed, err := r.seed()
		if err != nil {
			return out, err
		}
		owner, err := r.address()
		if err != nil {
			return out, err
		}
		out.AuthorizeType = authType
		out.AuthoritySeed = seed
		out.AuthorityOwner = owner

	case TagSetLockup, TagSetLockupChecked:
		unixTs, err := r.optionI64()
		if err != nil {
			return out, err
		}
		epoch, err := r.optionU64()
		if err != nil {
			return out, err
		}
		out.LockupArgs.UnixTimestamp = unixTs
		out.LockupArgs.Epoch = epoch
		if tag == TagSetLockup {
			custodian, err := r.optionAddress()
			if err != nil {
				return out, err
			}
			out.LockupArgs.Custodian = custodian
		}
		// SetLockupChecked takes its new custodian, if any, from a signing
		// account rather than the payload.

	case TagSplit, TagWithdraw, TagMoveStake, TagMoveLamports:
		lamports, err := r.u64()
		if err != nil {
			return out, err
		}
		out.Lamports = lamports

	case TagDelegateStake, TagDeactivate, TagMerge, TagGetMinimumDelegation, TagDeactivateDelinquent:
		// No payload beyond the tag.

	case tagRetired:
		return out, stakeerrors.ErrRetiredInstruction

	default:
		return out, &stakeerrors.UnknownInstructionError{Tag: rawTag}
	}

	return out, nil
}
