package codec

import (
	"encoding/binary"

	stakeerrors "nhbchain/core/errors"
	"nhbchain/core/stake"
	"nhbchain/core/types"
	"nhbchain/crypto"
)

// Decode parses exactly Size bytes of account data into a stake.AccountState.
// It returns ErrWrongLength if data is not exactly Size bytes and
// ErrInvalidTag if the tag word does not match a known variant. RewardsPool
// accounts decode successfully but carry no Meta/Stake: this program never
// constructs one and treats it as an opaque legacy singleton.
func Decode(data []byte) (stake.AccountState, error) {
	if len(data) != Size {
		return stake.AccountState{}, &stakeerrors.WrongLengthError{Expected: Size, Actual: len(data)}
	}

	tag := binary.LittleEndian.Uint32(data[tagOffset : tagOffset+tagSize])

	var padding [3]byte
	copy(padding[:], data[paddingOffset:paddingOffset+paddingSize])

	switch tag {
	case tagUninitialized:
		return stake.AccountState{Tag: stake.TagUninitialized, Padding: padding}, nil
	case tagRewardsPool:
		return stake.AccountState{Tag: stake.TagRewardsPool, Padding: padding}, nil
	case tagInitialized:
		meta := decodeMeta(data[metaOffset : metaOffset+metaSize])
		return stake.AccountState{Tag: stake.TagInitialized, Meta: &meta, Padding: padding}, nil
	case tagStake:
		meta := decodeMeta(data[metaOffset : metaOffset+metaSize])
		stakeInfo := decodeStake(data[stakeOffset : stakeOffset+stakeSize])
		flags := stake.Flags(data[flagsOffset])
		return stake.AccountState{Tag: stake.TagStake, Meta: &meta, Stake: &stakeInfo, Flags: flags, Padding: padding}, nil
	default:
		return stake.AccountState{}, &stakeerrors.InvalidTagError{Tag: tag}
	}
}

// Encode serializes state into exactly Size bytes, preserving state.Padding
// verbatim in the trailing reserved region.
func Encode(state stake.AccountState) ([]byte, error) {
	buf := make([]byte, Size)

	switch state.Tag {
	case stake.TagUninitialized:
		binary.LittleEndian.PutUint32(buf[tagOffset:], tagUninitialized)
	case stake.TagRewardsPool:
		binary.LittleEndian.PutUint32(buf[tagOffset:], tagRewardsPool)
	case stake.TagInitialized:
		if state.Meta == nil {
			return nil, stakeerrors.ErrInvalidAccountData
		}
		binary.LittleEndian.PutUint32(buf[tagOffset:], tagInitialized)
		encodeMeta(buf[metaOffset:metaOffset+metaSize], *state.Meta)
	case stake.TagStake:
		if state.Meta == nil || state.Stake == nil {
			return nil, stakeerrors.ErrInvalidAccountData
		}
		binary.LittleEndian.PutUint32(buf[tagOffset:], tagStake)
		encodeMeta(buf[metaOffset:metaOffset+metaSize], *state.Meta)
		encodeStake(buf[stakeOffset:stakeOffset+stakeSize], *state.Stake)
		buf[flagsOffset] = byte(state.Flags)
	default:
		return nil, &stakeerrors.InvalidTagError{Tag: uint32(state.Tag)}
	}

	copy(buf[paddingOffset:paddingOffset+paddingSize], state.Padding[:])
	return buf, nil
}

// TransitionUninitialize zeroes buf to the Uninitialized tag, used when
// Withdraw drains an account to exactly zero lamports.
func TransitionUninitialize(buf []byte) error {
	if len(buf) != Size {
		return &stakeerrors.WrongLengthError{Expected: Size, Actual: len(buf)}
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func decodeAddress(b []byte) types.Address {
	return crypto.MustNewAddress(crypto.NHBPrefix, b)
}

func encodeAddress(dst []byte, a types.Address) {
	copy(dst, a.Bytes())
}

func decodeMeta(b []byte) stake.Meta {
	var m stake.Meta
	m.RentExemptReserve = binary.LittleEndian.Uint64(b[0:8])
	m.Authorized.Staker = decodeAddress(b[8:40])
	m.Authorized.Withdrawer = decodeAddress(b[40:72])
	m.Lockup.UnixTimestamp = int64(binary.LittleEndian.Uint64(b[72:80]))
	m.Lockup.Epoch = binary.LittleEndian.Uint64(b[80:88])
	m.Lockup.Custodian = decodeAddress(b[88:120])
	return m
}

func encodeMeta(dst []byte, m stake.Meta) {
	binary.LittleEndian.PutUint64(dst[0:8], m.RentExemptReserve)
	encodeAddress(dst[8:40], m.Authorized.Staker)
	encodeAddress(dst[40:72], m.Authorized.Withdrawer)
	binary.LittleEndian.PutUint64(dst[72:80], uint64(m.Lockup.UnixTimestamp))
	binary.LittleEndian.PutUint64(dst[80:88], m.Lockup.Epoch)
	encodeAddress(dst[88:120], m.Lockup.Custodian)
}

func decodeStake(b []byte) stake.Stake {
	var s stake.Stake
	s.Delegation.Voter = decodeAddress(b[0:32])
	s.Delegation.Stake = binary.LittleEndian.Uint64(b[32:40])
	s.Delegation.ActivationEpoch = binary.LittleEndian.Uint64(b[40:48])
	s.Delegation.DeactivationEpoch = binary.LittleEndian.Uint64(b[48:56])
	copy(s.Delegation.Reserved[:], b[56:64])
	s.CreditsObserved = binary.LittleEndian.Uint64(b[64:72])
	return s
}

func encodeStake(dst []byte, s stake.Stake) {
	encodeAddress(dst[0:32], s.Delegation.Voter)
	binary.LittleEndian.PutUint64(dst[32:40], s.Delegation.Stake)
	binary.LittleEndian.PutUint64(dst[40:48], s.Delegation.ActivationEpoch)
	binary.LittleEndian.PutUint64(dst[48:56], s.Delegation.DeactivationEpoch)
	copy(dst[56:64], s.Delegation.Reserved[:])
	binary.LittleEndian.PutUint64(dst[64:72], s.CreditsObserved)
}
