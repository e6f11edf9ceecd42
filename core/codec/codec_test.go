package codec

import (
	"bytes"
	"testing"

	"nhbchain/core/stake"
	"nhbchain/core/types"
	"nhbchain/crypto"
)

func testAddr(b byte) types.Address {
	buf := make([]byte, crypto.AddressSize)
	buf[0] = b
	return crypto.MustNewAddress(crypto.NHBPrefix, buf)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	if err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	buf := make([]byte, Size)
	buf[0] = 0xFF
	_, err := Decode(buf)
	if err == nil {
		t.Fatalf("expected error for unrecognized tag")
	}
}

func TestUninitializedRoundTrip(t *testing.T) {
	in := stake.AccountState{Tag: stake.TagUninitialized, Padding: [3]byte{1, 2, 3}}
	encoded, err := Encode(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if len(encoded) != Size {
		t.Fatalf("expected %d bytes, got %d", Size, len(encoded))
	}
	out, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.Tag != stake.TagUninitialized || out.Padding != in.Padding {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestStakeAccountRoundTripPreservesReservedBytes(t *testing.T) {
	meta := stake.Meta{
		RentExemptReserve: 2_282_880,
		Authorized:        stake.Authorized{Staker: testAddr(1), Withdrawer: testAddr(2)},
		Lockup:            stake.Lockup{UnixTimestamp: -5, Epoch: 42, Custodian: testAddr(3)},
	}
	delegation := stake.Delegation{
		Voter:             testAddr(9),
		Stake:             123_456_789,
		ActivationEpoch:   10,
		DeactivationEpoch: types.MaxEpoch,
	}
	copy(delegation.Reserved[:], []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4})

	in := stake.AccountState{
		Tag:   stake.TagStake,
		Meta:  &meta,
		Stake: &stake.Stake{Delegation: delegation, CreditsObserved: 77},
		Flags: stake.FlagMustFullyActivateBeforeDeactivationIsPermitted,
		Padding: [3]byte{9, 8, 7},
	}

	encoded, err := Encode(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if out.Meta.RentExemptReserve != meta.RentExemptReserve {
		t.Fatalf("rent exempt reserve mismatch: %d", out.Meta.RentExemptReserve)
	}
	if out.Meta.Authorized != meta.Authorized {
		t.Fatalf("authorized mismatch")
	}
	if out.Meta.Lockup != meta.Lockup {
		t.Fatalf("lockup mismatch")
	}
	if out.Stake.Delegation != delegation {
		t.Fatalf("delegation mismatch: %+v vs %+v", out.Stake.Delegation, delegation)
	}
	if out.Stake.CreditsObserved != 77 {
		t.Fatalf("credits observed mismatch: %d", out.Stake.CreditsObserved)
	}
	if out.Flags != in.Flags {
		t.Fatalf("flags mismatch")
	}
	if out.Padding != in.Padding {
		t.Fatalf("padding mismatch")
	}

	reencoded, err := Encode(out)
	if err != nil {
		t.Fatalf("unexpected re-encode error: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Fatalf("byte-exact round trip failed")
	}
}

func TestTransitionUninitializeZeroesBuffer(t *testing.T) {
	buf := make([]byte, Size)
	for i := range buf {
		buf[i] = 0xFF
	}
	if err := TransitionUninitialize(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
}
