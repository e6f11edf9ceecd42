package authority

import (
	"testing"

	"nhbchain/core/stake"
	"nhbchain/core/types"
	"nhbchain/crypto"
)

func mustAddr(b byte) types.Address {
	buf := make([]byte, crypto.AddressSize)
	buf[0] = b
	return crypto.MustNewAddress(crypto.NHBPrefix, buf)
}

func TestCheckStakerRequiresSignature(t *testing.T) {
	staker := mustAddr(1)
	authorized := stake.Authorized{Staker: staker, Withdrawer: mustAddr(2)}

	if err := CheckStaker(NewSignerSet(nil), authorized); err == nil {
		t.Fatalf("expected missing signature error")
	}
	if err := CheckStaker(NewSignerSet([]types.Address{staker}), authorized); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChangeStakerAllowsEitherStakerOrWithdrawer(t *testing.T) {
	staker := mustAddr(1)
	withdrawer := mustAddr(2)
	authorized := stake.Authorized{Staker: staker, Withdrawer: withdrawer}

	if err := ChangeStaker(NewSignerSet([]types.Address{staker}), authorized); err != nil {
		t.Fatalf("unexpected error with staker signature: %v", err)
	}
	if err := ChangeStaker(NewSignerSet([]types.Address{withdrawer}), authorized); err != nil {
		t.Fatalf("unexpected error with withdrawer-only signature: %v", err)
	}
	if err := ChangeStaker(NewSignerSet(nil), authorized); err == nil {
		t.Fatalf("expected missing signature error with neither signing")
	}
}

func TestChangeWithdrawerBlockedByLockup(t *testing.T) {
	withdrawer := mustAddr(2)
	custodian := mustAddr(3)
	authorized := stake.Authorized{Staker: mustAddr(1), Withdrawer: withdrawer}
	lockup := stake.Lockup{Epoch: 100, Custodian: custodian}
	clock := types.Clock{Epoch: 10}

	signers := NewSignerSet([]types.Address{withdrawer})
	if err := ChangeWithdrawer(signers, authorized, lockup, clock); err == nil {
		t.Fatalf("expected lockup to block withdrawer-only change")
	}

	signers = NewSignerSet([]types.Address{withdrawer, custodian})
	if err := ChangeWithdrawer(signers, authorized, lockup, clock); err != nil {
		t.Fatalf("unexpected error with custodian co-sign: %v", err)
	}
}

func TestVerifySeededAuthority(t *testing.T) {
	base := mustAddr(7)
	owner := mustAddr(8)
	derived, err := crypto.DeriveWithSeed(base, "vault", owner)
	if err != nil {
		t.Fatalf("unexpected derive error: %v", err)
	}

	if err := VerifySeededAuthority(NewSignerSet([]types.Address{base}), base, "vault", owner, derived); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := VerifySeededAuthority(NewSignerSet(nil), base, "vault", owner, derived); err == nil {
		t.Fatalf("expected error when base has not signed")
	}
}
