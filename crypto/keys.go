package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	NHBPrefix  AddressPrefix = "nhb"
	ZNHBPrefix AddressPrefix = "znhb"
)

// AddressSize is the length in bytes of a stake-program account key. Unlike
// the 20-byte transfer addresses used elsewhere in the chain, stake, vote and
// seed-derived accounts carry the full 32-byte key space.
const AddressSize = 32

// Address represents a 32-byte account key with a specific bech32 prefix.
// The key is held as a fixed-size array, not a slice, so that Address is
// comparable: the stake program's Meta/Lockup equality checks (used when
// deciding whether two accounts may merge) rely on plain == comparisons.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressSize]byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressSize, len(b))
	}
	var addr Address
	addr.prefix = prefix
	copy(addr.bytes[:], b)
	return addr, nil
}

// MustNewAddress constructs an address and panics if the input is invalid.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes[:]...)
}

// IsZero reports whether the address is the all-zero key, used as a
// sentinel for "no custodian"/"no address supplied" in optional fields.
func (a Address) IsZero() bool {
	return a.bytes == [AddressSize]byte{}
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	addr, err := NewAddress(AddressPrefix(prefix), conv)
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	sum := sha256.Sum256(crypto.FromECDSAPub(k.PublicKey))
	return MustNewAddress(NHBPrefix, sum[:])
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// DeriveWithSeed derives a synthetic account key from a base address, an
// arbitrary seed string and an owning program address, mirroring the
// base+seed+owner derivation used to create program-owned accounts without a
// dedicated keypair. The derived address carries no private key; only the
// base address's signer authority can move lamports into or out of it.
func DeriveWithSeed(base Address, seed string, owner Address) (Address, error) {
	if len(seed) > 32 {
		return Address{}, fmt.Errorf("seed must not exceed 32 bytes, got %d", len(seed))
	}
	h := sha256.New()
	h.Write(base.Bytes())
	h.Write([]byte(seed))
	h.Write(owner.Bytes())
	sum := h.Sum(nil)
	return NewAddress(base.prefix, sum)
}
