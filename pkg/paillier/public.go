package paillier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"ConfidentialVoting/pkg/math/sample"
)

var (
	ErrPaillierNil    = errors.New("paillier: modulus N is nil")
	ErrPaillierEven   = errors.New("paillier: modulus N is even")
	ErrMessageRange   = errors.New("paillier: message outside of range [-(N-1)/2, ..., (N-1)/2]")
	ErrGeneratorShape = errors.New("paillier: generator is not N+1")
)

var one = big.NewInt(1)

// PublicKey is a Paillier public key for the g = N+1 variant.
// The wire representation is the pair (g, N).
type PublicKey struct {
	// n = p⋅q
	n *big.Int
	// nSquared = n², cached out of convenience, and performance
	nSquared *big.Int
	// nPlusOne = n + 1 = g
	nPlusOne *big.Int
}

// NewPublicKeyFromN returns an initialized paillier.PublicKey and caches N² and N+1.
func NewPublicKeyFromN(n *big.Int) *PublicKey {
	return &PublicKey{
		n:        new(big.Int).Set(n),
		nSquared: new(big.Int).Mul(n, n),
		nPlusOne: new(big.Int).Add(n, one),
	}
}

// N is the public modulus making up this key.
func (pk *PublicKey) N() *big.Int {
	return pk.n
}

// G is the generator, fixed to N+1 in this variant.
func (pk *PublicKey) G() *big.Int {
	return pk.nPlusOne
}

// ModulusSquared returns N².
func (pk *PublicKey) ModulusSquared() *big.Int {
	return pk.nSquared
}

// ValidateN performs basic checks to make sure the modulus is usable:
// non-nil, odd, and a product of two primes large enough to hold a ballot.
func ValidateN(n *big.Int) error {
	if n == nil {
		return ErrPaillierNil
	}
	if n.Bit(0) != 1 {
		return ErrPaillierEven
	}
	if n.Cmp(big.NewInt(6)) < 0 {
		return fmt.Errorf("paillier: modulus %v too small", n)
	}
	return nil
}

// Enc returns the encryption of m under the public key pk, together with the
// nonce used. The nonce doubles as the proof-of-knowledge witness later on, so
// callers must retain it until the proof round completes.
//
// The message m must lie in [-(N-1)/2, ..., (N-1)/2].
//
// ct = (1+N)ᵐ ρᴺ (mod N²).
func (pk *PublicKey) Enc(rand io.Reader, m *big.Int) (*Ciphertext, *big.Int, error) {
	if !pk.messageInRange(m) {
		return nil, nil, ErrMessageRange
	}
	nonce, err := sample.UnitModN(rand, pk.n)
	if err != nil {
		return nil, nil, err
	}
	return pk.EncWithNonce(m, nonce), nonce, nil
}

// EncWithNonce returns the encryption of m under the public key pk with the
// given nonce. The proof verifier uses this to recompute commitments.
//
// ct = (1+N)ᵐ ρᴺ (mod N²).
func (pk *PublicKey) EncWithNonce(m, nonce *big.Int) *Ciphertext {
	// (N+1)ᵐ mod N². Exp handles negative m through the modular inverse of
	// N+1, which exists since gcd(N+1, N²) = 1.
	c := new(big.Int).Exp(pk.nPlusOne, m, pk.nSquared)
	// ρᴺ mod N²
	rhoN := new(big.Int).Exp(nonce, pk.n, pk.nSquared)
	c.Mul(c, rhoN)
	c.Mod(c, pk.nSquared)
	return &Ciphertext{c: c}
}

func (pk *PublicKey) messageInRange(m *big.Int) bool {
	half := new(big.Int).Rsh(pk.n, 1)
	return new(big.Int).Abs(m).Cmp(half) <= 0
}

// Equal returns true if pk ≡ other.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && pk.n.Cmp(other.n) == 0
}

// ValidateCiphertexts checks if all ciphertexts are in the correct range and
// coprime to N²: ct ∈ [1, ..., N²-1] and gcd(ct, N²) = 1.
func (pk *PublicKey) ValidateCiphertexts(cts ...*Ciphertext) bool {
	gcd := new(big.Int)
	for _, ct := range cts {
		if ct == nil || ct.c == nil {
			return false
		}
		if ct.c.Sign() <= 0 || ct.c.Cmp(pk.nSquared) >= 0 {
			return false
		}
		if gcd.GCD(nil, nil, ct.c, pk.nSquared).Cmp(one) != 0 {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the key as the wire tuple [g, n].
func (pk *PublicKey) MarshalJSON() ([]byte, error) {
	if pk == nil || pk.n == nil {
		return nil, ErrPaillierNil
	}
	return json.Marshal([]*big.Int{pk.nPlusOne, pk.n})
}

// UnmarshalJSON decodes the wire tuple [g, n] and rejects keys whose
// generator deviates from N+1.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var tuple []*big.Int
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 || tuple[0] == nil || tuple[1] == nil {
		return fmt.Errorf("paillier: public key must be the pair (g, n)")
	}
	g, n := tuple[0], tuple[1]
	if err := ValidateN(n); err != nil {
		return err
	}
	if new(big.Int).Sub(g, n).Cmp(one) != 0 {
		return ErrGeneratorShape
	}
	*pk = *NewPublicKeyFromN(n)
	return nil
}
