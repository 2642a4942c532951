package paillier

import (
	"math/big"
)

// Ciphertext represents an integer of the form (1+N)ᵐρᴺ (mod N²),
// the encryption of m under the key with modulus N.
type Ciphertext struct {
	c *big.Int
}

// CiphertextFromNat wraps a raw wire integer as a Ciphertext.
func CiphertextFromNat(c *big.Int) *Ciphertext {
	return &Ciphertext{c: new(big.Int).Set(c)}
}

// Add sets ct to the homomorphic sum ct ⊕ ct₂.
// ct ← ct ⋅ ct₂ (mod N²).
func (ct *Ciphertext) Add(pk *PublicKey, ct2 *Ciphertext) *Ciphertext {
	if ct2 == nil {
		return ct
	}
	ct.c.Mul(ct.c, ct2.c)
	ct.c.Mod(ct.c, pk.nSquared)
	return ct
}

// Mul sets ct to the homomorphic scalar multiplication k ⊙ ct.
// ct ← ctᵏ (mod N²).
func (ct *Ciphertext) Mul(pk *PublicKey, k *big.Int) *Ciphertext {
	if k == nil {
		return ct
	}
	ct.c.Exp(ct.c, k, pk.nSquared)
	return ct
}

// Equal checks whether ct ≡ ctₐ (mod N²).
func (ct *Ciphertext) Equal(ctA *Ciphertext) bool {
	return ctA != nil && ct.c.Cmp(ctA.c) == 0
}

// Clone returns a deep copy of ct.
func (ct *Ciphertext) Clone() *Ciphertext {
	return &Ciphertext{c: new(big.Int).Set(ct.c)}
}

// Nat returns a copy of the underlying integer.
func (ct *Ciphertext) Nat() *big.Int {
	return new(big.Int).Set(ct.c)
}

// Bytes returns the big-endian encoding of the ciphertext, for transcripts.
func (ct *Ciphertext) Bytes() []byte {
	return ct.c.Bytes()
}

// MarshalJSON encodes the ciphertext as its wire integer.
func (ct *Ciphertext) MarshalJSON() ([]byte, error) {
	return ct.c.MarshalJSON()
}

// UnmarshalJSON decodes a wire integer.
func (ct *Ciphertext) UnmarshalJSON(data []byte) error {
	ct.c = new(big.Int)
	return ct.c.UnmarshalJSON(data)
}
