package paillier

import (
	"errors"
	"io"
	"math/big"

	"ConfidentialVoting/pkg/math/sample"
)

var (
	ErrKeyGen     = errors.New("paillier: lambda is not invertible modulo N")
	ErrCiphertext = errors.New("paillier: failed to decrypt invalid ciphertext")
)

// SecretKey is the secret key corresponding to a public Paillier key.
//
// The public key is a modulus N, and the secret key contains the two primes
// P and Q making it up. These allow us to decrypt values encrypted using this
// modulus. The secret key never crosses the wire: it stays with the key
// holder for the whole election.
type SecretKey struct {
	*PublicKey
	// p, q such that N = p⋅q
	p, q *big.Int
	// phi = λ = (p-1)(q-1)
	phi *big.Int
	// phiInv = μ = λ⁻¹ mod N
	phiInv *big.Int
}

// P returns the first of the two factors composing this key.
func (sk *SecretKey) P() *big.Int {
	return sk.p
}

// Q returns the second of the two factors composing this key.
func (sk *SecretKey) Q() *big.Int {
	return sk.q
}

// Phi returns λ = (P-1)(Q-1).
func (sk *SecretKey) Phi() *big.Int {
	return sk.phi
}

// KeyGen samples two distinct primes from [min, max] and returns the
// initialized key pair.
func KeyGen(rand io.Reader, min, max uint64) (*PublicKey, *SecretKey, error) {
	p, q, err := sample.PrimePair(rand, min, max)
	if err != nil {
		return nil, nil, err
	}
	sk, err := NewSecretKeyFromPrimes(p, q)
	if err != nil {
		return nil, nil, err
	}
	return sk.PublicKey, sk, nil
}

// NewSecretKeyFromPrimes builds a SecretKey from two distinct primes.
// Returns ErrKeyGen if λ has no inverse mod N, which cannot happen for valid
// primes and indicates a generation bug upstream.
func NewSecretKeyFromPrimes(p, q *big.Int) (*SecretKey, error) {
	if p.Cmp(q) == 0 {
		return nil, errors.New("paillier: prime factors must be distinct")
	}
	n := new(big.Int).Mul(p, q)
	pMinus1 := new(big.Int).Sub(p, one)
	qMinus1 := new(big.Int).Sub(q, one)
	phi := new(big.Int).Mul(pMinus1, qMinus1)
	// μ = λ⁻¹ mod N
	phiInv := new(big.Int).ModInverse(phi, n)
	if phiInv == nil {
		return nil, ErrKeyGen
	}
	return &SecretKey{
		p:         p,
		q:         q,
		phi:       phi,
		phiInv:    phiInv,
		PublicKey: NewPublicKeyFromN(n),
	}, nil
}

// Dec decrypts ct and returns the signed plaintext m ∈ (-N/2, N/2].
//
// m = L(ctᵠ mod N²) ⋅ μ mod N with L(x) = (x-1)/N, re-centered so negative
// tallies come back negative. Returns ErrCiphertext if the ciphertext is out
// of range or the L division is not exact, which indicates a malformed
// ciphertext or a key mismatch.
func (sk *SecretKey) Dec(ct *Ciphertext) (*big.Int, error) {
	if !sk.ValidateCiphertexts(ct) {
		return nil, ErrCiphertext
	}
	n := sk.n

	// x = ctᵠ (mod N²)
	x := new(big.Int).Exp(ct.c, sk.phi, sk.nSquared)
	// x = ctᵠ - 1
	x.Sub(x, one)

	// L = (ctᵠ - 1) / N, exact by the Paillier structure with g = N+1
	l, rem := new(big.Int).DivMod(x, n, new(big.Int))
	if rem.Sign() != 0 {
		return nil, ErrCiphertext
	}

	// m = L ⋅ μ (mod N)
	m := l.Mul(l, sk.phiInv)
	m.Mod(m, n)

	// Re-center: values above N/2 encode negative numbers.
	half := new(big.Int).Rsh(n, 1)
	if m.Cmp(half) > 0 {
		m.Sub(m, n)
	}
	return m, nil
}
