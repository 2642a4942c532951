// Package zkballot implements the three-move sigma protocol proving knowledge
// of the plaintext m and nonce ρ of a Paillier ciphertext C = gᵐρᴺ (mod N²),
// without revealing either. The construction is bound to the ciphertext
// through the Paillier homomorphism: a response computed from any value other
// than the one actually encrypted fails verification.
package zkballot

import (
	"io"
	"math/big"

	"ConfidentialVoting/pkg/math/sample"
	"ConfidentialVoting/pkg/paillier"
)

// Public is the statement being proven: a ciphertext under the prover's
// shared public key.
type Public struct {
	// C = Enc(m; ρ)
	C *paillier.Ciphertext

	Prover *paillier.PublicKey
}

// Private is the witness: the plaintext ballot and the encryption nonce.
type Private struct {
	// M = Dec(C), the ballot value
	M *big.Int
	// Rho = ρ, nonce of C
	Rho *big.Int
}

// Commitment is the prover's first message.
type Commitment struct {
	// A = gˣ sᴺ (mod N²)
	A *paillier.Ciphertext `json:"a"`
}

// Ephemeral holds the single-use randomness behind a commitment. Reusing it
// across proof rounds leaks the witness, so a value is consumed by Respond
// and must then be discarded.
type Ephemeral struct {
	// x ∈ [1, N)
	x *big.Int
	// s ∈ [1, N)
	s *big.Int
}

// Challenge is the verifier's random scalar, freshly drawn per proof round.
type Challenge struct {
	// E ∈ [1, N)
	E *big.Int `json:"e"`
}

// Response is the prover's answer to a challenge.
type Response struct {
	// V = x - e⋅m (mod N)
	V *big.Int `json:"v"`
	// W = s ⋅ ρ⁻ᵉ (mod N)
	W *big.Int `json:"w"`
}

// Commit draws fresh ephemeral values x, s ∈ [1, N) and returns the
// commitment A = gˣ sᴺ (mod N²) together with them.
func Commit(rand io.Reader, pk *paillier.PublicKey) (*Commitment, *Ephemeral, error) {
	x, err := sample.IntervalModN(rand, pk.N())
	if err != nil {
		return nil, nil, err
	}
	s, err := sample.UnitModN(rand, pk.N())
	if err != nil {
		return nil, nil, err
	}
	commitment := &Commitment{A: pk.EncWithNonce(x, s)}
	return commitment, &Ephemeral{x: x, s: s}, nil
}

// NewChallenge draws e uniformly from [1, N). Challenges are never reused
// across rounds.
func NewChallenge(rand io.Reader, pk *paillier.PublicKey) (*Challenge, error) {
	e, err := sample.IntervalModN(rand, pk.N())
	if err != nil {
		return nil, err
	}
	return &Challenge{E: e}, nil
}

// Respond computes the proof response from the retained witness:
//
//	v = x - e⋅m (mod N)
//	w = s ⋅ ρ⁻ᵉ (mod N)
//
// ρ is invertible mod N because encryption selected it coprime to N.
func (eph *Ephemeral) Respond(challenge *Challenge, private Private, pk *paillier.PublicKey) *Response {
	n := pk.N()

	// v = x - e⋅m (mod N)
	v := new(big.Int).Mul(challenge.E, private.M)
	v.Sub(eph.x, v)
	v.Mod(v, n)

	// w = s ⋅ ρ⁻ᵉ (mod N)
	eNeg := new(big.Int).Neg(challenge.E)
	w := new(big.Int).Exp(private.Rho, eNeg, n)
	w.Mul(w, eph.s)
	w.Mod(w, n)

	return &Response{V: v, W: w}
}

// Verify accepts iff gᵛ wᴺ Cᵉ ≡ A (mod N²), i.e. Enc(v; w) ⊕ (e ⊙ C) = A.
// Soundness rests on the homomorphism: the equation collapses to gˣsᴺ exactly
// when the prover used the true (m, ρ) behind C.
func Verify(commitment *Commitment, challenge *Challenge, response *Response, public Public) bool {
	if commitment == nil || challenge == nil || response == nil {
		return false
	}
	if response.V == nil || response.W == nil || challenge.E == nil {
		return false
	}
	pk := public.Prover
	if !pk.ValidateCiphertexts(public.C, commitment.A) {
		return false
	}
	if response.W.Sign() <= 0 || response.W.Cmp(pk.N()) >= 0 {
		return false
	}
	if challenge.E.Sign() <= 0 {
		return false
	}

	// lhs = Enc(v; w) ⊕ (e ⊙ C)
	lhs := pk.EncWithNonce(response.V, response.W)
	lhs.Add(pk, public.C.Clone().Mul(pk, challenge.E))

	return lhs.Equal(commitment.A)
}
