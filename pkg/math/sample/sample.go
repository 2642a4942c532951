package sample

import (
	"errors"
	"io"
	"math/big"
)

var one = big.NewInt(1)

// ErrRandom is returned when the random source fails.
var ErrRandom = errors.New("sample: random source failure")

// readInt draws a uniform integer in [0, max) from rand.
func readInt(rand io.Reader, max *big.Int) (*big.Int, error) {
	bitLen := max.BitLen()
	if bitLen == 0 {
		return nil, errors.New("sample: max must be positive")
	}
	buf := make([]byte, (bitLen+7)/8)
	// Rejection sampling keeps the draw uniform: mask the excess high bits and
	// retry until the candidate lands below max.
	excess := uint(len(buf)*8 - bitLen)
	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, ErrRandom
		}
		buf[0] &= 0xFF >> excess
		c := new(big.Int).SetBytes(buf)
		if c.Cmp(max) < 0 {
			return c, nil
		}
	}
}

// IntervalModN returns a uniform integer in [1, n).
// Used for sigma-protocol challenges and ephemeral commitment values.
func IntervalModN(rand io.Reader, n *big.Int) (*big.Int, error) {
	max := new(big.Int).Sub(n, one)
	c, err := readInt(rand, max)
	if err != nil {
		return nil, err
	}
	return c.Add(c, one), nil
}

// UnitModN returns a uniform unit in (ℤ/nℤ)ˣ: r ∈ [1, n) with gcd(r, n) = 1.
// The result is invertible mod n, which the proof response relies on.
func UnitModN(rand io.Reader, n *big.Int) (*big.Int, error) {
	gcd := new(big.Int)
	for {
		r, err := IntervalModN(rand, n)
		if err != nil {
			return nil, err
		}
		if gcd.GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}
