package sample

import (
	"errors"
	"io"
	"math/big"

	"ConfidentialVoting/internal/params"
)

// ErrPrimeRange is returned when [min, max] yields no prime to sample.
var ErrPrimeRange = errors.New("sample: prime range exhausted")

const maxPrimeAttempts = 1 << 16

// Prime rejection-samples a candidate in [min, max] and tests it with
// Miller-Rabin, retrying on composites. The range is a protocol parameter:
// demonstration deployments use small values, production ones must not.
func Prime(rand io.Reader, min, max uint64) (*big.Int, error) {
	if max < min || max < 2 {
		return nil, ErrPrimeRange
	}
	width := new(big.Int).SetUint64(max - min + 1)
	base := new(big.Int).SetUint64(min)
	for i := 0; i < maxPrimeAttempts; i++ {
		offset, err := readInt(rand, width)
		if err != nil {
			return nil, err
		}
		candidate := offset.Add(offset, base)
		if candidate.ProbablyPrime(params.PrimalityIterations) {
			return candidate, nil
		}
	}
	return nil, ErrPrimeRange
}

// PrimePair returns two distinct primes from [min, max], resampling q until
// it differs from p.
func PrimePair(rand io.Reader, min, max uint64) (p, q *big.Int, err error) {
	p, err = Prime(rand, min, max)
	if err != nil {
		return nil, nil, err
	}
	for {
		q, err = Prime(rand, min, max)
		if err != nil {
			return nil, nil, err
		}
		if p.Cmp(q) != 0 {
			return p, q, nil
		}
	}
}
