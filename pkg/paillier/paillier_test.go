package paillier

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*PublicKey, *SecretKey) {
	t.Helper()
	sk, err := NewSecretKeyFromPrimes(big.NewInt(53), big.NewInt(61))
	require.NoError(t, err)
	return sk.PublicKey, sk
}

func TestKeyGen(t *testing.T) {
	pk, sk, err := KeyGen(rand.Reader, 50, 80)
	require.NoError(t, err)

	assert.NotEqual(t, 0, sk.P().Cmp(sk.Q()), "prime factors must be distinct")
	assert.Equal(t, 0, pk.N().Cmp(new(big.Int).Mul(sk.P(), sk.Q())))
	assert.Equal(t, 0, new(big.Int).Sub(pk.G(), pk.N()).Cmp(big.NewInt(1)), "g must be n+1")

	// mu * lambda == 1 (mod n)
	check := new(big.Int).Mul(sk.Phi(), new(big.Int).ModInverse(sk.Phi(), pk.N()))
	check.Mod(check, pk.N())
	assert.Equal(t, 0, check.Cmp(big.NewInt(1)))
}

func TestKeyGenRejectsEqualPrimes(t *testing.T) {
	_, err := NewSecretKeyFromPrimes(big.NewInt(53), big.NewInt(53))
	assert.Error(t, err)
}

func TestEncDecRoundTrip(t *testing.T) {
	pk, sk := testKey(t)

	for _, m := range []int64{0, 1, -1, 2, -2, 17, -17, 1000, -1000} {
		ct, nonce, err := pk.Enc(rand.Reader, big.NewInt(m))
		require.NoError(t, err, "m=%d", m)
		require.NotNil(t, nonce)

		got, err := sk.Dec(ct)
		require.NoError(t, err, "m=%d", m)
		assert.Equal(t, m, got.Int64(), "round trip for %d", m)
	}
}

func TestEncRejectsOutOfRange(t *testing.T) {
	pk, _ := testKey(t)

	tooBig := new(big.Int).Add(new(big.Int).Rsh(pk.N(), 1), big.NewInt(1))
	_, _, err := pk.Enc(rand.Reader, tooBig)
	assert.ErrorIs(t, err, ErrMessageRange)

	_, _, err = pk.Enc(rand.Reader, new(big.Int).Neg(tooBig))
	assert.ErrorIs(t, err, ErrMessageRange)
}

func TestCiphertextIsNotPlaintext(t *testing.T) {
	pk, _ := testKey(t)

	for _, m := range []int64{1, -1} {
		ct, _, err := pk.Enc(rand.Reader, big.NewInt(m))
		require.NoError(t, err)
		c := ct.Nat()
		assert.NotEqual(t, 0, c.Cmp(big.NewInt(m)))
		assert.NotEqual(t, 0, c.Cmp(big.NewInt(1)))
	}
}

func TestHomomorphicSum(t *testing.T) {
	pk, sk := testKey(t)

	votes := []int64{1, -1, 1, 1, -1}
	var sum *Ciphertext
	for _, v := range votes {
		ct, _, err := pk.Enc(rand.Reader, big.NewInt(v))
		require.NoError(t, err)
		if sum == nil {
			sum = ct
		} else {
			sum.Add(pk, ct)
		}
	}

	got, err := sk.Dec(sum)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Int64())
}

func TestSignRecovery(t *testing.T) {
	pk, sk := testKey(t)

	// A raw modular result of n-1 must come back as -1, not n-1.
	ct, _, err := pk.Enc(rand.Reader, big.NewInt(-1))
	require.NoError(t, err)
	got, err := sk.Dec(ct)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got.Int64())

	// Sum of [-1, -1, -1] re-centers to -3.
	sum := ct.Clone()
	for i := 0; i < 2; i++ {
		ct2, _, err := pk.Enc(rand.Reader, big.NewInt(-1))
		require.NoError(t, err)
		sum.Add(pk, ct2)
	}
	got, err = sk.Dec(sum)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Int64())
}

func TestAggregationOrderIndependent(t *testing.T) {
	pk, sk := testKey(t)

	votes := []int64{1, -1, 1, 1, -1, -1, 1}
	cts := make([]*Ciphertext, len(votes))
	for i, v := range votes {
		ct, _, err := pk.Enc(rand.Reader, big.NewInt(v))
		require.NoError(t, err)
		cts[i] = ct
	}

	forward := cts[0].Clone()
	for _, ct := range cts[1:] {
		forward.Add(pk, ct)
	}
	backward := cts[len(cts)-1].Clone()
	for i := len(cts) - 2; i >= 0; i-- {
		backward.Add(pk, cts[i])
	}

	assert.True(t, forward.Equal(backward), "ciphertext products must agree")

	got, err := sk.Dec(forward)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Int64())
}

func TestDecRejectsInvalidCiphertext(t *testing.T) {
	_, sk := testKey(t)

	_, err := sk.Dec(&Ciphertext{c: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = sk.Dec(&Ciphertext{c: new(big.Int).Set(sk.ModulusSquared())})
	assert.ErrorIs(t, err, ErrCiphertext)

	// A multiple of p shares a factor with n^2 and is not a unit.
	_, err = sk.Dec(&Ciphertext{c: new(big.Int).Set(sk.P())})
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestDecRejectsKeyMismatch(t *testing.T) {
	pk, _ := testKey(t)
	other, err := NewSecretKeyFromPrimes(big.NewInt(59), big.NewInt(71))
	require.NoError(t, err)

	ct, _, err := pk.Enc(rand.Reader, big.NewInt(1))
	require.NoError(t, err)

	got, decErr := other.Dec(ct)
	if decErr == nil {
		// The foreign key may accept the integer as in-range; it must not
		// decrypt to the true ballot.
		assert.NotEqual(t, int64(1), got.Int64())
	}
}

func TestPublicKeyJSONRoundTrip(t *testing.T) {
	pk, _ := testKey(t)

	buf, err := json.Marshal(pk)
	require.NoError(t, err)

	restored := &PublicKey{}
	require.NoError(t, json.Unmarshal(buf, restored))
	assert.True(t, pk.Equal(restored))
}

func TestPublicKeyJSONRejectsBadGenerator(t *testing.T) {
	restored := &PublicKey{}
	err := json.Unmarshal([]byte(`[5, 3233]`), restored)
	assert.ErrorIs(t, err, ErrGeneratorShape)

	err = json.Unmarshal([]byte(`[3233]`), restored)
	assert.Error(t, err)
}

func TestValidateCiphertexts(t *testing.T) {
	pk, _ := testKey(t)

	ct, _, err := pk.Enc(rand.Reader, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, pk.ValidateCiphertexts(ct))

	assert.False(t, pk.ValidateCiphertexts(nil))
	assert.False(t, pk.ValidateCiphertexts(&Ciphertext{c: big.NewInt(0)}))
	assert.False(t, pk.ValidateCiphertexts(ct, &Ciphertext{c: new(big.Int).Set(pk.ModulusSquared())}))
}
