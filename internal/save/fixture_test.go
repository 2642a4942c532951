package save

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ConfidentialVoting/internal/election"
	"ConfidentialVoting/pkg/paillier"
	"ConfidentialVoting/pkg/party"
)

func TestKeyGenResultRoundTrip(t *testing.T) {
	dir := t.TempDir()

	sk, err := paillier.NewSecretKeyFromPrimes(big.NewInt(53), big.NewInt(61))
	require.NoError(t, err)
	require.NoError(t, SaveKeyGenResult(dir, sk))

	restored, err := LoadKeyGenResult(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, sk.P().Cmp(restored.P()))
	assert.Equal(t, 0, sk.Q().Cmp(restored.Q()))
	assert.True(t, sk.PublicKey.Equal(restored.PublicKey))
}

func TestElectionRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()

	report := &election.Report{
		ElectionID: "4cf32ab5-test",
		Voters:     3,
		Tally:      big.NewInt(1),
		Winner:     election.WinnerYes,
		FraudFlags: map[party.ID]bool{
			"C1234": false,
			"C5678": true,
		},
		TranscriptDigest: []byte{0x01, 0x02, 0x03},
	}
	require.NoError(t, SaveElectionRecord(dir, report))

	restored, err := LoadElectionRecord(dir)
	require.NoError(t, err)
	assert.Equal(t, report.ElectionID, restored.ElectionID)
	assert.Equal(t, report.Voters, restored.Voters)
	assert.Equal(t, 0, report.Tally.Cmp(restored.Tally))
	assert.Equal(t, report.Winner, restored.Winner)
	assert.Equal(t, report.FraudFlags, restored.FraudFlags)
	assert.Equal(t, report.TranscriptDigest, restored.TranscriptDigest)
}

func TestLoadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()

	sk, err := paillier.NewSecretKeyFromPrimes(big.NewInt(53), big.NewInt(61))
	require.NoError(t, err)
	require.NoError(t, SaveKeyGenResult(dir, sk))

	path := filepath.Join(dir, keygenFixtureFile)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip one payload byte; the checksum must catch it.
	buf[len(buf)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	_, err = LoadKeyGenResult(dir)
	assert.Error(t, err)
}

func TestLoadMissingFixture(t *testing.T) {
	_, err := LoadKeyGenResult(t.TempDir())
	assert.Error(t, err)
}
