package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/client"
	"ConfidentialVoting/internal/election"
)

func testConfig(t *testing.T) communication.LocalConfig {
	t.Helper()
	cfg := communication.DefaultConfig()
	cfg.ListenAddr = "localhost:0"
	cfg.FixtureDir = ""
	cfg.ResponseTimeoutSecond = 5
	return cfg
}

func runScenario(t *testing.T, sc Scenario) *Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := Run(ctx, testConfig(t), sc)
	require.NoError(t, err)
	require.NotNil(t, outcome.Report)
	return outcome
}

func TestHonestElection(t *testing.T) {
	outcome := runScenario(t, Scenario{Casts: []Cast{
		{Voter: "Alice", Value: client.Yes},
		{Voter: "Bob", Value: client.No},
		{Voter: "Charlie", Value: client.Yes},
	}})

	assert.Equal(t, int64(1), outcome.Tally.Int64())
	assert.Equal(t, election.WinnerYes, outcome.Winner)
	assert.Equal(t, outcome.Winner, outcome.Report.Winner)
	assert.Equal(t, 3, outcome.Report.Voters)

	require.Len(t, outcome.Report.FraudFlags, 3)
	for voter, flagged := range outcome.Report.FraudFlags {
		assert.False(t, flagged, "voter %s wrongly flagged", voter)
	}
	assert.NotEmpty(t, outcome.Report.TranscriptDigest)
}

func TestFraudulentVoterFlagged(t *testing.T) {
	outcome := runScenario(t, Scenario{Casts: []Cast{
		{Voter: "Alice", Value: client.Yes},
		{Voter: "Bob", Value: client.No, Dishonest: true},
		{Voter: "Charlie", Value: client.Yes},
	}})

	// A dishonest proof response leaves the recorded ballot untouched; only
	// the flag distinguishes Bob.
	assert.Equal(t, int64(1), outcome.Tally.Int64())
	assert.Equal(t, election.WinnerYes, outcome.Winner)

	bob := outcome.IDs["Bob"]
	require.NotEmpty(t, bob)
	assert.True(t, outcome.Report.FraudFlags[bob], "dishonest voter must be flagged")
	assert.False(t, outcome.Report.FraudFlags[outcome.IDs["Alice"]])
	assert.False(t, outcome.Report.FraudFlags[outcome.IDs["Charlie"]])
}

func TestTiedElection(t *testing.T) {
	outcome := runScenario(t, Scenario{Casts: []Cast{
		{Voter: "Alice", Value: client.Yes},
		{Voter: "Bob", Value: client.No},
	}})

	assert.Equal(t, int64(0), outcome.Tally.Int64())
	assert.Equal(t, election.WinnerTie, outcome.Winner)
	for voter, flagged := range outcome.Report.FraudFlags {
		assert.False(t, flagged, "voter %s wrongly flagged", voter)
	}
}

func TestSingleVoterElection(t *testing.T) {
	outcome := runScenario(t, Scenario{Casts: []Cast{
		{Voter: "Alice", Value: client.No},
	}})

	assert.Equal(t, int64(-1), outcome.Tally.Int64())
	assert.Equal(t, election.WinnerNo, outcome.Winner)
	assert.Equal(t, 1, outcome.Report.Voters)
}

func TestEmptyScenarioRefused(t *testing.T) {
	_, err := Run(context.Background(), testConfig(t), Scenario{})
	assert.Error(t, err)
}

func TestVotersGetDistinctIdentifiers(t *testing.T) {
	outcome := runScenario(t, Scenario{Casts: []Cast{
		{Voter: "Alice", Value: client.Yes},
		{Voter: "Bob", Value: client.Yes},
		{Voter: "Charlie", Value: client.No},
	}})

	seen := make(map[string]struct{})
	for voter, id := range outcome.IDs {
		_, dup := seen[string(id)]
		assert.False(t, dup, "voter %s shares an identifier", voter)
		seen[string(id)] = struct{}{}
	}
	assert.Len(t, seen, 3)
}
