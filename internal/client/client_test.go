package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ConfidentialVoting/communication"
)

func TestParseValue(t *testing.T) {
	for input, want := range map[string]Value{
		"yes": Yes,
		"YES": Yes,
		"Yes": Yes,
		"no":  No,
		"NO":  No,
	} {
		got, err := ParseValue(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "maybe", "y", "n", "1", "-1"} {
		_, err := ParseValue(input)
		assert.Error(t, err, input)
	}
}

func TestVoteBeforeKeyDistribution(t *testing.T) {
	c := New(communication.DefaultConfig(), Options{})
	assert.Error(t, c.CastVote(Yes))
}

func TestRequestResultsVoterOnly(t *testing.T) {
	c := New(communication.DefaultConfig(), Options{})
	_, _, err := c.RequestResults()
	assert.Error(t, err, "plain voters must not decrypt")
}
