package server

import (
	"ConfidentialVoting/communication"
	"ConfidentialVoting/pkg/zk/ballot"
)

// commitmentOf lifts the wire commitment field, nil when absent.
func commitmentOf(msg *communication.Message) *zkballot.Commitment {
	if msg.Commitment == nil {
		return nil
	}
	return &zkballot.Commitment{A: msg.Commitment}
}

// responseOf lifts the wire (v, w) fields, nil when incomplete. A nil
// response still reaches the state so the voter's round is recorded as
// failed rather than ignored.
func responseOf(msg *communication.Message) *zkballot.Response {
	if msg.V == nil || msg.W == nil {
		return nil
	}
	return &zkballot.Response{V: msg.V, W: msg.W}
}
