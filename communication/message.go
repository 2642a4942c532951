package communication

import (
	"math/big"

	"ConfidentialVoting/pkg/paillier"
)

// Wire message types. Every record on the wire is a newline-terminated JSON
// object carrying a type tag plus the fields of that type.
const (
	// server -> client
	TypeClientID             = "client_id"
	TypeKeyHolder            = "key_holder"
	TypeFirstClientConfirmed = "first_client_confirmed"
	TypeSharedPublicKey      = "shared_public_key"
	TypeVoteReceived         = "vote_received"
	TypeEncryptedSum         = "encrypted_sum"
	TypeZKPChallenge         = "zkp_challenge"
	TypeError                = "error"

	// client -> server
	TypePublicKey   = "public_key"
	TypeVote        = "vote"
	TypeGetResults  = "get_results"
	TypeResult      = "result"
	TypeZKPResponse = "zkp_response"
)

// Message is the envelope for every wire record. Unused fields are omitted,
// so each type's record carries only its own fields.
type Message struct {
	Type string `json:"type"`

	// client_id
	ClientID string `json:"client_id,omitempty"`

	// public_key, shared_public_key: the tuple (g, n)
	PublicKey *paillier.PublicKey `json:"public_key,omitempty"`

	// vote
	EncryptedVote *paillier.Ciphertext `json:"encrypted_vote,omitempty"`
	Commitment    *paillier.Ciphertext `json:"commitment,omitempty"`

	// encrypted_sum
	EncryptedSum *paillier.Ciphertext `json:"encrypted_sum,omitempty"`

	// zkp_challenge
	Challenge *big.Int `json:"challenge,omitempty"`

	// zkp_response: u echoes the commitment, (v, w) answer the challenge
	U *paillier.Ciphertext `json:"u,omitempty"`
	V *big.Int             `json:"v,omitempty"`
	W *big.Int             `json:"w,omitempty"`

	// result: the key holder reporting the decrypted tally
	DecryptedSum *big.Int `json:"decrypted_sum,omitempty"`
	Winner       string   `json:"winner,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
