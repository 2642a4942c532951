// Package client implements the per-voter protocol session: registration,
// role negotiation, ballot encryption, and the proof round. The key holder
// variant additionally generates the election key pair and decrypts the
// aggregate tally; its private key never leaves the process.
package client

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/election"
	"ConfidentialVoting/internal/save"
	"ConfidentialVoting/pkg/paillier"
	"ConfidentialVoting/pkg/party"
	"ConfidentialVoting/pkg/zk/ballot"
)

// Value is a ballot: +1 for YES, -1 for NO.
type Value int

const (
	Yes Value = 1
	No  Value = -1
)

// ParseValue maps the command-line ballot strings onto values.
func ParseValue(s string) (Value, error) {
	switch strings.ToLower(s) {
	case "yes":
		return Yes, nil
	case "no":
		return No, nil
	default:
		return 0, fmt.Errorf("client: vote must be yes or no, got %q", s)
	}
}

// Options tune a session beyond its configuration.
type Options struct {
	// Dishonest makes the proof response use the negated ballot value while
	// the ciphertext holds the true one. Used by fraud-detection scenarios;
	// such a response must fail server verification.
	Dishonest bool
}

// Client drives one voter session over a single connection.
type Client struct {
	cfg  communication.LocalConfig
	opts Options
	conn *communication.Conn

	id        party.ID
	keyHolder bool

	secret *paillier.SecretKey
	shared *paillier.PublicKey

	// Proof material retained until the proof round completes.
	witness    zkballot.Private
	ephemeral  *zkballot.Ephemeral
	commitment *zkballot.Commitment
}

// New returns an unconnected client.
func New(cfg communication.LocalConfig, opts Options) *Client {
	return &Client{cfg: cfg, opts: opts}
}

// ID returns the server-assigned identifier, once connected.
func (c *Client) ID() party.ID {
	return c.id
}

// IsKeyHolder reports whether this session was designated key holder.
func (c *Client) IsKeyHolder() bool {
	return c.keyHolder
}

// Connect dials the server and completes registration and role negotiation.
// The server assigns the role explicitly: a key_holder record designates this
// session, a shared_public_key record makes it a plain voter. The bounded
// waits guard against a stalled server but carry no role semantics.
func (c *Client) Connect() error {
	conn, err := communication.Dial(c.cfg.ServerAddr, c.cfg.MaxMessageSize)
	if err != nil {
		return err
	}
	c.conn = conn

	msg, err := conn.ReceiveTimeout(c.cfg.RegistrationTimeout())
	if err != nil {
		conn.Close()
		return fmt.Errorf("client: registration: %w", err)
	}
	if msg.Type == communication.TypeError {
		conn.Close()
		return fmt.Errorf("client: refused: %s", msg.Message)
	}
	if msg.Type != communication.TypeClientID || msg.ClientID == "" {
		conn.Close()
		return fmt.Errorf("client: expected client_id, got %q", msg.Type)
	}
	c.id = party.ID(msg.ClientID)
	log.Infof("client %s: assigned ID", c.id)

	msg, err = conn.ReceiveTimeout(c.cfg.RegistrationTimeout())
	if err != nil {
		conn.Close()
		return fmt.Errorf("client %s: role negotiation: %w", c.id, err)
	}
	switch msg.Type {
	case communication.TypeKeyHolder:
		return c.becomeKeyHolder()
	case communication.TypeSharedPublicKey:
		if msg.PublicKey == nil {
			conn.Close()
			return fmt.Errorf("client %s: shared_public_key without key", c.id)
		}
		c.shared = msg.PublicKey
		log.Infof("client %s: received shared public key", c.id)
		return nil
	case communication.TypeError:
		conn.Close()
		return fmt.Errorf("client %s: refused: %s", c.id, msg.Message)
	default:
		conn.Close()
		return fmt.Errorf("client %s: unexpected %q during role negotiation", c.id, msg.Type)
	}
}

// becomeKeyHolder generates the election key pair and publishes only the
// public half, then waits for the server's confirmation.
func (c *Client) becomeKeyHolder() error {
	pk, sk, err := paillier.KeyGen(crand.Reader, c.cfg.PrimeMinVal, c.cfg.PrimeMaxVal)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("client %s: key generation: %w", c.id, err)
	}
	c.keyHolder = true
	c.secret = sk
	c.shared = pk
	log.Infof("client %s: designated key holder, generated key pair (N=%v)", c.id, pk.N())

	if c.cfg.FixtureDir != "" {
		if err := save.SaveKeyGenResult(c.cfg.FixtureDir, sk); err != nil {
			log.Warnf("client %s: fail to save keygen result: %v", c.id, err)
		}
	}

	if err := c.conn.Send(&communication.Message{
		Type:      communication.TypePublicKey,
		PublicKey: pk,
	}); err != nil {
		c.conn.Close()
		return err
	}
	msg, err := c.conn.ReceiveTimeout(c.cfg.RegistrationTimeout())
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("client %s: awaiting confirmation: %w", c.id, err)
	}
	if msg.Type != communication.TypeFirstClientConfirmed {
		c.conn.Close()
		return fmt.Errorf("client %s: expected first_client_confirmed, got %q", c.id, msg.Type)
	}
	log.Infof("client %s: confirmed as key holder", c.id)
	return nil
}

// CastVote encrypts the ballot under the shared key, commits for the later
// proof round, and sends ciphertext plus commitment. The witness (value,
// nonce) and the commitment's ephemeral randomness stay in memory until the
// proof round completes.
func (c *Client) CastVote(v Value) error {
	if c.shared == nil {
		return errors.New("client: no shared public key available")
	}
	m := big.NewInt(int64(v))
	ct, nonce, err := c.shared.Enc(crand.Reader, m)
	if err != nil {
		return fmt.Errorf("client %s: encrypt vote: %w", c.id, err)
	}
	commitment, ephemeral, err := zkballot.Commit(crand.Reader, c.shared)
	if err != nil {
		return fmt.Errorf("client %s: commit: %w", c.id, err)
	}
	c.witness = zkballot.Private{M: m, Rho: nonce}
	c.ephemeral = ephemeral
	c.commitment = commitment

	if err := c.conn.Send(&communication.Message{
		Type:          communication.TypeVote,
		EncryptedVote: ct,
		Commitment:    commitment.A,
	}); err != nil {
		return err
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("client %s: awaiting vote confirmation: %w", c.id, err)
	}
	if msg.Type == communication.TypeError {
		return fmt.Errorf("client %s: vote rejected: %s", c.id, msg.Message)
	}
	if msg.Type != communication.TypeVoteReceived {
		return fmt.Errorf("client %s: expected vote_received, got %q", c.id, msg.Type)
	}
	log.Infof("client %s: vote confirmed by server", c.id)
	return nil
}

// RequestResults asks the server for the aggregate ciphertext, decrypts it,
// classifies the signed tally, and reports the plaintext result back.
// Key holder only.
func (c *Client) RequestResults() (*big.Int, election.Winner, error) {
	if !c.keyHolder {
		return nil, "", errors.New("client: only the key holder can decrypt results")
	}
	if err := c.conn.Send(&communication.Message{Type: communication.TypeGetResults}); err != nil {
		return nil, "", err
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return nil, "", fmt.Errorf("client %s: awaiting encrypted sum: %w", c.id, err)
	}
	if msg.Type == communication.TypeError {
		return nil, "", fmt.Errorf("client %s: tally refused: %s", c.id, msg.Message)
	}
	if msg.Type != communication.TypeEncryptedSum || msg.EncryptedSum == nil {
		return nil, "", fmt.Errorf("client %s: expected encrypted_sum, got %q", c.id, msg.Type)
	}

	sum, err := c.secret.Dec(msg.EncryptedSum)
	if err != nil {
		return nil, "", fmt.Errorf("client %s: decrypt tally: %w", c.id, err)
	}
	winner := election.Classify(sum)
	log.Infof("client %s: decrypted sum = %v, winner = %s", c.id, sum, winner)

	if err := c.conn.Send(&communication.Message{
		Type:         communication.TypeResult,
		DecryptedSum: sum,
		Winner:       string(winner),
	}); err != nil {
		return nil, "", err
	}
	return sum, winner, nil
}

// AwaitChallengeAndRespond blocks until the server's sigma challenge arrives,
// then answers it from the retained witness. Afterwards the witness and
// ephemeral values are discarded; they are single-use.
func (c *Client) AwaitChallengeAndRespond() error {
	if c.ephemeral == nil {
		return errors.New("client: no retained proof material")
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("client %s: awaiting challenge: %w", c.id, err)
	}
	if msg.Type != communication.TypeZKPChallenge || msg.Challenge == nil {
		return fmt.Errorf("client %s: expected zkp_challenge, got %q", c.id, msg.Type)
	}
	challenge := &zkballot.Challenge{E: msg.Challenge}

	private := c.witness
	if c.opts.Dishonest {
		private = zkballot.Private{
			M:   new(big.Int).Neg(c.witness.M),
			Rho: c.witness.Rho,
		}
		log.Warnf("client %s: responding with a substituted ballot value", c.id)
	}
	resp := c.ephemeral.Respond(challenge, private, c.shared)

	err = c.conn.Send(&communication.Message{
		Type: communication.TypeZKPResponse,
		U:    c.commitment.A,
		V:    resp.V,
		W:    resp.W,
	})

	c.witness = zkballot.Private{}
	c.ephemeral = nil
	if err != nil {
		return err
	}
	log.Infof("client %s: proof response sent", c.id)
	return nil
}

// Close ends the session.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
