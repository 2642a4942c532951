// Package election owns the shared state of one voting session. Every client
// worker on the server routes its mutations through State, whose single mutex
// is the serialization point for the vote registry, the challenge table and
// the phase flag. The cross-cutting invariants (one ciphertext per voter,
// monotonic phase advancement, single key holder) are all enforced here.
package election

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/pkg/paillier"
	"ConfidentialVoting/pkg/party"
	"ConfidentialVoting/pkg/protocol"
	"ConfidentialVoting/pkg/zk/ballot"
)

var (
	ErrNoSharedKey    = errors.New("election: no shared public key")
	ErrNotKeyHolder   = errors.New("election: operation reserved for the key holder")
	ErrDuplicateVote  = errors.New("election: voter already cast a ciphertext")
	ErrNoVotes        = errors.New("election: no votes recorded")
	ErrNoSuchVoter    = errors.New("election: unknown voter")
	ErrChallengeState = errors.New("election: no outstanding challenge for voter")
)

// VoteRecord is one voter's contribution as the server stores it.
// Ciphertext and Commitment are immutable once set.
type VoteRecord struct {
	Voter      party.ID
	Ciphertext *paillier.Ciphertext
	Commitment *zkballot.Commitment
}

// verification is the per-voter outcome of the proof round.
type verification struct {
	answered bool
	valid    bool
}

// State is the server's view of the election.
type State struct {
	mu sync.Mutex

	id    string
	phase Phase
	ns    *party.Namespace

	keyHolder party.ID
	sharedKey *paillier.PublicKey

	registry      map[party.ID]*VoteRecord
	challenges    map[party.ID]*zkballot.Challenge
	verifications map[party.ID]*verification

	tally     *paillier.Ciphertext
	decrypted *big.Int
}

// NewState starts a fresh election session.
func NewState() *State {
	return &State{
		id:            uuid.NewString(),
		phase:         Registering,
		ns:            party.NewNamespace(),
		registry:      make(map[party.ID]*VoteRecord),
		challenges:    make(map[party.ID]*zkballot.Challenge),
		verifications: make(map[party.ID]*verification),
	}
}

// ID returns the election session identifier.
func (s *State) ID() string {
	return s.id
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// advance moves the phase forward. Going backwards is a bug in the caller.
func (s *State) advance(to Phase) {
	if to < s.phase {
		panic(fmt.Sprintf("election: phase %v cannot revisit %v", s.phase, to))
	}
	if to != s.phase {
		log.Infof("election %s: phase %v -> %v", s.id, s.phase, to)
		s.phase = to
	}
}

// Register admits a new client, drawing a randomized unlinkable identifier.
// The first registrant is atomically designated key holder; the designation
// travels back with the registration so no client-side timeout is needed.
// Registrations after tallying has begun are refused.
func (s *State) Register(rand io.Reader) (party.ID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase > Collecting {
		return "", false, protocol.ErrSessionEnded
	}
	id, err := s.ns.Draw(rand)
	if err != nil {
		return "", false, err
	}
	if _, exists := s.registry[id]; exists {
		// Namespace collisions are checked at the source; a repeat identity
		// is rejected rather than overwritten.
		return "", false, fmt.Errorf("election: identity %s already registered", id)
	}
	s.registry[id] = &VoteRecord{Voter: id}

	if s.keyHolder == "" {
		s.keyHolder = id
		s.advance(KeyDistribution)
		return id, true, nil
	}
	return id, false, nil
}

// Withdraw handles an abrupt disconnection. A voter that never cast a
// ciphertext leaves no trace; a recorded vote stays in the registry for
// tally purposes.
func (s *State) Withdraw(id party.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.registry[id]
	if !ok {
		return
	}
	if rec.Ciphertext == nil {
		delete(s.registry, id)
		log.Infof("election %s: %s withdrew before voting", s.id, id)
	}
}

// KeyHolder returns the designated key holder's identity.
func (s *State) KeyHolder() party.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyHolder
}

// SetSharedKey stores the election public key published by the key holder
// and opens vote collection. Only the key holder may publish, and only once.
func (s *State) SetSharedKey(id party.ID, pk *paillier.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.keyHolder {
		return protocol.Error{Culprit: id, Err: ErrNotKeyHolder}
	}
	if s.sharedKey != nil {
		return protocol.Error{Culprit: id, Err: errors.New("election: shared key already set")}
	}
	if err := paillier.ValidateN(pk.N()); err != nil {
		return protocol.Error{Culprit: id, Err: err}
	}
	s.sharedKey = pk
	s.advance(Collecting)
	return nil
}

// SharedKey returns the election public key once the key holder published it.
func (s *State) SharedKey() (*paillier.PublicKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharedKey, s.sharedKey != nil
}

// RecordVote appends one ciphertext and its sigma commitment to the registry.
// One per voter; the commitment must be on file before any challenge is
// issued, so it travels with the vote.
func (s *State) RecordVote(id party.ID, ct *paillier.Ciphertext, commitment *zkballot.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Collecting {
		return protocol.Error{Culprit: id, Err: protocol.ErrPhase}
	}
	rec, ok := s.registry[id]
	if !ok {
		return protocol.Error{Culprit: id, Err: ErrNoSuchVoter}
	}
	if rec.Ciphertext != nil {
		return protocol.Error{Culprit: id, Err: ErrDuplicateVote}
	}
	if ct == nil || commitment == nil || commitment.A == nil {
		return protocol.Error{Culprit: id, Err: protocol.ErrMalformed}
	}
	if !s.sharedKey.ValidateCiphertexts(ct, commitment.A) {
		return protocol.Error{Culprit: id, Err: errors.New("election: ciphertext invalid under shared key")}
	}
	rec.Ciphertext = ct.Clone()
	rec.Commitment = &zkballot.Commitment{A: commitment.A.Clone()}
	log.Infof("election %s: recorded vote from %s", s.id, id)
	return nil
}

// BeginTally computes the homomorphic sum over all stored ciphertexts and
// moves the session into the proof round. After this point no further votes
// or registrations are accepted. Only the key holder may trigger it.
func (s *State) BeginTally(requester party.ID) (*paillier.Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requester != s.keyHolder {
		return nil, protocol.Error{Culprit: requester, Err: ErrNotKeyHolder}
	}
	if s.phase != Collecting {
		return nil, protocol.Error{Culprit: requester, Err: protocol.ErrPhase}
	}
	if s.sharedKey == nil {
		return nil, ErrNoSharedKey
	}
	s.advance(Tallying)

	// Σc = c₁ ⋅ c₂ ⋅ … ⋅ c_k (mod N²). Multiplication commutes, so vote
	// arrival order is irrelevant.
	var sum *paillier.Ciphertext
	for _, rec := range s.registry {
		if rec.Ciphertext == nil {
			continue
		}
		if sum == nil {
			sum = rec.Ciphertext.Clone()
		} else {
			sum.Add(s.sharedKey, rec.Ciphertext)
		}
	}
	if sum == nil {
		return nil, ErrNoVotes
	}
	s.tally = sum
	s.advance(Challenging)
	log.Infof("election %s: tallied %d ballots", s.id, len(s.challengeable()))
	return sum.Clone(), nil
}

// challengeable lists the voters holding a recorded ciphertext. Caller holds mu.
func (s *State) challengeable() []party.ID {
	ids := make([]party.ID, 0, len(s.registry))
	for id, rec := range s.registry {
		if rec.Ciphertext != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Voters returns the identities the proof round must cover.
func (s *State) Voters() []party.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengeable()
}

// IssueChallenge draws a fresh challenge for one voter, bound to that voter's
// stored ciphertext. At most one outstanding challenge per voter.
func (s *State) IssueChallenge(rand io.Reader, id party.ID) (*zkballot.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Challenging && s.phase != Verifying {
		return nil, protocol.Error{Culprit: id, Err: protocol.ErrPhase}
	}
	rec, ok := s.registry[id]
	if !ok || rec.Ciphertext == nil {
		return nil, protocol.Error{Culprit: id, Err: ErrNoSuchVoter}
	}
	if _, issued := s.challenges[id]; issued {
		return nil, protocol.Error{Culprit: id, Err: errors.New("election: challenge already outstanding")}
	}
	challenge, err := zkballot.NewChallenge(rand, s.sharedKey)
	if err != nil {
		return nil, err
	}
	s.challenges[id] = challenge
	return challenge, nil
}

// RecordResponse verifies one proof response against the voter's stored
// ciphertext, commitment and issued challenge, and records the outcome.
// A failed verification is a detection result, not an error: it is recorded
// as a fraud flag and verification of the remaining voters continues.
// A response outside the proof round is refused without touching the phase,
// so one out-of-phase message cannot derail the other sessions.
func (s *State) RecordResponse(id party.ID, echo *paillier.Ciphertext, resp *zkballot.Response) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Challenging && s.phase != Verifying {
		return false, protocol.Error{Culprit: id, Err: protocol.ErrPhase}
	}
	rec, challenge, err := s.lookupRound(id)
	if err != nil {
		return false, err
	}
	s.advance(Verifying)

	valid := resp != nil &&
		// The echoed commitment must match what was stored before the
		// challenge went out; anything else would let a prover pick the
		// commitment after seeing e.
		echo != nil && rec.Commitment.A.Equal(echo) &&
		zkballot.Verify(rec.Commitment, challenge, resp, zkballot.Public{
			C:      rec.Ciphertext,
			Prover: s.sharedKey,
		})
	s.verifications[id] = &verification{answered: true, valid: valid}
	if valid {
		log.Infof("election %s: voter %s proof VALID", s.id, id)
	} else {
		log.Warnf("election %s: voter %s proof INVALID, fraud flagged", s.id, id)
	}
	return valid, nil
}

// MarkUnanswered records an elapsed response wait for one voter. The voter is
// fraud-flagged: an unanswerable challenge is indistinguishable from an
// unwillingness to answer it.
func (s *State) MarkUnanswered(id party.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Challenging && s.phase != Verifying {
		return
	}
	if _, issued := s.challenges[id]; !issued {
		return
	}
	if _, done := s.verifications[id]; done {
		return
	}
	s.advance(Verifying)
	s.verifications[id] = &verification{answered: false, valid: false}
	log.Warnf("election %s: voter %s challenge unanswered", s.id, id)
}

// lookupRound fetches the record and challenge for a response. Caller holds mu.
func (s *State) lookupRound(id party.ID) (*VoteRecord, *zkballot.Challenge, error) {
	rec, ok := s.registry[id]
	if !ok || rec.Ciphertext == nil {
		return nil, nil, protocol.Error{Culprit: id, Err: ErrNoSuchVoter}
	}
	challenge, issued := s.challenges[id]
	if !issued {
		return nil, nil, protocol.Error{Culprit: id, Err: ErrChallengeState}
	}
	if _, done := s.verifications[id]; done {
		return nil, nil, protocol.Error{Culprit: id, Err: errors.New("election: response already recorded")}
	}
	return rec, challenge, nil
}

// RecordResult stores the decrypted tally reported by the key holder.
func (s *State) RecordResult(id party.ID, sum *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.keyHolder {
		return protocol.Error{Culprit: id, Err: ErrNotKeyHolder}
	}
	s.decrypted = new(big.Int).Set(sum)
	log.Infof("election %s: key holder reports tally %v (%s)", s.id, sum, Classify(sum))
	return nil
}

// VerificationComplete reports whether every outstanding challenge has been
// answered or timed out.
func (s *State) VerificationComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase < Challenging {
		return false
	}
	for id := range s.challenges {
		if _, done := s.verifications[id]; !done {
			return false
		}
	}
	return true
}

// Close ends the session and clears the registry. Idempotent.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Closed {
		return
	}
	s.advance(Closed)
	s.registry = make(map[party.ID]*VoteRecord)
	s.challenges = make(map[party.ID]*zkballot.Challenge)
}
