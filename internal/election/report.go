package election

import (
	"encoding/binary"
	"math/big"
	"sort"

	"golang.org/x/crypto/sha3"

	"ConfidentialVoting/pkg/party"
)

// Winner classifies a decrypted tally.
type Winner string

const (
	WinnerYes Winner = "YES"
	WinnerNo  Winner = "NO"
	WinnerTie Winner = "TIE"
)

// Classify maps the signed tally to its outcome.
func Classify(sum *big.Int) Winner {
	switch sum.Sign() {
	case 1:
		return WinnerYes
	case -1:
		return WinnerNo
	default:
		return WinnerTie
	}
}

// Report is the final, externally reportable view of the election: the tally,
// the per-voter fraud flags from the proof round, and a transcript digest
// over everything the flags were computed against.
type Report struct {
	ElectionID string            `json:"election_id"`
	Voters     int               `json:"voters"`
	Tally      *big.Int          `json:"tally,omitempty"`
	Winner     Winner            `json:"winner,omitempty"`
	FraudFlags map[party.ID]bool `json:"fraud_flags"`
	// TranscriptDigest commits to the election ID, every stored ciphertext
	// and commitment, the aggregate ciphertext and the reported tally.
	TranscriptDigest []byte `json:"transcript_digest"`
}

// Report assembles the verification report. Call it after the proof round
// and before Close, which clears the registry the transcript hashes over.
func (s *State) Report() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make(map[party.ID]bool, len(s.challenges))
	for id := range s.challenges {
		v, done := s.verifications[id]
		flags[id] = !(done && v.valid)
	}

	r := &Report{
		ElectionID: s.id,
		Voters:     len(s.challengeable()),
		FraudFlags: flags,
	}
	if s.decrypted != nil {
		r.Tally = new(big.Int).Set(s.decrypted)
		r.Winner = Classify(r.Tally)
	}
	r.TranscriptDigest = s.transcriptDigest()
	return r
}

// transcriptDigest hashes the election record in voter order. Caller holds mu.
func (s *State) transcriptDigest() []byte {
	h := sha3.New256()
	writeField := func(b []byte) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(b)))
		h.Write(length[:])
		h.Write(b)
	}

	writeField([]byte(s.id))
	ids := s.challengeable()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rec := s.registry[id]
		writeField([]byte(id))
		writeField(rec.Ciphertext.Bytes())
		writeField(rec.Commitment.A.Bytes())
	}
	if s.tally != nil {
		writeField(s.tally.Bytes())
	}
	if s.decrypted != nil {
		writeField(s.decrypted.Bytes())
	}
	return h.Sum(nil)
}
