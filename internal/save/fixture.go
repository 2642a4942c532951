// Package save persists protocol results between runs: the key holder's
// generated key material and the server's final election record. Fixtures are
// cbor-encoded and carried in a checksummed envelope so a torn write is
// detected on load.
package save

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"ConfidentialVoting/internal/election"
	"ConfidentialVoting/pkg/paillier"
)

const (
	keygenFixtureFile         = "keygen_result.data"
	electionRecordFixtureFile = "election_record.data"
)

// ErrFixtureCorrupt reports a fixture whose checksum does not match its payload.
var ErrFixtureCorrupt = errors.New("save: fixture checksum mismatch")

// envelope wraps every fixture payload with its blake3 checksum.
type envelope struct {
	Payload []byte `cbor:"payload"`
	Sum     []byte `cbor:"sum"`
}

func writeFixture(path string, v interface{}) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	sum := blake3.Sum256(payload)
	buf, err := cbor.Marshal(envelope{Payload: payload, Sum: sum[:]})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return err
	}
	log.Infof("saved fixture %s", path)
	return nil
}

func readFixture(path string, v interface{}) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var env envelope
	if err := cbor.Unmarshal(buf, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	sum := blake3.Sum256(env.Payload)
	if len(env.Sum) != len(sum) {
		return ErrFixtureCorrupt
	}
	for i := range sum {
		if env.Sum[i] != sum[i] {
			return ErrFixtureCorrupt
		}
	}
	return cbor.Unmarshal(env.Payload, v)
}

// keygenResult is the at-rest form of the key holder's secret key. The primes
// stay local to the holder; they are never serialized onto the wire.
type keygenResult struct {
	P []byte `cbor:"p"`
	Q []byte `cbor:"q"`
}

// SaveKeyGenResult saves the key holder's key pair under dir.
func SaveKeyGenResult(dir string, sk *paillier.SecretKey) error {
	return writeFixture(filepath.Join(dir, keygenFixtureFile), keygenResult{
		P: sk.P().Bytes(),
		Q: sk.Q().Bytes(),
	})
}

// LoadKeyGenResult restores a previously saved key pair.
func LoadKeyGenResult(dir string) (*paillier.SecretKey, error) {
	var kr keygenResult
	if err := readFixture(filepath.Join(dir, keygenFixtureFile), &kr); err != nil {
		return nil, err
	}
	return paillier.NewSecretKeyFromPrimes(
		new(big.Int).SetBytes(kr.P),
		new(big.Int).SetBytes(kr.Q),
	)
}

// SaveElectionRecord saves the server's final verification report under dir.
func SaveElectionRecord(dir string, r *election.Report) error {
	return writeFixture(filepath.Join(dir, electionRecordFixtureFile), r)
}

// LoadElectionRecord restores a previously saved verification report.
func LoadElectionRecord(dir string) (*election.Report, error) {
	r := &election.Report{}
	if err := readFixture(filepath.Join(dir, electionRecordFixtureFile), r); err != nil {
		return nil, err
	}
	return r, nil
}
