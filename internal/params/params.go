// Package params collects the tunable constants of the voting protocol.
// Callers may override any of them through the JSON config file loaded by the
// communication package; these are the coded defaults.
package params

import "time"

const (
	// PrimeMinVal and PrimeMaxVal bound the rejection-sampling range for the
	// Paillier primes. Demonstration scale: real deployments must raise these
	// to cryptographic sizes (>= 1024 bit).
	PrimeMinVal = 50
	PrimeMaxVal = 80

	// DefaultListenAddr is where the voting server accepts client connections.
	DefaultListenAddr = "localhost:8888"

	// RegistrationTimeout bounds the server's wait for the key holder to
	// publish its public key, and the client's wait for any registration
	// message.
	RegistrationTimeout = 30 * time.Second

	// ResponseTimeout bounds the server's wait for a voter's proof response.
	// Elapsing is not a fault: the challenge is recorded as unanswered and the
	// voter is flagged.
	ResponseTimeout = 10 * time.Second

	// MaxMessageSize caps a single wire record.
	MaxMessageSize = 1 << 20

	// Voter ID namespace, e.g. C1000..C9999.
	IDNamespacePrefix = "C"
	IDNamespaceMin    = 1000
	IDNamespaceMax    = 9999

	// DefaultFixtureDir is where keygen results and election records are saved.
	DefaultFixtureDir = "fixtures"

	// PrimalityIterations is the Miller-Rabin iteration count.
	// 20 is the same number that Go uses internally.
	PrimalityIterations = 20
)
