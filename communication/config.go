package communication

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/internal/params"
)

// LocalConfig represents the local configuration for one process, server or
// client. All values have coded defaults; a JSON config file overrides them.
type LocalConfig struct {
	// Represents the address the server listens on.
	ListenAddr string `json:"listenAddr"`
	// Represents the address clients dial.
	ServerAddr string `json:"serverAddr"`
	// Bounds for the Paillier prime rejection sampling.
	PrimeMinVal uint64 `json:"primeMinVal"`
	PrimeMaxVal uint64 `json:"primeMaxVal"`
	// Timeout in seconds for the registration and key distribution waits.
	RegistrationTimeoutSecond int `json:"registrationTimeoutSecond"`
	// Timeout in seconds for a voter's proof response.
	ResponseTimeoutSecond int `json:"responseTimeoutSecond"`
	// Cap on a single wire record, in bytes.
	MaxMessageSize int `json:"maxMessageSize"`
	// Directory for keygen and election record fixtures.
	FixtureDir string `json:"fixtureDir"`
}

// DefaultConfig returns the coded defaults from internal/params.
func DefaultConfig() LocalConfig {
	return LocalConfig{
		ListenAddr:                params.DefaultListenAddr,
		ServerAddr:                params.DefaultListenAddr,
		PrimeMinVal:               params.PrimeMinVal,
		PrimeMaxVal:               params.PrimeMaxVal,
		RegistrationTimeoutSecond: int(params.RegistrationTimeout / time.Second),
		ResponseTimeoutSecond:     int(params.ResponseTimeout / time.Second),
		MaxMessageSize:            params.MaxMessageSize,
		FixtureDir:                params.DefaultFixtureDir,
	}
}

// LoadConnConfig loads the configuration file at path over the defaults.
func LoadConnConfig(path string) (LocalConfig, error) {
	cfg := DefaultConfig()

	jsonFile, err := os.Open(path)
	if err != nil {
		log.Errorf("fail open config %s", path)
		return cfg, err
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(byteValue, &cfg); err != nil {
		log.Errorf("fail unmarshal config %s", path)
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	log.Infof("done unmarshal config %s", path)
	return cfg, nil
}

// Validate rejects configurations the protocol cannot run with.
func (cfg LocalConfig) Validate() error {
	if cfg.PrimeMaxVal <= cfg.PrimeMinVal {
		return fmt.Errorf("prime range [%d, %d] is empty", cfg.PrimeMinVal, cfg.PrimeMaxVal)
	}
	if cfg.PrimeMinVal < 3 {
		return fmt.Errorf("prime range must start above 2")
	}
	if cfg.RegistrationTimeoutSecond <= 0 || cfg.ResponseTimeoutSecond <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if cfg.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	return nil
}

// RegistrationTimeout returns the registration wait as a duration.
func (cfg LocalConfig) RegistrationTimeout() time.Duration {
	return time.Duration(cfg.RegistrationTimeoutSecond) * time.Second
}

// ResponseTimeout returns the proof response wait as a duration.
func (cfg LocalConfig) ResponseTimeout() time.Duration {
	return time.Duration(cfg.ResponseTimeoutSecond) * time.Second
}
