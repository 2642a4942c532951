// Package server implements the coordinating side of the voting protocol:
// client registration, key-holder designation and key fan-out, vote
// ingestion, homomorphic tallying, and the challenge/verification round.
// One goroutine serves each connection; every touch of shared election state
// goes through the election.State serialization point.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/election"
	"ConfidentialVoting/pkg/party"
)

// Server coordinates one election session.
type Server struct {
	cfg   communication.LocalConfig
	state *election.State

	listener net.Listener

	connsMu sync.Mutex
	conns   map[party.ID]*communication.Conn

	sharedKeyReady chan struct{}
	readyOnce      sync.Once

	proofRoundOnce sync.Once

	done         chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	reportMu sync.Mutex
	report   *election.Report
}

// New returns a server for a fresh election session.
func New(cfg communication.LocalConfig) *Server {
	return &Server{
		cfg:            cfg,
		state:          election.NewState(),
		conns:          make(map[party.ID]*communication.Conn),
		sharedKeyReady: make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Listen binds the configured address. Call before Serve; Addr is then valid.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Infof("server: election %s listening on %s", s.state.ID(), listener.Addr())
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until shutdown. Each connection gets its own
// worker goroutine. Serve returns after every worker has unwound.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()

	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
				log.Errorf("server: accept: %v", err)
				s.Shutdown()
				s.wg.Wait()
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(communication.NewConn(raw, s.cfg.MaxMessageSize))
		}()
	}
}

// Shutdown ends the session cooperatively: the accept loop and every blocked
// receive unwind, in-flight connections close, and the registry is cleared.
// Idempotent; triggered externally (operator) or internally (verification
// round completed).
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.Infof("server: election %s shutting down", s.state.ID())
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.connsMu.Lock()
		for _, conn := range s.conns {
			conn.Close()
		}
		s.connsMu.Unlock()
		s.state.Close()
	})
}

// Done is closed once the session has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// FinalReport returns the verification report, or nil if the proof round
// never completed.
func (s *Server) FinalReport() *election.Report {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	return s.report
}

func (s *Server) trackConn(id party.ID, conn *communication.Conn) {
	s.connsMu.Lock()
	s.conns[id] = conn
	s.connsMu.Unlock()
}

func (s *Server) dropConn(id party.ID) {
	s.connsMu.Lock()
	delete(s.conns, id)
	s.connsMu.Unlock()
}

func (s *Server) lookupConn(id party.ID) *communication.Conn {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return s.conns[id]
}

// signalSharedKey releases every worker waiting to fan out the shared key.
func (s *Server) signalSharedKey() {
	s.readyOnce.Do(func() {
		close(s.sharedKeyReady)
	})
}

// waitSharedKey blocks until the key holder has published, bounded by the
// registration timeout.
func (s *Server) waitSharedKey() error {
	select {
	case <-s.sharedKeyReady:
		return nil
	case <-s.done:
		return errors.New("session shut down before key distribution")
	case <-time.After(s.cfg.RegistrationTimeout()):
		return errors.New("no shared public key available")
	}
}
