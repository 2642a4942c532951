package server

import (
	crand "crypto/rand"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/save"
	"ConfidentialVoting/pkg/party"
	"ConfidentialVoting/pkg/protocol"
)

// handleConn drives one client connection through the protocol. Errors are
// isolated to this worker: it cleans up its registry entry where appropriate
// and closes its socket, never touching the other sessions.
func (s *Server) handleConn(conn *communication.Conn) {
	defer conn.Close()

	id, keyHolder, err := s.state.Register(crand.Reader)
	if err != nil {
		if errors.Is(err, protocol.ErrSessionEnded) {
			conn.SendError("session ended")
		} else {
			log.Errorf("server: registration failed: %v", err)
			conn.SendError("registration failed")
		}
		return
	}
	log.Infof("server: connected client %s from %v", id, conn.RemoteAddr())

	s.trackConn(id, conn)
	defer s.dropConn(id)
	defer s.state.Withdraw(id)

	if err := conn.Send(&communication.Message{
		Type:     communication.TypeClientID,
		ClientID: string(id),
	}); err != nil {
		log.Errorf("server: %s: send client_id: %v", id, err)
		return
	}

	if keyHolder {
		if err := s.keyHolderHandshake(id, conn); err != nil {
			log.Errorf("server: %s: key distribution: %v", id, err)
			return
		}
	} else {
		if err := s.voterHandshake(id, conn); err != nil {
			log.Errorf("server: %s: key distribution: %v", id, err)
			conn.SendError(err.Error())
			return
		}
	}

	s.serveMessages(id, conn)
}

// keyHolderHandshake designates the first registrant, blocks bounded on its
// public key, stores it as the session's shared key and confirms.
func (s *Server) keyHolderHandshake(id party.ID, conn *communication.Conn) error {
	if err := conn.Send(&communication.Message{Type: communication.TypeKeyHolder}); err != nil {
		return err
	}
	msg, err := conn.ReceiveTimeout(s.cfg.RegistrationTimeout())
	if err != nil {
		return err
	}
	if msg.Type != communication.TypePublicKey || msg.PublicKey == nil {
		conn.SendError("expected public_key")
		return protocol.Error{Culprit: id, Err: protocol.ErrMalformed}
	}
	if err := s.state.SetSharedKey(id, msg.PublicKey); err != nil {
		conn.SendError(err.Error())
		return err
	}
	log.Infof("server: received public key from key holder %s", id)
	s.signalSharedKey()
	return conn.Send(&communication.Message{Type: communication.TypeFirstClientConfirmed})
}

// voterHandshake sends the shared public key once the key holder published it.
func (s *Server) voterHandshake(id party.ID, conn *communication.Conn) error {
	if err := s.waitSharedKey(); err != nil {
		return err
	}
	pk, ok := s.state.SharedKey()
	if !ok {
		return errors.New("shared key vanished")
	}
	log.Infof("server: sent shared public key to %s", id)
	return conn.Send(&communication.Message{
		Type:      communication.TypeSharedPublicKey,
		PublicKey: pk,
	})
}

// serveMessages is the per-connection receive loop for the voting and proof
// phases. A protocol violation drops this connection only.
func (s *Server) serveMessages(id party.ID, conn *communication.Conn) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, communication.ErrClosed) {
				log.Infof("server: %s: receive: %v", id, err)
			}
			return
		}

		switch msg.Type {
		case communication.TypeVote:
			if err := s.state.RecordVote(id, msg.EncryptedVote, commitmentOf(msg)); err != nil {
				log.Warnf("server: %v", err)
				conn.SendError(err.Error())
				return
			}
			if err := conn.Send(&communication.Message{Type: communication.TypeVoteReceived}); err != nil {
				return
			}

		case communication.TypeGetResults:
			sum, err := s.state.BeginTally(id)
			if err != nil {
				// The tally step aborts; the session survives for others.
				log.Warnf("server: %s: tally refused: %v", id, err)
				conn.SendError(err.Error())
				continue
			}
			log.Infof("server: sent encrypted sum to %s for decryption", id)
			if err := conn.Send(&communication.Message{
				Type:         communication.TypeEncryptedSum,
				EncryptedSum: sum,
			}); err != nil {
				return
			}
			s.proofRoundOnce.Do(func() {
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.runProofRound()
				}()
			})

		case communication.TypeResult:
			if msg.DecryptedSum == nil {
				conn.SendError("result without decrypted_sum")
				return
			}
			if err := s.state.RecordResult(id, msg.DecryptedSum); err != nil {
				log.Warnf("server: %v", err)
				conn.SendError(err.Error())
				return
			}

		case communication.TypeZKPResponse:
			resp := responseOf(msg)
			if _, err := s.state.RecordResponse(id, msg.U, resp); err != nil {
				log.Warnf("server: %v", err)
				conn.SendError(err.Error())
				return
			}

		default:
			log.Warnf("server: %s: unexpected message %q", id, msg.Type)
			conn.SendError("unexpected message " + msg.Type)
			return
		}
	}
}

// runProofRound issues one fresh challenge per registered voter, each bound
// to that voter's stored ciphertext, then waits bounded for the responses
// (which arrive through the per-connection loops). Unanswered challenges are
// flagged; the session then reports and shuts itself down.
func (s *Server) runProofRound() {
	voters := s.state.Voters()
	log.Infof("server: starting proof round for %d voters", len(voters))

	for _, id := range voters {
		challenge, err := s.state.IssueChallenge(crand.Reader, id)
		if err != nil {
			log.Errorf("server: %s: issue challenge: %v", id, err)
			continue
		}
		conn := s.lookupConn(id)
		if conn == nil {
			// Voter withdrew after voting: the ballot stays in the tally but
			// the proof can never arrive.
			s.state.MarkUnanswered(id)
			continue
		}
		if err := conn.Send(&communication.Message{
			Type:      communication.TypeZKPChallenge,
			Challenge: challenge.E,
		}); err != nil {
			s.state.MarkUnanswered(id)
		}
	}

	deadline := time.NewTimer(s.cfg.ResponseTimeout())
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

waiting:
	for !s.state.VerificationComplete() {
		select {
		case <-deadline.C:
			for _, id := range voters {
				s.state.MarkUnanswered(id)
			}
			break waiting
		case <-s.done:
			return
		case <-poll.C:
		}
	}

	report := s.state.Report()
	s.reportMu.Lock()
	s.report = report
	s.reportMu.Unlock()

	for id, flagged := range report.FraudFlags {
		if flagged {
			log.Warnf("server: voter %s FRAUD FLAGGED", id)
		} else {
			log.Infof("server: voter %s proof valid", id)
		}
	}
	if s.cfg.FixtureDir != "" {
		if err := save.SaveElectionRecord(s.cfg.FixtureDir, report); err != nil {
			log.Warnf("server: fail to save election record: %v", err)
		}
	}
	s.Shutdown()
}
