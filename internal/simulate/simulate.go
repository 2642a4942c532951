// Package simulate runs a complete election in one process: a server on a
// loopback listener and one client session per ballot, driven concurrently.
// The demo subcommand and the end-to-end tests both build on it.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/client"
	"ConfidentialVoting/internal/election"
	"ConfidentialVoting/internal/server"
	"ConfidentialVoting/pkg/party"
)

// Cast is one scripted ballot. The label only appears in logs; on the wire
// the voter is known by its randomized session identifier.
type Cast struct {
	Voter     string
	Value     client.Value
	Dishonest bool
}

// Scenario scripts an election. The first cast's client connects first and
// therefore becomes the key holder.
type Scenario struct {
	Casts []Cast
}

// Outcome is everything a scenario produces. IDs maps each cast's label to
// the randomized session identifier the server knew the voter by.
type Outcome struct {
	Tally  *big.Int
	Winner election.Winner
	Report *election.Report
	IDs    map[string]party.ID
}

// Run plays the scenario to completion and returns the outcome.
func Run(ctx context.Context, cfg communication.LocalConfig, sc Scenario) (*Outcome, error) {
	if len(sc.Casts) == 0 {
		return nil, errors.New("simulate: scenario has no ballots")
	}

	srv := server.New(cfg)
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	cfg.ServerAddr = srv.Addr().String()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()
	defer srv.Shutdown()

	// Connect sequentially so the first cast registers first and is
	// designated key holder.
	clients := make([]*client.Client, len(sc.Casts))
	ids := make(map[string]party.ID, len(sc.Casts))
	for i, cast := range sc.Casts {
		c := client.New(cfg, client.Options{Dishonest: cast.Dishonest})
		if err := c.Connect(); err != nil {
			return nil, fmt.Errorf("simulate: connect %s: %w", cast.Voter, err)
		}
		defer c.Close()
		clients[i] = c
		ids[cast.Voter] = c.ID()
		log.Infof("simulate: %s connected as %s", cast.Voter, c.ID())
	}
	if !clients[0].IsKeyHolder() {
		return nil, errors.New("simulate: first client was not designated key holder")
	}

	// All ballots go in before the key holder asks for the tally; a vote
	// arriving later would be refused.
	votes, _ := errgroup.WithContext(ctx)
	for i, cast := range sc.Casts {
		i, cast := i, cast
		votes.Go(func() error {
			return clients[i].CastVote(cast.Value)
		})
	}
	if err := votes.Wait(); err != nil {
		return nil, err
	}

	outcome := &Outcome{IDs: ids}
	proofs, _ := errgroup.WithContext(ctx)
	for i := range clients {
		c := clients[i]
		if c.IsKeyHolder() {
			proofs.Go(func() error {
				tally, winner, err := c.RequestResults()
				if err != nil {
					return err
				}
				outcome.Tally = tally
				outcome.Winner = winner
				return c.AwaitChallengeAndRespond()
			})
		} else {
			proofs.Go(func() error {
				return c.AwaitChallengeAndRespond()
			})
		}
	}
	if err := proofs.Wait(); err != nil {
		return nil, err
	}

	// The server shuts itself down once every challenge is answered or
	// timed out.
	select {
	case <-srv.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := <-serveErr; err != nil {
		return nil, err
	}

	outcome.Report = srv.FinalReport()
	if outcome.Report == nil {
		return nil, errors.New("simulate: proof round produced no report")
	}
	return outcome, nil
}
