/*
Confidential voting over a Paillier additively-homomorphic cryptosystem with
sigma-protocol vote-integrity proofs.

	go run . server [config.json]        start the coordinating server
	go run . client <yes|no> [config.json]   cast one ballot
	go run . demo [fraud]                run a three-voter election in-process
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"ConfidentialVoting/communication"
	"ConfidentialVoting/internal/client"
	"ConfidentialVoting/internal/server"
	"ConfidentialVoting/internal/simulate"
)

func printTips() {
	fmt.Println("Usage:")
	fmt.Println("[-] server [config.json]")
	fmt.Println("[-] client <yes|no> [config.json]")
	fmt.Println("[-] demo [fraud]")
}

func loadConfig(args []string) communication.LocalConfig {
	if len(args) > 0 {
		cfg, err := communication.LoadConnConfig(args[0])
		if err != nil {
			log.Fatalf("fail load config: %v", err)
		}
		return cfg
	}
	return communication.DefaultConfig()
}

func runServer(args []string) {
	cfg := loadConfig(args)
	srv := server.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		log.Fatalln(err)
	}
	if report := srv.FinalReport(); report != nil {
		fmt.Printf("election %s: tally=%v winner=%s\n", report.ElectionID, report.Tally, report.Winner)
		for voter, flagged := range report.FraudFlags {
			status := "VALID"
			if flagged {
				status = "FRAUD"
			}
			fmt.Printf("  voter %s: %s\n", voter, status)
		}
	}
}

func runClient(args []string) {
	if len(args) < 1 {
		printTips()
		os.Exit(1)
	}
	value, err := client.ParseValue(args[0])
	if err != nil {
		log.Fatalln(err)
	}
	cfg := loadConfig(args[1:])

	c := client.New(cfg, client.Options{})
	if err := c.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer c.Close()

	if err := c.CastVote(value); err != nil {
		log.Fatalln(err)
	}

	if c.IsKeyHolder() {
		fmt.Print("Press Enter to get results (after all clients have voted)...")
		bufio.NewReader(os.Stdin).ReadString('\n')
		tally, winner, err := c.RequestResults()
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("FINAL RESULTS: decrypted sum = %v, winner = %s\n", tally, winner)
	}

	if err := c.AwaitChallengeAndRespond(); err != nil {
		log.Fatalln(err)
	}
}

func runDemo(args []string) {
	fraud := len(args) > 0 && args[0] == "fraud"

	scenario := simulate.Scenario{Casts: []simulate.Cast{
		{Voter: "Alice", Value: client.Yes},
		{Voter: "Bob", Value: client.No, Dishonest: fraud},
		{Voter: "Charlie", Value: client.Yes},
	}}

	outcome, err := simulate.Run(context.Background(), communication.DefaultConfig(), scenario)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("tally = %v, winner = %s\n", outcome.Tally, outcome.Winner)
	for voter, flagged := range outcome.Report.FraudFlags {
		status := "VALID"
		if flagged {
			status = "FRAUD DETECTED"
		}
		fmt.Printf("voter %s: %s\n", voter, status)
	}
}

func main() {
	if len(os.Args) < 2 {
		printTips()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	case "client":
		runClient(os.Args[2:])
	case "demo":
		runDemo(os.Args[2:])
	default:
		printTips()
		os.Exit(1)
	}
}
