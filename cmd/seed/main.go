// Package main provides a CLI that seeds the configured database with an
// admin account, demo data, past events or upcoming events.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"schoolevents/internal/auth"
	"schoolevents/internal/config"
	"schoolevents/internal/logging"
	"schoolevents/internal/school"
	"schoolevents/internal/seed"
	"schoolevents/internal/store"
)

const usage = `usage: seed [flags] <command>

commands:
  admin      delete and recreate the admin account
  sample     add demo events and students with random registrations
  previous   add past events with historical attendance
  generate   add upcoming events
  all        admin, sample, previous and generate in that order

flags:
`

func main() {
	var (
		username string
		password string
		seedVal  uint64
		count    int
	)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&username, "username", cfg.AdminUsername, "admin username")
	flag.StringVar(&password, "password", cfg.AdminPassword, "admin password (default $ADMIN_PASSWORD, else admin123)")
	flag.Uint64Var(&seedVal, "seed", 0, "random seed for reproducibility (0 = random)")
	flag.IntVar(&count, "count", 0, "number of upcoming events for generate (0 = one per template)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if password == "" {
		password = "admin123"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg, flag.Arg(0), username, password, seedVal, count); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, command, username, password string, seedVal uint64, count int) error {
	steps := map[string][]string{
		"admin":    {"admin"},
		"sample":   {"sample"},
		"previous": {"previous"},
		"generate": {"generate"},
		"all":      {"admin", "sample", "previous", "generate"},
	}
	plan, ok := steps[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	log := logging.New(cfg.Env, cfg.LogLevel)
	seeder := seed.New(school.NewRepository(db), auth.BcryptHasher{}, loc, log)

	if seedVal == 0 {
		seedVal = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seedVal, seedVal))
	log.Info().Uint64("seed", seedVal).Strs("steps", plan).Msg("seeding")

	for _, step := range plan {
		var rep seed.Report
		switch step {
		case "admin":
			u, err := seeder.EnsureAdmin(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Printf("Admin user %q created (id %d)\n", u.Handle, u.ID)
			continue
		case "sample":
			rep, err = seeder.SampleData(ctx, rng)
		case "previous":
			rep, err = seeder.PreviousData(ctx, rng)
		case "generate":
			rep, err = seeder.GenerateEvents(ctx, rng, count)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d events, %d students, %d registrations\n", step, rep.Events, rep.Students, rep.Registrations)
	}
	return nil
}
