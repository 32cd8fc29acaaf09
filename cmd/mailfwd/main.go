// mailfwd checks the configured IMAP mailboxes for messages that arrived
// since the last run and forwards each one through the SMTP relay. It is a
// batch job: one invocation, one run, meant to be driven by cron or a
// systemd timer.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/vdavid/mailfwd/internal/config"
	"github.com/vdavid/mailfwd/internal/cursor"
	"github.com/vdavid/mailfwd/internal/imap"
	"github.com/vdavid/mailfwd/internal/relay"
	"github.com/vdavid/mailfwd/internal/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	statePath := flag.String("state", "", "path to the UID state file (overrides state_file from the config)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	stateFile := cfg.StateFile
	if *statePath != "" {
		stateFile = *statePath
	}

	run := &runner.Runner{
		Config:     cfg,
		Store:      cursor.NewStore(stateFile),
		Poller:     &imap.Poller{},
		Dispatcher: &relay.Dispatcher{Relay: cfg.SMTP},
		Log:        log,
	}

	if err := run.Run(); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}
