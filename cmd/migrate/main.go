package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"wallet-ledger/config"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-config file] up|down|version")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	command := flag.Arg(0)
	if err := run(cfg.Database.DSN(), command, log); err != nil {
		log.Error().Err(err).Str("command", command).Msg("Migration failed")
		os.Exit(1)
	}
	log.Info().Str("command", command).Msg("Migration finished")
}

func run(dsn, command string, log zerolog.Logger) (err error) {
	m, err := pgStorage.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info().Uint("version", v).Bool("dirty", dirty).Msg("Schema version")
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
