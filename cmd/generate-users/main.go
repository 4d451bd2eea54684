// Command generate-users creates placeholder users for NFC tags that will
// be handed out later. Each gets a TEST_ or PROD_ prefixed NFC UID.
//
// Flags:
//
//	-count   number of placeholders (default 100)
//	-env     test or prod
//	-force   allow prod placeholders when registered users exist
//	-config  path to the YAML config file
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres"
	userrepo "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/user"
	"github.com/heartmarshall/nfc-fortune-backend/internal/app"
	"github.com/heartmarshall/nfc-fortune-backend/internal/app/provision"
	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
)

func main() {
	count := flag.Int("count", 100, "number of placeholder users")
	env := flag.String("env", provision.EnvTest, "test or prod")
	force := flag.Bool("force", false, "add prod placeholders even if registered users exist")
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	p := provision.New(userrepo.New(pool), postgres.NewTxManager(pool), logger)

	res, err := p.Run(ctx, provision.Options{
		Count:             *count,
		Env:               *env,
		Force:             *force,
		PlaceholderPrefix: cfg.Fortune.PlaceholderPrefix,
	})
	if res != nil {
		fmt.Printf("requested: %d\ncreated:   %d\nskipped:   %d\nfailed:    %d\n",
			res.Requested, res.Created, res.Skipped, res.Failed)
	}
	if err != nil {
		logger.Error("generate users", slog.String("error", err.Error()))
		pool.Close()
		os.Exit(1)
	}
	if res.Failed > 0 {
		pool.Close()
		os.Exit(1)
	}

	logger.Info("placeholder users created", slog.Int("created", res.Created), slog.String("env", *env))
}
