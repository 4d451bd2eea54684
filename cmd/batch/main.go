// Command batch pre-generates today's fortune for every registered user.
// Without -url it runs in process against the configured database; with
// -url it triggers POST /fortune/batch on a running server and waits.
//
// Exit codes: 0 = every pending user got a fortune, 1 = error or failures.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/app"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (in-process mode)")
	variant := flag.String("variant", string(domain.BatchVariantDefault), "default or birthplace")
	serverURL := flag.String("url", "", "base URL of a running server; empty runs in process")
	token := flag.String("token", os.Getenv("BATCH_TOKEN"), "bearer token for the batch endpoint")
	timeout := flag.Duration("timeout", 30*time.Minute, "request timeout in -url mode")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(app.BuildVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := app.RunBatch(ctx, app.BatchOptions{
		ConfigPath: *configPath,
		Variant:    domain.BatchVariant(*variant),
		ServerURL:  *serverURL,
		Token:      *token,
		Timeout:    *timeout,
	})
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		log.Fatalf("batch: %v", err)
	}
	if report.FailCount > 0 {
		log.Printf("batch: %d of %d users failed", report.FailCount, report.UsersNeedingFortune)
		os.Exit(1)
	}
}
