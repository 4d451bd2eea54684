// Command server serves the NFC fortune API.
//
// Flags:
//
//	-config   path to the YAML config file (default: CONFIG_PATH or ./config.yaml)
//	-migrate  apply pending migrations before serving
//	-version  print the build version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/nfc-fortune-backend/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(app.BuildVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{ConfigPath: *configPath, Migrate: *migrate}); err != nil {
		log.Fatalf("server: %v", err)
	}
}
