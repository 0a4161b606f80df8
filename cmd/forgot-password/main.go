// Command forgot-password walks a user through resetting a cleancharcoal
// password from the terminal: email, emailed code, then the new password.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"cleancharcoal/internal/client"
	"cleancharcoal/internal/config"
	"cleancharcoal/internal/console"
	"cleancharcoal/internal/logging"
	"cleancharcoal/internal/wizard"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	serverFlag := flag.String("server", "", "Override the API base URL (e.g. https://cleancharcoal.rw)")
	verbose := flag.Bool("v", false, "Print every countdown tick and debug logs")
	flag.Parse()

	if err := run(*configPath, *serverFlag, *verbose); err != nil {
		if errors.Is(err, console.ErrAborted) {
			fmt.Println("Aborted.")
			os.Exit(130)
		}
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func run(configPath, server string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if server != "" {
		cfg.API.BaseURL = strings.TrimRight(server, "/")
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logging.Stderr(level, cfg.Log.Pretty)

	api, err := client.New(cfg.API.BaseURL,
		client.WithTimeout(cfg.API.Timeout()),
		client.WithLogger(logging.Component(log, "client")),
		client.WithCSRF(cfg.API.CSRFCookie, cfg.API.CSRFHeader),
		client.WithPrimePath(cfg.API.PrimePath),
	)
	if err != nil {
		return err
	}

	out := console.SyncWriter(os.Stdout)
	pres := console.NewPresenter(out, verbose)
	wiz := wizard.NewController(api,
		wizard.WithLogger(log),
		wizard.WithDurations(cfg.Wizard.CodeTTLSeconds, cfg.Wizard.ResendCooldownSeconds),
	)
	wiz.Subscribe(pres.Handle)

	ctx := context.Background()
	wiz.Start(ctx)
	defer wiz.Close()

	fmt.Fprintf(out, "Resetting a password on %s\n", cfg.API.BaseURL)
	return console.Run(ctx, wiz, console.NewPrompter(os.Stdin, out), pres)
}
