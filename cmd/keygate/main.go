package main

import (
	"flag"
	"fmt"
	"os"

	"keygate/internal/banner"
	"keygate/internal/config"
	"keygate/internal/logging"
	"keygate/internal/version"

	"github.com/pterm/pterm"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: keygate [command] [flags]

Commands:
  serve    run the access gate HTTP server (default)
  probe    geolocate and score one IP address from the command line
  version  print the version

Run "keygate probe -h" for the probe flags.
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	command := "serve"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if command == "version" {
		fmt.Println(version.Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println("Invalid configuration:", err)
		os.Exit(2)
	}

	logger, closer := logging.New(cfg.Log)
	defer closer.Close()

	switch command {
	case "serve":
		banner.Print(cfg)
		err = runServe(cfg, logger)
	case "probe":
		err = runProbe(cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("KeyGate stopped with an error", logger.Args("command", command, "error", err))
		closer.Close()
		os.Exit(1)
	}
}
