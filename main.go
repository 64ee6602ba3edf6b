package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mousecap/internal/bus"
	"mousecap/internal/capture"
	"mousecap/internal/cfg"
	"mousecap/internal/log"
	"mousecap/internal/ui"
	"mousecap/internal/x11"
)

//go:embed .version
var version string

func main() {
	logger := log.NewLogger(log.INFO, os.Getenv("MOUSECAP_LOG_PATH"))
	defer logger.Close()

	args := os.Args[1:]
	if len(args) == 0 {
		run(logger, "default", false)
		return
	}
	switch args[0] {
	case "--help", "-h", "help":
		printHelp()
	case "--version", "version":
		fmt.Println("mousecap", strings.TrimSpace(version))
	case "new":
		if len(args) < 2 {
			printHelp()
			os.Exit(1)
		}
		if err := cfg.MakeProfile(args[1]); err != nil {
			logger.Error("failed to make profile: %s", err)
			os.Exit(1)
		}
		logger.Info("created profile %q", args[1])
	case "monitor":
		run(logger, profileArg(args[1:]), true)
	case "run":
		run(logger, profileArg(args[1:]), false)
	default:
		run(logger, args[0], false)
	}
}

func profileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "default"
}

func run(logger *log.Logger, profileName string, withUI bool) {
	profile, err := cfg.GetProfile(profileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to get profile: %s", err)
			os.Exit(1)
		}
		logger.Warn("profile %q not found, using defaults", profileName)
		profile = cfg.Default()
	}
	logger.SetLevel(log.LevelFromString(profile.LogLevel))

	dial := func() (capture.Conn, error) {
		client, err := x11.Connect()
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	// The bus service is created before Start so the upcall can see it
	// without locking: svc is written once, below, and the watcher
	// goroutine doesn't exist until Start.
	var svc *bus.Service
	mcap := capture.New(profile.Capture, logger, dial, func() {
		logger.Info("pointer activity, flushing composition")
		if svc != nil {
			svc.PointerActivity()
		}
	})

	if profile.Bus.Enabled {
		svc, err = bus.Listen(mcap, profile.Bus.Name, logger)
		if err != nil {
			logger.Error("session bus unavailable: %s", err)
		} else {
			defer svc.Close()
		}
	}

	mcap.Start()
	defer mcap.Stop()

	if path, err := cfg.GetPath(profileName); err == nil {
		if watcher, err := cfg.Watch(path); err == nil {
			defer watcher.Close()
			go func() {
				for updated := range watcher.Updates {
					logger.Info("profile updated, applying new tunables")
					logger.SetLevel(log.LevelFromString(updated.LogLevel))
					mcap.SetTunables(updated.Capture)
				}
			}()
			go func() {
				for err := range watcher.Errors {
					logger.Warn("profile watch: %s", err)
				}
			}()
		}
	}

	if withUI {
		if err := ui.Run(mcap); err != nil {
			logger.Error("monitor: %s", err)
		}
		return
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("shutting down")
}

func printHelp() {
	fmt.Println(`
    mousecap - composition-aware pointer watcher for X11 IMEs
    USAGE:
        mousecap [PROFILE]          Run the daemon with the given profile.
        mousecap run [PROFILE]      Same as above.
        mousecap monitor [PROFILE]  Run the daemon with a status monitor.

    SUBCOMMANDS:
        mousecap new [PROFILE]      Create a new profile named PROFILE with
                                    the default configuration.
        mousecap help               Print this message.
        mousecap version            Get the version of mousecap installed.
    `)
}
