// (C) 2025 GoodData Corporation
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"local-traffic/internal/applog"
	"local-traffic/internal/assets"
	"local-traffic/internal/channels"
	"local-traffic/internal/config"
	"local-traffic/internal/inbound"
	"local-traffic/internal/mockengine"
	"local-traffic/internal/selftest"
	"local-traffic/internal/state"
)

// configPath resolves the config file location per spec §6: an optional
// positional CLI argument, then $LOCAL_TRAFFIC_CONFIG, then
// $HOME/.local-traffic.json.
func configPath(positional string) string {
	if positional != "" {
		return positional
	}
	if env := os.Getenv("LOCAL_TRAFFIC_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local-traffic.json")
}

func main() {
	crashTest := flag.Bool("crash-test", false, "run the self-exercise scenario and exit")
	flag.Parse()

	path := configPath(flag.Arg(0))

	cfg, err := config.Load(path, true)
	if err != nil {
		applog.Error("loading config from %s: %v", path, err)
		os.Exit(1)
	}
	applog.Configure(applog.Config{
		Simple:           cfg.SimpleLogs,
		AccessInTerminal: cfg.LogAccessInTerminal,
		ShowTimestamp:    true,
	})

	if *crashTest {
		runCrashTest()
		return
	}

	st := state.New(cfg, path)
	coffer := assets.NewCoffer(8*1024*1024, "")
	store := mockengine.NewStore(cfg.UnwantedHeaderNamesInMocks)
	ch := channels.New(path, coffer, store, st.Current, func(next *config.Config) {
		if err := st.Replace(next); err != nil {
			applog.Error("applying config update from channel: %v", err)
		}
	})

	server := inbound.New(st, ch, store)
	listener := inbound.NewListener(server)
	st.SetRestartFunc(listener.Restart)

	if err := listener.Start(st.Current()); err != nil {
		applog.Error("starting listener: %v", err)
		os.Exit(1)
	}

	watcher, err := config.Watch(path, func(next *config.Config) {
		if err := st.Replace(next); err != nil {
			applog.Error("applying reloaded config: %v", err)
		} else {
			applog.Info("config reloaded from %s", path)
		}
	})
	if err != nil {
		applog.Warn("watching %s for changes: %v", path, err)
	} else {
		defer watcher.Close()
	}

	waitForShutdown()
	if err := listener.Stop(); err != nil {
		applog.Warn("shutting down listener: %v", err)
	}
}

func waitForShutdown() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	applog.Info("shutting down")
}

// runCrashTest drives the self-exercise scenario (spec §6's --crash-test
// flag) and reports the outcome on exit code: 0 if every scenario
// passed, 1 otherwise.
func runCrashTest() {
	results := selftest.Run()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			applog.Error("%s: FAIL: %v", r.Name, r.Err)
		} else {
			applog.Success("%s: PASS", r.Name)
		}
	}
	if failed > 0 {
		fmt.Printf("%d/%d scenarios failed\n", failed, len(results))
		os.Exit(1)
	}
	fmt.Printf("%d/%d scenarios passed\n", len(results), len(results))
}
