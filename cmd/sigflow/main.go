// Command sigflow runs a demo flow graph: a sine source through a gain into
// a throttled collector, with the status API optionally serving a live view.
// It exists to exercise the runtime end to end from a shell.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/sigflow/sigflow/pkg/blocks"
	"github.com/sigflow/sigflow/pkg/common/config"
	"github.com/sigflow/sigflow/pkg/common/logging"
	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/runtime"
	"github.com/sigflow/sigflow/pkg/runtime/api"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		preset     = flag.String("preset", "", "Configuration preset (default, throughput, lowlatency)")
		rate       = flag.Float64("rate", 48000, "Source sample rate in samples/s")
		freq       = flag.Float64("freq", 440, "Source frequency in Hz")
		gain       = flag.Float64("gain", 2.0, "Gain factor")
		limit      = flag.Int64("samples", 0, "Stop after this many samples (0 = run until interrupted)")
		apiFlag    = flag.Bool("api", false, "Serve the status API")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *apiFlag {
		cfg.API.Enabled = true
	}

	setupLogging(cfg)
	log := logging.GetGlobalLogger()

	if *configPath != "" {
		watcher, werr := config.Watch(*configPath, log, nil)
		if werr != nil {
			log.Warnf("config watch disabled: %v", werr)
		} else {
			defer watcher.Close()
		}
	}

	src := blocks.NewSignalSource(*rate, *freq)
	src.Limit = *limit
	src.ChunkSize = cfg.Runtime.ChunkSamples
	g := blocks.NewGain(float32(*gain))
	thr := blocks.NewThrottle()
	sink := blocks.NewCollect()

	graph := flow.NewGraph(nil)
	if err := graph.Connect(src, 0, g, 0); err != nil {
		log.Errorf("graph build failed: %v", err)
		os.Exit(1)
	}
	if err := graph.Connect(g, 0, thr, 0); err != nil {
		log.Errorf("graph build failed: %v", err)
		os.Exit(1)
	}
	if err := graph.Connect(thr, 0, sink, 0); err != nil {
		log.Errorf("graph build failed: %v", err)
		os.Exit(1)
	}

	rt := runtime.New(graph, cfg)
	if err := rt.Start(); err != nil {
		log.Errorf("start failed: %v", err)
		os.Exit(1)
	}

	var srv *api.Server
	if cfg.API.Enabled {
		srv = api.NewServer(rt)
		if err := srv.Start(cfg.API.Listen, cfg.API.MaxConns); err != nil {
			log.Errorf("status api failed: %v", err)
			rt.Stop()
			rt.Wait()
			os.Exit(1)
		}
		defer srv.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		rt.Wait()
		close(done)
	}()
	select {
	case <-sigCh:
		log.Info("interrupted, stopping graph")
		rt.Stop()
	case <-done:
	}

	if err := rt.Wait(); err != nil {
		log.Errorf("graph failed: %v", err)
		os.Exit(1)
	}

	n := len(sink.Samples())
	fmt.Printf("collected %d samples at %g samples/s\n", n, sink.InputRate())
}

func loadConfig(path, preset string) (*config.Config, error) {
	if preset != "" {
		return config.GetPresetConfig(preset)
	}
	return config.LoadConfig(path)
}

func setupLogging(cfg *config.Config) {
	logCfg := &logging.Config{
		Level:  cfg.LogLevel(),
		Format: cfg.LogFormat(),
		Output: os.Stdout,
	}
	// A pipe gets machine-readable output unless the config says otherwise.
	if cfg.Logging.Format == "" && !term.IsTerminal(int(os.Stdout.Fd())) {
		logCfg.Format = logging.JSONFormat
	}
	if cfg.Logging.File != "" {
		if out, err := logging.CreateCombinedOutput(cfg.Logging.File); err == nil {
			logCfg.Output = out
		}
	}
	logging.InitGlobalLogger(logCfg)
}
