package main

import (
	"FashionDetKit/config"
	"FashionDetKit/engine"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"FashionDetKit/notify"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	parser := argparse.NewParser("fashiondet", "Garment detector dataset conversion, training, evaluation and export")
	configPath := parser.String("c", "config", &argparse.Options{Help: "YAML config file", Default: config.DefaultPath})
	debug := parser.Flag("", "debug", &argparse.Options{Help: "Human-readable debug logging"})
	metricsPort := parser.Int("", "metrics-port", &argparse.Options{Help: "Serve /metrics and /api/status on this port"})
	notifyURL := parser.String("", "notify-url", &argparse.Options{Help: "POST a run report to this URL when done"})

	cmds := newCommands(parser)
	if err := parser.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		return 2
	}

	cfg, err := loadConfig(*configPath, *debug)
	defer logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *metricsPort > 0 {
		cfg.Monitor.Port = *metricsPort
	}
	if *notifyURL != "" {
		cfg.Notify.URL = *notifyURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	monCtx, cancelMon := context.WithCancel(ctx)
	if cfg.Monitor.Port > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitor.StartMon(monCtx, cfg.Monitor.Port); err != nil {
				logger.Log().Error("monitor stopped", zap.Error(err))
			}
		}()
		logger.Log().Info("monitor listening", zap.Int("port", cfg.Monitor.Port))
	}
	defer func() {
		cancelMon()
		wg.Wait()
	}()

	backend := engine.NewCLI(cfg.Framework.Binary)
	backend.Dir = cfg.Framework.Dir
	notifier := notify.New(cfg.Notify.URL, time.Duration(cfg.Notify.TimeoutSeconds)*time.Second)

	name := cmds.selected()
	report := notify.NewReport(name)
	details, err := cmds.dispatch(ctx, &cfg, backend)
	report.Finish(details, err)
	_ = notifier.Send(context.Background(), report)

	if err != nil {
		logger.Log().Error(name+" failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig starts the logger before reading path so that warnings about
// reset config values are written. A debug flag in the file switches the
// logger to development output afterwards.
func loadConfig(path string, debug bool, opts ...zap.Option) (config.Config, error) {
	if err := logger.Init(debug, opts...); err != nil {
		return config.Config{}, fmt.Errorf("failed to init logger: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cfg.Debug && !debug {
		if err := logger.Init(true, opts...); err != nil {
			return cfg, fmt.Errorf("failed to init logger: %w", err)
		}
	}
	return cfg, nil
}
