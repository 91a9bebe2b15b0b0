package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/relaycorp/relaynet-poweb-go/cmd/poweb-collectd/internal/config"
	"github.com/relaycorp/relaynet-poweb-go/internal/identity"
	"github.com/relaycorp/relaynet-poweb-go/poweb"
)

const (
	serviceName        = "PoWebCollectd"
	serviceDisplayName = "PoWeb Parcel Collector"
	serviceDescription = "Drains parcel collections from a PoWeb gateway and acknowledges them"
)

// daemon implements kardianos/service.Interface for the collector's
// background-service lifecycle.
type daemon struct {
	cfg    *config.Config
	cancel context.CancelFunc
}

func (d *daemon) Start(s service.Service) error {
	go d.run()
	return nil
}

func (d *daemon) Stop(s service.Service) error {
	slog.Info("stop requested")
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

func (d *daemon) run() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	defer cancel()

	if err := runCollector(ctx, d.cfg, nil); err != nil {
		slog.Error("collector exited with error", "error", err)
		os.Exit(1)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		doInstall   = flag.Bool("install", false, "install as a system service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the system service")
		doRun       = flag.Bool("run", false, "run in foreground, no dashboard")
		doDashboard = flag.Bool("dashboard", false, "run in foreground with a live dashboard")
	)
	flag.Parse()

	initLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}

	d := &daemon{cfg: cfg}
	svc, err := service.New(d, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service installed:", serviceName)

	case *doUninstall:
		_ = svc.Stop()
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled:", serviceName)

	case *doDashboard:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		program := tea.NewProgram(newDashboardModel(fmt.Sprintf("%s:%d", cfg.GatewayHost, cfg.GatewayPort)))
		go func() {
			if err := runCollector(ctx, cfg, program); err != nil {
				program.Send(failedMsg{err: err})
			}
		}()
		if _, err := program.Run(); err != nil {
			slog.Error("dashboard exited with error", "error", err)
			os.Exit(1)
		}

	case *doRun:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := runCollector(ctx, cfg, nil); err != nil {
			slog.Error("collector exited with error", "error", err)
			os.Exit(1)
		}

	default:
		if service.Interactive() {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := runCollector(ctx, cfg, nil); err != nil {
				slog.Error("collector exited with error", "error", err)
				os.Exit(1)
			}
		} else if err := svc.Run(); err != nil {
			slog.Error("service run failed", "error", err)
			os.Exit(1)
		}
	}
}

// runCollector loads (or generates) the node identity, opens a parcel
// collection session against the configured gateway, and acknowledges every
// parcel it receives until ctx is cancelled. If program is non-nil, progress
// is also reported to the live dashboard.
func runCollector(ctx context.Context, cfg *config.Config, program *tea.Program) error {
	signer, err := identity.LoadOrGenerate(cfg.DataDir, cfg.GatewayHost)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}

	endpoint := poweb.NewEndpoint(cfg.GatewayHost, cfg.GatewayPort, cfg.GatewayUseTLS)
	client := poweb.New(endpoint)
	defer client.Close()

	mode := poweb.StreamingMode(cfg.StreamingMode)

	stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, mode)
	if err != nil {
		return fmt.Errorf("starting collection: %w", err)
	}
	defer stream.Close()

	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	for stream.Next(ctx) {
		collection := stream.Collection()
		slog.Info("parcel collected", "bytes", len(collection.ParcelSerialized))
		collection.Ack()

		if program != nil {
			program.Send(collectedMsg{bytes: len(collection.ParcelSerialized)})
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("collection ended: %w", err)
	}

	slog.Info("collection session ended cleanly")
	return nil
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
