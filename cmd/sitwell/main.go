package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/cache"
	"github.com/ayusman/sitwell/internal/capture"
	"github.com/ayusman/sitwell/internal/config"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/plugin"
	"github.com/ayusman/sitwell/internal/server"
	"github.com/ayusman/sitwell/internal/store"
	"github.com/ayusman/sitwell/internal/tray"
)

const (
	memoryCacheEntries = 256
	shutdownTimeout    = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitwell: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(log.Config{Level: cfg.LogLevel, Dir: cfg.LogDir, Env: cfg.Env})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitwell: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("sitwell stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	c := newCache(ctx, cfg, logger)
	defer c.Close()

	manager := plugin.NewManager(cfg.PluginDir, logger)
	if err := manager.Discover(); err != nil {
		logger.WithError(err).Warn("plugin discovery failed")
	}

	a, err := app.New(app.Config{
		Posture:         cfg.Posture,
		Store:           st,
		Cache:           c,
		CacheTTL:        cfg.CacheTTL,
		Notifier:        plugin.NewNotifier(manager, plugin.NewExecutor(plugin.DefaultTimeout), logger),
		MonitorInterval: cfg.MonitorInterval,
		AlertCooldown:   cfg.AlertCooldown,
	}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	det, err := detector.NewYOLOPoseDetector(cfg.Detector, logger)
	if err != nil {
		logger.WithError(err).Warn("pose detector unavailable, only keypoint analysis will work")
	} else {
		a.SetDetector(det)
	}
	a.SetCamera(capture.NewCamera(cfg.Camera))

	if err := a.RestoreMonitor(cfg.MonitorEnabled); err != nil {
		logger.WithError(err).Warn("could not start posture monitor")
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		logger.WithField("dir", webDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		App:       a,
		Store:     st,
		Log:       logger,
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Addr)
	}()

	if cfg.TrayEnabled {
		runTray(ctx, stop, a, dashboardURL(cfg.Addr), logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache connects to redis when configured and falls back to an in-process cache.
func newCache(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) cache.Cache {
	if cfg.CacheTTL <= 0 {
		return cache.Noop{}
	}
	if cfg.RedisAddress != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err == nil {
			return r
		}
		logger.WithError(err).Warn("redis unavailable, using in-memory cache")
	}
	return cache.NewMemory(memoryCacheEntries)
}

// runTray blocks on the tray menu until the user quits or ctx is cancelled.
func runTray(ctx context.Context, quit context.CancelFunc, a *app.App, dashboard string, logger logrus.FieldLogger) {
	t := tray.New(a.Running())

	t.OnToggle(func(enabled bool) {
		if !enabled {
			a.Stop()
			return
		}
		if err := a.Start(); err != nil {
			logger.WithError(err).Warn("could not start posture monitor")
			t.SetEnabled(false)
		}
	})
	t.OnDashboard(func() {
		if err := openBrowser(dashboard); err != nil {
			logger.WithError(err).Warn("could not open dashboard")
		}
	})
	t.OnQuit(quit)

	updates, cancel := a.Subscribe()
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case res, ok := <-updates:
				if !ok {
					return
				}
				if res.Assessment == nil {
					t.SetVerdict(nil)
				} else {
					t.SetVerdict(&res.Assessment.Analysis)
				}
			}
		}
	}()

	t.Run()
	quit()
}

func dashboardURL(addr string) string {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	u := url.URL{Scheme: "http", Host: host, Path: "/"}
	return u.String()
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web" and then web under the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
