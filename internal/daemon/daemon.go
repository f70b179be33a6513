// Package daemon runs sync periodically, reloading configuration when the
// config file changes on disk.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/hsakai/coursetask/internal/config"
	"github.com/hsakai/coursetask/internal/model"
)

// SyncFunc runs one sync pass with the given configuration.
type SyncFunc func(ctx context.Context, cfg model.Config) error

// Daemon triggers sync runs on an interval and on config file changes. Only
// one daemon may run against a store directory at a time.
type Daemon struct {
	configPath string
	cfg        model.Config
	syncFn     SyncFunc
	logger     *logrus.Logger
}

// New creates a Daemon. configPath may name a file that does not exist yet;
// it is still watched so a later write triggers a reload.
func New(configPath string, cfg model.Config, syncFn SyncFunc, logger *logrus.Logger) *Daemon {
	return &Daemon{
		configPath: configPath,
		cfg:        cfg,
		syncFn:     syncFn,
		logger:     logger,
	}
}

// Run loops until the context is cancelled or SIGINT/SIGTERM arrives. The
// in-flight sync pass finishes before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	lock := NewFileLock(filepath.Join(d.cfg.Store.Dir, "daemon.lock"))
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory, not the file: editors and atomic writers replace
	// the file, which would silently drop a file-level watch.
	if err := watcher.Add(filepath.Dir(d.configPath)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := intervalFor(d.cfg)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.WithFields(logrus.Fields{
		"interval": interval.String(),
		"config":   d.configPath,
	}).Info("daemon started")

	d.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return nil

		case <-ticker.C:
			d.runOnce(ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !d.isConfigEvent(event) {
				continue
			}
			d.logger.WithField("event", event.Op.String()).Info("config changed, reloading")
			if d.reload() {
				ticker.Reset(intervalFor(d.cfg))
				d.runOnce(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func intervalFor(cfg model.Config) time.Duration {
	if cfg.Daemon.IntervalSec <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(cfg.Daemon.IntervalSec) * time.Second
}

func (d *Daemon) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(d.configPath) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)
}

// reload re-reads the config file; the old config stays in effect when the
// new one does not load.
func (d *Daemon) reload() bool {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		d.logger.WithError(err).Error("config reload failed, keeping previous config")
		return false
	}
	d.cfg = cfg
	return true
}

func (d *Daemon) runOnce(ctx context.Context) {
	if err := d.syncFn(ctx, d.cfg); err != nil {
		d.logger.WithError(err).Error("sync run failed")
	}
}
