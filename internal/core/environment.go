package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/rebuild"
	"github.com/yaklabco/unistack/pkg/fault"
)

// Startup error codes.
const (
	CodeNoPackageJSON      = "NO_ENVIRONMENT_PACKAGE_JSON_FILE"
	CodeNotUnistackEnv     = "NOT_UNISTACK_ENVIRONMENT"
	CodeInvalidPackageJSON = "INVALID_ENVIRONMENT_PACKAGE_JSON_FILE"
)

// PackageJSONFile marks an environment root.
const PackageJSONFile = "package.json"

// closeTimeout bounds the reloader shutdown.
const closeTimeout = 5 * time.Second

// IsUnistackEnvironment checks that dir holds a package.json declaring
// "unistack": true.
func IsUnistackEnvironment(dir string) error {
	path := filepath.Join(dir, PackageJSONFile)
	template := map[string]string{"filename": path}

	data, err := os.ReadFile(path)
	if err != nil {
		return fault.Wrap(CodeNoPackageJSON, template, err)
	}

	var manifest struct {
		Unistack bool `json:"unistack"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fault.Wrap(CodeInvalidPackageJSON, template, err)
	}
	if !manifest.Unistack {
		return fault.Coded(CodeNotUnistackEnv, map[string]string{"dir": dir})
	}
	return nil
}

// StartDevEnvironment checks the environment, runs the initial builds, then
// starts the reloader, the watcher and the node server, in that order.
func (c *Core) StartDevEnvironment(ctx context.Context) error {
	cfg := c.state.Config
	if err := IsUnistackEnvironment(cfg.EnvironmentDir); err != nil {
		return err
	}

	for _, target := range rebuild.Targets() {
		if !c.state.Bundles.Enabled(target) {
			continue
		}
		if _, err := c.state.Bundles.BuildNow(ctx, target); err != nil {
			return err
		}
	}

	if err := c.state.Reloader.Start(ctx); err != nil {
		return err
	}

	if err := c.state.Watcher.Start(ctx); err != nil {
		return err
	}
	<-c.state.Watcher.Ready()
	c.wg.Add(1)
	go c.consumeChanges()
	c.logger.Info("watching for changes",
		slog.String(log.Dir, c.state.Watcher.Root()),
		slog.Duration(log.Window, c.state.Throttle.Window()),
	)

	if c.state.Server != nil {
		if err := c.state.Server.Start(ctx); err != nil {
			return err
		}
		c.logger.Info("node server running", slog.Int(log.PID, c.state.Server.PID()))
	}
	return nil
}

// StopDevEnvironment halts the node server, the reloader and the watcher,
// drops any pending rebuild and waits for in-flight builds. Only the first
// call has an effect.
func (c *Core) StopDevEnvironment(ctx context.Context) error {
	c.stopOnce.Do(func() {
		var errs []error
		// Closing, not stopping: a rebuild that finishes during shutdown
		// must not start the server again.
		if c.state.Server != nil {
			errs = append(errs, c.state.Server.Close())
		}

		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		errs = append(errs, c.state.Reloader.Close(closeCtx))
		cancel()

		if err := c.state.Watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing watcher: %w", err))
		}
		c.wg.Wait()

		c.state.Throttle.Stop()
		for _, target := range rebuild.Targets() {
			if c.state.Bundles.Building(target) {
				c.logger.Info("waiting for build", slog.String(log.Target, target.String()))
			}
		}
		c.state.Bundles.Close()
		c.stopErr = errors.Join(errs...)
	})
	return c.stopErr
}

func (c *Core) consumeChanges() {
	defer c.wg.Done()
	for event := range c.state.Watcher.Events() {
		c.HandleFileChange(event.Path)
	}
}
