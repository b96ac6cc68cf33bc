package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"pairwatch/internal/config"
	"pairwatch/internal/metrics"
)

const provisionOutputTail = 2048

// NeedsProvision reports whether the provisioning marker is missing from
// dir.
func NeedsProvision(dir string, cfg config.ProvisionConfig) bool {
	if !cfg.Enabled || cfg.Marker == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, cfg.Marker))
	return errors.Is(err, fs.ErrNotExist)
}

// Provision runs the configured install command once in dir.
func Provision(ctx context.Context, dir string, cfg config.ProvisionConfig, logger *slog.Logger) error {
	name := commandLine(cfg.Command, cfg.Args)
	logger.Info("installing client dependencies", "command", name, "dir", dir)

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	metrics.RecordProvision(err == nil)
	if err != nil {
		if len(out) > provisionOutputTail {
			out = out[len(out)-provisionOutputTail:]
		}
		return &ProvisionError{Command: name, Output: string(out), Err: err}
	}

	logger.Debug("dependency install finished", "command", name, "output_bytes", len(out))
	return nil
}
