// Package logging keeps per-run logs for long-running dexkeep commands such
// as sync and serve.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const logExt = ".log"

// PathManager handles run log path construction and directory management.
// Logs are laid out as <baseDir>/<kind>/<runID>.log.
type PathManager struct {
	baseDir string
}

// NewPathManager creates a new PathManager with the given base directory.
// The base directory is typically ~/.local/share/dexkeep/logs.
func NewPathManager(baseDir string) *PathManager {
	return &PathManager{baseDir: baseDir}
}

// BaseDir returns the base log directory.
func (p *PathManager) BaseDir() string {
	return p.baseDir
}

// KindDir returns the log directory for one kind of run.
func (p *PathManager) KindDir(kind string) string {
	return filepath.Join(p.baseDir, kind)
}

// RunLogPath returns the full path for a run's log file.
func (p *PathManager) RunLogPath(kind, runID string) string {
	return filepath.Join(p.baseDir, kind, runID+logExt)
}

// EnsureRunLog creates the kind directory and returns the run's log path.
func (p *PathManager) EnsureRunLog(kind, runID string) (string, error) {
	if err := os.MkdirAll(p.KindDir(kind), 0o750); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return p.RunLogPath(kind, runID), nil
}

// ListRuns returns the run ids with a log file for kind, oldest first.
func (p *PathManager) ListRuns(kind string) ([]string, error) {
	entries, err := os.ReadDir(p.KindDir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != logExt {
			continue
		}
		runs = append(runs, strings.TrimSuffix(entry.Name(), logExt))
	}
	slices.Sort(runs)
	return runs, nil
}

// LatestRun returns the most recent run id for kind, or "" if none.
func (p *PathManager) LatestRun(kind string) (string, error) {
	runs, err := p.ListRuns(kind)
	if err != nil || len(runs) == 0 {
		return "", err
	}
	return runs[len(runs)-1], nil
}

// Prune removes all but the newest keep run logs for kind.
func (p *PathManager) Prune(kind string, keep int) error {
	runs, err := p.ListRuns(kind)
	if err != nil {
		return err
	}
	if len(runs) <= keep {
		return nil
	}
	for _, run := range runs[:len(runs)-keep] {
		if err := os.Remove(p.RunLogPath(kind, run)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove run log: %w", err)
		}
	}
	return nil
}

// NewRunID returns a run id that sorts chronologically.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}
