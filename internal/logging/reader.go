package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTailLines is the number of lines shown when tailing a run log.
const DefaultTailLines = 100

// ErrNoRuns is returned when no run log exists for a kind.
var ErrNoRuns = errors.New("no run logs")

// Reader reads run log files.
type Reader struct {
	paths *PathManager
}

// NewReader creates a Reader over the given PathManager.
func NewReader(paths *PathManager) *Reader {
	return &Reader{paths: paths}
}

// Resolve returns runID, or the latest run for kind when runID is empty.
func (r *Reader) Resolve(kind, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	latest, err := r.paths.LatestRun(kind)
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("%w for %s", ErrNoRuns, kind)
	}
	return latest, nil
}

// Tail returns the last n lines of a run log. n <= 0 uses DefaultTailLines.
func (r *Reader) Tail(kind, runID string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}

	file, err := os.Open(r.paths.RunLogPath(kind, runID))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return tailLines(file, n)
}

// tailLines reads src to EOF and keeps the last n lines.
func tailLines(src io.Reader, n int) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}
	return lines, nil
}

// Follow writes the last n lines of a run log to out and then streams new
// lines as they are appended, like `tail -n N -f`. It blocks until ctx is
// cancelled and returns nil in that case.
func (r *Reader) Follow(ctx context.Context, kind, runID string, out io.Writer, n int, poll time.Duration) error {
	if n <= 0 {
		n = DefaultTailLines
	}

	file, err := os.Open(r.paths.RunLogPath(kind, runID))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	// Reading the history leaves the offset at EOF, so nothing appended
	// afterwards is missed.
	lines, err := tailLines(file, n)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := drain(reader, out); err != nil {
				return err
			}
		}
	}
}

// drain copies every complete or partial line currently readable.
func drain(reader *bufio.Reader, out io.Writer) error {
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := out.Write(line); werr != nil {
				return fmt.Errorf("write output: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
	}
}
