// Package report persists assembled pipeline output to the local filesystem.
// Persistence is best-effort: the run result is returned to the caller even
// if the report cannot be written.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/emrekaya/advisor/pkg/logger"
)

// Sink writes one file per run into a reports directory. A Sink with an
// empty directory is disabled and discards everything.
type Sink struct {
	dir    string
	logger *slog.Logger

	// now is swapped in tests for stable filenames.
	now func() time.Time
}

func NewSink(dir string) *Sink {
	return &Sink{
		dir:    dir,
		logger: logger.GetLogger().With("component", "reports"),
		now:    time.Now,
	}
}

// Enabled reports whether the sink persists anything.
func (s *Sink) Enabled() bool { return s.dir != "" }

// Save writes the report under a timestamped filename and returns the path.
// Disabled sinks return an empty path and no error.
func (s *Sink) Save(text string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := fmt.Sprintf("report_%s.md", s.now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("report saved", "path", path, "bytes", len(text))
	return path, nil
}
