package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
)

// Spool archives raw tool output to disk for debugging failed parses.
// Files are zstd-compressed under <dir>/<job-id>/<tool>.out.zst. A nil
// Spool disables archiving.
type Spool struct {
	dir string
	log *logger.Logger
}

// NewSpool creates a spool rooted at dir, or nil when dir is empty.
func NewSpool(dir string, log *logger.Logger) *Spool {
	if dir == "" {
		return nil
	}
	return &Spool{dir: dir, log: log.With("component", "spool")}
}

// Write archives one tool's raw output. Spool failures are logged and
// swallowed; archiving never fails a scan.
func (s *Spool) Write(jobID shared.ID, tool string, raw []byte) {
	if s == nil || len(raw) == 0 {
		return
	}
	if err := s.write(jobID, tool, raw); err != nil {
		s.log.Warn("failed to spool tool output",
			"job_id", jobID.String(),
			"tool", tool,
			"error", err,
		)
	}
}

func (s *Spool) write(jobID shared.ID, tool string, raw []byte) error {
	jobDir := filepath.Join(s.dir, jobID.String())
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	f, err := os.Create(filepath.Join(jobDir, tool+".out.zst"))
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return enc.Close()
}

// Remove deletes a job's spooled output, typically after successful
// aggregation.
func (s *Spool) Remove(jobID shared.ID) {
	if s == nil {
		return
	}
	if err := os.RemoveAll(filepath.Join(s.dir, jobID.String())); err != nil {
		s.log.Warn("failed to remove spooled output", "job_id", jobID.String(), "error", err)
	}
}
