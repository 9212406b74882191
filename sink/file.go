package sink

import (
	"os"
	"path/filepath"

	"github.com/tracebound/reagent/trace"
)

// FileSink writes each run's artifacts under <base>/<run_id>/: the full
// trace as trace.json and a self-contained report.html. Steps are held
// in memory and flushed once at RunEnd; there is no incremental append.
type FileSink struct {
	base string
}

// NewFileSink creates a file sink rooted at baseDir.
func NewFileSink(baseDir string) *FileSink {
	return &FileSink{base: baseDir}
}

// Dir returns the artifact directory for a run, creating it if needed.
func (s *FileSink) Dir(runID string) (string, error) {
	dir := filepath.Join(s.base, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// RunStart creates the run's artifact directory.
func (s *FileSink) RunStart(run *trace.Run) error {
	_, err := s.Dir(run.RunID)
	return err
}

// EmitStep is a no-op; the full trace is written at RunEnd.
func (s *FileSink) EmitStep(string, trace.Step) error {
	return nil
}

// RunEnd writes trace.json and report.html for the sealed run.
func (s *FileSink) RunEnd(run *trace.Run) error {
	dir, err := s.Dir(run.RunID)
	if err != nil {
		return err
	}

	data, err := run.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "trace.json"), data, 0o644); err != nil {
		return err
	}

	html, err := RenderHTML(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "report.html"), html, 0o644)
}

var _ Sink = (*FileSink)(nil)
