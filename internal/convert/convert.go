package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/edgekit-ml/edgekit/internal/interfaces"
	"github.com/edgekit-ml/edgekit/internal/utils/safeexec"
)

var _ interfaces.Converter = (*Converter)(nil)

// Converter drives `python -m optimum.exporters.onnx` to turn a transformers
// checkpoint into an ONNX export. The heavy lifting happens entirely inside
// the Python toolchain; this is orchestration only.
type Converter struct {
	Python  string        // interpreter name or path, defaults to python3
	Timeout time.Duration // per-conversion limit, defaults to 15 minutes
}

// New returns a converter with defaults filled in
func New() *Converter {
	return &Converter{
		Python:  "python3",
		Timeout: 15 * time.Minute,
	}
}

// Check verifies the interpreter exists and can import optimum
func (c *Converter) Check(ctx context.Context) error {
	path, err := safeexec.LookPath(c.Python)
	if err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", c.Python, err)
	}

	cmd := exec.CommandContext(ctx, path, "-c", "import optimum.exporters.onnx")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("optimum is not installed for %s (pip install optimum[exporters]): %s", path, firstLine(stderr.String()))
	}
	return nil
}

// Args builds the exporter command line for a conversion
func (c *Converter) Args(repo, task, outDir string) []string {
	args := []string{"-m", "optimum.exporters.onnx", "--model", repo}
	if task != "" {
		args = append(args, "--task", task)
	}
	return append(args, outDir)
}

// Run converts repo into outDir, blocking until the exporter finishes
func (c *Converter) Run(ctx context.Context, repo, task, outDir string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := safeexec.Command(c.Python, c.Args(repo, task, outDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// safeexec.Command has no context variant; enforce the deadline by hand
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start exporter: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("conversion of %s timed out after %s", repo, timeout)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("conversion of %s failed: %s: %w", repo, lastLines(stderr.String(), 5), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// lastLines keeps the tail of the exporter's stderr, where Python puts the
// actual exception
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
