package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/leapstack-labs/assetlineage/internal/pipeline"
	"github.com/leapstack-labs/assetlineage/pkg/core"
)

// DefaultCommandTimeout bounds a pipeline command when none is configured.
const DefaultCommandTimeout = 30 * time.Second

// CommandError reports a pipeline command that exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("command %q failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed with exit code %d: %s", e.Command, e.ExitCode, msg)
}

// CommandSource runs an external command and decodes its stdout as a
// snapshot.
type CommandSource struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// ParseCommand splits a command line on whitespace into a CommandSource.
// Quoting is not interpreted.
func ParseCommand(line string, timeout time.Duration) (*CommandSource, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}
	return &CommandSource{Name: fields[0], Args: fields[1:], Timeout: timeout}, nil
}

// Key implements Source.
func (s *CommandSource) Key() string {
	key := "command:" + s.commandLine()
	if s.Dir != "" {
		key += "@" + s.Dir
	}
	return key
}

func (s *CommandSource) commandLine() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// Load implements Source.
func (s *CommandSource) Load(ctx context.Context) (*core.RawPipeline, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Name, s.Args...)
	cmd.Dir = s.Dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	logger.Debug("running pipeline command", "command", s.commandLine(), "dir", s.Dir)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("command %q did not finish: %w", s.commandLine(), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{
				Command:  s.commandLine(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return nil, fmt.Errorf("failed to run %q: %w", s.commandLine(), err)
	}

	logger.Debug("pipeline command finished",
		"command", s.commandLine(),
		"duration", time.Since(start),
		"bytes", stdout.Len())

	raw, err := pipeline.Decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decode output of %q: %w", s.commandLine(), err)
	}
	return raw, nil
}
