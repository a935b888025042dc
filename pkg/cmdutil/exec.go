package cmdutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory for the command. The ambient process
	// working directory is never changed.
	Dir string

	// Timeout is the maximum execution time. Zero means no timeout.
	Timeout time.Duration

	// Env contains additional environment variables ("KEY=value").
	Env []string
}

// Result contains the outcome of a command execution.
type Result struct {
	// Output is the combined stdout and stderr.
	Output []byte

	// ExitCode is the exit code of the command.
	ExitCode int

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// OK reports whether the command exited successfully.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Run executes argv in opts.Dir and returns the result. A non-zero exit
// is reported through both the Result and the returned error.
func Run(ctx context.Context, opts ExecOptions, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	start := time.Now()
	output, err := cmd.CombinedOutput()

	result := &Result{
		Output:   output,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("command failed: %w", err)
	}
	return result, nil
}

// ParseCommandString parses a shell-quoted command string into argv.
//
// Example:
//
//	"git commit -m \"my message\"" -> ["git", "commit", "-m", "my message"]
func ParseCommandString(cmdStr string) ([]string, error) {
	parts, err := shellquote.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command string")
	}
	return parts, nil
}

// FormatCommand formats argv into a readable string for logs and errors.
// Example: ["git", "commit", "-m", "my message"] -> "git commit -m 'my message'"
func FormatCommand(argv []string) string {
	if len(argv) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(argv))
	for i, part := range argv {
		if strings.ContainsAny(part, " \t\n\"'") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}
	return strings.Join(quoted, " ")
}

// SanitizeOutput redacts secrets from command output before logging.
func SanitizeOutput(output []byte, secrets []string) []byte {
	sanitized := string(output)
	for _, secret := range secrets {
		if secret != "" {
			sanitized = strings.ReplaceAll(sanitized, secret, "***REDACTED***")
		}
	}
	return []byte(sanitized)
}
