package deploy

import "fmt"

// AccessDeniedError reports a webhook delivery from an address outside
// the configured allow-list. No side effects have occurred when it is
// returned.
type AccessDeniedError struct {
	IP string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s", e.IP)
}

// DeployError reports a failed step in the git command sequence. The
// command and its captured output are preserved for diagnostics.
type DeployError struct {
	Command  string
	Output   string
	ExitCode int
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy step failed (exit %d): %s", e.ExitCode, e.Command)
}
