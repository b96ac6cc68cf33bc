package supervisor

import (
	"fmt"
	"strings"
)

// LaunchError reports that the child could not be started: missing
// executable or entrypoint, invalid working directory, or a spawn failure.
type LaunchError struct {
	Command string
	Reason  string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("launch %s: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("launch %s: %s", e.Command, e.Reason)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ProvisionError reports a failed dependency install. It is not retried.
type ProvisionError struct {
	Command string
	// Output holds the tail of the install command's combined output.
	Output string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Command, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
