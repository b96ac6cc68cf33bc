//go:build !unix

package supervisor

import "os/exec"

func setProcAttr(cmd *exec.Cmd) {}

// No graceful signal is available; termination is immediate.
func signalTerminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
