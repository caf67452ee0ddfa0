package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// DefaultSSHPort is used when a target does not specify a port.
const DefaultSSHPort = 22

// Session bundles a target with the identity file resolved for it.
// The identity file is temporary and owned by the agent; it is removed
// when the deployment finishes.
type Session struct {
	Target  domain.TargetDescriptor
	KeyPath string
}

// Transport abstracts the remote channel to a deployment target.
// The production implementation shells out to the OpenSSH client tools;
// tests provide a mock.
type Transport interface {
	// Connect verifies the target is reachable and the credentials are
	// accepted. Returns a wrapped ErrConnectionFailed otherwise.
	Connect(ctx context.Context, sess Session) error

	// Exec runs a command on the target and returns its combined output.
	Exec(ctx context.Context, sess Session, command string) (string, error)

	// Copy transfers a local file to a path on the target.
	// Returns a wrapped ErrTransferFailed on any incomplete copy.
	Copy(ctx context.Context, sess Session, localPath, remotePath string) error
}

// CommandRunner abstracts subprocess execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs subprocesses with exec.CommandContext.
type execRunner struct{}

// Run executes the command and captures stdout and stderr separately.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- argv is built from validated target configuration

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SSHTransport implements Transport over the OpenSSH ssh and scp
// command line tools.
type SSHTransport struct {
	runner CommandRunner
}

// NewSSHTransport creates an SSHTransport. A nil runner uses the real
// subprocess executor.
func NewSSHTransport(runner CommandRunner) *SSHTransport {
	if runner == nil {
		runner = execRunner{}
	}
	return &SSHTransport{runner: runner}
}

// Connect verifies reachability and authentication with a no-op remote
// command.
func (t *SSHTransport) Connect(ctx context.Context, sess Session) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("target", sess.Target.Name).
		Str("host", sess.Target.Host).
		Msg("connecting to target")

	args := t.sshArgs(sess)
	args = append(args, t.destination(sess), "true")

	_, stderr, err := t.runner.Run(ctx, "ssh", args...)
	if err != nil {
		return fmt.Errorf("target '%s' (%s): %s: %w",
			sess.Target.Name, sess.Target.Host, firstLine(stderr), slipwayerrors.ErrConnectionFailed)
	}
	return nil
}

// Exec runs a command on the target through ssh.
func (t *SSHTransport) Exec(ctx context.Context, sess Session, command string) (string, error) {
	args := t.sshArgs(sess)
	args = append(args, t.destination(sess), command)

	stdout, stderr, err := t.runner.Run(ctx, "ssh", args...)
	if err != nil {
		return string(stdout), fmt.Errorf("remote command failed on '%s': %s: %w",
			sess.Target.Name, firstLine(stderr), err)
	}
	return string(stdout), nil
}

// Copy transfers a local file to the target with scp.
func (t *SSHTransport) Copy(ctx context.Context, sess Session, localPath, remotePath string) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("target", sess.Target.Name).
		Str("remote_path", remotePath).
		Msg("transferring file")

	args := []string{"-i", sess.KeyPath, "-P", strconv.Itoa(t.port(sess)), "-q"}
	args = append(args, t.batchOptions()...)
	args = append(args, localPath, t.destination(sess)+":"+remotePath)

	_, stderr, err := t.runner.Run(ctx, "scp", args...)
	if err != nil {
		return fmt.Errorf("copy to '%s:%s': %s: %w",
			sess.Target.Name, remotePath, firstLine(stderr), slipwayerrors.ErrTransferFailed)
	}
	return nil
}

// sshArgs builds the common ssh argument prefix for a session.
func (t *SSHTransport) sshArgs(sess Session) []string {
	args := []string{"-i", sess.KeyPath, "-p", strconv.Itoa(t.port(sess))}
	return append(args, t.batchOptions()...)
}

// batchOptions disables interactive prompting; deployments run unattended.
func (t *SSHTransport) batchOptions() []string {
	return []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=10",
		"-o", "StrictHostKeyChecking=accept-new",
	}
}

// destination formats the user@host pair for a session.
func (t *SSHTransport) destination(sess Session) string {
	return sess.Target.User + "@" + sess.Target.Host
}

// port returns the session port, defaulting when unset.
func (t *SSHTransport) port(sess Session) int {
	if sess.Target.Port > 0 {
		return sess.Target.Port
	}
	return DefaultSSHPort
}

// firstLine extracts the first non-empty line of command output for
// error messages.
func firstLine(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return "no output"
}
