package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// ProcessState is the supervisor's view of one managed process.
type ProcessState struct {
	// Known reports whether the supervisor manages a process with the
	// requested name at all.
	Known bool

	// Running reports whether that process is currently online.
	Running bool
}

// Supervisor abstracts the remote process manager on a target.
// All operations address a single named process; nothing here can touch
// the supervisor's full process list.
type Supervisor interface {
	// Status reports the state of the named process.
	Status(ctx context.Context, sess Session, app string) (ProcessState, error)

	// Restart restarts the named process. The process must be known.
	Restart(ctx context.Context, sess Session, app string) error

	// Start registers and starts the process from the given entrypoint
	// under the given name.
	Start(ctx context.Context, sess Session, app, entrypoint string) error
}

// PM2Supervisor implements Supervisor over the pm2 CLI on the target,
// reached through a Transport.
type PM2Supervisor struct {
	transport Transport
}

// NewPM2Supervisor creates a PM2Supervisor using the given transport.
func NewPM2Supervisor(transport Transport) *PM2Supervisor {
	return &PM2Supervisor{transport: transport}
}

// pm2Process is the subset of `pm2 jlist` output the agent reads.
type pm2Process struct {
	Name   string `json:"name"`
	PM2Env struct {
		Status string `json:"status"`
	} `json:"pm2_env"`
}

// Status reports the state of the named process by parsing `pm2 jlist`.
func (s *PM2Supervisor) Status(ctx context.Context, sess Session, app string) (ProcessState, error) {
	output, err := s.transport.Exec(ctx, sess, "pm2 jlist")
	if err != nil {
		return ProcessState{}, slipwayerrors.Wrapf(err, "failed to query supervisor on '%s'", sess.Target.Name)
	}

	// pm2 may prefix jlist output with daemon startup noise; the JSON
	// array is always the last line.
	payload := lastJSONLine(output)

	var processes []pm2Process
	if err := json.Unmarshal([]byte(payload), &processes); err != nil {
		return ProcessState{}, fmt.Errorf("target '%s': %w: %s",
			sess.Target.Name, slipwayerrors.ErrSupervisorStatus, err.Error())
	}

	for _, proc := range processes {
		if proc.Name == app {
			return ProcessState{Known: true, Running: proc.PM2Env.Status == "online"}, nil
		}
	}
	return ProcessState{Known: false}, nil
}

// Restart restarts the named process only.
func (s *PM2Supervisor) Restart(ctx context.Context, sess Session, app string) error {
	_, err := s.transport.Exec(ctx, sess, "pm2 restart "+shellQuote(app)+" --update-env")
	if err != nil {
		return slipwayerrors.Wrapf(err, "failed to restart '%s' on '%s'", app, sess.Target.Name)
	}
	return nil
}

// Start registers and starts the process under the app name.
func (s *PM2Supervisor) Start(ctx context.Context, sess Session, app, entrypoint string) error {
	if entrypoint == "" {
		return fmt.Errorf("no start command configured for app '%s': %w", app, slipwayerrors.ErrConfigInvalid)
	}
	_, err := s.transport.Exec(ctx, sess, "pm2 start "+shellQuote(entrypoint)+" --name "+shellQuote(app))
	if err != nil {
		return slipwayerrors.Wrapf(err, "failed to start '%s' on '%s'", app, sess.Target.Name)
	}
	return nil
}

// lastJSONLine returns the last non-empty line of output.
func lastJSONLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return output
}

// shellQuote single-quotes a value for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
