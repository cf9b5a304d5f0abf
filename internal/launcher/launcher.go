// Package launcher runs the disease-prediction backend as a child process.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/krishid/internal/detector"
	"github.com/loykin/krishid/pkg/client"
)

// ErrExitedEarly is returned when the child dies before StartDuration elapses.
var ErrExitedEarly = errors.New("process exited before start duration")

const killGrace = 200 * time.Millisecond

// Launcher owns at most one child process. A single goroutine waits on the
// child; Stop observes it through waitDone instead of calling Wait itself.
type Launcher struct {
	spec   Spec
	logger *slog.Logger

	// launchMu serializes Launch from the liveness check to state publish.
	launchMu sync.Mutex

	mu       sync.Mutex
	cmd      *exec.Cmd
	status   client.ServiceStatus
	waitDone chan struct{}
}

func New(spec Spec, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	if spec.Name == "" {
		spec.Name = "disease-prediction"
	}
	return &Launcher{
		spec:   spec,
		logger: logger.With("component", "launcher", "name", spec.Name),
		status: client.ServiceStatus{Name: spec.Name, URL: spec.URL},
	}
}

func (l *Launcher) Spec() Spec { return l.spec }

// Alive reports whether the backend runs, either as our child or as detected
// by the PID file and configured detectors.
func (l *Launcher) Alive() (bool, string) {
	l.mu.Lock()
	wd := l.waitDone
	l.mu.Unlock()
	if wd != nil {
		select {
		case <-wd:
		default:
			return true, "exec:pid"
		}
	}
	return detector.Any(l.spec.detectors())
}

// Start satisfies the in-process starter used by the handler strategy.
func (l *Launcher) Start(ctx context.Context) bool {
	_, err := l.Launch(ctx)
	if err != nil {
		l.logger.Warn("launch failed", "error", err)
		return false
	}
	return true
}

// Launch starts the child unless it is already running. It reports whether
// the service was already up.
func (l *Launcher) Launch(ctx context.Context) (bool, error) {
	done, err := l.spawn(ctx)
	if err != nil {
		return false, err
	}
	if done == nil {
		return true, nil
	}
	if d := l.spec.StartDuration; d > 0 {
		select {
		case <-done:
			return false, ErrExitedEarly
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
	return false, nil
}

// spawn starts the child and returns its wait channel, or nil when the
// service is already running.
func (l *Launcher) spawn(ctx context.Context) (chan struct{}, error) {
	l.launchMu.Lock()
	defer l.launchMu.Unlock()
	if ok, by := l.Alive(); ok {
		l.logger.Debug("service already running", "detected_by", by)
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := l.spec.BuildCommand()
	if l.spec.WorkDir != "" {
		cmd.Dir = l.spec.WorkDir
	}
	if len(l.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), l.spec.Env...)
	}
	configureSysProcAttr(cmd, false)
	outW, errW, err := l.spec.Log.ProcessWriters(l.spec.Name)
	if err != nil {
		return nil, fmt.Errorf("open process logs: %w", err)
	}
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}

	if err := cmd.Start(); err != nil {
		closeAll(outW, errW)
		l.mu.Lock()
		l.status.Error = err.Error()
		l.mu.Unlock()
		return nil, fmt.Errorf("start %q: %w", l.spec.Command, err)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.cmd = cmd
	l.waitDone = done
	l.status.Running = true
	l.status.PID = cmd.Process.Pid
	l.status.StartedAt = time.Now()
	l.status.StoppedAt = time.Time{}
	l.status.Error = ""
	l.mu.Unlock()

	if err := detector.WritePIDFile(l.spec.PIDFile, cmd.Process.Pid); err != nil {
		l.logger.Warn("write pid file", "path", l.spec.PIDFile, "error", err)
	}
	go l.wait(cmd, done, outW, errW)
	l.logger.Info("service launched", "pid", cmd.Process.Pid, "command", l.spec.Command)
	return done, nil
}

// wait reaps cmd and closes the log writers it was started with.
func (l *Launcher) wait(cmd *exec.Cmd, done chan struct{}, outW, errW io.WriteCloser) {
	err := cmd.Wait()
	closeAll(outW, errW)
	l.mu.Lock()
	if l.cmd == cmd {
		l.status.Running = false
		l.status.StoppedAt = time.Now()
		if err != nil {
			l.status.Error = err.Error()
		}
	}
	l.mu.Unlock()
	close(done)
	l.logger.Info("service exited", "pid", cmd.Process.Pid, "error", err)
}

// Stop sends SIGTERM to the process group, escalating to SIGKILL after wait.
// Services found only through the PID file are signalled by the recorded PID.
func (l *Launcher) Stop(wait time.Duration) error {
	l.mu.Lock()
	cmd, done := l.cmd, l.waitDone
	l.mu.Unlock()

	if cmd != nil && cmd.Process != nil && done != nil {
		select {
		case <-done:
		default:
			pid := cmd.Process.Pid
			_ = terminate(pid)
			select {
			case <-done:
			case <-time.After(wait):
				_ = kill(pid)
				select {
				case <-done:
				case <-time.After(killGrace):
				}
			}
			l.removePIDFile()
			return nil
		}
	}

	if l.spec.PIDFile == "" {
		return nil
	}
	alive, _ := detector.PIDFileDetector{PIDFile: l.spec.PIDFile}.Alive()
	if !alive {
		l.removePIDFile()
		return nil
	}
	pid, _, err := detector.ReadPIDFile(l.spec.PIDFile)
	if err != nil {
		return err
	}
	_ = terminate(pid)
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if ok, _ := (detector.PIDDetector{PID: pid}).Alive(); !ok {
			l.removePIDFile()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = kill(pid)
	l.removePIDFile()
	return nil
}

// Restart stops then launches again.
func (l *Launcher) Restart(ctx context.Context, wait time.Duration) error {
	if err := l.Stop(wait); err != nil {
		return err
	}
	_, err := l.Launch(ctx)
	return err
}

// Status returns a copy of the current process status.
func (l *Launcher) Status() client.ServiceStatus {
	l.mu.Lock()
	st := l.status
	l.mu.Unlock()
	alive, _ := l.Alive()
	st.Running = alive
	if alive && st.PID == 0 && l.spec.PIDFile != "" {
		if pid, _, err := detector.ReadPIDFile(l.spec.PIDFile); err == nil {
			st.PID = pid
		}
	}
	return st
}

func (l *Launcher) removePIDFile() {
	if l.spec.PIDFile != "" {
		_ = os.Remove(l.spec.PIDFile)
	}
}

// Detach runs command in a new session and does not wait for it; used for
// fire-and-forget launcher scripts.
func Detach(command, workDir string) (int, error) {
	cmd := Spec{Command: command}.BuildCommand()
	cmd.Dir = workDir
	configureSysProcAttr(cmd, true)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func closeAll(ws ...io.WriteCloser) {
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}
