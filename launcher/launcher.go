// Package launcher runs the prediction service as a child process and waits for it to
// report ready before anything is allowed to submit.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReadyTimeout = 15 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
	stopGrace           = 5 * time.Second
)

var (
	ErrNotReady = errors.New("service did not become ready")
	ErrExited   = errors.New("service exited before becoming ready")
	ErrDied     = errors.New("service exited while in use")
)

// Checker answers nil once the service accepts requests.
type Checker interface {
	Ready(ctx context.Context) error
}

type Config struct {
	Command      string
	Args         []string
	Env          []string
	ReadyTimeout time.Duration
	PollInterval time.Duration
	Stdout       io.Writer
	Stderr       io.Writer
}

// WaitReady polls check until it succeeds, ctx ends, or timeout passes.
func WaitReady(ctx context.Context, check Checker, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		checkCtx, checkCancel := context.WithTimeout(ctx, interval)
		lastErr = check.Ready(checkCtx)
		checkCancel()
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), ErrExited) {
				return ErrExited
			}
			return fmt.Errorf("%w after %s: %v", ErrNotReady, timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// Process is a supervised child.
type Process struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	done     chan struct{}
	err      error
	stopOnce sync.Once
}

// Start launches the child. It does not wait for readiness.
func Start(config Config, logger *zap.Logger) (*Process, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(config.Command, config.Args...)
	cmd.Env = append(os.Environ(), config.Env...)
	cmd.Stdout = config.Stdout
	cmd.Stderr = config.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", config.Command, err)
	}
	logger.Info("service process started", zap.Int("pid", cmd.Process.Pid), zap.String("command", config.Command))

	p := &Process{cmd: cmd, logger: logger, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Launch starts the child and blocks until check reports ready. The child is stopped
// when it does not become ready in time.
func Launch(ctx context.Context, config Config, check Checker, logger *zap.Logger) (*Process, error) {
	p, err := Start(config, logger)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-p.done:
			cancel(ErrExited)
		case <-waitCtx.Done():
		}
	}()

	if err := WaitReady(waitCtx, check, config.ReadyTimeout, config.PollInterval); err != nil {
		p.Stop()
		if errors.Is(err, ErrExited) && p.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExited, p.err)
		}
		return nil, err
	}
	p.logger.Info("service ready", zap.Int("pid", p.Pid()))
	return p, nil
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.err
}

// Stop asks the child to terminate and kills it if it has not exited within the grace period.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.logger.Warn("signal service process", zap.Error(err))
		}
		select {
		case <-p.done:
		case <-time.After(stopGrace):
			p.logger.Warn("service process did not exit, killing", zap.Int("pid", p.Pid()))
			p.cmd.Process.Kill()
			<-p.done
		}
	})
	<-p.done
	return nil
}

// Supervise runs fn until it returns or the child exits. When the child exits first,
// fn's context is cancelled and the exit is reported as ErrDied regardless of fn's result.
// The child is stopped before Supervise returns.
func Supervise(ctx context.Context, p *Process, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	defer p.Stop()

	go func() {
		select {
		case <-p.done:
			cancel(ErrDied)
		case <-ctx.Done():
		}
	}()

	err := fn(ctx)
	if errors.Is(context.Cause(ctx), ErrDied) {
		p.logger.Error("service process exited", zap.Int("pid", p.Pid()), zap.Error(p.err))
		if p.err != nil {
			return fmt.Errorf("%w: %v", ErrDied, p.err)
		}
		return ErrDied
	}
	return err
}
