package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/utkarsh5026/futurepool/internal/wire"
	"go.uber.org/zap"
)

const (
	closeGrace          = 5 * time.Second
	respawnInitialDelay = 50 * time.Millisecond
	respawnMaxDelay     = 2 * time.Second
)

// child is one running worker process.
type child struct {
	cmd    *exec.Cmd
	stdin  *os.File
	conn   *wire.Conn
	exited chan struct{} // closed once the process has been reaped
}

// processExecutor runs tasks in a dedicated child process, one at a time.
//
// Only the owning worker goroutine calls execute and close. kill may be called from
// any goroutine and permanently stops the executor.
type processExecutor[T any, R any] struct {
	workerID int
	reg      *Registry
	cfg      *config
	logger   *zap.Logger
	metrics  *metrics

	mu     sync.Mutex
	cur    *child
	killed bool

	spawns int
	nextID uint64
}

func newProcessExecutor[T any, R any](workerID int, cfg *config, logger *zap.Logger, m *metrics) *processExecutor[T, R] {
	return &processExecutor[T, R]{
		workerID: workerID,
		reg:      cfg.registry,
		cfg:      cfg,
		logger:   logger.With(zap.Int("worker", workerID), zap.String("backend", "process")),
		metrics:  m,
	}
}

func (e *processExecutor[T, R]) execute(ctx context.Context, t Task[T, R]) (R, error) {
	var zero R

	name := funcName(t.Fn)
	if _, ok := e.reg.lookup(name); !ok {
		return zero, &SerializationError{TaskID: t.ID, Op: "lookup", Err: fmt.Errorf("%w: %s", ErrNotRegistered, name)}
	}

	payload, err := e.reg.codec.Marshal(t.Arg)
	if err != nil {
		return zero, &SerializationError{TaskID: t.ID, Op: "encode argument", Err: err}
	}

	c, err := e.ensure(ctx)
	if err != nil {
		return zero, err
	}

	e.nextID++
	req := wire.Request{ID: e.nextID, Func: name, Payload: payload}
	if err := c.conn.Send(req); err != nil {
		e.discard(c)
		return zero, fmt.Errorf("%w: send task %d: %v", ErrWorkerLost, t.ID, err)
	}

	var resp wire.Response
	if err := c.conn.Recv(&resp); err != nil {
		e.discard(c)
		return zero, fmt.Errorf("%w: receive task %d: %v", ErrWorkerLost, t.ID, err)
	}
	if resp.ID != req.ID {
		e.discard(c)
		return zero, fmt.Errorf("%w: response %d does not match request %d", ErrWorkerLost, resp.ID, req.ID)
	}

	if resp.Failure != nil {
		return zero, remoteError(t.ID, resp.Failure)
	}

	var result R
	if err := e.reg.codec.Unmarshal(resp.Payload, &result); err != nil {
		return zero, &SerializationError{TaskID: t.ID, Op: "decode result", Err: err}
	}
	return result, nil
}

// ensure returns a live child, starting one with exponential backoff if needed.
func (e *processExecutor[T, R]) ensure(ctx context.Context) (*child, error) {
	e.mu.Lock()
	c := e.cur
	e.mu.Unlock()

	if c != nil {
		select {
		case <-c.exited:
			e.logger.Warn("worker process exited unexpectedly", zap.Int("pid", c.cmd.Process.Pid))
			e.discard(c)
		default:
			return c, nil
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = respawnInitialDelay
	b.MaxInterval = respawnMaxDelay

	c, err := backoff.Retry(ctx, e.spawn,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(e.cfg.respawnAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			e.logger.Warn("worker process failed to start, retrying", zap.Error(err), zap.Duration("delay", d))
		}),
	)
	if err != nil {
		e.logger.Error("worker process unavailable", zap.Error(err))
		return nil, fmt.Errorf("start worker %d: %w", e.workerID, err)
	}
	return c, nil
}

// spawn starts a child and waits for its Hello.
func (e *processExecutor[T, R]) spawn() (*child, error) {
	e.mu.Lock()
	killed := e.killed
	e.mu.Unlock()
	if killed {
		return nil, backoff.Permanent(ErrPoolClosed)
	}

	exe := e.cfg.executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("locate executable: %w", err))
		}
	}

	// Plain pipes rather than cmd.StdinPipe/StdoutPipe: cmd.Wait runs concurrently
	// with reads and must not close the read end under us.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdinR.Close()
		_ = stdinW.Close()
		return nil, err
	}

	cmd := exec.Command(exe) // #nosec G204 -- the executable is this binary or an explicitly configured one
	cmd.Env = append(os.Environ(), workerEnvKey+"=1", "POOLME_WORKER_ID="+strconv.Itoa(e.workerID))
	cmd.Env = append(cmd.Env, e.cfg.workerEnv...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	_ = stdinR.Close()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdinW.Close()
		_ = stdoutR.Close()
		return nil, fmt.Errorf("start %s: %w", exe, err)
	}

	c := &child{
		cmd:    cmd,
		stdin:  stdinW,
		conn:   wire.NewConn(stdoutR, stdinW),
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		_ = stdoutR.Close()
		close(c.exited)
	}()

	if err := e.handshake(c); err != nil {
		_ = cmd.Process.Kill()
		<-c.exited
		_ = c.stdin.Close()
		return nil, err
	}

	e.mu.Lock()
	if e.killed {
		e.mu.Unlock()
		_ = cmd.Process.Kill()
		<-c.exited
		_ = c.stdin.Close()
		return nil, backoff.Permanent(ErrPoolClosed)
	}
	e.cur = c
	e.mu.Unlock()

	e.spawns++
	if e.spawns > 1 {
		e.metrics.workerRespawned()
	}
	e.logger.Debug("worker process started", zap.Int("pid", cmd.Process.Pid))
	return c, nil
}

// handshake waits for the child's Hello. A binary that never calls ServeWorker
// would otherwise run its regular main and never answer.
func (e *processExecutor[T, R]) handshake(c *child) error {
	errc := make(chan error, 1)
	go func() {
		var hello wire.Hello
		if err := c.conn.Recv(&hello); err != nil {
			errc <- err
			return
		}
		if hello.PID != c.cmd.Process.Pid {
			errc <- fmt.Errorf("hello from pid %d, started %d", hello.PID, c.cmd.Process.Pid)
			return
		}
		errc <- nil
	}()

	timer := time.NewTimer(e.cfg.handshakeTimeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("worker handshake: %w", err)
		}
		return nil
	case <-timer.C:
		return backoff.Permanent(fmt.Errorf("worker handshake: no hello within %v (does main call pool.ServeWorker?)", e.cfg.handshakeTimeout))
	}
}

// discard kills c and forgets it so the next task starts a fresh child.
func (e *processExecutor[T, R]) discard(c *child) {
	e.mu.Lock()
	if e.cur == c {
		e.cur = nil
	}
	e.mu.Unlock()

	_ = c.cmd.Process.Kill()
	<-c.exited
	_ = c.stdin.Close()
}

// close asks the child to exit by closing its stdin, and kills it if it does not.
func (e *processExecutor[T, R]) close() error {
	e.mu.Lock()
	c := e.cur
	e.cur = nil
	killed := e.killed
	e.mu.Unlock()

	if c == nil {
		return nil
	}

	_ = c.stdin.Close()
	if killed {
		<-c.exited
		return nil
	}

	timer := time.NewTimer(closeGrace)
	defer timer.Stop()

	select {
	case <-c.exited:
		if code := c.cmd.ProcessState.ExitCode(); code != 0 {
			return fmt.Errorf("worker process %d exited with code %d", c.cmd.Process.Pid, code)
		}
		return nil
	case <-timer.C:
		_ = c.cmd.Process.Kill()
		<-c.exited
		return errors.New("worker process did not exit in time and was killed")
	}
}

func (e *processExecutor[T, R]) kill() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.killed = true
	if e.cur != nil {
		_ = e.cur.cmd.Process.Kill()
	}
}
