package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"
	"sync"

	"github.com/utkarsh5026/futurepool/internal/wire"
)

// workerEnvKey marks a process started as a pool worker.
const workerEnvKey = "POOLME_WORKER"

// invoker runs a registered function on an encoded argument and encodes its result.
type invoker func(ctx context.Context, payload []byte) ([]byte, *wire.Failure)

// Registry maps function names to the functions a process worker may run.
//
// Functions cross the process boundary by name only, so the parent and the worker
// binary must register the same functions. In practice both are the same binary
// and a single registration function is called from main.
type Registry struct {
	codec Codec

	mu    sync.RWMutex
	funcs map[string]invoker
}

// NewRegistry returns an empty registry. A nil codec selects JSONCodec.
func NewRegistry(codec Codec) *Registry {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Registry{
		codec: codec,
		funcs: make(map[string]invoker),
	}
}

// Codec returns the codec used for arguments and results.
func (r *Registry) Codec() Codec {
	return r.codec
}

// Register makes fn runnable by process workers and returns the name it is known by.
//
// fn must be a top-level function or method value: closures share a name with every
// other instance of the same literal and their captured variables do not travel.
// Registering the same function twice is harmless.
func Register[T any, R any](r *Registry, fn ProcessFunc[T, R]) string {
	name := funcName(fn)
	codec := r.codec

	inv := func(ctx context.Context, payload []byte) (out []byte, fail *wire.Failure) {
		var arg T
		if err := codec.Unmarshal(payload, &arg); err != nil {
			return nil, &wire.Failure{Kind: wire.KindSerialization, Op: "decode argument", Message: err.Error()}
		}

		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				out, fail = nil, &wire.Failure{Kind: wire.KindPanic, Message: fmt.Sprint(rec), Stack: string(buf[:n])}
			}
		}()

		res, err := fn(ctx, arg)
		if err != nil {
			return nil, &wire.Failure{Kind: wire.KindTask, Message: err.Error()}
		}

		out, err = codec.Marshal(res)
		if err != nil {
			return nil, &wire.Failure{Kind: wire.KindSerialization, Op: "encode result", Message: err.Error()}
		}
		return out, nil
	}

	r.mu.Lock()
	r.funcs[name] = inv
	r.mu.Unlock()
	return name
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookup(name string) (invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.funcs[name]
	return inv, ok
}

func funcName(fn any) string {
	return runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
}

// IsWorkerProcess reports whether this process was started as a pool worker.
func IsWorkerProcess() bool {
	return os.Getenv(workerEnvKey) == "1"
}

// ServeWorker turns the current process into a pool worker if it was started as one.
// It returns false immediately in any other process. In a worker it serves requests
// on stdin/stdout until the pool closes stdin, then exits without returning.
//
// Call it first thing in main (or TestMain), after registering functions on reg.
// While serving, os.Stdout is redirected to stderr so stray prints cannot corrupt
// the protocol.
func ServeWorker(reg *Registry) bool {
	if !IsWorkerProcess() {
		return false
	}

	out := os.Stdout
	os.Stdout = os.Stderr

	if err := serve(context.Background(), reg, os.Stdin, out); err != nil {
		fmt.Fprintf(os.Stderr, "poolme worker %d: %v\n", os.Getpid(), err)
		os.Exit(1)
	}
	os.Exit(0)
	return true
}

// serve runs the worker side of the protocol. It returns nil when r reaches EOF.
func serve(ctx context.Context, reg *Registry, r io.Reader, w io.Writer) error {
	conn := wire.NewConn(r, w)
	if err := conn.Send(wire.Hello{PID: os.Getpid()}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	for {
		var req wire.Request
		if err := conn.Recv(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive request: %w", err)
		}

		resp := wire.Response{ID: req.ID}
		if inv, ok := reg.lookup(req.Func); ok {
			resp.Payload, resp.Failure = inv(ctx, req.Payload)
		} else {
			resp.Failure = &wire.Failure{Kind: wire.KindUnknownFunc, Op: "lookup", Message: req.Func}
		}

		if err := conn.Send(resp); err != nil {
			return fmt.Errorf("send response %d: %w", req.ID, err)
		}
	}
}

// remoteError converts a worker-reported failure into the pool's error taxonomy.
func remoteError(taskID int64, f *wire.Failure) error {
	switch f.Kind {
	case wire.KindTask:
		return errors.New(f.Message)
	case wire.KindPanic:
		return &PanicError{Value: f.Message, Stack: f.Stack}
	case wire.KindSerialization:
		return &SerializationError{TaskID: taskID, Op: f.Op, Err: errors.New(f.Message)}
	case wire.KindUnknownFunc:
		return &SerializationError{TaskID: taskID, Op: "lookup", Err: fmt.Errorf("%w in worker: %s", ErrNotRegistered, f.Message)}
	default:
		return f
	}
}
