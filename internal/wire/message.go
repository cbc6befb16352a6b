package wire

// ErrorKind classifies a failure reported by a worker process.
type ErrorKind string

const (
	// KindTask means the function ran and returned an error.
	KindTask ErrorKind = "task"
	// KindPanic means the function panicked.
	KindPanic ErrorKind = "panic"
	// KindSerialization means the argument or the result could not be converted.
	KindSerialization ErrorKind = "serialization"
	// KindUnknownFunc means the worker binary has no function under the requested name.
	KindUnknownFunc ErrorKind = "unknown_func"
)

// Hello is the first frame a worker sends after starting.
type Hello struct {
	PID int `json:"pid"`
}

// Request asks a worker to run the function registered as Func.
type Request struct {
	ID      uint64 `json:"id"`
	Func    string `json:"func"`
	Payload []byte `json:"payload"`
}

// Failure describes why a Request did not produce a result.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Response answers the Request with the same ID. Exactly one of Payload and
// Failure is meaningful.
type Response struct {
	ID      uint64   `json:"id"`
	Payload []byte   `json:"payload,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}
