package pool

import (
	jsoniter "github.com/json-iterator/go"
)

// Codec converts task arguments and results to bytes for the process backend.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec. It is encoding/json compatible.
type JSONCodec struct{}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
