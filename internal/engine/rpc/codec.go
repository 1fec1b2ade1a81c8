package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets EngineStatus exchange plain Go structs over gRPC
// without a .proto/protoc step: grpc-go selects a registered codec by
// the "+subtype" suffix of the request's content-type
// (application/grpc+json), so registering this under the name "json"
// is enough for both server and client to agree on the wire format.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
