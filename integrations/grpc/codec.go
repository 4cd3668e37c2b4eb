package grpc

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype of JSONCodec ("application/grpc+json").
const CodecName = "json"

// JSONCodec marshals messages as JSON. It lets plain Go structs travel over
// gRPC without generated protobuf types.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "json codec: marshal")
	}
	return b, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "json codec: unmarshal")
	}
	return nil
}

func (JSONCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCallOption selects JSONCodec for a call.
func JSONCallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
