package livetree

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/minio/blake2b-simd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec serializes a whole tree into a snapshot and back.
type Codec interface {
	Marshal(Value) ([]byte, error)
	Unmarshal([]byte) (Value, error)
}

var (
	// JSONCodec stores snapshots as one JSON document. It is the
	// default, and the format used on the wire.
	JSONCodec Codec = jsonCodec{}

	// ProtoCodec stores snapshots as a protobuf google.protobuf.Value,
	// which maps one-to-one onto JSON.
	ProtoCodec Codec = protoCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v Value) ([]byte, error) {
	if v == nil {
		v = Null{}
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(b []byte) (Value, error) {
	return DecodeJSON(b)
}

type protoCodec struct{}

func (protoCodec) Marshal(v Value) ([]byte, error) {
	pv, err := structpb.NewValue(ToGo(v))
	if err != nil {
		return nil, fmt.Errorf("structpb: %w", err)
	}
	return proto.Marshal(pv)
}

func (protoCodec) Unmarshal(b []byte) (Value, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return FromGo(pv.AsInterface())
}

// CodecByName returns the codec called "json" or "proto".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec, nil
	case "proto", "protobuf":
		return ProtoCodec, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Digest identifies snapshot contents: an unpadded base64url
// blake2b-256 hash.
func Digest(snapshot []byte) string {
	hashBytes := blake2b.Sum256(snapshot)
	return base64.RawURLEncoding.EncodeToString(hashBytes[:])
}
