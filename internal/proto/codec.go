// Package proto holds the wire contract of the checkin.auth.AuthService gRPC
// service: message types, the service descriptor and a client stub. Messages
// travel in protobuf wire format. The message schema is described at runtime
// (see File) and encoded through dynamicpb, so no code generation step is
// needed.
package proto

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	gproto "google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// CodecName is the gRPC content subtype ("application/grpc+checkinproto").
const CodecName = "checkinproto"

var toProtoJSON = protojson.MarshalOptions{UseProtoNames: true}

type codec struct{}

func (codec) Name() string { return CodecName }

// Marshal encodes one of this package's message structs in protobuf wire
// format. The struct's JSON form is mapped onto the dynamic message, which is
// why field names and JSON tags must agree.
func (codec) Marshal(v any) ([]byte, error) {
	msg, err := newMessage(v)
	if err != nil {
		return nil, err
	}
	js, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	if err := protojson.Unmarshal(js, msg); err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return gproto.Marshal(msg)
}

func (codec) Unmarshal(data []byte, v any) error {
	msg, err := newMessage(v)
	if err != nil {
		return err
	}
	if err := gproto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	js, err := toProtoJSON.Marshal(msg)
	if err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return json.Unmarshal(js, v)
}

func messageName(v any) (protoreflect.Name, bool) {
	switch v.(type) {
	case *SignupRequest:
		return "SignupRequest", true
	case *SigninRequest:
		return "SigninRequest", true
	case *TokenResponse:
		return "TokenResponse", true
	case *RefreshRequest:
		return "RefreshRequest", true
	case *RefreshResponse:
		return "RefreshResponse", true
	case *LogoutRequest:
		return "LogoutRequest", true
	case *LogoutResponse:
		return "LogoutResponse", true
	case *MeRequest:
		return "MeRequest", true
	case *Profile:
		return "Profile", true
	case *PingRequest:
		return "PingRequest", true
	case *PingResponse:
		return "PingResponse", true
	}
	return "", false
}

func newMessage(v any) (*dynamicpb.Message, error) {
	name, ok := messageName(v)
	if !ok {
		return nil, fmt.Errorf("%s codec: unsupported message type %T", CodecName, v)
	}
	md := File.Messages().ByName(name)
	if md == nil {
		return nil, fmt.Errorf("%s codec: no descriptor for %s", CodecName, name)
	}
	return dynamicpb.NewMessage(md), nil
}

func init() {
	encoding.RegisterCodec(codec{})
}
