// Package syncpb defines the wire contract between the supervisor and a game
// process: the TreeSync gRPC service (see treesync.proto) and helpers for the
// single-field envelopes exchanged on its Synchronize stream.
package syncpb

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// IntroductionFinishedKey is sent once by the supervisor after it has
	// created every synchronized field of the instance.
	IntroductionFinishedKey = "__tree_introduction_finished"

	// ManifestTypeKey carries the instance type in a GetManifest request
	ManifestTypeKey = "type"

	// ManifestFieldsKey carries the field list in a GetManifest response
	ManifestFieldsKey = "fields"

	// SessionMetadataKey is the gRPC metadata key holding the connector session id
	SessionMetadataKey = "x-inexor-session"

	// InstanceMetadataKey is the gRPC metadata key holding the instance id
	InstanceMetadataKey = "x-inexor-instance"
)

// ErrMalformedEnvelope is returned for messages that do not hold exactly one field
var ErrMalformedEnvelope = errors.New("envelope must contain exactly one field")

// NewEnvelope wraps a single key/value pair. value must be representable by
// structpb.NewValue.
func NewEnvelope(key string, value any) (*structpb.Struct, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedEnvelope)
	}
	v, err := structpb.NewValue(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{key: v}}, nil
}

// SplitEnvelope returns the key and decoded value of an envelope. Numbers
// decode as float64.
func SplitEnvelope(msg *structpb.Struct) (string, any, error) {
	if msg == nil || len(msg.GetFields()) != 1 {
		return "", nil, ErrMalformedEnvelope
	}
	for k, v := range msg.GetFields() {
		return k, v.AsInterface(), nil
	}
	return "", nil, ErrMalformedEnvelope
}

// IntroductionFinished returns the handshake envelope
func IntroductionFinished() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		IntroductionFinishedKey: structpb.NewBoolValue(true),
	}}
}

// NewManifestRequest builds the GetManifest request for an instance type
func NewManifestRequest(instanceType string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		ManifestTypeKey: structpb.NewStringValue(instanceType),
	}}
}

// ManifestRequestType extracts the instance type from a GetManifest request
func ManifestRequestType(req *structpb.Struct) string {
	return req.GetFields()[ManifestTypeKey].GetStringValue()
}
