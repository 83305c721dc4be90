package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// FromProtoQueryRequest maps a Query request struct into a domain QueryRequest.
func FromProtoQueryRequest(req *structpb.Struct) (models.QueryRequest, error) {
	if req == nil {
		return models.QueryRequest{}, fmt.Errorf("request is nil")
	}
	question, err := stringField(req, "question")
	if err != nil {
		return models.QueryRequest{}, err
	}
	format, err := stringField(req, "format")
	if err != nil {
		return models.QueryRequest{}, err
	}
	return models.QueryRequest{Question: question, Format: format}, nil
}

// ToProtoQueryRequest builds the request struct sent by clients.
func ToProtoQueryRequest(req models.QueryRequest) (*structpb.Struct, error) {
	fields := map[string]any{"question": req.Question}
	if req.Format != "" {
		fields["format"] = req.Format
	}
	return structpb.NewStruct(fields)
}

// ToProtoStruct encodes v through its JSON form, so json tags and custom marshalers
// decide the field names and order of values.
func ToProtoStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// FromProtoStruct decodes a response struct into out.
func FromProtoStruct(in *structpb.Struct, out any) error {
	if in == nil {
		return fmt.Errorf("response is nil")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(data, out)
}

// StatusFromError translates a service error into a gRPC status.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case utils.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case utils.IsConfiguration(err), errors.Is(err, utils.ErrDatasetNotLoaded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case utils.IsStructural(err):
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codes.Internal, "query failed")
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	}
	return "", utils.NewValidationError(name, "%s must be a string", name)
}
