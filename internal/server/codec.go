package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

// decode copies a Struct request into v through its JSON form.
func decode(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return common.InvalidArgumentErrorf("request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return common.InvalidArgumentErrorf("request: %v", err)
	}
	return nil
}

// encode turns any JSON-marshalable value into a Struct response.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// toStatus maps a domain error onto a gRPC status. Errors that already carry
// a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, extraction.ErrEmptyInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, async.ErrQueueClosed):
		return status.Error(codes.Unavailable, err.Error())
	}
	code := common.GRPCCode(err)
	if code == codes.Internal {
		return status.Error(code, fmt.Sprintf("internal error: %v", err))
	}
	return status.Error(code, err.Error())
}
