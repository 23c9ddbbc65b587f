package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ExtractionServiceName is the fully qualified gRPC service name. Messages
// are google.protobuf.Struct documents shaped like the REST payloads.
const ExtractionServiceName = "invoices.v1.ExtractionService"

// ExtractionServiceServer is the server API for the extraction service.
type ExtractionServiceServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListScans(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReprocessScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportScans(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ExtractionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExtractionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractionServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExtractionServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ExtractionServiceDesc describes the service for grpc.Server.RegisterService.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Extract", ExtractionServiceServer.Extract),
		unaryHandler("SubmitScan", ExtractionServiceServer.SubmitScan),
		unaryHandler("GetScan", ExtractionServiceServer.GetScan),
		unaryHandler("ListScans", ExtractionServiceServer.ListScans),
		unaryHandler("ReprocessScan", ExtractionServiceServer.ReprocessScan),
		unaryHandler("IngestFile", ExtractionServiceServer.IngestFile),
		unaryHandler("IngestDirectory", ExtractionServiceServer.IngestDirectory),
		unaryHandler("ExportScans", ExtractionServiceServer.ExportScans),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoices/v1/extraction.proto",
}

func RegisterExtractionServiceServer(s grpc.ServiceRegistrar, srv ExtractionServiceServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

// ExtractionClient calls the extraction service by method name.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

// Call invokes method (e.g. "GetScan") with in.
func (c *ExtractionClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ExtractionServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
