package server

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ExportScans returns the XLSX workbook base64-encoded, since a Struct
// carries no bytes.
func (s *ExtractionService) ExportScans(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Exporter == nil {
		return nil, unimplemented("ExportScans")
	}
	raw := req.GetFields()["status"].GetStringValue()
	st, ok := constants.ParseScanStatus(raw)
	if raw != "" && !ok {
		return nil, common.InvalidArgumentErrorf("unknown status %q", raw)
	}

	b, err := s.deps.Exporter.ExportInvoicesXLSX(ctx, st)
	if err != nil {
		s.logger.Error("grpc.export.failed", "err", err)
		return nil, toStatus(err)
	}
	return encode(map[string]any{
		"filename":    "invoices.xlsx",
		"xlsx_base64": base64.StdEncoding.EncodeToString(b),
	})
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "%s is not enabled on this server", method)
}
