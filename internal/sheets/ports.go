package sheets

import (
	"context"

	"previsto/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter appends a one-row summary of a month variance report
	// to an external spreadsheet.
	ReportExporter interface {
		AppendReport(ctx context.Context, report core.VarianceReport) (rowRef string, err error)
	}
)
