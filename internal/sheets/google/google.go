package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"previsto/internal/core"
	ports "previsto/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends variance report rows to a Google Sheets spreadsheet. It is
// the only outbound adapter that leaves the process boundary, so failures
// here must never break report generation.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
}

// Ensure interface conformance
var _ ports.ReportExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS for auth.
// Optional: GOOGLE_REPORT_SHEET_NAME (default "Variance").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	reportSheet := strings.TrimSpace(os.Getenv("GOOGLE_REPORT_SHEET_NAME"))
	if reportSheet == "" {
		reportSheet = "Variance"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportSheet:   reportSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// AppendReport writes one row per report: month, per-currency variance totals,
// and the worst offender by percentage.
func (c *Client) AppendReport(ctx context.Context, report core.VarianceReport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	worstName, worstPct := worstVariance(report)

	row := []interface{}{
		report.MonthYear,
		formatAmounts(report.Summary.TotalVariance),
		formatPercentages(report.Summary.VariancePercentage),
		worstName,
		fmt.Sprintf("%.2f%%", worstPct),
		time.Now().UTC().Format(time.RFC3339),
	}

	rng := fmt.Sprintf("%s!A:F", c.reportSheet)
	vr := &gsheet.ValueRange{Values: [][]interface{}{row}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append report row: %w", err)
	}

	rowRef := ""
	if resp.Updates != nil {
		rowRef = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Exported variance report to spreadsheet",
		"month_year", report.MonthYear,
		"sheet", c.reportSheet,
		"row_ref", rowRef)

	return rowRef, nil
}

// worstVariance picks the largest-magnitude item from the ranked list; the
// list is already sorted descending by absolute percentage.
func worstVariance(report core.VarianceReport) (string, float64) {
	if len(report.LargestVariances) == 0 {
		return "", 0
	}
	top := report.LargestVariances[0]
	return top.ExpectedTransaction.Description, top.VariancePercentage
}

func formatAmounts(amounts core.AmountByCurrency) string {
	if len(amounts) == 0 {
		return ""
	}
	currencies := make([]string, 0, len(amounts))
	for cur := range amounts {
		currencies = append(currencies, string(cur))
	}
	sort.Strings(currencies)

	parts := make([]string, 0, len(currencies))
	for _, cur := range currencies {
		parts = append(parts, fmt.Sprintf("%s %s", cur, amounts[core.Currency(cur)].StringFixed(2)))
	}
	return strings.Join(parts, ", ")
}

func formatPercentages(pcts map[core.Currency]float64) string {
	if len(pcts) == 0 {
		return ""
	}
	currencies := make([]string, 0, len(pcts))
	for cur := range pcts {
		currencies = append(currencies, string(cur))
	}
	sort.Strings(currencies)

	parts := make([]string, 0, len(currencies))
	for _, cur := range currencies {
		parts = append(parts, fmt.Sprintf("%s %.2f%%", cur, pcts[core.Currency(cur)]))
	}
	return strings.Join(parts, ", ")
}
