package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Tab names.
const (
	PredictionsTab = "Predictions"
	SummaryTab     = "Summary"
)

// Writer implements service.HistoryExporter for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets history writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, config, logger), nil
}

// NewWriterWithService creates a writer around an existing Sheets client.
func NewWriterWithService(service *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Export replaces the Predictions and Summary tabs with the given history.
// It returns the spreadsheet ID written to.
func (w *Writer) Export(ctx context.Context, records []service.PredictionRecord, counts []service.LabelCount) (string, error) {
	w.logger.Info("starting history export",
		"predictions", len(records),
		"labels", len(counts))

	spreadsheetID, sheetIDs, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	predictionRows := w.preparePredictionRows(records)
	summaryRows := prepareSummaryRows(counts)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		if clearErr := w.clearTabs(ctx, spreadsheetID); clearErr != nil {
			return clearErr
		}
		return w.writeData(ctx, spreadsheetID, predictionRows, summaryRows)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, sheetIDs)
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("history export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(predictionRows)+len(summaryRows))

	return spreadsheetID, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet opens the configured spreadsheet, adding missing
// tabs, or creates a new one. It returns the tab name to sheet ID mapping.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		spreadsheet := &sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: PredictionsTab}},
				{Properties: &sheets.SheetProperties{Title: SummaryTab}},
			},
		}

		created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}

		w.logger.Info("created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)

		return created.SpreadsheetId, sheetIDsByTitle(created), nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	ids := sheetIDsByTitle(existing)

	var requests []*sheets.Request
	for _, tab := range []string{PredictionsTab, SummaryTab} {
		if _, ok := ids[tab]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: tab}},
			})
		}
	}
	if len(requests) == 0 {
		return w.config.SpreadsheetID, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.config.SpreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return w.config.SpreadsheetID, ids, nil
}

func sheetIDsByTitle(spreadsheet *sheets.Spreadsheet) map[string]int64 {
	ids := make(map[string]int64)
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	return ids
}

// clearTabs clears both tabs.
func (w *Writer) clearTabs(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.BatchClear(spreadsheetID, &sheets.BatchClearValuesRequest{
		Ranges: []string{PredictionsTab + "!A:Z", SummaryTab + "!A:Z"},
	}).Context(ctx).Do()
	return apiError(err)
}

// writeData writes both tabs in one request.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, predictions, summary [][]any) error {
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: PredictionsTab + "!A1", Values: predictions},
			{Range: SummaryTab + "!A1", Values: summary},
		},
	}
	_, err := w.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return apiError(err)
}

// preparePredictionRows lays out one row per prediction under a header.
func (w *Writer) preparePredictionRows(records []service.PredictionRecord) [][]any {
	loc := w.config.location()

	header := []any{"Time", "Session", "Digit", "Confidence", "Trigger"}
	for d := 0; d < model.NumClasses; d++ {
		header = append(header, fmt.Sprintf("P(%d)", d))
	}

	values := make([][]any, 0, len(records)+1)
	values = append(values, header)
	for _, r := range records {
		row := []any{
			r.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.SessionID,
			r.Label,
			round4(r.Confidence),
			string(r.Trigger),
		}
		for d := 0; d < model.NumClasses; d++ {
			var p float64
			if d < len(r.Probabilities) {
				p = r.Probabilities[d]
			}
			row = append(row, round4(p))
		}
		values = append(values, row)
	}
	return values
}

// prepareSummaryRows lays out per-digit counts with each digit's share.
func prepareSummaryRows(counts []service.LabelCount) [][]any {
	total := 0
	for _, c := range counts {
		total += c.Count
	}

	values := make([][]any, 0, len(counts)+2)
	values = append(values, []any{"Digit", "Predictions", "Avg confidence", "Share"})
	for _, c := range counts {
		var share float64
		if total > 0 {
			share = float64(c.Count) / float64(total)
		}
		values = append(values, []any{c.Label, c.Count, round4(c.AvgConfidence), round4(share)})
	}
	values = append(values, []any{"Total", total})
	return values
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// applyFormatting bolds and freezes the header row of each tab.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64) error {
	var requests []*sheets.Request
	for _, tab := range []string{PredictionsTab, SummaryTab} {
		id, ok := sheetIDs[tab]
		if !ok {
			continue
		}
		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       id,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        id,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)
	}
	if len(requests) == 0 {
		return nil
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return apiError(err)
}

// apiError exposes the status of a Sheets API failure to common.WithRetry,
// so quota and backend errors are retried and permission errors are not.
func apiError(err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return err
	}
	return &common.StatusError{
		Err:        err,
		Code:       gErr.Code,
		Body:       gErr.Message,
		RetryAfter: common.ParseRetryAfter(gErr.Header.Get("Retry-After")),
	}
}
