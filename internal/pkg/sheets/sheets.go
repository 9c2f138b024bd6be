package sheets

import (
	"context"
	"fmt"

	"course_checkout/internal/pkg/config"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Appender 把一行清算记录追加到共享表
type Appender interface {
	AppendRow(ctx context.Context, values []interface{}) error
}

type sheetsAppender struct {
	spreadsheetID string
	writeRange    string
	credsFile     string
}

func NewAppender() Appender {
	cfg := config.GlobalConfig.Sheets
	return &sheetsAppender{
		spreadsheetID: cfg.SpreadsheetID,
		writeRange:    cfg.Range,
		credsFile:     cfg.CredentialsFile,
	}
}

func (s *sheetsAppender) AppendRow(ctx context.Context, values []interface{}) error {
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(s.credsFile))
	if err != nil {
		return fmt.Errorf("sheets client init failed: %w", err)
	}

	vr := &sheetsapi.ValueRange{Values: [][]interface{}{values}}
	_, err = svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.writeRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append failed: %w", err)
	}
	return nil
}
