package gsheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// Client publishes rows to Google Sheets with a service account.
type Client struct {
	srv    *sheets.Service
	logger *slog.Logger
}

// NewClient authenticates with the service-account key in credentialsFile.
func NewClient(ctx context.Context, credentialsFile string, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("google credentials file: %w", err)
	}

	opts = append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)

	return newClient(ctx, logger, opts...)
}

func newClient(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets.NewService: %w", err)
	}

	return &Client{
		srv:    srv,
		logger: logger.With(slog.String("publisher", "gsheets")),
	}, nil
}

// Title returns the spreadsheet title.
func (c *Client) Title(ctx context.Context, spreadsheetID string) (string, error) {
	ss, err := c.srv.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("get spreadsheet %s: %w", spreadsheetID, err)
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

// ClearSheet clears every value of the sheet.
func (c *Client) ClearSheet(ctx context.Context, spreadsheetID, sheet string) error {
	_, err := c.srv.Spreadsheets.Values.
		Clear(spreadsheetID, sheet, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear %s!%s: %w", spreadsheetID, sheet, err)
	}
	return nil
}

// AppendRows appends rows after the last non-empty row of the sheet.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]any) error {
	resp, err := c.srv.Spreadsheets.Values.
		Append(spreadsheetID, sheet, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s!%s: %w", spreadsheetID, sheet, err)
	}

	if resp.Updates != nil {
		c.logger.Debug("Rows appended",
			slog.String("spreadsheet_id", spreadsheetID),
			slog.String("range", resp.Updates.UpdatedRange),
			slog.Int64("rows", resp.Updates.UpdatedRows))
	}
	return nil
}
