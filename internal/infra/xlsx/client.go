package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

var spreadsheetIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Client keeps one workbook per spreadsheet id under dir. It stands in for
// Google Sheets in the local profile.
type Client struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewClient(dir string, logger *slog.Logger) (*Client, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create xlsx dir: %w", err)
	}
	return &Client{
		dir:    dir,
		logger: logger.With(slog.String("publisher", "xlsx")),
	}, nil
}

// Path returns the workbook file of a spreadsheet id.
func (c *Client) Path(spreadsheetID string) (string, error) {
	if !spreadsheetIDRe.MatchString(spreadsheetID) {
		return "", fmt.Errorf("invalid spreadsheet id %q", spreadsheetID)
	}
	return filepath.Join(c.dir, spreadsheetID+".xlsx"), nil
}

// Title returns the workbook title, or the id when the workbook has none.
func (c *Client) Title(_ context.Context, spreadsheetID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, _, err := c.open(spreadsheetID)
	if err != nil {
		return "", err
	}
	defer f.Close()

	props, err := f.GetDocProps()
	if err != nil || props.Title == "" {
		return spreadsheetID, nil
	}
	return props.Title, nil
}

// ClearSheet removes every row of the sheet, creating the workbook and the
// sheet when missing.
func (c *Client) ClearSheet(_ context.Context, spreadsheetID, sheet string) error {
	return c.update(spreadsheetID, sheet, func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		for i := len(rows); i >= 1; i-- {
			if err := f.RemoveRow(sheet, i); err != nil {
				return fmt.Errorf("remove row %d: %w", i, err)
			}
		}
		return nil
	})
}

// AppendRows writes rows after the last non-empty row of the sheet.
func (c *Client) AppendRows(_ context.Context, spreadsheetID, sheet string, rows [][]any) error {
	return c.update(spreadsheetID, sheet, func(f *excelize.File) error {
		existing, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}

		start := len(existing) + 1
		for i := range rows {
			cell, err := excelize.CoordinatesToCellName(1, start+i)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
				return fmt.Errorf("write row %s: %w", cell, err)
			}
		}

		c.logger.Debug("Rows appended",
			slog.String("spreadsheet_id", spreadsheetID),
			slog.String("sheet", sheet),
			slog.Int("from_row", start),
			slog.Int("rows", len(rows)))
		return nil
	})
}

func (c *Client) update(spreadsheetID, sheet string, fn func(*excelize.File) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, path, err := c.open(spreadsheetID)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureSheet(f, sheet); err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return fmt.Errorf("%s!%s: %w", spreadsheetID, sheet, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func (c *Client) open(spreadsheetID string) (*excelize.File, string, error) {
	path, err := c.Path(spreadsheetID)
	if err != nil {
		return nil, "", err
	}

	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}

	f = excelize.NewFile()
	if err := f.SetDocProps(&excelize.DocProperties{Title: spreadsheetID, Creator: "wb-tariffs"}); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("set doc props: %w", err)
	}
	return f, path, nil
}

// ensureSheet creates sheet, reusing the default sheet of a fresh workbook.
func ensureSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if idx != -1 {
		return nil
	}

	if sheets := f.GetSheetList(); len(sheets) == 1 && sheets[0] == defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("rename default sheet: %w", err)
		}
		return nil
	}

	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}
	return nil
}
