package tariffsync

import (
	"context"
	"time"

	"wb-tariffs/internal/stories/spreadsheets"
	"wb-tariffs/internal/stories/tariffs"
	"wb-tariffs/internal/wildberries"
)

type (
	// Fetcher loads the upstream box tariffs of a date
	Fetcher interface {
		GetBoxTariffs(ctx context.Context, date time.Time) (*wildberries.BoxTariffsResponse, error)
	}

	// TariffsService persists and lists tariffs
	TariffsService interface {
		Upsert(ctx context.Context, tariff tariffs.Tariff) (*tariffs.Tariff, tariffs.UpsertAction, error)
		ListForDate(ctx context.Context, date time.Time) ([]*tariffs.Tariff, error)
	}

	// SpreadsheetsStorage lists registered publish targets
	SpreadsheetsStorage interface {
		ListSpreadsheets(ctx context.Context, criteria spreadsheets.ListCriteria) ([]*spreadsheets.Spreadsheet, error)
	}

	// Publisher writes rows into a spreadsheet sheet
	Publisher interface {
		Title(ctx context.Context, spreadsheetID string) (string, error)
		ClearSheet(ctx context.Context, spreadsheetID, sheet string) error
		AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]any) error
	}
)
