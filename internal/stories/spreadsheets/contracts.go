package spreadsheets

import "context"

type (
	Storage interface {
		ListSpreadsheets(ctx context.Context, criteria ListCriteria) ([]*Spreadsheet, error)
	}
)
