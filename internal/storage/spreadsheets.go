package storage

import (
	"context"
	"fmt"

	"wb-tariffs/internal/stories/spreadsheets"
)

const spreadsheetsTable = "spreadsheets"

type spreadsheetRow struct {
	SpreadsheetID string `db:"spreadsheet_id"`
}

func (r spreadsheetRow) ToModel() *spreadsheets.Spreadsheet {
	return &spreadsheets.Spreadsheet{ID: r.SpreadsheetID}
}

func (s *storageImpl) ListSpreadsheets(ctx context.Context, criteria spreadsheets.ListCriteria) ([]*spreadsheets.Spreadsheet, error) {
	query := s.stmpBuilder().
		Select(fields(spreadsheetRow{})).
		From(spreadsheetsTable).
		OrderBy("spreadsheet_id")

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []spreadsheetRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*spreadsheets.Spreadsheet, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.ToModel())
	}
	return result, nil
}
