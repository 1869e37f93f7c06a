package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"wb-tariffs/internal/stories/tariffs"
)

const tariffsTable = "tariffs"

var tariffRowFields = fields(tariffRow{})

type tariffRow struct {
	ID                          int64     `db:"id"`
	TariffDate                  time.Time `db:"tariff_date"`
	DtTill                      time.Time `db:"dt_till"`
	DeliveryBase                string    `db:"delivery_base"`
	DeliveryCoefExpr            string    `db:"delivery_coef_expr"`
	DeliveryLiter               string    `db:"delivery_liter"`
	DeliveryMarketplaceBase     string    `db:"delivery_marketplace_base"`
	DeliveryMarketplaceCoefExpr string    `db:"delivery_marketplace_coef_expr"`
	DeliveryMarketplaceLiter    string    `db:"delivery_marketplace_liter"`
	StorageBase                 string    `db:"storage_base"`
	StorageCoefExpr             string    `db:"storage_coef_expr"`
	StorageLiter                string    `db:"storage_liter"`
	GeoName                     string    `db:"geo_name"`
	WarehouseName               string    `db:"warehouse_name"`
}

func (t *tariffRow) scanTargets() []any {
	return []any{
		&t.ID, &t.TariffDate, &t.DtTill,
		&t.DeliveryBase, &t.DeliveryCoefExpr, &t.DeliveryLiter,
		&t.DeliveryMarketplaceBase, &t.DeliveryMarketplaceCoefExpr, &t.DeliveryMarketplaceLiter,
		&t.StorageBase, &t.StorageCoefExpr, &t.StorageLiter,
		&t.GeoName, &t.WarehouseName,
	}
}

func (t tariffRow) ToModel() *tariffs.Tariff {
	return &tariffs.Tariff{
		ID:                          t.ID,
		TariffDate:                  tariffs.DateOf(t.TariffDate),
		DtTill:                      t.DtTill.UTC(),
		DeliveryBase:                t.DeliveryBase,
		DeliveryCoefExpr:            t.DeliveryCoefExpr,
		DeliveryLiter:               t.DeliveryLiter,
		DeliveryMarketplaceBase:     t.DeliveryMarketplaceBase,
		DeliveryMarketplaceCoefExpr: t.DeliveryMarketplaceCoefExpr,
		DeliveryMarketplaceLiter:    t.DeliveryMarketplaceLiter,
		StorageBase:                 t.StorageBase,
		StorageCoefExpr:             t.StorageCoefExpr,
		StorageLiter:                t.StorageLiter,
		GeoName:                     t.GeoName,
		WarehouseName:               t.WarehouseName,
	}
}

// Dates are bound as YYYY-MM-DD text so that equality lookups behave the
// same on a Postgres DATE and on SQLite's text storage.
func (s *storageImpl) CreateTariff(ctx context.Context, tariff tariffs.Tariff) (*tariffs.Tariff, error) {
	params := map[string]interface{}{
		"tariff_date":                    tariffs.FormatDate(tariff.TariffDate),
		"dt_till":                        tariff.DtTill.UTC(),
		"delivery_base":                  tariff.DeliveryBase,
		"delivery_coef_expr":             tariff.DeliveryCoefExpr,
		"delivery_liter":                 tariff.DeliveryLiter,
		"delivery_marketplace_base":      tariff.DeliveryMarketplaceBase,
		"delivery_marketplace_coef_expr": tariff.DeliveryMarketplaceCoefExpr,
		"delivery_marketplace_liter":     tariff.DeliveryMarketplaceLiter,
		"storage_base":                   tariff.StorageBase,
		"storage_coef_expr":              tariff.StorageCoefExpr,
		"storage_liter":                  tariff.StorageLiter,
		"geo_name":                       tariff.GeoName,
		"warehouse_name":                 tariff.WarehouseName,
	}

	q, args, err := s.stmpBuilder().
		Insert(tariffsTable).
		SetMap(params).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("db.QueryRowContext: %w", err)
	}

	created := tariff
	created.ID = id
	created.TariffDate = tariffs.DateOf(tariff.TariffDate)
	created.DtTill = tariff.DtTill.UTC()
	return &created, nil
}

func (s *storageImpl) GetTariff(ctx context.Context, criteria tariffs.GetCriteria) (*tariffs.Tariff, error) {
	query := s.stmpBuilder().
		Select(tariffRowFields).
		From(tariffsTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.TariffDate != nil {
		query = query.Where(sq.Eq{"tariff_date": tariffs.FormatDate(*criteria.TariffDate)})
	}
	if criteria.WarehouseName != nil {
		query = query.Where(sq.Eq{"warehouse_name": *criteria.WarehouseName})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var t tariffRow
	err = s.db.QueryRowContext(ctx, q, args...).Scan(t.scanTargets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return t.ToModel(), nil
}

func (s *storageImpl) UpdateTariff(ctx context.Context, criteria tariffs.GetCriteria, params tariffs.UpdateParams) (*tariffs.Tariff, error) {
	if criteria.ID == nil {
		return nil, errors.New("update tariff: id is required")
	}

	query := s.stmpBuilder().
		Update(tariffsTable).
		Where(sq.Eq{"id": *criteria.ID})

	set := map[string]interface{}{}
	if params.DtTill != nil {
		set["dt_till"] = params.DtTill.UTC()
	}
	setString(set, "delivery_base", params.DeliveryBase)
	setString(set, "delivery_coef_expr", params.DeliveryCoefExpr)
	setString(set, "delivery_liter", params.DeliveryLiter)
	setString(set, "delivery_marketplace_base", params.DeliveryMarketplaceBase)
	setString(set, "delivery_marketplace_coef_expr", params.DeliveryMarketplaceCoefExpr)
	setString(set, "delivery_marketplace_liter", params.DeliveryMarketplaceLiter)
	setString(set, "storage_base", params.StorageBase)
	setString(set, "storage_coef_expr", params.StorageCoefExpr)
	setString(set, "storage_liter", params.StorageLiter)
	setString(set, "geo_name", params.GeoName)

	if len(set) > 0 {
		q, args, err := query.SetMap(set).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build sql query: %w", err)
		}

		if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("db.ExecContext: %w", err)
		}
	}

	return s.GetTariff(ctx, tariffs.GetCriteria{ID: criteria.ID})
}

func (s *storageImpl) ListTariffs(ctx context.Context, criteria tariffs.ListCriteria) ([]*tariffs.Tariff, error) {
	query := s.stmpBuilder().
		Select(tariffRowFields).
		From(tariffsTable)

	if criteria.TariffDate != nil {
		query = query.Where(sq.Eq{"tariff_date": tariffs.FormatDate(*criteria.TariffDate)})
	}

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	query = query.OrderBy("id")

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db.QueryContext: %w", err)
	}
	defer rows.Close()

	var result []*tariffs.Tariff
	for rows.Next() {
		var t tariffRow
		if err = rows.Scan(t.scanTargets()...); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		result = append(result, t.ToModel())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func setString(set map[string]interface{}, column string, value *string) {
	if value != nil {
		set[column] = *value
	}
}
