package tariffs

import (
	"slices"
	"time"
)

// Columns lists the published tariff columns in table order, without the
// surrogate id.
var Columns = []string{
	"tariff_date",
	"dt_till",
	"delivery_base",
	"delivery_coef_expr",
	"delivery_liter",
	"delivery_marketplace_base",
	"delivery_marketplace_coef_expr",
	"delivery_marketplace_liter",
	"storage_base",
	"storage_coef_expr",
	"storage_liter",
	"geo_name",
	"warehouse_name",
}

// DefaultSortColumn is the column the published view is ordered by.
const DefaultSortColumn = "delivery_marketplace_coef_expr"

// IsColumn reports whether name is a published tariff column.
func IsColumn(name string) bool {
	return slices.Contains(Columns, name)
}

// Field returns the textual value of a column. Unknown columns yield false.
func (t *Tariff) Field(column string) (string, bool) {
	switch column {
	case "tariff_date":
		return FormatDate(t.TariffDate), true
	case "dt_till":
		return t.DtTill.UTC().Format(time.RFC3339), true
	case "delivery_base":
		return t.DeliveryBase, true
	case "delivery_coef_expr":
		return t.DeliveryCoefExpr, true
	case "delivery_liter":
		return t.DeliveryLiter, true
	case "delivery_marketplace_base":
		return t.DeliveryMarketplaceBase, true
	case "delivery_marketplace_coef_expr":
		return t.DeliveryMarketplaceCoefExpr, true
	case "delivery_marketplace_liter":
		return t.DeliveryMarketplaceLiter, true
	case "storage_base":
		return t.StorageBase, true
	case "storage_coef_expr":
		return t.StorageCoefExpr, true
	case "storage_liter":
		return t.StorageLiter, true
	case "geo_name":
		return t.GeoName, true
	case "warehouse_name":
		return t.WarehouseName, true
	}
	return "", false
}

// HeaderRow is the first row of a published sheet.
func HeaderRow() []any {
	row := make([]any, len(Columns))
	for i, c := range Columns {
		row[i] = c
	}
	return row
}

// SheetRow returns the values of t in Columns order.
func (t *Tariff) SheetRow() []any {
	row := make([]any, len(Columns))
	for i, c := range Columns {
		row[i], _ = t.Field(c)
	}
	return row
}
