package tariffs

import "time"

// DateLayout is the wire and storage format of a tariff date.
const DateLayout = "2006-01-02"

// Tariff is one warehouse's box tariff for a calendar date.
type Tariff struct {
	ID         int64
	TariffDate time.Time
	DtTill     time.Time

	DeliveryBase                string
	DeliveryCoefExpr            string
	DeliveryLiter               string
	DeliveryMarketplaceBase     string
	DeliveryMarketplaceCoefExpr string
	DeliveryMarketplaceLiter    string
	StorageBase                 string
	StorageCoefExpr             string
	StorageLiter                string

	GeoName       string
	WarehouseName string
}

// UpsertAction reports which write Upsert performed.
type UpsertAction string

const (
	ActionCreated UpsertAction = "created"
	ActionUpdated UpsertAction = "updated"
)

// Критерии для получения тарифа
type GetCriteria struct {
	ID            *int64
	TariffDate    *time.Time
	WarehouseName *string
}

// Критерии для списка тарифов
type ListCriteria struct {
	TariffDate *time.Time
	Limit      int
	Offset     int
}

// Параметры для обновления тарифа
type UpdateParams struct {
	DtTill *time.Time

	DeliveryBase                *string
	DeliveryCoefExpr            *string
	DeliveryLiter               *string
	DeliveryMarketplaceBase     *string
	DeliveryMarketplaceCoefExpr *string
	DeliveryMarketplaceLiter    *string
	StorageBase                 *string
	StorageCoefExpr             *string
	StorageLiter                *string

	GeoName *string
}

// DateOf returns the calendar date of t in t's location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats the calendar date part of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
