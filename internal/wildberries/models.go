package wildberries

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// WarehouseTariff is one entry of the box tariffs warehouse list. Monetary
// values come as decimal strings, possibly with a comma separator.
type WarehouseTariff struct {
	BoxDeliveryBase                string `json:"boxDeliveryBase"`
	BoxDeliveryCoefExpr            string `json:"boxDeliveryCoefExpr"`
	BoxDeliveryLiter               string `json:"boxDeliveryLiter"`
	BoxDeliveryMarketplaceBase     string `json:"boxDeliveryMarketplaceBase"`
	BoxDeliveryMarketplaceCoefExpr string `json:"boxDeliveryMarketplaceCoefExpr"`
	BoxDeliveryMarketplaceLiter    string `json:"boxDeliveryMarketplaceLiter"`
	BoxStorageBase                 string `json:"boxStorageBase"`
	BoxStorageCoefExpr             string `json:"boxStorageCoefExpr"`
	BoxStorageLiter                string `json:"boxStorageLiter"`
	GeoName                        string `json:"geoName"`
	WarehouseName                  string `json:"warehouseName" validate:"required"`
}

var entryValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a single warehouse entry. Entries are checked one by one
// so that a bad entry does not discard the rest of the list.
func (w WarehouseTariff) Validate() error {
	return entryValidator.Struct(w)
}

// BoxTariffs is the data section of a successful box tariffs response.
type BoxTariffs struct {
	DtNextBox     string            `json:"dtNextBox"`
	DtTillMax     string            `json:"dtTillMax" validate:"required"`
	WarehouseList []WarehouseTariff `json:"warehouseList"`
}

var validUntilLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ValidUntil parses DtTillMax.
func (b *BoxTariffs) ValidUntil() (time.Time, error) {
	for _, layout := range validUntilLayouts {
		if t, err := time.Parse(layout, b.DtTillMax); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized dtTillMax %q", b.DtTillMax)
}

type boxTariffsEnvelope struct {
	Response struct {
		Data *BoxTariffs `json:"data"`
	} `json:"response"`
}

// APIError is an error the API reports in the response body.
type APIError struct {
	StatusCode int    `json:"-"`
	Detail     string `json:"detail"`
	Origin     string `json:"origin"`
	RequestID  string `json:"requestId"`
	Title      string `json:"title"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("wildberries: %s (status %d, request %s)", e.Title, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("wildberries: %s: %s (status %d, request %s)", e.Title, e.Detail, e.StatusCode, e.RequestID)
}

// BoxTariffsResponse is either Tariffs or Error. Both are nil when the API
// answered without a body.
type BoxTariffsResponse struct {
	Tariffs *BoxTariffs
	Error   *APIError
}

// Empty reports whether the API returned nothing usable.
func (r *BoxTariffsResponse) Empty() bool {
	return r == nil || (r.Tariffs == nil && r.Error == nil)
}
