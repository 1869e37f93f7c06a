package tariffs

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Service provides business logic for tariff operations
type Service struct {
	storage Storage
}

// NewService creates a new tariff service
func NewService(storage Storage) *Service {
	return &Service{
		storage: storage,
	}
}

// Upsert keeps exactly one row per (tariff date, warehouse name): it looks
// the row up by that key and updates it by id, or inserts it when absent.
func (s *Service) Upsert(ctx context.Context, tariff Tariff) (*Tariff, UpsertAction, error) {
	tariff.TariffDate = DateOf(tariff.TariffDate)

	existing, err := s.storage.GetTariff(ctx, GetCriteria{
		TariffDate:    lo.ToPtr(tariff.TariffDate),
		WarehouseName: lo.ToPtr(tariff.WarehouseName),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get tariff: %w", err)
	}

	if existing == nil {
		created, err := s.storage.CreateTariff(ctx, tariff)
		if err != nil {
			return nil, "", fmt.Errorf("create tariff: %w", err)
		}
		return created, ActionCreated, nil
	}

	updated, err := s.storage.UpdateTariff(ctx, GetCriteria{ID: lo.ToPtr(existing.ID)}, updateParamsFrom(tariff))
	if err != nil {
		return nil, "", fmt.Errorf("update tariff %d: %w", existing.ID, err)
	}
	return updated, ActionUpdated, nil
}

// ListForDate returns every stored tariff of the given calendar date.
func (s *Service) ListForDate(ctx context.Context, date time.Time) ([]*Tariff, error) {
	return s.storage.ListTariffs(ctx, ListCriteria{
		TariffDate: lo.ToPtr(DateOf(date)),
	})
}

func updateParamsFrom(t Tariff) UpdateParams {
	return UpdateParams{
		DtTill:                      lo.ToPtr(t.DtTill),
		DeliveryBase:                lo.ToPtr(t.DeliveryBase),
		DeliveryCoefExpr:            lo.ToPtr(t.DeliveryCoefExpr),
		DeliveryLiter:               lo.ToPtr(t.DeliveryLiter),
		DeliveryMarketplaceBase:     lo.ToPtr(t.DeliveryMarketplaceBase),
		DeliveryMarketplaceCoefExpr: lo.ToPtr(t.DeliveryMarketplaceCoefExpr),
		DeliveryMarketplaceLiter:    lo.ToPtr(t.DeliveryMarketplaceLiter),
		StorageBase:                 lo.ToPtr(t.StorageBase),
		StorageCoefExpr:             lo.ToPtr(t.StorageCoefExpr),
		StorageLiter:                lo.ToPtr(t.StorageLiter),
		GeoName:                     lo.ToPtr(t.GeoName),
	}
}
