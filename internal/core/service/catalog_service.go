package service

import (
	"context"
	"fmt"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

// CatalogService is the read side of the property catalog. The catalog is
// seeded externally; only trade settlement mutates its available supply.
type CatalogService struct {
	store port.LedgerStore
}

func NewCatalogService(store port.LedgerStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) Properties(ctx context.Context) ([]domain.Property, error) {
	return s.store.ListProperties(ctx)
}

func (s *CatalogService) Property(ctx context.Context, propertyID string) (*domain.Property, error) {
	property, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("read property: %w", err)
	}
	if property == nil {
		return nil, fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
	}
	return property, nil
}
