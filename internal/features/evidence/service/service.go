package service

import (
	"context"
	"fmt"

	"evidence-capture/internal/features/evidence/domain"
	"evidence-capture/internal/features/evidence/ports"
)

// Service exposes read access to the evidence trail for the UI collaborator.
type Service struct {
	store ports.Store
}

// NewService creates a new evidence Service backed by the given store.
func NewService(store ports.Store) *Service {
	return &Service{store: store}
}

// CurrentStatus returns the shipment's current tracking evidence: the most
// recent record by creation order. There is no mutable "latest" pointer.
func (s *Service) CurrentStatus(ctx context.Context, shipmentID string) (*domain.Record, error) {
	record, err := s.store.LatestByShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current status: %w", err)
	}
	return record, nil
}

// History returns the full append-only audit trail for a shipment, most
// recent first.
func (s *Service) History(ctx context.Context, shipmentID string) ([]domain.Record, error) {
	records, err := s.store.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence history: %w", err)
	}
	return records, nil
}

// Record returns a single evidence record by id.
func (s *Service) Record(ctx context.Context, id int64) (*domain.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence record: %w", err)
	}
	return record, nil
}
