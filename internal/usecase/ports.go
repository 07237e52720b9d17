package usecase

import (
	"context"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/registry"
)

// CommunityRepository defines durable storage for registry records.
type CommunityRepository interface {
	LoadAll(ctx context.Context) ([]domain.Community, error)
	Commit(ctx context.Context, receipt registry.Receipt) error
	History(ctx context.Context, communityID uint64) ([]domain.Event, error)
}

// SignalPublisher delivers committed events to subscribers.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, event concrnt.Event) error
}

// Metrics records the outcome of registry operations.
type Metrics interface {
	ObserveOperation(operation, result string)
}
