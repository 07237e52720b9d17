package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/registry"
)

var tracer = otel.Tracer("usecase")

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// CreateCommunityInput is the validated input for registering a community.
type CreateCommunityInput struct {
	CommunityID uint64
	Name        string
	Address     string
}

type CommunityUsecase struct {
	registry *registry.Registry
	repo     CommunityRepository
	signal   SignalPublisher
	metrics  Metrics
}

// NewCommunityUsecase wires the registry to storage. signal and metrics may be nil.
func NewCommunityUsecase(
	reg *registry.Registry,
	repo CommunityRepository,
	signal SignalPublisher,
	metrics Metrics,
) *CommunityUsecase {
	return &CommunityUsecase{
		registry: reg,
		repo:     repo,
		signal:   signal,
		metrics:  metrics,
	}
}

// Restore reloads the registry from storage.
func (uc *CommunityUsecase) Restore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Community.Usecase.Restore")
	defer span.End()

	records, err := uc.repo.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	uc.registry.Restore(records)
	slog.InfoContext(ctx, "registry restored", slog.Int("communities", len(records)))
	return nil
}

func (uc *CommunityUsecase) CreateCommunity(ctx context.Context, input CreateCommunityInput) (domain.Community, error) {
	ctx, span := tracer.Start(ctx, "Community.Usecase.CreateCommunity")
	defer span.End()
	span.SetAttributes(attribute.Int64("communityID", int64(input.CommunityID)))

	caller, ok := domain.RequesterFromContext(ctx)
	if !ok {
		uc.observe("create_community", domain.ErrUnauthenticated)
		return domain.Community{}, domain.ErrUnauthenticated
	}

	if input.CommunityID > domain.MaxCommunityID {
		uc.observe("create_community", domain.ErrInvalidCommunityID)
		return domain.Community{}, domain.ErrInvalidCommunityID
	}

	receipt, err := uc.registry.Execute(registry.CreateCommunity{
		Caller:      caller,
		CommunityID: input.CommunityID,
		Name:        input.Name,
		Address:     input.Address,
	}, uc.commit(ctx))
	uc.observe("create_community", err)
	if err != nil {
		span.RecordError(err)
		return domain.Community{}, err
	}

	uc.publish(ctx, receipt.Events)
	return written(receipt, input.CommunityID), nil
}

func (uc *CommunityUsecase) CreateCouncilForCommunity(ctx context.Context, communityID uint64, members []domain.Identity) (domain.Community, error) {
	ctx, span := tracer.Start(ctx, "Community.Usecase.CreateCouncilForCommunity")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("communityID", int64(communityID)),
		attribute.Int("members", len(members)),
	)

	caller, ok := domain.RequesterFromContext(ctx)
	if !ok {
		uc.observe("create_council", domain.ErrUnauthenticated)
		return domain.Community{}, domain.ErrUnauthenticated
	}

	receipt, err := uc.registry.Execute(registry.CreateCouncilForCommunity{
		Caller:         caller,
		CommunityID:    communityID,
		CouncilMembers: members,
	}, uc.commit(ctx))
	uc.observe("create_council", err)
	if err != nil {
		span.RecordError(err)
		return domain.Community{}, err
	}

	uc.publish(ctx, receipt.Events)
	return written(receipt, communityID), nil
}

func (uc *CommunityUsecase) GetCommunity(ctx context.Context, communityID uint64) (domain.Community, error) {
	_, span := tracer.Start(ctx, "Community.Usecase.GetCommunity")
	defer span.End()

	community, ok := uc.registry.GetCommunity(communityID)
	if !ok {
		return domain.Community{}, domain.NotExistsError{CommunityID: communityID}
	}
	return community, nil
}

func (uc *CommunityUsecase) LatestCommunityID(ctx context.Context) uint64 {
	_, span := tracer.Start(ctx, "Community.Usecase.LatestCommunityID")
	defer span.End()

	return uc.registry.LatestCommunityID()
}

func (uc *CommunityUsecase) ListCommunities(ctx context.Context) []domain.Community {
	_, span := tracer.Start(ctx, "Community.Usecase.ListCommunities")
	defer span.End()

	return uc.registry.ListCommunities()
}

// History returns the committed events of an existing community.
func (uc *CommunityUsecase) History(ctx context.Context, communityID uint64) ([]domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Community.Usecase.History")
	defer span.End()

	if _, ok := uc.registry.GetCommunity(communityID); !ok {
		return nil, domain.NotExistsError{CommunityID: communityID}
	}

	events, err := uc.repo.History(ctx, communityID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return events, nil
}

func (uc *CommunityUsecase) commit(ctx context.Context) registry.CommitFunc {
	return func(receipt registry.Receipt) error {
		return uc.repo.Commit(ctx, receipt)
	}
}

// publish fans committed events out to the global and per-community
// channels. Delivery failures are logged; the call has already committed.
func (uc *CommunityUsecase) publish(ctx context.Context, events []domain.Event) {
	if uc.signal == nil {
		return
	}

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode event", slog.String("error", err.Error()))
			continue
		}

		for _, channel := range []string{concrnt.GlobalCommunityChannel, concrnt.CommunityChannel(event.CommunityID)} {
			err := uc.signal.Publish(ctx, channel, concrnt.Event{
				Channel:   channel,
				Type:      string(event.Type),
				Payload:   payload,
				Timestamp: time.Now(),
			})
			if err != nil {
				slog.WarnContext(
					ctx, "failed to publish event",
					slog.String("channel", channel),
					slog.String("type", string(event.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (uc *CommunityUsecase) observe(operation string, err error) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.ObserveOperation(operation, Outcome(err))
}

// Outcome classifies err as a metrics result label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrNotExists),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidCommunityID):
		return ResultRejected
	default:
		return ResultError
	}
}

func written(receipt registry.Receipt, communityID uint64) domain.Community {
	for i := len(receipt.Mutations) - 1; i >= 0; i-- {
		m := receipt.Mutations[i]
		if m.Kind == registry.MutationPut && m.CommunityID == communityID {
			return m.Community.Clone()
		}
	}
	return domain.Community{}
}
