package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/infra/database/models"
	"github.com/totegamma/concrnt-community/internal/registry"
)

var tracer = otel.Tracer("repository")

type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// LoadAll reads every persisted community, used to restore the registry.
func (r *CommunityRepository) LoadAll(ctx context.Context) ([]domain.Community, error) {
	ctx, span := tracer.Start(ctx, "Community.Repository.LoadAll")
	defer span.End()

	var rows []models.Community
	err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to load communities")
	}

	communities := make([]domain.Community, 0, len(rows))
	for _, row := range rows {
		c, err := fromModel(row)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		communities = append(communities, c)
	}

	span.SetAttributes(attribute.Int("count", len(communities)))
	return communities, nil
}

// Commit writes the receipt's mutations and event log in one transaction.
func (r *CommunityRepository) Commit(ctx context.Context, receipt registry.Receipt) error {
	ctx, span := tracer.Start(ctx, "Community.Repository.Commit", trace.WithAttributes(
		attribute.Int("mutations", len(receipt.Mutations)),
		attribute.Int("events", len(receipt.Events)),
	))
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range receipt.Mutations {
			switch m.Kind {
			case registry.MutationPut:
				row, err := toModel(m.Community)
				if err != nil {
					return err
				}
				err = tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"name", "address", "owner", "councils", "m_date"}),
				}).Create(&row).Error
				if err != nil {
					return errors.Wrapf(err, "failed to write community %d", m.CommunityID)
				}

			case registry.MutationDelete:
				result := tx.Delete(&models.Community{}, "id = ?", m.CommunityID)
				if result.Error != nil {
					return errors.Wrapf(result.Error, "failed to delete community %d", m.CommunityID)
				}
				if result.RowsAffected == 0 {
					return domain.NotExistsError{CommunityID: m.CommunityID}
				}

			default:
				return errors.Errorf("unknown mutation kind %d", m.Kind)
			}
		}

		for _, event := range receipt.Events {
			row, err := eventToModel(event)
			if err != nil {
				return err
			}
			if err := tx.Create(&row).Error; err != nil {
				return errors.Wrap(err, "failed to append community event")
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// History returns the committed events of a community, oldest first.
func (r *CommunityRepository) History(ctx context.Context, communityID uint64) ([]domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Community.Repository.History")
	defer span.End()

	var rows []models.CommunityEvent
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to load community events")
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		event, err := eventFromModel(row)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func toModel(c domain.Community) (models.Community, error) {
	councils, err := json.Marshal(c.Councils)
	if err != nil {
		return models.Community{}, err
	}
	return models.Community{
		ID:       c.ID,
		Name:     c.Name,
		Address:  c.Address,
		Owner:    string(c.Owner),
		Councils: string(councils),
	}, nil
}

func fromModel(row models.Community) (domain.Community, error) {
	var councils []domain.Identity
	if err := json.Unmarshal([]byte(row.Councils), &councils); err != nil {
		return domain.Community{}, errors.Wrapf(err, "corrupt councils for community %d", row.ID)
	}
	return domain.Community{
		ID:       row.ID,
		Name:     row.Name,
		Address:  row.Address,
		Owner:    domain.Identity(row.Owner),
		Councils: councils,
	}, nil
}

func eventToModel(e domain.Event) (models.CommunityEvent, error) {
	row := models.CommunityEvent{
		CommunityID: e.CommunityID,
		Type:        string(e.Type),
		Owner:       string(e.Owner),
		Name:        e.Name,
	}
	if e.Councils != nil {
		councils, err := json.Marshal(e.Councils)
		if err != nil {
			return models.CommunityEvent{}, err
		}
		row.Councils = string(councils)
	}
	return row, nil
}

func eventFromModel(row models.CommunityEvent) (domain.Event, error) {
	event := domain.Event{
		Type:        domain.EventType(row.Type),
		Owner:       domain.Identity(row.Owner),
		Name:        row.Name,
		CommunityID: row.CommunityID,
	}
	if row.Councils != "" {
		if err := json.Unmarshal([]byte(row.Councils), &event.Councils); err != nil {
			return domain.Event{}, errors.Wrapf(err, "corrupt councils in event %d", row.ID)
		}
	}
	return event, nil
}
