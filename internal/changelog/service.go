package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

// Entry describes one change to record.
type Entry struct {
	Entity   enums.ChangeEntity
	EntityID string
	Action   enums.ChangeAction
	Snapshot any
}

// Recorder appends revisions inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ChangeLogEntry, error)
	History(ctx context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error)
}

type service struct {
	repo Repository
}

// NewService wires a change log recorder with the provided repository.
func NewService(repo Repository) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("changelog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ChangeLogEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if strings.TrimSpace(entry.EntityID) == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if entry.Entity == "" || entry.Action == "" {
		return nil, fmt.Errorf("entity type and action are required")
	}

	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal %s snapshot: %w", entry.Entity, err)
	}

	repo := s.repo.WithTx(tx)
	latest, err := repo.LatestRevision(ctx, entry.Entity, entry.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load %s revision: %w", entry.Entity, err)
	}

	row := &models.ChangeLogEntry{
		EntityType: entry.Entity,
		EntityID:   entry.EntityID,
		Revision:   latest + 1,
		Action:     entry.Action,
		Actor:      ActorFromContext(ctx),
		Snapshot:   snapshot,
	}
	if err := repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("append %s change: %w", entry.Entity, err)
	}
	return row, nil
}

func (s *service) History(ctx context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error) {
	rows, err := s.repo.ListByEntity(ctx, entity, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list change history")
	}
	return rows, nil
}

type actorKey struct{}

// WithActor tags ctx with the name of the API key or job making changes.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "system".
func ActorFromContext(ctx context.Context) string {
	if ctx != nil {
		if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
			return actor
		}
	}
	return "system"
}
