package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// ChangeLogEntry is one append-only revision of an entity.
type ChangeLogEntry struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	EntityType enums.ChangeEntity `gorm:"column:entity_type;size:32;not null;uniqueIndex:ux_change_log_entity_revision,priority:1"`
	EntityID   string             `gorm:"column:entity_id;size:64;not null;uniqueIndex:ux_change_log_entity_revision,priority:2"`
	Revision   int                `gorm:"column:revision;not null;uniqueIndex:ux_change_log_entity_revision,priority:3"`
	Action     enums.ChangeAction `gorm:"column:action;size:16;not null"`
	Actor      string             `gorm:"column:actor;size:64"`
	Snapshot   json.RawMessage    `gorm:"column:snapshot;type:jsonb;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (ChangeLogEntry) TableName() string {
	return "change_log"
}

func (c *ChangeLogEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
