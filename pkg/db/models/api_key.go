package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey stores an issued key as a lookup prefix plus an argon2id hash of the secret.
type APIKey struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name       string     `gorm:"column:name;not null"`
	Prefix     string     `gorm:"column:prefix;size:16;not null;uniqueIndex:ux_api_keys_prefix"`
	Hash       string     `gorm:"column:hash;not null"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (k *APIKey) BeforeCreate(*gorm.DB) error {
	ensureID(&k.ID)
	return nil
}
