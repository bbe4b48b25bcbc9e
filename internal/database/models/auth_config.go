package models

import (
	"time"
)

// KeyTypePublicKey is the only key type stored in auth_config.
const KeyTypePublicKey = "public_key"

// AuthConfig holds the tenant's registered public key as hex.
type AuthConfig struct {
	KeyType   string `gorm:"primaryKey"`
	KeyValue  string `gorm:"not null"`
	CreatedAt time.Time
}

func (AuthConfig) TableName() string {
	return "auth_config"
}
