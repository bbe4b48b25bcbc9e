package repositories

import (
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuthConfigRepository interface {
	// PublicKey returns the stored key hex and whether one is registered.
	PublicKey() (string, bool, error)
	// SetPublicKeyIfAbsent stores the key only when none exists.
	SetPublicKeyIfAbsent(keyHex string, now time.Time) (bool, error)
}

type authConfigRepo struct {
	db *gorm.DB
}

func NewAuthConfigRepository(db *gorm.DB) AuthConfigRepository {
	return &authConfigRepo{db: db}
}

func (r *authConfigRepo) PublicKey() (string, bool, error) {
	var configs []models.AuthConfig
	err := r.db.Where("key_type = ?", models.KeyTypePublicKey).Limit(1).Find(&configs).Error
	if err != nil {
		return "", false, err
	}
	if len(configs) == 0 {
		return "", false, nil
	}
	return configs[0].KeyValue, true, nil
}

func (r *authConfigRepo) SetPublicKeyIfAbsent(keyHex string, now time.Time) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_type"}},
		DoNothing: true,
	}).Create(&models.AuthConfig{
		KeyType:   models.KeyTypePublicKey,
		KeyValue:  keyHex,
		CreatedAt: now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
