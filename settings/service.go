package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cabinsite/models"
)

const maxKeyLength = 100

var (
	ErrInvalidKey   = errors.New("invalid settings key")
	ErrInvalidValue = errors.New("invalid settings value")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// All returns the whole key -> JSON value mapping.
func (s *Service) All(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []models.SiteSetting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value.Raw()
	}
	return out, nil
}

// Update upserts every pair in one transaction; a single bad key or value
// rolls back the whole batch.
func (s *Service) Update(ctx context.Context, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := validateKey(key); err != nil {
				return err
			}
			encoded, err := json.Marshal(values[key])
			if err != nil {
				return fmt.Errorf("%w for %q: %v", ErrInvalidValue, key, err)
			}

			row := models.SiteSetting{Key: key, Value: models.JSONValue(encoded)}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert setting %q: %w", key, err)
			}
		}
		return nil
	})
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if utf8.RuneCountInString(key) > maxKeyLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidKey, string([]rune(key)[:20])+"...", maxKeyLength)
	}
	return nil
}

// Content loads the typed site content. On a storage failure it still returns
// the defaults together with the error, so callers may ignore the error.
func (s *Service) Content(ctx context.Context) (Content, error) {
	values, err := s.All(ctx)
	if err != nil {
		return DefaultContent(), err
	}
	return DecodeContent(values), nil
}

// SaveContent persists every typed content key in one batch.
func (s *Service) SaveContent(ctx context.Context, content Content) error {
	return s.Update(ctx, content.Values())
}
