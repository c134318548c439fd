package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"cabinsite/common"
	"cabinsite/database"
	"cabinsite/models"
)

var (
	ErrInvalidPath        = database.ErrInvalidAdminPath
	ErrInvalidCredentials = errors.New("username and password are required")
)

// ValidatePath checks that path can serve as the console URL segment.
func ValidatePath(path string) error {
	return database.ValidateAdminPath(path)
}

// IdentityService owns the admin credentials and the console path. The path
// is cached in memory because every request consults it.
type IdentityService struct {
	db *gorm.DB

	mu   sync.RWMutex
	path string
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db, path: database.DefaultAdminPath}
}

// Load refreshes the cached console path from storage.
func (s *IdentityService) Load(ctx context.Context) error {
	path, err := s.Path(ctx)
	if err != nil {
		return err
	}
	s.setPath(path)
	return nil
}

// CurrentPath returns the cached console path without touching storage.
func (s *IdentityService) CurrentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *IdentityService) setPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// Path reads the stored console path, falling back to the default when the
// table is empty.
func (s *IdentityService) Path(ctx context.Context) (string, error) {
	var row models.AdminPath
	err := s.db.WithContext(ctx).Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && row.Path == "") {
		return database.DefaultAdminPath, nil
	}
	if err != nil {
		return "", fmt.Errorf("load admin path: %w", err)
	}
	return row.Path, nil
}

// UpdatePath replaces the singleton row in one transaction, so there is never
// a moment without a path.
func (s *IdentityService) UpdatePath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if err := ValidatePath(path); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.AdminPath{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.AdminPath{Path: path}).Error
	})
	if err != nil {
		return fmt.Errorf("replace admin path: %w", err)
	}

	s.setPath(path)
	return nil
}

// Login reports whether username and password match the stored pair. The
// username comparison is exact, including case.
func (s *IdentityService) Login(ctx context.Context, username, password string) (bool, error) {
	var cred models.AdminCredential
	err := s.db.WithContext(ctx).Order("id DESC").First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if cred.Username != username {
		return false, nil
	}
	return common.CheckPasswordHash(password, cred.PasswordHash), nil
}

// UpdateCredentials overwrites the singleton credential row.
func (s *IdentityService) UpdateCredentials(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	hash, err := common.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.AdminCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.AdminCredential{Username: username, PasswordHash: hash}).Error
	})
	if err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
