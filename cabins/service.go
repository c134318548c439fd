package cabins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"cabinsite/models"
)

var (
	ErrNotFound = errors.New("cabin not found")
	ErrInvalid  = errors.New("invalid cabin")
)

// Input is the full set of writable cabin fields. Updates replace every field.
type Input struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       int      `json:"price" binding:"min=0"`
	Location    string   `json:"location"`
	Bedrooms    int      `json:"bedrooms" binding:"min=0"`
	Bathrooms   int      `json:"bathrooms" binding:"min=0"`
	MaxGuests   int      `json:"max_guests" binding:"min=0"`
	Amenities   []string `json:"amenities"`
	Images      []string `json:"images"`
	Featured    bool     `json:"featured"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.Price < 0 || in.Bedrooms < 0 || in.Bathrooms < 0 || in.MaxGuests < 0 {
		return fmt.Errorf("%w: numeric fields must not be negative", ErrInvalid)
	}
	return nil
}

func (in Input) apply(c *models.Cabin) {
	c.Name = strings.TrimSpace(in.Name)
	c.Description = in.Description
	c.Price = in.Price
	c.Location = strings.TrimSpace(in.Location)
	c.Bedrooms = in.Bedrooms
	c.Bathrooms = in.Bathrooms
	c.MaxGuests = in.MaxGuests
	c.Amenities = models.StringArray(in.Amenities).Clean()
	c.Images = models.StringArray(in.Images).Clean()
	c.Featured = in.Featured
}

// InputFrom copies a stored cabin back into an editable Input.
func InputFrom(c models.Cabin) Input {
	return Input{
		Name:        c.Name,
		Description: c.Description,
		Price:       c.Price,
		Location:    c.Location,
		Bedrooms:    c.Bedrooms,
		Bathrooms:   c.Bathrooms,
		MaxGuests:   c.MaxGuests,
		Amenities:   append([]string{}, c.Amenities...),
		Images:      append([]string{}, c.Images...),
		Featured:    c.Featured,
	}
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns every cabin, newest first.
func (s *Service) List(ctx context.Context) ([]models.Cabin, error) {
	cabins := []models.Cabin{}
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&cabins).Error; err != nil {
		return nil, fmt.Errorf("list cabins: %w", err)
	}
	return cabins, nil
}

// Featured returns the curated home-page subset, newest first.
func (s *Service) Featured(ctx context.Context, limit int) ([]models.Cabin, error) {
	cabins := []models.Cabin{}
	q := s.db.WithContext(ctx).Where("featured = ?", true).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cabins).Error; err != nil {
		return nil, fmt.Errorf("list featured cabins: %w", err)
	}
	return cabins, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Cabin, error) {
	var cabin models.Cabin
	err := s.db.WithContext(ctx).First(&cabin, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cabin %d: %w", id, err)
	}
	return &cabin, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Cabin, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var cabin models.Cabin
	in.apply(&cabin)
	if err := s.db.WithContext(ctx).Create(&cabin).Error; err != nil {
		return nil, fmt.Errorf("create cabin: %w", err)
	}
	return &cabin, nil
}

// Update overwrites every field of an existing cabin.
func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.Cabin, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cabin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(cabin)
	if err := s.db.WithContext(ctx).Save(cabin).Error; err != nil {
		return nil, fmt.Errorf("update cabin %d: %w", id, err)
	}
	return cabin, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Cabin{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete cabin %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
