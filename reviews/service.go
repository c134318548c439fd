package reviews

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"cabinsite/models"
)

const MaxCommentLength = 1000

var (
	ErrNotFound = errors.New("review not found")
	ErrInvalid  = errors.New("invalid review")
)

type Input struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Rating  int    `json:"rating" form:"rating"`
	Comment string `json:"comment" form:"comment"`
	Captcha string `json:"captcha" form:"captcha"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalid)
	}
	if utf8.RuneCountInString(in.Comment) > MaxCommentLength {
		return fmt.Errorf("%w: comment must be at most %d characters", ErrInvalid, MaxCommentLength)
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			return fmt.Errorf("%w: email is not valid", ErrInvalid)
		}
	}
	return nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create stores a review awaiting moderation.
func (s *Service) Create(ctx context.Context, in Input) (*models.Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	review := models.Review{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Rating:  in.Rating,
		Comment: strings.TrimSpace(in.Comment),
	}
	if err := s.db.WithContext(ctx).Create(&review).Error; err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return &review, nil
}

// Approved returns the publicly visible reviews, newest first.
func (s *Service) Approved(ctx context.Context) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).
		Where("approved = ?", true).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("list approved reviews: %w", err)
	}
	return reviews, nil
}

// All returns every review, pending ones first.
func (s *Service) All(ctx context.Context) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).Order("approved ASC, created_at DESC, id DESC").Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *Service) Approve(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	err := s.db.WithContext(ctx).First(&review, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review %d: %w", id, err)
	}
	if review.Approved {
		return &review, nil
	}

	if err := s.db.WithContext(ctx).Model(&review).Update("approved", true).Error; err != nil {
		return nil, fmt.Errorf("approve review %d: %w", id, err)
	}
	review.Approved = true
	return &review, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Review{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete review %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
