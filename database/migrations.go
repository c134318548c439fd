package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cabinsite/common"
	"cabinsite/models"
)

// DefaultAdminPath is served when the admin_path table is unexpectedly empty.
const DefaultAdminPath = "admin"

// Seed holds the values written into empty tables on first boot.
type Seed struct {
	AdminUsername string
	AdminPassword string
	AdminPath     string
}

// RunMigrations creates every table and index and seeds empty tables, all in
// one transaction: any failure leaves the database as it was.
func RunMigrations(db *gorm.DB, seed Seed, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := ensureIndexes(tx); err != nil {
			return err
		}
		if err := seedCredentials(tx, seed, log); err != nil {
			return err
		}
		if err := seedAdminPath(tx, seed, log); err != nil {
			return err
		}
		return seedCabins(tx, log)
	})
	if err != nil {
		log.Error("migrations rolled back", zap.Error(err))
		return err
	}

	log.Info("migrations completed")
	return nil
}

var indexes = []struct {
	model interface{}
	name  string
}{
	{&models.Cabin{}, "idx_cabins_featured"},
	{&models.Cabin{}, "idx_cabins_created_at"},
	{&models.SiteSetting{}, "idx_site_settings_key"},
	{&models.Review{}, "idx_reviews_approved"},
}

func ensureIndexes(tx *gorm.DB) error {
	m := tx.Migrator()
	for _, idx := range indexes {
		if m.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := m.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func seedCredentials(tx *gorm.DB, seed Seed, log *zap.Logger) error {
	var count int64
	if err := tx.Model(&models.AdminCredential{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admin credentials: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := common.HashPassword(seed.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}
	cred := models.AdminCredential{Username: seed.AdminUsername, PasswordHash: hash}
	if err := tx.Create(&cred).Error; err != nil {
		return fmt.Errorf("seed admin credentials: %w", err)
	}
	log.Info("seeded default admin credentials", zap.String("username", seed.AdminUsername))
	return nil
}

func seedAdminPath(tx *gorm.DB, seed Seed, log *zap.Logger) error {
	var count int64
	if err := tx.Model(&models.AdminPath{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admin paths: %w", err)
	}
	if count > 0 {
		return nil
	}

	path := seed.AdminPath
	if path == "" {
		path = DefaultAdminPath
	}
	if err := ValidateAdminPath(path); err != nil {
		return fmt.Errorf("seed admin path: %w", err)
	}
	if err := tx.Create(&models.AdminPath{Path: path}).Error; err != nil {
		return fmt.Errorf("seed admin path: %w", err)
	}
	log.Info("seeded default admin path", zap.String("path", path))
	return nil
}

func seedCabins(tx *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := tx.Model(&models.Cabin{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count cabins: %w", err)
	}
	if count > 0 {
		return nil
	}

	cabins := DefaultCabins()
	if err := tx.Create(&cabins).Error; err != nil {
		return fmt.Errorf("seed cabins: %w", err)
	}
	log.Info("seeded default cabins", zap.Int("count", len(cabins)))
	return nil
}

func DefaultCabins() []models.Cabin {
	return []models.Cabin{
		{
			Name:        "Лесной домик",
			Description: "Уютный деревянный дом на опушке соснового леса с камином и террасой.",
			Price:       5500,
			Location:    "Карелия, Сортавала",
			Bedrooms:    2,
			Bathrooms:   1,
			MaxGuests:   4,
			Amenities:   models.StringArray{"Wi-Fi", "Камин", "Мангал", "Парковка"},
			Images:      models.StringArray{},
			Featured:    true,
		},
		{
			Name:        "Дом у озера",
			Description: "Просторный дом с выходом к озеру, баней и лодкой для рыбалки.",
			Price:       8900,
			Location:    "Карелия, Ладожское озеро",
			Bedrooms:    3,
			Bathrooms:   2,
			MaxGuests:   6,
			Amenities:   models.StringArray{"Wi-Fi", "Баня", "Лодка", "Кухня"},
			Images:      models.StringArray{},
			Featured:    true,
		},
	}
}
