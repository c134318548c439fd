package models

import "time"

type Cabin struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Price       int         `gorm:"not null;default:0" json:"price"` // per night, whole rubles
	Location    string      `json:"location"`                        // empty hides the label
	Bedrooms    int         `gorm:"not null" json:"bedrooms"`
	Bathrooms   int         `gorm:"not null" json:"bathrooms"`
	MaxGuests   int         `gorm:"not null" json:"max_guests"`
	Amenities   StringArray `gorm:"type:text" json:"amenities"`
	Images      StringArray `gorm:"type:text" json:"images"` // first image is the cover
	Featured    bool        `gorm:"not null;default:false;index:idx_cabins_featured" json:"featured"`
	CreatedAt   time.Time   `gorm:"index:idx_cabins_created_at" json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CoverImage returns the first image, or "" when the cabin has none.
func (c Cabin) CoverImage() string {
	if len(c.Images) == 0 {
		return ""
	}
	return c.Images[0]
}

type SiteSetting struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Key       string    `gorm:"size:100;not null;uniqueIndex:idx_site_settings_key" json:"key"`
	Value     JSONValue `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminCredential is a singleton row; the password is stored as a bcrypt hash.
type AdminCredential struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:100;not null"`
	PasswordHash string    `gorm:"not null" json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AdminPath is a singleton row holding the URL segment of the admin console.
type AdminPath struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Path      string    `gorm:"size:64;not null" json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name singular, matching the other singleton.
func (AdminPath) TableName() string {
	return "admin_path"
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	Approved  bool      `gorm:"not null;default:false;index:idx_reviews_approved" json:"approved"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type CabinVisit struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CabinID   uint      `gorm:"not null;index"`
	VisitorID string    `gorm:"size:64;not null;index"`
	IP        string    `gorm:"size:64"`
	Browser   *string   `gorm:"size:32"`
	Language  *string   `gorm:"size:32"`
	CreatedAt time.Time `gorm:"index"`
}

// All lists every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&Cabin{},
		&SiteSetting{},
		&AdminCredential{},
		&AdminPath{},
		&Review{},
		&CabinVisit{},
	}
}
