package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a staff account. Handover officers are looked up here.
type User struct {
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname  string         `gorm:"column:fullname;not null" json:"fullname"`
	Email     string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Role      string         `gorm:"column:role;not null;default:viewer" json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
