package domain

import "time"

// File is a member's plot file, owned by the files module (read-only here).
type File struct {
	FileID        string    `gorm:"column:file_id;type:varchar(64);primaryKey" json:"file_id"`
	FileNumber    string    `gorm:"column:file_number;not null" json:"file_number"`
	OwnerName     string    `gorm:"column:owner_name;not null" json:"owner_name"`
	OwnerNIC      *string   `gorm:"column:owner_nic" json:"owner_nic"`
	PaymentStatus string    `gorm:"column:payment_status;type:varchar(20);not null;default:'pending'" json:"payment_status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (File) TableName() string {
	return "Files"
}

// FilePaymentCompleted is the payment status that allows a handover.
const FilePaymentCompleted = "completed"
