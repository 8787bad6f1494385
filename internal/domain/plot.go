package domain

import "time"

// Plot is read from the plots module's table; this service never writes it.
type Plot struct {
	PlotID              string    `gorm:"column:plot_id;type:varchar(64);primaryKey" json:"plot_id"`
	PlotNumber          string    `gorm:"column:plot_number;not null" json:"plot_number"`
	Block               *string   `gorm:"column:block" json:"block"`
	Sector              *string   `gorm:"column:sector" json:"sector"`
	Size                *string   `gorm:"column:size" json:"size"`
	PossessionReadiness string    `gorm:"column:possession_readiness;type:varchar(20);not null;default:'pending'" json:"possession_readiness"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (Plot) TableName() string {
	return "Plots"
}

// PlotReadinessReady is the readiness value that allows a handover.
const PlotReadinessReady = "ready"
