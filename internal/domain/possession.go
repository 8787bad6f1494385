package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PossessionStatus is the lifecycle state of a plot handover.
type PossessionStatus string

const (
	StatusRequested  PossessionStatus = "REQUESTED"
	StatusSurveyed   PossessionStatus = "SURVEYED"
	StatusReady      PossessionStatus = "READY"
	StatusHandedOver PossessionStatus = "HANDED_OVER"
	StatusCancelled  PossessionStatus = "CANCELLED"
	StatusOnHold     PossessionStatus = "ON_HOLD"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []PossessionStatus{
	StatusRequested, StatusSurveyed, StatusReady, StatusHandedOver, StatusCancelled, StatusOnHold,
}

// InactiveStatuses are the statuses that free a plot for a new possession request.
var InactiveStatuses = []PossessionStatus{StatusCancelled, StatusHandedOver}

// transitions is the legal move table: current status -> set of next statuses.
var transitions = map[PossessionStatus]map[PossessionStatus]bool{
	StatusRequested:  {StatusSurveyed: true, StatusCancelled: true, StatusOnHold: true},
	StatusSurveyed:   {StatusReady: true, StatusCancelled: true, StatusOnHold: true},
	StatusReady:      {StatusHandedOver: true, StatusCancelled: true, StatusOnHold: true},
	StatusCancelled:  {StatusRequested: true},
	StatusOnHold:     {StatusRequested: true, StatusSurveyed: true, StatusCancelled: true},
	StatusHandedOver: {},
}

// Valid reports whether s is a known status.
func (s PossessionStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s PossessionStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Active reports whether a possession in status s blocks another request for the same plot.
func (s PossessionStatus) Active() bool {
	return s != StatusCancelled && s != StatusHandedOver
}

// CanTransition reports whether moving from -> to is legal. Staying in the same
// (known) status is always accepted as a no-op.
func CanTransition(from, to PossessionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return transitions[from][to]
}

// NextStatuses returns the legal next statuses of s in lifecycle order.
func NextStatuses(s PossessionStatus) []PossessionStatus {
	next := make([]PossessionStatus, 0, 3)
	for _, candidate := range AllStatuses {
		if transitions[s][candidate] {
			next = append(next, candidate)
		}
	}
	return next
}

// Attachment slots on a possession record.
const (
	SlotCertificate = "certificate"
	SlotPhoto       = "photo"
	SlotOther       = "other"
)

// Possession is one plot handover case, from request to completion.
type Possession struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PossessionCode    string           `gorm:"column:possession_code;type:varchar(32);not null;uniqueIndex:uq_possessions_possession_code" json:"possession_code"`
	FileID            string           `gorm:"column:file_id;type:varchar(64);not null;index" json:"file_id"`
	PlotID            string           `gorm:"column:plot_id;type:varchar(64);not null;index" json:"plot_id"`
	HandoverOfficerID *string          `gorm:"column:handover_officer_id;type:varchar(64)" json:"handover_officer_id"`
	Status            PossessionStatus `gorm:"column:status;type:varchar(20);not null;default:'REQUESTED';index" json:"status"`
	InitDate          time.Time        `gorm:"column:init_date;not null" json:"init_date"`
	SurveyDate        *time.Time       `gorm:"column:survey_date" json:"survey_date"`
	SurveyPerson      *string          `gorm:"column:survey_person;type:varchar(100)" json:"survey_person"`
	HandoverDate      *time.Time       `gorm:"column:handover_date" json:"handover_date"`

	LetterCollected bool       `gorm:"column:letter_collected;not null;default:false" json:"letter_collected"`
	CollectorName   *string    `gorm:"column:collector_name;type:varchar(100)" json:"collector_name"`
	CollectorNIC    *string    `gorm:"column:collector_nic;type:varchar(20)" json:"collector_nic"`
	CollectionDate  *time.Time `gorm:"column:collection_date" json:"collection_date"`

	CertificateRef *string `gorm:"column:certificate_ref" json:"certificate_ref"`
	PhotoRef       *string `gorm:"column:photo_ref" json:"photo_ref"`
	OtherRef       *string `gorm:"column:other_ref" json:"other_ref"`

	Remarks         *string `gorm:"column:remarks;type:text" json:"remarks"`
	SurveyRemarks   *string `gorm:"column:survey_remarks;type:text" json:"survey_remarks"`
	HandoverRemarks *string `gorm:"column:handover_remarks;type:text" json:"handover_remarks"`

	Latitude  *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude *float64 `gorm:"column:longitude" json:"longitude"`

	Version   int        `gorm:"column:version;not null;default:1" json:"version"`
	CreatedBy string     `gorm:"column:created_by;type:varchar(64);not null" json:"created_by"`
	UpdatedBy string     `gorm:"column:updated_by;type:varchar(64);not null" json:"updated_by"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"-"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"-"`
}

func (Possession) TableName() string {
	return "Possessions"
}

// BeforeCreate sets id if not already set (DBs without default uuid).
func (p *Possession) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DurationDays is the derived possession duration: init to handover for handed-over
// records, init to now otherwise. Never persisted.
func (p *Possession) DurationDays(now time.Time) int {
	end := now
	if p.HandoverDate != nil {
		end = *p.HandoverDate
	}
	if end.Before(p.InitDate) {
		return 0
	}
	return int(end.Sub(p.InitDate).Hours() / 24)
}

// Attachment returns the reference stored in slot, if any.
func (p *Possession) Attachment(slot string) *string {
	switch slot {
	case SlotCertificate:
		return p.CertificateRef
	case SlotPhoto:
		return p.PhotoRef
	case SlotOther:
		return p.OtherRef
	}
	return nil
}

// AttachmentColumn maps a slot name to its column, "" for unknown slots.
func AttachmentColumn(slot string) string {
	switch slot {
	case SlotCertificate:
		return "certificate_ref"
	case SlotPhoto:
		return "photo_ref"
	case SlotOther:
		return "other_ref"
	}
	return ""
}

// PossessionCodeCounter is the per-day sequence behind possession codes.
type PossessionCodeCounter struct {
	Prefix    string    `gorm:"column:prefix;type:varchar(32);primaryKey" json:"prefix"`
	Seq       int       `gorm:"column:seq;not null;default:0" json:"seq"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PossessionCodeCounter) TableName() string {
	return "PossessionCodeCounters"
}
