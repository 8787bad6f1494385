package codes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estate-backend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAllocator keeps one counter row per day prefix and increments it inside a
// transaction. The UPDATE takes the row lock, so concurrent callers serialize on it.
// A missing counter row is seeded from the highest code already in Possessions.
type GormAllocator struct {
	DB     *gorm.DB
	Prefix string
	Now    func() time.Time
}

func (a *GormAllocator) Allocate(ctx context.Context) (string, error) {
	dayPrefix := DayPrefix(a.Prefix, a.now())

	var seq int
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.PossessionCodeCounter{}).Where("prefix = ?", dayPrefix).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			start, err := maxSuffix(tx, dayPrefix)
			if err != nil {
				return err
			}
			counter := domain.PossessionCodeCounter{Prefix: dayPrefix, Seq: start}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
				return err
			}
		}
		res := tx.Model(&domain.PossessionCodeCounter{}).
			Where("prefix = ?", dayPrefix).
			Updates(map[string]interface{}{"seq": gorm.Expr("seq + 1"), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		var counter domain.PossessionCodeCounter
		if err := tx.Where("prefix = ?", dayPrefix).First(&counter).Error; err != nil {
			return err
		}
		seq = counter.Seq
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("allocate possession code: %w", err)
	}
	return Format(dayPrefix, seq), nil
}

// maxSuffix reads through tx so the seed comes from the same connection as the counter.
func maxSuffix(tx *gorm.DB, dayPrefix string) (int, error) {
	var existing []string
	err := tx.Model(&domain.Possession{}).
		Where("possession_code LIKE ?", dayPrefix+"-%").
		Pluck("possession_code", &existing).Error
	if err != nil {
		return 0, err
	}
	max := 0
	for _, code := range existing {
		if n, err := strconv.Atoi(strings.TrimPrefix(code, dayPrefix+"-")); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (a *GormAllocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
