// Package migrate creates the schema for every stored entity.
package migrate

import (
	"fmt"

	"gorm.io/gorm"

	"sportclub/internal/domain/audit"
	"sportclub/internal/domain/booking"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/logging"
)

func Models() []any {
	return []any{
		&member.Member{},
		&schedule.RecurringClass{},
		&schedule.DateOverride{},
		&schedule.InstructorAssignment{},
		&schedule.OneOffOccurrence{},
		&booking.Booking{},
		&booking.SlotLock{},
		&quota.MonthlyQuota{},
		&quota.Entry{},
		&audit.Entry{},
	}
}

func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	logging.Info().Int("tables", len(Models())).Msg("schema migrated")
	return nil
}
