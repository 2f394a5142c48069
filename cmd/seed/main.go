package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	"sportclub/internal/domain/member"
	"sportclub/internal/domain/quota"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/logging"
)

type account struct {
	email, name, password string
	role                  member.Role
	status                member.Status
}

var accounts = []account{
	{"admin@club.local", "Administrator", "admin123", member.RoleAdmin, member.StatusApproved},
	{"coach@club.local", "Coach Marta", "coach123", member.RoleTrainer, member.StatusApproved},
	{"anna@club.local", "Anna", "member123", member.RoleMember, member.StatusApproved},
	{"ben@club.local", "Ben", "member123", member.RoleMember, member.StatusApproved},
	{"cleo@club.local", "Cleo", "member123", member.RoleMember, member.StatusPending},
}

type template struct {
	title      string
	instructor string
	dow        int
	start, end string
	capacity   int
}

var week = []template{
	{"Boxing", "Marta", 1, "18:00", "19:00", 12},
	{"Boxing", "Marta", 3, "18:00", "19:00", 12},
	{"Kids judo", "Ilya", 2, "17:00", "18:00", 15},
	{"Kids judo", "Ilya", 4, "17:00", "18:00", 15},
	{"Open mat", "", 6, "10:00", "12:00", 20},
}

func main() {
	reset := flag.Bool("reset", false, "delete existing members and schedule first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("DB connection failed")
	}
	if err := migrate.Run(db); err != nil {
		logging.Fatal().Err(err).Msg("AutoMigrate failed")
	}

	if *reset {
		logging.Info().Msg("cleaning old data")
		for _, table := range []string{
			"audit_entries", "quota_entries", "monthly_quotas", "bookings", "booking_slot_locks",
			"instructor_assignments", "date_overrides", "one_off_occurrences", "recurring_classes", "members",
		} {
			if err := db.Exec("DELETE FROM " + table).Error; err != nil {
				logging.Fatal().Err(err).Str("table", table).Msg("cleanup failed")
			}
		}
	}

	ctx := context.Background()
	members := member.NewRepository(db)
	quotas := quota.NewRepository(db, cfg.DefaultMonthlyClasses)
	period := quota.PeriodOf(time.Now().In(cfg.Location))

	for _, a := range accounts {
		hash, err := member.HashPassword(a.password)
		if err != nil {
			logging.Fatal().Err(err).Msg("hash password")
		}
		m := &member.Member{Email: a.email, Name: a.name, PasswordHash: hash, Role: a.role, Status: a.status}
		if err := members.Create(ctx, m); err != nil {
			if errors.Is(err, member.ErrEmailAlreadyExists) {
				logging.Info().Str("email", a.email).Msg("member exists, skipped")
				continue
			}
			logging.Fatal().Err(err).Str("email", a.email).Msg("create member")
		}
		if a.status == member.StatusApproved {
			if _, err := quotas.GetOrCreate(ctx, m.ID, period, cfg.DefaultMonthlyClasses); err != nil {
				logging.Fatal().Err(err).Msg("create quota")
			}
		}
		logging.Info().Str("email", a.email).Str("password", a.password).Str("role", string(a.role)).Msg("member created")
	}

	repo := schedule.NewRepository(db)
	existing, err := repo.ListClasses(ctx, true)
	if err != nil {
		logging.Fatal().Err(err).Msg("list classes")
	}
	if len(existing) > 0 {
		logging.Info().Int("classes", len(existing)).Msg("weekly templates exist, skipped")
		return
	}
	for _, t := range week {
		c := &schedule.RecurringClass{
			Title:       t.title,
			DayOfWeek:   t.dow,
			StartTime:   t.start,
			EndTime:     t.end,
			MaxCapacity: t.capacity,
			Active:      true,
		}
		if t.instructor != "" {
			instructor := t.instructor
			c.Instructor = &instructor
		}
		if err := repo.CreateClass(ctx, c); err != nil {
			logging.Fatal().Err(err).Msg("create class")
		}
	}
	logging.Info().Int("classes", len(week)).Msg("seed completed")
}
