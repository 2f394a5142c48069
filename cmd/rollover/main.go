// Command rollover opens next month's quota rows for every approved member.
// Safe to run more than once.
package main

import (
	"context"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	"sportclub/internal/domain/quota"
	"sportclub/internal/logging"
	quotamodule "sportclub/internal/modules/quota"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect database")
	}
	if err := migrate.Run(db); err != nil {
		logging.Fatal().Err(err).Msg("migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	svc := quotamodule.NewService(db, quota.NewRepository(db, cfg.DefaultMonthlyClasses), nil, cfg.Location)
	res, err := svc.AdvanceAllToNextMonth(ctx, 0)
	if err != nil {
		logging.Fatal().Err(err).Msg("rollover failed")
	}
	logging.Info().
		Int("year", res.Period.Year).
		Int("month", res.Period.Month).
		Int("members", res.Members).
		Int("created", res.Created).
		Msg("rollover completed")
}
