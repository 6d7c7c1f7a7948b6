package main

import (
	"context"
	"fmt"

	"plotbot/config"
	"plotbot/pkg/logger"
	"plotbot/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)

	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// Clears bot-side state only. Users, readings, payments and tariffs are
	// owned by the billing side and stay untouched, except viber links.
	_, err = pg.GetPool().Exec(context.Background(),
		"TRUNCATE TABLE bot_actions, temp_registrations, notifications RESTART IDENTITY")
	if err != nil {
		log.Error(fmt.Sprintf("Failed to truncate tables: %v", err))
		return
	}

	tag, err := pg.GetPool().Exec(context.Background(),
		"UPDATE users SET viber_id = NULL, viber_details = NULL, updated_at = NOW() WHERE viber_id IS NOT NULL")
	if err != nil {
		log.Error(fmt.Sprintf("Failed to unlink users: %v", err))
		return
	}
	log.Info(fmt.Sprintf("Successfully truncated bot tables and unlinked %d users.", tag.RowsAffected()))
}
