package main

import (
	"github.com/OFFIS-RIT/fingraph/internal/config"
	"github.com/OFFIS-RIT/fingraph/internal/db"
	"github.com/OFFIS-RIT/fingraph/internal/server"
	"github.com/OFFIS-RIT/fingraph/internal/util"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
)

func main() {
	cfg := config.Load()
	cfg.InitLogger()

	if util.GetEnvBool("MIGRATE_ON_START", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	server.Init(cfg)
}
