package main

import (
	"time"

	"github.com/postly/postly/config"
	"github.com/postly/postly/models"
	"github.com/postly/postly/routes"
	"github.com/postly/postly/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Reaction{})

	r := routes.SetupRouter(db)

	// Background sweep for upload files stranded by crashed requests
	stopSweeper := utils.StartOrphanSweeper(db, 30*time.Minute, time.Hour)
	defer stopSweeper()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
