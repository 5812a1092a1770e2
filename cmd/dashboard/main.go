package main

import (
	"os"

	"carbon_dashboard/cmd/dashboard/app"
	"carbon_dashboard/internal/logger"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Log.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}
