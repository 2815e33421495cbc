package models

import (
	"log"

	"github.com/kilometri/kilometri_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Trip{},
		&MonthlyReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
