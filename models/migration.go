package models

import (
	"log"

	"github.com/sgmotoworks/workshop_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &Customer{}, &Vehicle{},
		&Product{}, &StockMovement{}, &CompatibilityRecord{},
		&Jobsheet{}, &JobsheetItem{}, &Labor{}, &Payment{},
		&SupplierInvoice{}, &SupplierInvoiceItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
