// seed-admin creates or updates the admin console user and, with
// SEED_DEMO_DATA=true, a small demo dataset for local development.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	adminUsername = "workshopAdmin"
	adminPassword = "W0rk$hopAdmin"
	adminName     = "Workshop Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, adminUsername)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		user := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: string(hashed),
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", adminUsername, user.ID)
	} else if utils.ComparePassword(existing.Password, adminPassword) != nil {
		if err := db.WithContext(ctx).Model(&existing).Update("password", string(hashed)).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to reset admin password: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("reset password for admin user %q (id=%d)\n", adminUsername, existing.ID)
	} else {
		fmt.Printf("admin user %q already up to date (id=%d)\n", adminUsername, existing.ID)
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("SEED_DEMO_DATA")), "true") {
		seedDemoData(ctx)
	}
}

func seedDemoData(ctx context.Context) {
	db := config.GetDB()

	var productCount int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&productCount).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count products: %v\n", err)
		os.Exit(1)
	}
	if productCount > 0 {
		fmt.Println("demo data already present; skipping")
		return
	}

	products := []*models.NewProduct{
		{Name: "Engine Oil 10W-40 1L", Sku: "OIL-1040", Stock: 24, Cost: decimal.NewFromFloat(6.50), Sale: decimal.NewFromFloat(12.00)},
		{Name: "Brake Pad Set", Sku: "BRK-PAD-STD", Stock: 10, Cost: decimal.NewFromFloat(18.00), Sale: decimal.NewFromFloat(35.00)},
		{Name: "Chain & Sprocket Kit", Sku: "CHN-KIT-428", Stock: 6, Cost: decimal.NewFromFloat(42.00), Sale: decimal.NewFromFloat(80.00)},
	}
	for _, p := range products {
		if _, err := models.CreateProduct(ctx, p); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed product %s: %v\n", p.Sku, err)
			os.Exit(1)
		}
	}

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Demo Customer", Phone: "+65 8000 0000"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed customer: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateVehicle(ctx, &models.NewVehicle{
		CustomerId:   &customer.ID,
		Model:        "Yamaha NMAX",
		LicensePlate: "FB1234A",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed vehicle: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seeded demo products, customer and vehicle")
}
