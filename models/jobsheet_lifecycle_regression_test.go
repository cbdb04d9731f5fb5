package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/shopspring/decimal"
)

func integrationContext(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "workshop_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func boolFlag(v bool) *models.BoolFlag {
	f := models.BoolFlag(v)
	return &f
}

func strPtr(s string) *string { return &s }

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return &v
}

func mustStock(t *testing.T, ctx context.Context, productId int) int {
	t.Helper()
	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		t.Fatalf("GetProduct(%d): %v", productId, err)
	}
	return product.Stock
}

func compatibilityCount(t *testing.T, ctx context.Context, productId int, model string) int64 {
	t.Helper()
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&models.CompatibilityRecord{}).
		Where("product_id = ? AND vehicle_model = ?", productId, model).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count compatibility records: %v", err)
	}
	return count
}

func seedJobsheetFixtures(t *testing.T, ctx context.Context, stock int) (*models.Product, *models.Jobsheet) {
	t.Helper()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Mechanic",
		Username: fmt.Sprintf("mech-%d", time.Now().UnixNano()),
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Lim Bee Hoon"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	plate := fmt.Sprintf("FB%d", time.Now().UnixNano()%100000)
	vehicle, err := models.CreateVehicle(ctx, &models.NewVehicle{
		CustomerId:   &customer.ID,
		Model:        "Yamaha NMAX",
		LicensePlate: plate,
	})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:  "Brake Pad Set",
		Sku:   fmt.Sprintf("BRK-%d", time.Now().UnixNano()),
		Stock: stock,
		Cost:  decimal.NewFromInt(18),
		Sale:  decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	jobsheet, err := models.CreateJobsheet(ctx, &models.NewJobsheet{
		VehicleId: &vehicle.ID,
		UserId:    user.ID,
	})
	if err != nil {
		t.Fatalf("CreateJobsheet: %v", err)
	}
	if jobsheet.CustomerId == nil || *jobsheet.CustomerId != customer.ID {
		t.Fatalf("jobsheet did not inherit the vehicle owner: %+v", jobsheet.CustomerId)
	}
	return product, jobsheet
}

// Stock lifecycle: attaching items consumes stock, over-consumption is
// rejected atomically, and cancelling restores every consumed unit while
// retracting inferred compatibility.
func TestJobsheetStockAndCompatibilityLifecycle(t *testing.T) {
	ctx := integrationContext(t)
	product, jobsheet := seedJobsheetFixtures(t, ctx, 10)

	item, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  4,
	})
	if err != nil {
		t.Fatalf("AddJobsheetItem: %v", err)
	}
	if !item.Price.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("item price snapshot = %s, want product sale 50", item.Price)
	}
	if got := mustStock(t, ctx, product.ID); got != 6 {
		t.Fatalf("stock after attach = %d, want 6", got)
	}
	if got := compatibilityCount(t, ctx, product.ID, "Yamaha NMAX"); got != 1 {
		t.Fatalf("compatibility records = %d, want 1", got)
	}

	// Second attach asks for more than remains; nothing may stick.
	_, err = models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  7,
	})
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 6 {
		t.Fatalf("stock after rejected attach = %d, want 6", got)
	}

	// Same product attached again does not duplicate the inference.
	if _, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  2,
	}); err != nil {
		t.Fatalf("AddJobsheetItem(second line): %v", err)
	}
	if got := compatibilityCount(t, ctx, product.ID, "Yamaha NMAX"); got != 1 {
		t.Fatalf("compatibility records after second line = %d, want 1", got)
	}

	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("cancelled")}); err != nil {
		t.Fatalf("cancel jobsheet: %v", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after cancel = %d, want 10", got)
	}
	if got := compatibilityCount(t, ctx, product.ID, "Yamaha NMAX"); got != 0 {
		t.Fatalf("compatibility records after cancel = %d, want 0", got)
	}

	// Cancelling twice must not restore twice.
	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("cancelled")}); err != nil {
		t.Fatalf("re-cancel jobsheet: %v", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after re-cancel = %d, want 10", got)
	}

	// The movement trail records each consumption and each restoration.
	cancelRef := string(models.StockReferenceTypeJobsheetCancel)
	movements, err := models.GetStockMovements(ctx, &product.ID, &cancelRef)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("cancel movements = %d, want one per restored item line", len(movements))
	}
	if movements[0].ClosingQty != 10 {
		t.Fatalf("latest closing qty = %d, want 10", movements[0].ClosingQty)
	}
}

// A cancelled jobsheet is terminal: its items are frozen and its state
// cannot be revived. Detaching after cancellation would restore stock a
// second time on top of the cancel restoration.
func TestCancelledJobsheetIsTerminal(t *testing.T) {
	ctx := integrationContext(t)
	product, jobsheet := seedJobsheetFixtures(t, ctx, 10)

	item, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  4,
	})
	if err != nil {
		t.Fatalf("AddJobsheetItem: %v", err)
	}
	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("cancelled")}); err != nil {
		t.Fatalf("cancel jobsheet: %v", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after cancel = %d, want 10", got)
	}

	// Detach after cancel must not restore the already-restored units.
	if err := models.DeleteJobsheetItem(ctx, item.ID); !utils.IsValidationError(err) {
		t.Fatalf("DeleteJobsheetItem on cancelled jobsheet: got %v, want validation error", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after rejected detach = %d, want 10", got)
	}

	// Attach after cancel would consume stock nothing ever restores.
	if _, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  2,
	}); !utils.IsValidationError(err) {
		t.Fatalf("AddJobsheetItem on cancelled jobsheet: got %v, want validation error", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after rejected attach = %d, want 10", got)
	}

	qty := 1
	if _, err := models.UpdateJobsheetItem(ctx, item.ID, &models.PatchJobsheetItem{Quantity: &qty}); !utils.IsValidationError(err) {
		t.Fatalf("UpdateJobsheetItem on cancelled jobsheet: got %v, want validation error", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after rejected quantity change = %d, want 10", got)
	}

	// No transition leaves cancelled.
	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("pending")}); !utils.IsValidationError(err) {
		t.Fatalf("revive cancelled jobsheet: got %v, want validation error", err)
	}
	fetched, err := models.GetJobsheet(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheet: %v", err)
	}
	if fetched.State != models.JobsheetStateCancelled {
		t.Fatalf("state = %q, want cancelled", fetched.State)
	}
}

// Completed is terminal too: state cannot move on, though re-submitting the
// current state stays a no-op.
func TestCompletedJobsheetIsTerminal(t *testing.T) {
	ctx := integrationContext(t)
	_, jobsheet := seedJobsheetFixtures(t, ctx, 10)

	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("completed")}); err != nil {
		t.Fatalf("complete jobsheet: %v", err)
	}
	if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr("completed")}); err != nil {
		t.Fatalf("re-complete jobsheet: %v", err)
	}
	for _, next := range []string{"pending", "in progress", "cancelled"} {
		if _, err := models.UpdateJobsheet(ctx, jobsheet.ID, &models.PatchJobsheet{State: strPtr(next)}); !utils.IsValidationError(err) {
			t.Fatalf("completed -> %q: got %v, want validation error", next, err)
		}
	}
	fetched, err := models.GetJobsheet(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheet: %v", err)
	}
	if fetched.State != models.JobsheetStateCompleted {
		t.Fatalf("state = %q, want completed", fetched.State)
	}
}

// Billing invariant: total_amount tracks items plus completed-and-billed
// labor across every mutation, and the balance reconciles payments.
func TestJobsheetTotalAndBalance(t *testing.T) {
	ctx := integrationContext(t)
	product, jobsheet := seedJobsheetFixtures(t, ctx, 10)

	if _, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  2,
	}); err != nil {
		t.Fatalf("AddJobsheetItem: %v", err)
	}
	labor, err := models.AddLabor(ctx, jobsheet.ID, &models.NewLabor{
		Description: "Replace brake pads",
		Price:       decimal.NewFromInt(100),
		IsCompleted: boolFlag(true),
		IsBilled:    boolFlag(true),
	})
	if err != nil {
		t.Fatalf("AddLabor: %v", err)
	}
	if labor.CompletedAt == nil {
		t.Fatal("completed labor missing completed_at")
	}

	fetched, err := models.GetJobsheet(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheet: %v", err)
	}
	if !fetched.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total = %s, want 200 (2x50 items + 100 labor)", fetched.TotalAmount)
	}

	if _, err := models.AddPayment(ctx, jobsheet.ID, &models.NewPayment{
		Amount: decPtr(t, "150"),
		Method: strPtr("PayNow"),
	}); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	balance, err := models.GetJobsheetBalance(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheetBalance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want 50", balance)
	}

	// Unbilling the labor drops it from the total; completed_at survives.
	updated, err := models.UpdateLabor(ctx, labor.ID, &models.PatchLabor{IsBilled: boolFlag(false)})
	if err != nil {
		t.Fatalf("UpdateLabor: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed_at cleared by unrelated patch")
	}
	fetched, err = models.GetJobsheet(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheet: %v", err)
	}
	if !fetched.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total after unbilling = %s, want 100", fetched.TotalAmount)
	}

	// Payments never feed back into the materialized total.
	if !fetched.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("payments leaked into total: %s", fetched.TotalAmount)
	}
}

// Deleting a jobsheet restores its stock and removes every dependent row.
func TestJobsheetDeleteCascade(t *testing.T) {
	ctx := integrationContext(t)
	product, jobsheet := seedJobsheetFixtures(t, ctx, 10)

	if _, err := models.AddJobsheetItem(ctx, jobsheet.ID, &models.NewJobsheetItem{
		ProductId: product.ID,
		Quantity:  3,
	}); err != nil {
		t.Fatalf("AddJobsheetItem: %v", err)
	}
	if _, err := models.AddPayment(ctx, jobsheet.ID, &models.NewPayment{Amount: decPtr(t, "20")}); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}

	if err := models.DeleteJobsheet(ctx, jobsheet.ID); err != nil {
		t.Fatalf("DeleteJobsheet: %v", err)
	}
	if got := mustStock(t, ctx, product.ID); got != 10 {
		t.Fatalf("stock after delete = %d, want 10", got)
	}
	if _, err := models.GetJobsheet(ctx, jobsheet.ID); err == nil {
		t.Fatal("deleted jobsheet still readable")
	}

	db := config.GetDB()
	var orphans int64
	if err := db.WithContext(ctx).Model(&models.Payment{}).Where("jobsheet_id = ?", jobsheet.ID).Count(&orphans).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("payments left behind: %d", orphans)
	}
	if got := compatibilityCount(t, ctx, product.ID, "Yamaha NMAX"); got != 0 {
		t.Fatalf("compatibility records after delete = %d, want 0", got)
	}
}

// GRN ingestion restocks inventory, refreshes cost and auto-attaches to the
// target jobsheet at the sale price.
func TestSupplierInvoiceRestockAndAttach(t *testing.T) {
	ctx := integrationContext(t)
	product, jobsheet := seedJobsheetFixtures(t, ctx, 1)

	invoice, err := models.CreateSupplierInvoice(ctx, &models.NewSupplierInvoice{
		SupplierName:  "Hup Lee Motor Supplies",
		InvoiceNumber: "INV-7001",
		JobsheetId:    &jobsheet.ID,
		Items: []models.NewSupplierInvoiceItem{
			{ProductId: product.ID, Quantity: 5, UnitCost: decimal.NewFromInt(20)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSupplierInvoice: %v", err)
	}
	if len(invoice.Items) != 1 {
		t.Fatalf("invoice items = %d", len(invoice.Items))
	}

	// +5 received, -5 attached to the jobsheet.
	if got := mustStock(t, ctx, product.ID); got != 1 {
		t.Fatalf("stock after GRN attach = %d, want 1", got)
	}
	refreshed, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !refreshed.Cost.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("cost = %s, want 20", refreshed.Cost)
	}

	fetched, err := models.GetJobsheet(ctx, jobsheet.ID)
	if err != nil {
		t.Fatalf("GetJobsheet: %v", err)
	}
	if len(fetched.Items) != 1 {
		t.Fatalf("jobsheet items = %d, want 1", len(fetched.Items))
	}
	if !fetched.Items[0].Price.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("attached price = %s, want sale 50", fetched.Items[0].Price)
	}
	if !fetched.TotalAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("total = %s, want 250", fetched.TotalAmount)
	}
	if got := compatibilityCount(t, ctx, product.ID, "Yamaha NMAX"); got != 1 {
		t.Fatalf("compatibility records after GRN attach = %d, want 1", got)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("workshop-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("workshop-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=workshop_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
