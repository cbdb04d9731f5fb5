package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sgmotoworks/workshop_backend/config"
	"github.com/sgmotoworks/workshop_backend/models"
	"github.com/sgmotoworks/workshop_backend/models/reports"
	"github.com/sgmotoworks/workshop_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer trace.Tracer = otel.Tracer("workshop-backend")

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before dependencies are ready; until DB/Redis
	// come up, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.POST("/jobsheets", createJobsheetHandler)
	api.GET("/jobsheets", listJobsheetsHandler)
	api.GET("/jobsheets/:id", getJobsheetHandler)
	api.PATCH("/jobsheets/:id", updateJobsheetHandler)
	api.DELETE("/jobsheets/:id", deleteJobsheetHandler)
	api.GET("/jobsheets/:id/balance", jobsheetBalanceHandler)

	api.POST("/jobsheets/:id/items", addItemHandler)
	api.PATCH("/items/:id", updateItemHandler)
	api.DELETE("/items/:id", deleteItemHandler)

	api.POST("/jobsheets/:id/labors", addLaborHandler)
	api.PATCH("/labors/:id", updateLaborHandler)
	api.DELETE("/labors/:id", deleteLaborHandler)

	api.POST("/jobsheets/:id/payments", addPaymentHandler)
	api.PATCH("/payments/:id", updatePaymentHandler)
	api.DELETE("/payments/:id", deletePaymentHandler)

	api.POST("/products", createProductHandler)
	api.GET("/products", listProductsHandler)
	api.POST("/customers", createCustomerHandler)
	api.POST("/vehicles", createVehicleHandler)

	api.POST("/grn", createSupplierInvoiceHandler)
	api.GET("/stock-movements", listStockMovementsHandler)

	api.GET("/reports/workflow-summary", workflowSummaryHandler)
	api.GET("/reports/detailed-jobsheets", detailedJobsheetsHandler)
	api.GET("/reports/export-data", exportDataHandler)
	api.GET("/reports/workflow-by-payment-method", workflowByPaymentMethodHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// respondError maps the model layer's error taxonomy to HTTP statuses.
func respondError(c *gin.Context, module string, funcName string, err error) {
	if utils.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, utils.ErrorInsufficientStock) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	config.LogError(config.GetLogger(), module, funcName, "handler", nil, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request body",
			"fields": utils.ProcessValidationErrors(err),
		})
		return false
	}
	return true
}

func createJobsheetHandler(c *gin.Context) {
	var input models.NewJobsheet
	if !bindJSON(c, &input) {
		return
	}
	jobsheet, err := models.CreateJobsheet(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "server.go", "createJobsheetHandler", err)
		return
	}
	c.JSON(http.StatusCreated, jobsheet)
}

func listJobsheetsHandler(c *gin.Context) {
	var state *string
	if s := strings.TrimSpace(c.Query("state")); s != "" {
		state = &s
	}
	rows, err := models.GetJobsheets(c.Request.Context(), state)
	if err != nil {
		respondError(c, "server.go", "listJobsheetsHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func getJobsheetHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	jobsheet, err := models.GetJobsheetDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, "server.go", "getJobsheetHandler", err)
		return
	}
	c.JSON(http.StatusOK, jobsheet)
}

func updateJobsheetHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var patch models.PatchJobsheet
	if !bindJSON(c, &patch) {
		return
	}
	jobsheet, err := models.UpdateJobsheet(c.Request.Context(), id, &patch)
	if err != nil {
		respondError(c, "server.go", "updateJobsheetHandler", err)
		return
	}
	c.JSON(http.StatusOK, jobsheet)
}

func deleteJobsheetHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteJobsheet(c.Request.Context(), id); err != nil {
		respondError(c, "server.go", "deleteJobsheetHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func jobsheetBalanceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	balance, err := models.GetJobsheetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, "server.go", "jobsheetBalanceHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobsheet_id": id, "balance": balance})
}

func addItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewJobsheetItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.AddJobsheetItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "server.go", "addItemHandler", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func updateItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var patch models.PatchJobsheetItem
	if !bindJSON(c, &patch) {
		return
	}
	item, err := models.UpdateJobsheetItem(c.Request.Context(), id, &patch)
	if err != nil {
		respondError(c, "server.go", "updateItemHandler", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteJobsheetItem(c.Request.Context(), id); err != nil {
		respondError(c, "server.go", "deleteItemHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func addLaborHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewLabor
	if !bindJSON(c, &input) {
		return
	}
	labor, err := models.AddLabor(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "server.go", "addLaborHandler", err)
		return
	}
	c.JSON(http.StatusCreated, labor)
}

func updateLaborHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var patch models.PatchLabor
	if !bindJSON(c, &patch) {
		return
	}
	labor, err := models.UpdateLabor(c.Request.Context(), id, &patch)
	if err != nil {
		respondError(c, "server.go", "updateLaborHandler", err)
		return
	}
	c.JSON(http.StatusOK, labor)
}

func deleteLaborHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteLabor(c.Request.Context(), id); err != nil {
		respondError(c, "server.go", "deleteLaborHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func addPaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.AddPayment(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "server.go", "addPaymentHandler", err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func updatePaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var patch models.PatchPayment
	if !bindJSON(c, &patch) {
		return
	}
	payment, err := models.UpdatePayment(c.Request.Context(), id, &patch)
	if err != nil {
		respondError(c, "server.go", "updatePaymentHandler", err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func deletePaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeletePayment(c.Request.Context(), id); err != nil {
		respondError(c, "server.go", "deletePaymentHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "server.go", "createProductHandler", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func listProductsHandler(c *gin.Context) {
	var name, sku *string
	if s := strings.TrimSpace(c.Query("name")); s != "" {
		name = &s
	}
	if s := strings.TrimSpace(c.Query("sku")); s != "" {
		sku = &s
	}
	products, err := models.GetProducts(c.Request.Context(), name, sku)
	if err != nil {
		respondError(c, "server.go", "listProductsHandler", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "server.go", "createCustomerHandler", err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func createVehicleHandler(c *gin.Context) {
	var input models.NewVehicle
	if !bindJSON(c, &input) {
		return
	}
	vehicle, err := models.CreateVehicle(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "server.go", "createVehicleHandler", err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func listStockMovementsHandler(c *gin.Context) {
	var productId *int
	if s := strings.TrimSpace(c.Query("product_id")); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
			return
		}
		productId = &id
	}
	var refType *string
	if s := strings.TrimSpace(c.Query("reference_type")); s != "" {
		refType = &s
	}
	movements, err := models.GetStockMovements(c.Request.Context(), productId, refType)
	if err != nil {
		respondError(c, "server.go", "listStockMovementsHandler", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func createSupplierInvoiceHandler(c *gin.Context) {
	var input models.NewSupplierInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.CreateSupplierInvoice(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "server.go", "createSupplierInvoiceHandler", err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// reportDateRange parses the required start_date / end_date query params.
func reportDateRange(c *gin.Context) (models.MyDateString, models.MyDateString, bool) {
	fromRaw := strings.TrimSpace(c.Query("start_date"))
	toRaw := strings.TrimSpace(c.Query("end_date"))
	if fromRaw == "" || toRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return models.MyDateString{}, models.MyDateString{}, false
	}
	fromDate, err := models.ParseMyDateString(fromRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date: " + err.Error()})
		return models.MyDateString{}, models.MyDateString{}, false
	}
	toDate, err := models.ParseMyDateString(toRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + err.Error()})
		return models.MyDateString{}, models.MyDateString{}, false
	}
	return fromDate, toDate, true
}

func workflowSummaryHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "reports.workflowSummary")
	defer span.End()

	fromDate, toDate, ok := reportDateRange(c)
	if !ok {
		return
	}
	summary, err := reports.GetWorkflowSummary(ctx, fromDate, toDate)
	if err != nil {
		respondError(c, "server.go", "workflowSummaryHandler", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func detailedJobsheetsHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "reports.detailedJobsheets")
	defer span.End()

	fromDate, toDate, ok := reportDateRange(c)
	if !ok {
		return
	}
	rows, err := reports.GetDetailedJobsheets(ctx, fromDate, toDate)
	if err != nil {
		respondError(c, "server.go", "detailedJobsheetsHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func exportDataHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "reports.exportData")
	defer span.End()

	fromDate, toDate, ok := reportDateRange(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Query("format"), "xlsx") {
		file, err := reports.GetExportDataExcel(ctx, fromDate, toDate)
		if err != nil {
			respondError(c, "server.go", "exportDataHandler", err)
			return
		}
		filename := "export_" + fromDate.DateString() + "_" + toDate.DateString() + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportDataHandler", "file.Write", nil, err)
		}
		return
	}
	rows, err := reports.GetExportData(ctx, fromDate, toDate)
	if err != nil {
		respondError(c, "server.go", "exportDataHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func workflowByPaymentMethodHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "reports.workflowByPaymentMethod")
	defer span.End()

	fromDate, toDate, ok := reportDateRange(c)
	if !ok {
		return
	}
	rows, err := reports.GetWorkflowByPaymentMethod(ctx, fromDate, toDate)
	if err != nil {
		respondError(c, "server.go", "workflowByPaymentMethodHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
