package main

import (
	"fmt"
	"log"
	"net/http"

	"pagovecinal/config"
	"pagovecinal/controllers"
	"pagovecinal/database"
	"pagovecinal/middleware"
	"pagovecinal/services"
	"pagovecinal/utils"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}

	store, err := utils.NewFileStore(cfg.UploadsDir)
	if err != nil {
		log.Fatalf("Failed to prepare the uploads directory: %v", err)
	}

	// Services
	emailService := services.NewEmailService(cfg)
	correlativeService := services.NewCorrelativeService(db.DB)
	receiptService := services.NewReceiptService(db.DB, correlativeService, []byte(cfg.ReceiptHMACKey))
	documentService := services.NewDocumentService(store)
	userService := services.NewUserService(db.DB, emailService)
	propertyService := services.NewPropertyService(db.DB)
	scheduleService := services.NewFeeScheduleService(db.DB)
	feeService := services.NewFeeService(db.DB)
	paymentService := services.NewPaymentService(db.DB, feeService, receiptService, emailService)
	agreementService := services.NewAgreementService(db.DB, correlativeService, receiptService, documentService, emailService)
	miscPaymentService := services.NewMiscellaneousPaymentService(db.DB, receiptService)
	expenseService := services.NewExpenseService(db.DB, receiptService)
	reportService := services.NewReportService(db.DB, feeService)

	// Background fee generation on each schedule's due day
	scheduler := services.NewSchedulerService(db.DB, feeService)
	scheduler.Start()

	// Controllers
	authController := controllers.NewAuthController(userService, cfg)
	userController := controllers.NewUserController(userService)
	propertyController := controllers.NewPropertyController(propertyService)
	feeController := controllers.NewFeeController(scheduleService, feeService, reportService)
	paymentController := controllers.NewPaymentController(paymentService, reportService, store)
	agreementController := controllers.NewAgreementController(agreementService)
	miscPaymentController := controllers.NewMiscellaneousPaymentController(miscPaymentService)
	expenseController := controllers.NewExpenseController(expenseService)
	receiptController := controllers.NewReceiptController(receiptService, paymentService, reportService)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RateLimit)

	// Public auth endpoints
	authController.RegisterRoutes(router)

	// Authenticated endpoints
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(cfg.JWT.SecretKey)))
	protected.Use(middleware.LoggingMiddleware)

	// Admin-only endpoints
	admin := protected.PathPrefix("").Subrouter()
	admin.Use(middleware.RequireAdmin)

	userController.RegisterRoutes(admin)
	propertyController.RegisterRoutes(protected, admin)
	feeController.RegisterRoutes(protected, admin)
	paymentController.RegisterRoutes(protected, admin)
	agreementController.RegisterRoutes(protected, admin)
	miscPaymentController.RegisterRoutes(protected, admin)
	expenseController.RegisterRoutes(admin)
	receiptController.RegisterRoutes(protected, admin)

	port := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", port)
	if err := http.ListenAndServe(port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
