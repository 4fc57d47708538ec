package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/drivewise/drivewise/internal/assets"
	"github.com/drivewise/drivewise/internal/auth"
	"github.com/drivewise/drivewise/internal/config"
	"github.com/drivewise/drivewise/internal/handler"
	"github.com/drivewise/drivewise/internal/integrations/classifier"
	"github.com/drivewise/drivewise/internal/jobs"
	"github.com/drivewise/drivewise/internal/middleware"
	"github.com/drivewise/drivewise/internal/repository"
	"github.com/drivewise/drivewise/internal/service"
	"github.com/drivewise/drivewise/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Errorf("Failed to disconnect from database: %v", err)
		}
	}()
	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	db := client.Database(cfg.MongoDB)

	// Initialize layers
	store, err := assets.NewDiskStore(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize asset store: %v", err)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	sender := email.NewSender(cfg, logger)
	listingRepo := repository.NewMongoListingRepository(db)
	accountRepo := repository.NewMongoAccountRepository(db)
	listings := service.NewListingService(listingRepo, store, cfg, logger)
	accounts := service.NewAccountService(accountRepo, listingRepo, store, tokens, sender, cfg, logger)
	recommender := service.NewRecommender(classifier.NewClient(cfg, logger), logger)
	h := handler.NewHandler(listings, accounts, recommender, cfg.BaseURL, logger)

	// Schedule the daily posted-days refresh
	scheduler, err := jobs.Start(listings, logger)
	if err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/api/signup", h.Signup).Methods("POST")
	r.HandleFunc("/api/login", h.Login).Methods("POST")
	r.HandleFunc("/api/forgot-password", h.ForgotPassword).Methods("POST")
	r.HandleFunc("/api/reset-password", h.ResetPassword).Methods("POST")
	r.HandleFunc("/api/cars", h.Cars).Methods("GET")
	r.HandleFunc("/api/cars/{id}", h.Car).Methods("GET")
	r.HandleFunc("/api/categories", h.Categories).Methods("GET")
	r.HandleFunc("/api/predict", h.Predict).Methods("POST")
	r.HandleFunc("/sitemap.xml", h.Sitemap).Methods("GET")
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Dir()))))
	// Protected routes
	authRouter := r.PathPrefix("/api").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(tokens))
	authRouter.HandleFunc("/list-car", h.ListCar).Methods("POST")
	authRouter.HandleFunc("/update-car/{id}", h.UpdateCar).Methods("PUT")
	authRouter.HandleFunc("/delete-car/{id}", h.DeleteCar).Methods("DELETE")
	authRouter.HandleFunc("/user-profile", h.UserProfile).Methods("GET")
	authRouter.HandleFunc("/update-user", h.UpdateUser).Methods("PUT")
	authRouter.HandleFunc("/change-password", h.ChangePassword).Methods("POST")
	authRouter.HandleFunc("/delete-account", h.DeleteAccount).Methods("DELETE")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Shut down on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
