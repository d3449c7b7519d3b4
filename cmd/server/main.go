package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/andriansyah/digistore/internal/auth"
	"github.com/andriansyah/digistore/internal/config"
	"github.com/andriansyah/digistore/internal/events"
	"github.com/andriansyah/digistore/internal/handlers"
	"github.com/andriansyah/digistore/internal/logging"
	authmw "github.com/andriansyah/digistore/internal/middleware/auth"
	loggingmw "github.com/andriansyah/digistore/internal/middleware/logging"
	"github.com/andriansyah/digistore/internal/ratelimit"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/andriansyah/digistore/internal/search"
	"github.com/andriansyah/digistore/internal/service"
	"github.com/andriansyah/digistore/internal/tripay"
	httpserver "github.com/andriansyah/digistore/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	prod := events.NewProducer(splitBrokers(configuration.KAFKA_ADDRESS))

	searchIndex, err := search.NewIndex(configuration)
	if err != nil {
		logger.Warn("search unavailable, falling back to SQL filtering", "error", err)
	}

	var limiter *ratelimit.Limiter
	if configuration.REDIS_ADDR != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     configuration.REDIS_ADDR,
			Password: configuration.REDIS_PASSWORD,
		})
		limiter = ratelimit.New(rdb, 120, time.Minute)
	}

	gateway := tripay.NewClient(
		configuration.TRIPAY_BASE_URL,
		configuration.TRIPAY_API_KEY,
		configuration.TRIPAY_PRIVATE_KEY,
		configuration.TRIPAY_MERCHANT_CODE,
	)

	verifier := auth.NewTokenVerifier(configuration.AUTH_ISSUER, configuration.AUTH_CERT_URL)

	users := &repo.UserRepo{DB: db, AdminEmail: configuration.ADMIN_EMAIL}
	products := &repo.ProductRepo{DB: db}
	invoices := &repo.InvoiceRepo{DB: db}

	invoiceService := &service.InvoiceService{
		Invoices:    invoices,
		Products:    products,
		Gateway:     gateway,
		Producer:    prod,
		PrivateKey:  []byte(configuration.TRIPAY_PRIVATE_KEY),
		CallbackURL: "/api/payment/callback",
	}

	gate := &authmw.Gate{Verifier: verifier, Users: users}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:             db,
		Gate:           gate,
		Limiter:        limiter,
		AuthHandler:    &handlers.AuthHandler{Verifier: verifier, Users: users, Producer: prod},
		UserHandler:    &handlers.UserHandler{Users: users},
		ProductHandler: &handlers.ProductHandler{Products: products, Search: searchIndex, Producer: prod},
		InvoiceHandler: &handlers.InvoiceHandler{Invoices: invoices},
		PaymentHandler: &handlers.PaymentHandler{Service: invoiceService},
	}

	httpserver.Register(e, &deps)

	// Periodic sweep of Pending invoices whose payment window lapsed.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				n, err := invoiceService.CleanupPending(cleanupCtx)
				if err != nil {
					logger.Error("pending invoice cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("cleaned up stale pending invoices", "count", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancelCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("producer close error: %v", err)
	}

	log.Println("shutdown complete")
}

func splitBrokers(addr string) []string {
	if addr == "" {
		return nil
	}
	return []string{addr}
}
