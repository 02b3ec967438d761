package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/finflow/backend/internal/config"
	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/server"
	"github.com/finflow/backend/internal/service"
	"github.com/finflow/backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := log.New(cfg.LogLevel)

	ctx := context.Background()

	var storeImpl store.Store
	if cfg.UseMemoryStore {
		logger.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		if cfg.ProjectID == "" {
			logger.Error("GOOGLE_CLOUD_PROJECT must be set when not using the memory store")
			os.Exit(1)
		}
		firestoreClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("failed to create Firestore client", "error", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		storeImpl = store.NewFirestoreStore(firestoreClient)
	}

	financeService := service.NewFinanceService(storeImpl, logger, service.Config{
		LowBalanceThreshold: cfg.LowBalanceThreshold,
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(
			server.New(financeService, logger, cfg.DefaultHorizonMonths).Handler(),
			&http2.Server{},
		),
	}

	logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
