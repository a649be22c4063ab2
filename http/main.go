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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/http/controller"
	routes "github.com/tnqbao/gau-ingest-pipeline/http/route"
	infraPkg "github.com/tnqbao/gau-ingest-pipeline/infra"
	"github.com/tnqbao/gau-ingest-pipeline/pipeline"
	"github.com/tnqbao/gau-ingest-pipeline/repository"
)

const shutdownTimeout = 30 * time.Second

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	if !cfg.EnvConfig.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)
	jobs := pipeline.NewFromInfra(cfg.EnvConfig, infra, repo)

	ctrl := controller.NewController(cfg, infra, repo, jobs)

	router := routes.SetupRouter(ctrl)
	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.Server.Port,
		Handler: router,
	}

	go func() {
		log.Println("HTTP Server started on " + server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := jobs.Shutdown(ctx); err != nil {
		log.Printf("Pipeline shutdown, jobs still running: %v", err)
	}
	if err := infra.Close(ctx); err != nil {
		log.Printf("Infra shutdown: %v", err)
	}
	log.Println("Server exited")
}
