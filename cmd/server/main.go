package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tech-vaibhav/RAG-API/internal/api"
	"github.com/tech-vaibhav/RAG-API/internal/config"
	"github.com/tech-vaibhav/RAG-API/internal/core"
	"github.com/tech-vaibhav/RAG-API/internal/index"
	"github.com/tech-vaibhav/RAG-API/internal/ingest"
	"github.com/tech-vaibhav/RAG-API/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag to ingest a document at startup
	ingestFlag := flag.String("ingest", "", "Ingest the given document into the index before serving")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Vector index and the services around it. The index is a single
	// process-lifetime instance shared by ingestion and retrieval.
	vectorIndex := index.New()
	pipeline := ingest.NewPipeline(
		llmService,
		vectorIndex,
		config.AppConfig.DocumentsDir,
		config.AppConfig.ChunkSize,
		config.AppConfig.ChunkOverlap,
	)
	retrievalService := core.NewRetrievalService(llmService, vectorIndex)
	chatService := core.NewChatService(dbStore, retrievalService, llmService, config.AppConfig.RetrievalK)

	// Handle startup ingestion if requested
	if *ingestFlag != "" {
		log.Printf("Ingesting %s at startup...", *ingestFlag)
		data, err := os.ReadFile(*ingestFlag)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *ingestFlag, err)
		}
		if err := pipeline.Ingest(context.Background(), data, filepath.Base(*ingestFlag)); err != nil {
			log.Fatalf("Startup ingestion failed: %v", err)
		}
		log.Printf("Startup ingestion complete. %d chunks indexed.", vectorIndex.Size())
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, pipeline, dbStore)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM and embedding calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
