// Package server provides the public entry point for initializing the
// AgentBridge server.
//
// This package exists in pkg/ (not internal/) so embedders can import it
// and compose the full server with their own middleware:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/action"
	"github.com/agentbridge/agentbridge/internal/api"
	"github.com/agentbridge/agentbridge/internal/api/handlers"
	"github.com/agentbridge/agentbridge/internal/chat"
	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/embeddings"
	"github.com/agentbridge/agentbridge/internal/knowledge"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/internal/secrets"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/internal/telemetry"
	"github.com/agentbridge/agentbridge/internal/template"
	"github.com/agentbridge/agentbridge/internal/vectorstore"
)

// Server holds the initialized AgentBridge components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory by default).
	Store store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
// The vector index backend is chosen once here; everything downstream
// talks to the VectorIndex interface.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	log.Info().Msg("In-memory store initialized")

	cipher, err := secrets.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	// Chat drivers
	chatDrivers := llm.NewRegistry()
	chatDrivers.Register(llm.NewOpenAIDriver())
	chatDrivers.Register(llm.NewGeminiDriver())

	// Embedding drivers + offline fallback
	embedDrivers := embeddings.NewRegistry()
	embedDrivers.Register(embeddings.NewOpenAIDriver())
	embedDrivers.Register(embeddings.NewGeminiDriver())
	embedProvider := embeddings.NewProvider(embedDrivers)

	// Chunk rows back the scan index; PostgreSQL when configured,
	// otherwise the in-memory store's chunk table.
	var chunks store.ChunkStore = dataStore
	if cfg.Database.URL != "" {
		pg, err := vectorstore.NewPostgresChunkStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres chunk store: %w", err)
		}
		chunks = pg
	}

	indexes := vectorstore.NewRegistry()
	indexes.Register(vectorstore.NewScanIndex(chunks))
	if cfg.Vector.PineconeHost != "" {
		indexes.Register(vectorstore.NewPineconeIndex(cfg.Vector.PineconeHost, cfg.Vector.PineconeAPIKey))
	}

	index, err := indexes.Get(cfg.Vector.Backend)
	if err != nil {
		return nil, fmt.Errorf("select vector backend: %w", err)
	}
	log.Info().Str("backend", index.Kind()).Msg("Vector index selected")

	// Template resolution + action execution + chat orchestration
	resolver := template.NewResolver(dataStore, cipher)
	executor := action.NewExecutor(dataStore, resolver)
	orchestrator := chat.NewOrchestrator(dataStore, chatDrivers, executor)

	chunker := knowledge.ChunkerConfig{
		ChunkSize:    cfg.Vector.ChunkSize,
		ChunkOverlap: cfg.Vector.ChunkOverlap,
		Separator:    "\n\n",
	}
	ingester := knowledge.NewIngester(dataStore, embedProvider, index, chunker)
	retriever := knowledge.NewRetriever(embedProvider, index, chunks)

	h := handlers.New(dataStore, cipher, orchestrator, executor, ingester, retriever, index)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
