// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles the service: clients, stores, dispatchers,
// tracing, and the HTTP router. The serve command calls Run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/dispatch"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/eval"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/ingest"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/observability"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/routes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/techniques"
)

const serviceName = "rageval-orchestrator"

// Config is the process configuration of the orchestrator, loaded from
// config.yaml by the CLI. Env vars consumed by the individual clients
// (OPENAI_API_KEY, WEAVIATE_SERVICE_URL, ...) are read at construction.
type Config struct {
	Port string `yaml:"port"`

	// LLMBackend selects the completion backend: openai or ollama.
	LLMBackend string `yaml:"llm_backend"`

	// EmbeddingBackend selects the embedding backend: http or openai.
	EmbeddingBackend string `yaml:"embedding_backend"`

	// EmbeddingDimension gates ingest; 0 disables the check.
	EmbeddingDimension int `yaml:"embedding_dimension"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// EvalConcurrency bounds the evaluation dispatcher and sizes the
	// reference-metric worker pool.
	EvalConcurrency int `yaml:"eval_concurrency"`

	// LLMRequestsPerSecond rate-limits the shared LLM client; 0 disables.
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second"`

	// LLMCallTimeoutSeconds caps one completion call; 0 uses the default.
	LLMCallTimeoutSeconds int `yaml:"llm_call_timeout_seconds"`
}

// Service holds the assembled collaborators.
type Service struct {
	cfg    Config
	router *gin.Engine
	deps   *routes.Deps

	shutdownTracer func(context.Context)
}

// New assembles the service from the config. A missing or unreachable
// Weaviate degrades to the in-memory store so local runs work without
// infrastructure.
func New(cfg Config) (*Service, error) {
	if cfg.Port == "" {
		cfg.Port = "12210"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdown, err := initTracer()
	if err != nil {
		return nil, fmt.Errorf("setting up the OTLP tracer: %w", err)
	}

	weaviateClient := connectWeaviate()

	var (
		vectorIndex index.VectorIndex
		st          store.Store
	)
	if weaviateClient != nil {
		vectorIndex, err = index.NewWeaviateIndexWithClient(weaviateClient)
		if err != nil {
			return nil, err
		}
		st, err = store.NewWeaviateStore(weaviateClient)
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("Weaviate unavailable, using in-memory index and store; data will not survive restarts")
		vectorIndex = index.NewMemoryIndex()
		st = store.NewMemoryStore()
	}

	embedder, err := buildEmbedder(cfg.EmbeddingBackend)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLMClient(cfg.LLMBackend)
	if err != nil {
		return nil, err
	}
	llmClient = llm.NewRetryingClient(llmClient,
		cfg.LLMRequestsPerSecond,
		time.Duration(cfg.LLMCallTimeoutSeconds)*time.Second,
	)

	registry := techniques.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry, vectorIndex, embedder, llmClient, st)

	judge := eval.NewLLMJudge(llmClient)
	reference := eval.NewReferenceEvaluator(llmClient, embedder, cfg.EvalConcurrency, 0)
	evalDispatcher := eval.NewDispatcher(st, judge, reference, cfg.EvalConcurrency)

	ingestor := ingest.NewIngestor(vectorIndex, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbeddingDimension)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	deps := &routes.Deps{
		Dispatcher:     dispatcher,
		EvalDispatcher: evalDispatcher,
		Judge:          judge,
		Store:          st,
		Ingestor:       ingestor,
	}
	routes.SetupRoutes(router, deps)

	return &Service{
		cfg:            cfg,
		router:         router,
		deps:           deps,
		shutdownTracer: shutdown,
	}, nil
}

// Run serves HTTP until the listener fails. Blocks.
func (s *Service) Run() error {
	defer s.shutdownTracer(context.Background())
	slog.Info("Starting the orchestrator server", "port", s.cfg.Port)
	return s.router.Run(":" + s.cfg.Port)
}

// connectWeaviate builds a client from WEAVIATE_SERVICE_URL and bootstraps
// the schema. Returns nil when the URL is missing or invalid.
func connectWeaviate() *weaviate.Client {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid", "url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := index.EnsureChunkSchema(ctx, client); err != nil {
		slog.Error("Failed to ensure chunk schema", "error", err)
		return nil
	}
	if err := store.EnsureStorageSchema(ctx, client); err != nil {
		slog.Error("Failed to ensure storage schema", "error", err)
		return nil
	}
	return client
}

func buildEmbedder(backend string) (embedding.Client, error) {
	switch backend {
	case "openai":
		slog.Info("Using OpenAI embedding backend")
		return embedding.NewOpenAIEmbedder()
	case "http", "":
		slog.Info("Using HTTP embedding backend")
		return embedding.NewHTTPEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}

func buildLLMClient(backend string) (llm.LLMClient, error) {
	switch backend {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "ollama", "":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", backend)
	}
}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}
