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

	"github.com/joho/godotenv"

	"github.com/tamerwork/llm-gateway/internal/config"
	"github.com/tamerwork/llm-gateway/internal/handler"
	"github.com/tamerwork/llm-gateway/internal/observer"
	"github.com/tamerwork/llm-gateway/internal/policy"
	chatservice "github.com/tamerwork/llm-gateway/internal/service/chat"
	"github.com/tamerwork/llm-gateway/internal/service/llm"
	"github.com/tamerwork/llm-gateway/internal/stats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	engine, err := newPolicyEngine(cfg.Policy)
	if err != nil {
		log.Fatalf("failed to load governance policy: %v", err)
	}
	log.Printf("governance policy active with %d rule(s)", len(engine.Rules()))

	store := stats.NewStore()
	registry := observer.NewRegistry(store)
	sessions := chatservice.NewService()

	var backend llm.Backend = llm.Disabled{}
	if cfg.AI.Enabled() {
		arkBackend, err := llm.NewArkBackend(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize LLM backend: %v", err)
			log.Println("continuing without generation - chat requests will report errors")
		} else {
			backend = arkBackend
			log.Println("LLM backend initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, chat requests will report errors")
	}

	router := handler.NewRouter(engine, store, registry, sessions, backend)

	startServer(ctx, cfg.Server, router)
}

func newPolicyEngine(cfg config.PolicyConfig) (*policy.Engine, error) {
	rules := policy.Seed()
	if cfg.File != "" {
		loaded, err := policy.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		rules = loaded
		log.Printf("loaded policy rules from %s", cfg.File)
	}
	return policy.NewEngine(rules)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("LLM gateway listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
