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

	"github.com/zhouzirui/clone-chat/backend/internal/config"
	"github.com/zhouzirui/clone-chat/backend/internal/handler"
	analysisModel "github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
	"github.com/zhouzirui/clone-chat/backend/internal/service/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Missing credentials are not fatal: every chat turn reports them instead.
	generator, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize %s generator: %v", cfg.AI.Provider, err)
		log.Println("continuing without AI functionality")
	} else if generator == nil {
		log.Printf("%s credentials not configured, chat replies will report the missing key", cfg.AI.Provider)
	} else {
		log.Printf("AI generator initialized (provider=%s)", cfg.AI.Provider)
	}

	tmpl := ai.NewPromptManager().TemplateOrDefault(cfg.AI.Locale)
	client := ai.NewClient(generator, cfg.AI.Credential(), tmpl)

	store, closeStore := openAnalysisStore(cfg.Analysis)
	defer closeStore()

	chatService := chat.NewService(client, tmpl, store)
	extractor := analysis.NewExtractor(client, store)

	if ttl := cfg.Chat.SessionTTL; ttl > 0 {
		go chatService.RunSweeper(ctx, sweepInterval(ttl), ttl)
		log.Printf("idle sessions expire after %s", ttl)
	}

	router := handler.NewRouter(chatService, extractor, cfg.Chat.RevealEnabled)

	startServer(ctx, cfg.Server, router)
}

// sweepInterval checks a few times per TTL, at most once a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

func openAnalysisStore(cfg config.AnalysisConfig) (analysisModel.Store, func()) {
	if cfg.StorePath == "" {
		log.Println("analysis results kept in memory")
		return analysisModel.NewMemoryStore(), func() {}
	}

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		log.Printf("warning: failed to open analysis store %s: %v", cfg.StorePath, err)
		log.Println("falling back to in-memory analysis store")
		return analysisModel.NewMemoryStore(), func() {}
	}

	log.Printf("analysis results persisted to %s", cfg.StorePath)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close analysis store: %v", err)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("clone-chat backend listening on %s", addr)
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
