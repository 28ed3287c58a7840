package app

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/intellbee/internal/auth"
	"github.com/markdave123-py/intellbee/internal/config"
	"github.com/markdave123-py/intellbee/internal/core"
	db "github.com/markdave123-py/intellbee/internal/core/database"
	"github.com/markdave123-py/intellbee/internal/core/filestore"
	"github.com/markdave123-py/intellbee/internal/core/llm"
	objectclient "github.com/markdave123-py/intellbee/internal/core/object-client"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/services"
	"github.com/markdave123-py/intellbee/internal/store"
)

type App struct {
	Documents core.DocumentStore
	LLM       *llm.GeminiLLM
	Server    *Server
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	docs, err := NewDocumentStore(appCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize %s storage: %w", cfg.StorageBackend, err)
	}

	st := store.New(docs, log)
	if err := st.Bootstrap(appCtx); err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("bootstrap storage: %w", err)
	}
	log.Info(appCtx, "Storage initialized and ready.", "backend", cfg.StorageBackend)

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTExpireMins)*time.Minute)
	users := services.NewUserService(st, tokens, log)
	chat := services.NewChatService(st, llmProvider, users, cfg.AssistantName, log).
		WithProviderTimeout(time.Duration(cfg.ProviderTimeout) * time.Second)

	return &App{
		Documents: docs,
		LLM:       llmProvider,
		Server:    NewServer(cfg, users, chat, log),
	}, nil
}

// NewDocumentStore picks the storage backend named in the config.
func NewDocumentStore(ctx context.Context, cfg *config.Config, log logging.Logger) (core.DocumentStore, error) {
	var (
		docs core.DocumentStore
		err  error
	)
	switch cfg.StorageBackend {
	case config.StorageFile, "":
		docs, err = filestore.NewFileStore(cfg.DataDir)
	case config.StoragePostgres:
		docs, err = db.NewDatabaseClient(ctx, cfg)
	case config.StorageS3:
		docs, err = objectclient.NewS3Client(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.Documents != nil {
		_ = a.Documents.Close()
	}
}
