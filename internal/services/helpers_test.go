package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/intellbee/internal/auth"
	"github.com/markdave123-py/intellbee/internal/core"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/store"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]core.Part
}

func (f *fakeLLM) Generate(_ context.Context, parts []core.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, parts)
	return f.reply, f.err
}

func (f *fakeLLM) lastCall() []core.Part {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// flakyDocs fails the next n reads with err, like a dropped S3 or
// Postgres connection.
type flakyDocs struct {
	*store.MemoryDocuments

	mu    sync.Mutex
	fails int
	err   error
}

func (f *flakyDocs) failReads(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails, f.err = n, err
}

func (f *flakyDocs) ReadDocument(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.MemoryDocuments.ReadDocument(ctx, name)
}

type fixture struct {
	docs  *flakyDocs
	store *store.JSONStore
	users *UserService
	chat  *ChatService
	llm   *fakeLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Discard()
	docs := &flakyDocs{MemoryDocuments: store.NewMemoryDocuments()}
	st := store.New(docs, log)
	if err := st.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	llm := &fakeLLM{reply: "  model says hi \n"}
	users := NewUserService(st, auth.NewTokens("test-secret", time.Hour), log)
	return &fixture{
		docs:  docs,
		store: st,
		users: users,
		chat:  NewChatService(st, llm, users, "INTELLBEE", log),
		llm:   llm,
	}
}
