package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/intellbee/internal/core"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/models"
)

// Document names.
const (
	UsersDocument   = "users"
	HistoryDocument = "conversations"
)

type usersDocument struct {
	Users []models.User `json:"users"`
}

// JSONStore keeps the user list and the conversation history as two JSON
// documents on top of any DocumentStore. Every save rewrites the whole
// document.
type JSONStore struct {
	docs core.DocumentStore
	log  logging.Logger

	// historyMu serializes the read-modify-write of the shared history
	// document. It does not help across processes.
	historyMu sync.Mutex
}

func New(docs core.DocumentStore, log logging.Logger) *JSONStore {
	return &JSONStore{docs: docs, log: log.With("component", "store")}
}

// Bootstrap creates both documents with empty defaults when they do not exist yet.
func (s *JSONStore) Bootstrap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ensure(gctx, UsersDocument, usersDocument{Users: []models.User{}})
	})
	g.Go(func() error {
		return s.ensure(gctx, HistoryDocument, emptyHistoryDocument())
	})
	return g.Wait()
}

func (s *JSONStore) ensure(ctx context.Context, name string, def any) error {
	_, err := s.docs.ReadDocument(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrDocumentNotFound) {
		return fmt.Errorf("check %s: %w", name, err)
	}
	if err := s.write(ctx, name, def); err != nil {
		return err
	}
	s.log.Info(ctx, "created document", "name", name)
	return nil
}

// LoadUsers is the read-only view of the user list. Any read failure,
// including a backend error, degrades to an empty list.
func (s *JSONStore) LoadUsers(ctx context.Context) []models.User {
	users, err := s.UsersForUpdate(ctx)
	if err != nil {
		s.warnRead(ctx, UsersDocument, err)
		return []models.User{}
	}
	return users
}

// UsersForUpdate loads the user list ahead of a save. Only a missing or
// malformed document falls back to empty; backend errors are returned so the
// caller does not overwrite accounts it could not see.
func (s *JSONStore) UsersForUpdate(ctx context.Context) ([]models.User, error) {
	var doc usersDocument
	ok, err := s.read(ctx, UsersDocument, &doc)
	if err != nil {
		return nil, err
	}
	if !ok || doc.Users == nil {
		return []models.User{}, nil
	}
	return doc.Users, nil
}

func (s *JSONStore) SaveUsers(ctx context.Context, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	return s.write(ctx, UsersDocument, usersDocument{Users: users})
}

// LoadHistory returns the record for email, or an empty one when the
// document cannot be read.
func (s *JSONStore) LoadHistory(ctx context.Context, email string) models.HistoryRecord {
	rec, err := s.HistoryForUpdate(ctx, email)
	if err != nil {
		s.warnRead(ctx, HistoryDocument, err)
		return models.EmptyHistory()
	}
	return rec
}

// HistoryForUpdate returns the record for email with the same fallback rules
// as UsersForUpdate. A legacy single-user document is upgraded in place
// first and handed to email.
func (s *JSONStore) HistoryForUpdate(ctx context.Context, email string) (models.HistoryRecord, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	doc, upgraded, err := s.readHistory(ctx, email)
	if err != nil {
		return models.HistoryRecord{}, err
	}
	if upgraded {
		if err := s.write(ctx, HistoryDocument, doc); err != nil {
			s.log.Warn(ctx, "persist upgraded history failed", "error", err)
		}
	}

	rec, ok := doc.Users[email]
	if !ok {
		return models.EmptyHistory(), nil
	}
	normalizeRecord(&rec)
	return rec, nil
}

// SaveHistory replaces the record for email. It refuses to write when the
// current document could not be fetched, since that would drop every other
// user's conversations.
func (s *JSONStore) SaveHistory(ctx context.Context, email string, rec models.HistoryRecord) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	doc, _, err := s.readHistory(ctx, email)
	if err != nil {
		return err
	}
	normalizeRecord(&rec)
	doc.Users[email] = rec
	return s.write(ctx, HistoryDocument, doc)
}

// readHistory loads the history document. Missing or malformed content
// yields an empty document; backend errors are returned. The bool reports
// whether a legacy shape was upgraded.
func (s *JSONStore) readHistory(ctx context.Context, owner string) (historyDocument, bool, error) {
	b, err := s.docs.ReadDocument(ctx, HistoryDocument)
	if errors.Is(err, core.ErrDocumentNotFound) {
		return emptyHistoryDocument(), false, nil
	}
	if err != nil {
		return historyDocument{}, false, fmt.Errorf("load %s: %w", HistoryDocument, err)
	}
	doc, legacy, err := decodeHistory(b)
	if err != nil {
		s.warnRead(ctx, HistoryDocument, err)
		return emptyHistoryDocument(), false, nil
	}
	if legacy == nil {
		return doc, false, nil
	}
	s.log.Info(ctx, "upgrading legacy history document", "owner", owner, "conversations", len(legacy.Conversations))
	return upgradeHistory(doc, *legacy, owner), true, nil
}

// read decodes the named document into v. It reports false for a missing or
// malformed document and an error only when the backend fails.
func (s *JSONStore) read(ctx context.Context, name string, v any) (bool, error) {
	b, err := s.docs.ReadDocument(ctx, name)
	if errors.Is(err, core.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		s.warnRead(ctx, name, err)
		return false, nil
	}
	return true, nil
}

func (s *JSONStore) warnRead(ctx context.Context, name string, err error) {
	s.log.Warn(ctx, "document unreadable, using empty default", "name", name, "error", err)
}

func (s *JSONStore) write(ctx context.Context, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.docs.WriteDocument(ctx, name, b); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

var _ core.Store = (*JSONStore)(nil)
