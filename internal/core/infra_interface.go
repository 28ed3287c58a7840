package core

import (
	"context"
	"errors"

	"github.com/markdave123-py/intellbee/internal/models"
)

// ErrDocumentNotFound is returned by a DocumentStore when the named
// document has never been written.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore persists whole named documents. Backends are file, Postgres
// and S3; each write replaces the previous body entirely.
type DocumentStore interface {
	ReadDocument(ctx context.Context, name string) ([]byte, error)
	WriteDocument(ctx context.Context, name string, body []byte) error
	Close() error
}

// Store is the persistence contract used by the services. The Load methods
// never fail: an unreadable document degrades to its empty default. The
// ForUpdate methods feed a later save, so they only fall back for a missing
// or malformed document and return backend errors.
type Store interface {
	LoadUsers(ctx context.Context) []models.User
	UsersForUpdate(ctx context.Context) ([]models.User, error)
	SaveUsers(ctx context.Context, users []models.User) error

	LoadHistory(ctx context.Context, email string) models.HistoryRecord
	HistoryForUpdate(ctx context.Context, email string) (models.HistoryRecord, error)
	SaveHistory(ctx context.Context, email string, rec models.HistoryRecord) error
}
