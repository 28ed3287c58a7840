package store

import (
	"encoding/json"
	"fmt"

	"github.com/markdave123-py/intellbee/internal/models"
)

const (
	historyV1 = 1 // {"conversations": [...]}, one implicit owner
	historyV2 = 2 // {"version": 2, "users": {email: {"conversations": [...]}}}
)

// historyDocument is the current on-disk shape of the conversations document.
type historyDocument struct {
	Version int                             `json:"version"`
	Users   map[string]models.HistoryRecord `json:"users"`
}

func emptyHistoryDocument() historyDocument {
	return historyDocument{Version: historyV2, Users: map[string]models.HistoryRecord{}}
}

// rawHistory holds every shape the conversations document has ever had.
type rawHistory struct {
	Version       int                             `json:"version"`
	Users         map[string]models.HistoryRecord `json:"users"`
	Conversations []models.Conversation           `json:"conversations"`
	fields        map[string]json.RawMessage
}

func (r *rawHistory) schema() int {
	if r.Version != 0 {
		return r.Version
	}
	if _, ok := r.fields["users"]; ok {
		return historyV2
	}
	if _, ok := r.fields["conversations"]; ok {
		return historyV1
	}
	return historyV2
}

// decodeHistory parses the document and reports whether it was a legacy
// shape. Legacy conversations come back separately so the caller can decide
// who owns them.
func decodeHistory(b []byte) (doc historyDocument, legacy *models.HistoryRecord, err error) {
	var raw rawHistory
	if err := json.Unmarshal(b, &raw.fields); err != nil {
		return historyDocument{}, nil, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return historyDocument{}, nil, fmt.Errorf("decode history: %w", err)
	}

	switch v := raw.schema(); v {
	case historyV1:
		rec := models.HistoryRecord{Conversations: raw.Conversations}
		normalizeRecord(&rec)
		return emptyHistoryDocument(), &rec, nil
	case historyV2:
		doc = historyDocument{Version: historyV2, Users: raw.Users}
		if doc.Users == nil {
			doc.Users = map[string]models.HistoryRecord{}
		}
		return doc, nil, nil
	default:
		return historyDocument{}, nil, fmt.Errorf("unsupported history version %d", v)
	}
}

// upgradeHistory moves a legacy record into the per-user map under owner.
func upgradeHistory(doc historyDocument, legacy models.HistoryRecord, owner string) historyDocument {
	if _, taken := doc.Users[owner]; !taken {
		doc.Users[owner] = legacy
	}
	return doc
}

func normalizeRecord(rec *models.HistoryRecord) {
	if rec.Conversations == nil {
		rec.Conversations = []models.Conversation{}
	}
	for i := range rec.Conversations {
		if rec.Conversations[i].Messages == nil {
			rec.Conversations[i].Messages = []models.Message{}
		}
	}
}
