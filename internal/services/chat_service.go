package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markdave123-py/intellbee/internal/core"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/models"
)

const (
	contextMessages = 8
	titleMaxRunes   = 30

	defaultImagePrompt = "Describe this image in detail."
	defaultAudioPrompt = "Transcribe and analyze this audio in detail."
	defaultImageMIME   = "image/png"
	defaultAudioMIME   = "audio/webm"
)

// Attachment is an uploaded file forwarded to the provider as raw bytes.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

type ChatInput struct {
	ChatID string
	Text   string
	Lang   string
	Image  *Attachment
	Audio  *Attachment
}

type ChatResult struct {
	Reply         string                `json:"response"`
	ChatID        string                `json:"chat_id"`
	Conversations []models.Conversation `json:"conversations"`
}

// LangResolver supplies the stored language preference of a user.
type LangResolver interface {
	PreferredLang(ctx context.Context, email string) string
}

type ChatService struct {
	store     core.Store
	llm       core.LLMProvider
	langs     LangResolver
	assistant string
	timeout   time.Duration
	log       logging.Logger
	locks     *keyedMutex
	now       func() time.Time
}

func NewChatService(store core.Store, llm core.LLMProvider, langs LangResolver, assistant string, log logging.Logger) *ChatService {
	return &ChatService{
		store:     store,
		llm:       llm,
		langs:     langs,
		assistant: assistant,
		log:       log.With("component", "chat"),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// WithProviderTimeout bounds each provider call; zero means no bound.
func (s *ChatService) WithProviderTimeout(d time.Duration) *ChatService {
	s.timeout = d
	return s
}

// SendMessage appends the user's turn to a conversation, asks the provider
// for a reply and persists both. Nothing is saved when the provider fails.
func (s *ChatService) SendMessage(ctx context.Context, email string, in ChatInput) (*ChatResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == nil && in.Audio == nil {
		return nil, fmt.Errorf("%w: no message, image or audio provided", ErrValidation)
	}

	lang := strings.TrimSpace(in.Lang)
	if lang == "" {
		lang = s.langs.PreferredLang(ctx, email)
	}

	// one chat at a time per user so concurrent replies cannot overwrite each other
	unlock := s.locks.Lock(email)
	defer unlock()

	hist, err := s.store.HistoryForUpdate(ctx, email)
	if err != nil {
		return nil, err
	}
	hist.Conversations = s.bringToFront(hist.Conversations, strings.TrimSpace(in.ChatID), titleSeed(text, in))
	conv := &hist.Conversations[0]

	if text != "" {
		conv.Messages = append(conv.Messages, models.Message{Role: models.RoleUser, Content: text})
	}

	parts := buildParts(s.assistant, lang, renderContext(conv.Messages), text, in.Image, in.Audio)
	reply, err := s.generate(ctx, parts)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			s.log.Warn(ctx, "provider call timed out", "email", email, "chat_id", conv.ID, "timeout", s.timeout)
			return nil, err
		}
		s.log.Error(ctx, "provider call failed", "email", email, "chat_id", conv.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	reply = strings.TrimSpace(reply)

	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleModel, Content: reply})
	if err := s.store.SaveHistory(ctx, email, hist); err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "chat reply stored", "email", email, "chat_id", conv.ID, "lang", lang)

	return &ChatResult{Reply: reply, ChatID: conv.ID, Conversations: hist.Conversations}, nil
}

func (s *ChatService) generate(ctx context.Context, parts []core.Part) (string, error) {
	if s.timeout <= 0 {
		return s.llm.Generate(ctx, parts)
	}
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.llm.Generate(genCtx, parts)
	if err != nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("%w: no reply within %s", ErrTimeout, s.timeout)
	}
	return reply, err
}

// History returns the user's conversations, most recently touched first.
func (s *ChatService) History(ctx context.Context, email string) []models.Conversation {
	return s.store.LoadHistory(ctx, email).Conversations
}

// bringToFront moves the conversation with chatID to index 0, or prepends a
// new one when there is no match.
func (s *ChatService) bringToFront(convs []models.Conversation, chatID, seed string) []models.Conversation {
	if chatID != "" {
		for i, c := range convs {
			if c.ID != chatID {
				continue
			}
			out := make([]models.Conversation, 0, len(convs))
			out = append(out, c)
			out = append(out, convs[:i]...)
			return append(out, convs[i+1:]...)
		}
	}

	conv := models.Conversation{
		ID:       nextChatID(convs),
		Title:    truncateRunes(seed, titleMaxRunes),
		Messages: []models.Message{},
		Created:  s.now().Format(models.CreatedLayout),
	}
	return append([]models.Conversation{conv}, convs...)
}

// nextChatID numbers conversations chat_<n> by count, skipping ids that are
// already taken.
func nextChatID(convs []models.Conversation) string {
	taken := make(map[string]bool, len(convs))
	for _, c := range convs {
		taken[c.ID] = true
	}
	for n := len(convs); ; n++ {
		if id := fmt.Sprintf("chat_%d", n); !taken[id] {
			return id
		}
	}
}

func titleSeed(text string, in ChatInput) string {
	switch {
	case text != "":
		return text
	case in.Image != nil && in.Image.Filename != "":
		return in.Image.Filename
	case in.Audio != nil && in.Audio.Filename != "":
		return in.Audio.Filename
	default:
		return "Chat"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// renderContext labels the trailing messages for the prompt.
func renderContext(msgs []models.Message) string {
	if len(msgs) > contextMessages {
		msgs = msgs[len(msgs)-contextMessages:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := "Assistant"
		if m.Role == models.RoleUser {
			role = "User"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// buildParts lays out the provider request: preamble, instruction, blobs.
func buildParts(assistant, lang, history, text string, image, audio *Attachment) []core.Part {
	preamble := fmt.Sprintf(
		"You are %s. Always respond in %s.\n"+
			"Give thorough, structured, step-by-step, long and detailed answers with examples when helpful.\n"+
			"Use the recent conversation context to remain consistent.\n\nContext:\n%s\n\n",
		assistant, lang, history)

	instruction := text
	var blobs []core.Part
	if image != nil {
		blobs = append(blobs, core.BlobPart(mimeOr(image.MIMEType, defaultImageMIME), image.Data))
		if instruction == "" {
			instruction = defaultImagePrompt
		}
	}
	if audio != nil {
		blobs = append(blobs, core.BlobPart(mimeOr(audio.MIMEType, defaultAudioMIME), audio.Data))
		if instruction == "" {
			instruction = defaultAudioPrompt
		}
	}

	parts := []core.Part{core.TextPart(preamble)}
	if instruction != "" {
		parts = append(parts, core.TextPart(instruction))
	}
	return append(parts, blobs...)
}

func mimeOr(mime, fallback string) string {
	if mime == "" || mime == "application/octet-stream" {
		return fallback
	}
	return mime
}
