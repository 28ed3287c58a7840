package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/intellbee/internal/auth"
	"github.com/markdave123-py/intellbee/internal/core"
	"github.com/markdave123-py/intellbee/internal/logging"
	"github.com/markdave123-py/intellbee/internal/models"
)

// Session is what signup and login hand back to the client.
type Session struct {
	Token string `json:"token"`
	models.Profile
}

type SignupInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UserService owns the user list: accounts, credentials and preferences.
type UserService struct {
	store  core.Store
	tokens *auth.Tokens
	log    logging.Logger

	// mu guards the load-modify-save cycle on the users document.
	mu sync.Mutex
}

func NewUserService(store core.Store, tokens *auth.Tokens, log logging.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, log: log.With("component", "users")}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	password := strings.TrimSpace(in.Password)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password required", ErrValidation)
	}
	if username == "" {
		username = strings.Split(name, " ")[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.UsersForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := findUser(users, email); ok {
		return nil, fmt.Errorf("%w: user already exists", ErrConflict)
	}

	user := models.User{
		Name:     name,
		Username: username,
		Email:    email,
		Password: string(hash),
		Prefs:    models.DefaultPrefs(),
	}
	if err := s.store.SaveUsers(ctx, append(users, user)); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user signed up", "email", email)

	return s.session(user)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	users := s.store.LoadUsers(ctx)
	i, ok := findUser(users, email)
	if !ok {
		return nil, fmt.Errorf("%w: invalid credentials", ErrAuth)
	}
	user := users[i]
	if !passwordMatches(user.Password, password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrAuth)
	}
	return s.session(user)
}

// Verify resolves a bearer token to the email it was issued for.
func (s *UserService) Verify(token string) (string, error) {
	email, err := s.tokens.Subject(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return email, nil
}

func (s *UserService) Profile(ctx context.Context, email string) (models.Profile, error) {
	users := s.store.LoadUsers(ctx)
	i, ok := findUser(users, email)
	if !ok {
		return models.Profile{}, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	return users[i].Profile(), nil
}

// UpdatePrefs applies lang and voiceGender when they are supported values
// and silently ignores them otherwise.
func (s *UserService) UpdatePrefs(ctx context.Context, email, lang, voiceGender string) (models.Prefs, error) {
	lang = strings.TrimSpace(lang)
	voiceGender = strings.TrimSpace(voiceGender)

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.UsersForUpdate(ctx)
	if err != nil {
		return models.Prefs{}, err
	}
	i, ok := findUser(users, email)
	if !ok {
		return models.Prefs{}, fmt.Errorf("%w: user not found", ErrNotFound)
	}

	prefs := &users[i].Prefs
	if models.AllowedLangs[lang] {
		prefs.Lang = lang
	}
	if models.AllowedVoices[voiceGender] {
		prefs.VoiceGender = voiceGender
	}

	if err := s.store.SaveUsers(ctx, users); err != nil {
		return models.Prefs{}, err
	}
	return *prefs, nil
}

// PreferredLang returns the stored language for email, or the default.
func (s *UserService) PreferredLang(ctx context.Context, email string) string {
	users := s.store.LoadUsers(ctx)
	if i, ok := findUser(users, email); ok && users[i].Prefs.Lang != "" {
		return users[i].Prefs.Lang
	}
	return models.DefaultLang
}

func (s *UserService) session(user models.User) (*Session, error) {
	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Profile: user.Profile()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findUser(users []models.User, email string) (int, bool) {
	email = normalizeEmail(email)
	for i, u := range users {
		if normalizeEmail(u.Email) == email {
			return i, true
		}
	}
	return -1, false
}

// passwordMatches accepts bcrypt hashes and, for records written before
// hashing was introduced, plaintext equality.
func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return stored == given
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
