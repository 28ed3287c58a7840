package models

const (
	DefaultLang  = "en-US"
	DefaultVoice = "female"

	// CreatedLayout formats Conversation.Created.
	CreatedLayout = "2006-01-02T15:04:05.000000"
)

// Supported values for Prefs.
var (
	AllowedLangs  = map[string]bool{"en-US": true, "ta-IN": true, "hi-IN": true}
	AllowedVoices = map[string]bool{"male": true, "female": true}
)

// Message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Prefs holds per-user UI preferences.
type Prefs struct {
	Lang        string `json:"lang"`
	VoiceGender string `json:"voiceGender"`
}

// DefaultPrefs are applied to every new account.
func DefaultPrefs() Prefs {
	return Prefs{Lang: DefaultLang, VoiceGender: DefaultVoice}
}

// User represents a registered account. Email is the identity key and is
// always stored lowercased.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Prefs    Prefs  `json:"prefs"`
}

// Profile is the public view of a User.
type Profile struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Prefs    Prefs  `json:"prefs"`
}

func (u User) Profile() Profile {
	return Profile{Email: u.Email, Name: u.Name, Username: u.Username, Prefs: u.Prefs}
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Conversation is an ordered thread of messages owned by one user.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Created  string    `json:"created"`
}

// HistoryRecord is everything stored for one user, most recently touched
// conversation first.
type HistoryRecord struct {
	Conversations []Conversation `json:"conversations"`
}

// EmptyHistory returns a record with a non-nil conversation list so it
// encodes as [] rather than null.
func EmptyHistory() HistoryRecord {
	return HistoryRecord{Conversations: []Conversation{}}
}
