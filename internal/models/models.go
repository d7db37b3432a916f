package models

import (
	"time"

	"github.com/google/uuid"
)

// Language describes a resolved language preference for one turn.
// The engine only reads it; cross-turn preference memory belongs to the caller.
type Language struct {
	Code string // BCP-47 code, e.g. "de"
	Name string // human-readable name used inside prompts, e.g. "German"
}

var languageNames = map[string]string{
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"hu": "Hungarian",
	"it": "Italian",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
}

// LanguageFromCode resolves a stored language code to a Language descriptor.
// Unknown codes keep the code as display name.
func LanguageFromCode(code string) Language {
	if name, ok := languageNames[code]; ok {
		return Language{Code: code, Name: name}
	}
	return Language{Code: code, Name: code}
}

// Candidate is a party's top candidate as supplied by persistence.
type Candidate struct {
	GivenName  string `db:"given_name" json:"given_name"`
	FamilyName string `db:"family_name" json:"family_name"`
}

// Party is a discussion target. Records are immutable for the duration of a
// turn; the engine never writes them back.
type Party struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ShortName   string    `db:"shortname" json:"shortname"`
	FullName    string    `db:"fullname" json:"fullname"`
	Description string    `db:"description" json:"description"`
	URL         string    `db:"url" json:"url"`
	Candidate   Candidate `db:"-" json:"candidate"`
}

// Election carries the immutable election context for a turn.
type Election struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Name    string    `db:"name" json:"name"`
	Country string    `db:"country" json:"country"`
	Year    int       `db:"year" json:"year"`
	Date    time.Time `db:"election_date" json:"date"`
	URL     string    `db:"url" json:"url"`
	// DefaultLanguage is the response language used when the caller does not
	// override it.
	DefaultLanguage string `db:"default_language" json:"default_language"`
	// ManifestoLanguage is the language the grounding documents are written in.
	ManifestoLanguage string `db:"manifesto_language" json:"manifesto_language"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of conversation history as supplied by the caller.
type ChatMessage struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage builds a user message with a fresh id.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message with a fresh id.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Role: RoleAssistant, Content: content}
}

// DocumentChunk is one retrieved grounding passage, ordered by relevance.
type DocumentChunk struct {
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// WebSource is a normalized live web-search citation.
type WebSource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}
