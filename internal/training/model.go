package training

import (
	"encoding/json"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	LanguageEnglish = "en"
	LanguageFarsi   = "fa"
)

// Client is a training subject tracked by the system.
// Age and weight are kept as optional numeric-as-string values for
// backward compatibility with existing backup documents.
type Client struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Age    *string `json:"age,omitempty"`
	Weight *string `json:"weight,omitempty"`
}

// Program is a named ordered list of exercise names, with no
// references to other collections
type Program struct {
	Name      string   `json:"name"`
	Exercises []string `json:"exercises"`
}

// Exercise is a reusable exercise template
type Exercise struct {
	Name   string  `json:"name"`
	Muscle *string `json:"muscle,omitempty"`
}

// ProgressRecord is a dated weight measurement tied to one client.
// ClientIndex is the legacy positional reference (index in the client
// sequence at the time of writing), only ever seen in older persisted
// or imported snapshots - migration resolves it into ClientID.
type ProgressRecord struct {
	ClientID    string  `json:"clientId,omitempty"`
	ClientIndex *int    `json:"clientIndex,omitempty"`
	Date        string  `json:"date"`
	Weight      *string `json:"weight,omitempty"`
}

// CalendarEvent is a dated session/note tied to one client,
// with the same legacy positional reference rule as ProgressRecord
type CalendarEvent struct {
	ClientID    string  `json:"clientId,omitempty"`
	ClientIndex *int    `json:"clientIndex,omitempty"`
	Date        string  `json:"date"`
	Note        *string `json:"note,omitempty"`
}

// Settings holds the UI preferences. Unknown sibling fields found in
// older or foreign backup documents are preserved across load/save.
type Settings struct {
	Theme    string
	Language string

	extra map[string]json.RawMessage
}

func DefaultSettings() Settings {
	return Settings{
		Theme:    ThemeLight,
		Language: LanguageEnglish,
	}
}

func ValidTheme(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark
}

func ValidLanguage(language string) bool {
	return language == LanguageEnglish || language == LanguageFarsi
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["theme"]; ok {
		if err := json.Unmarshal(v, &s.Theme); err != nil {
			return err
		}
		delete(raw, "theme")
	}
	if v, ok := raw["language"]; ok {
		if err := json.Unmarshal(v, &s.Language); err != nil {
			return err
		}
		delete(raw, "language")
	}

	if len(raw) > 0 {
		s.extra = raw
	}

	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.extra)+2)
	for k, v := range s.extra {
		out[k] = v
	}

	theme, err := json.Marshal(s.Theme)
	if err != nil {
		return nil, err
	}
	out["theme"] = theme

	language, err := json.Marshal(s.Language)
	if err != nil {
		return nil, err
	}
	out["language"] = language

	return json.Marshal(out)
}

// State is the whole persisted document: the five collections plus
// settings, in the exact shape of the single persisted JSON slot
type State struct {
	Clients   []Client         `json:"clients"`
	Programs  []Program        `json:"programs"`
	Exercises []Exercise       `json:"exercises"`
	Progress  []ProgressRecord `json:"progress"`
	Events    []CalendarEvent  `json:"events"`
	Settings  Settings         `json:"settings"`
}

// NewState returns an empty state with all collections present,
// so an exported document always carries all six keys
func NewState() *State {
	return &State{
		Clients:   []Client{},
		Programs:  []Program{},
		Exercises: []Exercise{},
		Progress:  []ProgressRecord{},
		Events:    []CalendarEvent{},
		Settings:  DefaultSettings(),
	}
}
