package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func TestMigrate_assignsMissingClientIDs(t *testing.T) {
	state := &State{
		Clients: []Client{
			{Name: "Ana"},
			{ID: "existing-id", Name: "Bojan"},
			{Name: "Ceca"},
		},
	}

	changed := Migrate(state)
	assert.True(t, changed)

	assert.NotEmpty(t, state.Clients[0].ID)
	assert.Equal(t, "existing-id", state.Clients[1].ID)
	assert.NotEmpty(t, state.Clients[2].ID)
	assert.NotEqual(t, state.Clients[0].ID, state.Clients[2].ID)
}

func TestMigrate_resolvesLegacyIndexes(t *testing.T) {
	state := &State{
		Clients: []Client{
			{Name: "A"},
			{Name: "B"},
		},
		Progress: []ProgressRecord{
			{ClientIndex: intPtr(1), Date: "2024-01-01", Weight: strPtr("70")},
		},
		Events: []CalendarEvent{
			{ClientIndex: intPtr(0), Date: "2024-02-02", Note: strPtr("leg day")},
		},
	}

	changed := Migrate(state)
	assert.True(t, changed)

	require.Len(t, state.Progress, 1)
	assert.Equal(t, state.Clients[1].ID, state.Progress[0].ClientID)
	assert.Nil(t, state.Progress[0].ClientIndex)
	assert.Equal(t, "2024-01-01", state.Progress[0].Date)

	require.Len(t, state.Events, 1)
	assert.Equal(t, state.Clients[0].ID, state.Events[0].ClientID)
	assert.Nil(t, state.Events[0].ClientIndex)
}

func TestMigrate_dropsDanglingLegacyIndexes(t *testing.T) {
	state := &State{
		Clients: []Client{
			{Name: "A"},
			{Name: "B"},
		},
		Progress: []ProgressRecord{
			{ClientIndex: intPtr(5), Date: "2024-01-01"},
			{ClientIndex: intPtr(0), Date: "2024-01-02"},
		},
		Events: []CalendarEvent{
			{ClientIndex: intPtr(-1), Date: "2024-01-03"},
		},
	}

	Migrate(state)

	require.Len(t, state.Progress, 1)
	assert.Equal(t, "2024-01-02", state.Progress[0].Date)
	assert.Empty(t, state.Events)
}

func TestMigrate_recordsWithClientIDPassThrough(t *testing.T) {
	state := &State{
		Clients: []Client{
			{ID: "c-1", Name: "A"},
		},
		Progress: []ProgressRecord{
			{ClientID: "c-1", Date: "2024-01-01"},
		},
	}

	changed := Migrate(state)

	require.Len(t, state.Progress, 1)
	assert.Equal(t, "c-1", state.Progress[0].ClientID)
	// only the nil collections were normalized
	assert.True(t, changed)
	assert.NotNil(t, state.Programs)
}

func TestMigrate_stripsStrayIndexWhenIDPresent(t *testing.T) {
	state := &State{
		Clients: []Client{
			{ID: "c-1", Name: "A"},
		},
		Events: []CalendarEvent{
			{ClientID: "c-1", ClientIndex: intPtr(0), Date: "2024-01-01"},
		},
	}

	Migrate(state)

	require.Len(t, state.Events, 1)
	assert.Equal(t, "c-1", state.Events[0].ClientID)
	assert.Nil(t, state.Events[0].ClientIndex)
}

// a record with neither clientId nor clientIndex is malformed legacy
// data: it is preserved unchanged, not dropped
func TestMigrate_preservesUnassignedRecords(t *testing.T) {
	state := &State{
		Progress: []ProgressRecord{
			{Date: "2024-01-01", Weight: strPtr("80")},
		},
	}

	Migrate(state)

	require.Len(t, state.Progress, 1)
	assert.Empty(t, state.Progress[0].ClientID)
	assert.Nil(t, state.Progress[0].ClientIndex)
}

func TestMigrate_settingsDefaults(t *testing.T) {
	state := &State{}

	Migrate(state)

	assert.Equal(t, ThemeLight, state.Settings.Theme)
	assert.Equal(t, LanguageEnglish, state.Settings.Language)

	state = &State{
		Settings: Settings{Theme: ThemeDark, Language: LanguageFarsi},
	}

	Migrate(state)

	assert.Equal(t, ThemeDark, state.Settings.Theme)
	assert.Equal(t, LanguageFarsi, state.Settings.Language)
}

func TestMigrate_idempotent(t *testing.T) {
	state := &State{
		Clients: []Client{
			{Name: "A"},
			{Name: "B"},
		},
		Progress: []ProgressRecord{
			{ClientIndex: intPtr(0), Date: "2024-01-01"},
			{ClientIndex: intPtr(7), Date: "2024-01-02"},
			{Date: "2024-01-03"},
		},
		Events: []CalendarEvent{
			{ClientIndex: intPtr(1), Date: "2024-01-04"},
		},
	}

	changed := Migrate(state)
	assert.True(t, changed)

	afterFirst := *state
	changed = Migrate(state)
	assert.False(t, changed)
	assert.Equal(t, afterFirst, *state)
}
