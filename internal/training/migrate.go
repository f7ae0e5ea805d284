package training

import (
	log "github.com/sirupsen/logrus"
)

// Migrate normalizes a freshly loaded or freshly restored state:
//   - clients without an id get one assigned, in sequence order
//   - progress records and events carrying a legacy positional client
//     reference are rewritten to the id of the client that sat at that
//     position, or dropped when the position does not resolve
//   - settings get default-filled when absent
//
// Records with neither a client id nor a legacy index pass through
// unchanged. Running Migrate twice yields the same state as running it
// once. Returns true when anything was changed.
func Migrate(state *State) bool {
	changed := normalizeCollections(state)

	// the index -> id table is built from the positions at the time of
	// this pass and consumed only during this pass
	indexToID := make(map[int]string, len(state.Clients))
	for i := range state.Clients {
		if state.Clients[i].ID == "" {
			state.Clients[i].ID = NewID(clientIDPrefix)
			changed = true
		}
		indexToID[i] = state.Clients[i].ID
	}

	progress := make([]ProgressRecord, 0, len(state.Progress))
	for _, rec := range state.Progress {
		clientID, keep, recChanged := resolveClientRef(rec.ClientID, rec.ClientIndex, indexToID)
		if !keep {
			log.Debugf("migration: dropping progress record [%s] with dangling client index %d", rec.Date, *rec.ClientIndex)
			changed = true
			continue
		}
		if recChanged {
			rec.ClientID = clientID
			rec.ClientIndex = nil
			changed = true
		}
		progress = append(progress, rec)
	}
	state.Progress = progress

	events := make([]CalendarEvent, 0, len(state.Events))
	for _, ev := range state.Events {
		clientID, keep, evChanged := resolveClientRef(ev.ClientID, ev.ClientIndex, indexToID)
		if !keep {
			log.Debugf("migration: dropping event [%s] with dangling client index %d", ev.Date, *ev.ClientIndex)
			changed = true
			continue
		}
		if evChanged {
			ev.ClientID = clientID
			ev.ClientIndex = nil
			changed = true
		}
		events = append(events, ev)
	}
	state.Events = events

	if state.Settings.Theme == "" {
		state.Settings.Theme = ThemeLight
		changed = true
	}
	if state.Settings.Language == "" {
		state.Settings.Language = LanguageEnglish
		changed = true
	}

	return changed
}

// resolveClientRef decides the fate of one progress record / event:
// keep reports whether the record survives, changed whether its client
// reference needs rewriting to the returned id
func resolveClientRef(clientID string, clientIndex *int, indexToID map[int]string) (_ string, keep, changed bool) {
	if clientID != "" {
		// already id-keyed; a stray leftover index is removed to keep
		// the post-migration shape index-free
		return clientID, true, clientIndex != nil
	}
	if clientIndex == nil {
		// neither reference present: a latent legacy inconsistency,
		// preserved as-is rather than silently destroyed
		return "", true, false
	}
	id, ok := indexToID[*clientIndex]
	if !ok {
		return "", false, false
	}
	return id, true, true
}

func normalizeCollections(state *State) bool {
	changed := false
	if state.Clients == nil {
		state.Clients = []Client{}
		changed = true
	}
	if state.Programs == nil {
		state.Programs = []Program{}
		changed = true
	}
	if state.Exercises == nil {
		state.Exercises = []Exercise{}
		changed = true
	}
	if state.Progress == nil {
		state.Progress = []ProgressRecord{}
		changed = true
	}
	if state.Events == nil {
		state.Events = []CalendarEvent{}
		changed = true
	}
	return changed
}
