package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/2beens/traintrack/internal/telemetry/metrics"
	"github.com/2beens/traintrack/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

// ErrRestoreParse - the imported document is not a well-formed state
// document; the one error users directly observe
var ErrRestoreParse = errors.New("malformed state document")

// Store owns the five collections and settings. Every mutation leaves the
// referential invariants intact and triggers a synchronous persist before
// returning; a failed persist is logged and the in-memory state stays
// usable for the current session.
//
// Mutations report an explicit applied/rejected outcome instead of an
// error: a rejected call (blank name, blank date, unknown id ...) is a
// deliberate no-op, not a failure.
type Store struct {
	mutex          sync.RWMutex
	state          *State
	persistence    persistence
	metricsManager *metrics.Manager
}

func NewStore(p persistence, metricsManager *metrics.Manager) *Store {
	state, found, err := p.Load()
	if err != nil {
		// keep the session alive with a fresh state; the broken
		// document stays on disk until the next successful persist
		log.Errorf("failed to load persisted state, starting fresh: %s", err)
		state = NewState()
	} else if !found {
		log.Debugln("no persisted state found, starting fresh")
		state = NewState()
	}

	s := &Store{
		state:          state,
		persistence:    p,
		metricsManager: metricsManager,
	}

	if Migrate(state) {
		log.Debugln("state migrated on load")
		s.persist()
	}
	s.setClientsGauge()

	return s
}

type AddClientParams struct {
	Name   string
	Age    *string
	Weight *string
}

func (s *Store) AddClient(ctx context.Context, params AddClientParams) (*Client, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.addClient")
	defer span.End()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	client := Client{
		ID:     NewID(clientIDPrefix),
		Name:   name,
		Age:    params.Age,
		Weight: params.Weight,
	}
	s.state.Clients = append(s.state.Clients, client)

	s.persist()
	s.setClientsGauge()

	return &client, true
}

// DeleteClient removes the client and cascades to every progress record
// and event referencing it. Idempotent: unknown ids report false.
func (s *Store) DeleteClient(ctx context.Context, id string) bool {
	_, span := tracing.GlobalTracer.Start(ctx, "store.deleteClient")
	defer span.End()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	found := false
	clients := make([]Client, 0, len(s.state.Clients))
	for _, c := range s.state.Clients {
		if c.ID == id {
			found = true
			continue
		}
		clients = append(clients, c)
	}
	if !found {
		return false
	}
	s.state.Clients = clients

	progress := make([]ProgressRecord, 0, len(s.state.Progress))
	for _, rec := range s.state.Progress {
		if rec.ClientID == id {
			continue
		}
		progress = append(progress, rec)
	}
	s.state.Progress = progress

	events := make([]CalendarEvent, 0, len(s.state.Events))
	for _, ev := range s.state.Events {
		if ev.ClientID == id {
			continue
		}
		events = append(events, ev)
	}
	s.state.Events = events

	s.persist()
	s.setClientsGauge()

	return true
}

type AddProgramParams struct {
	Name string
	// comma-separated exercise names, as typed in the program form
	ExercisesCSV string
}

func (s *Store) AddProgram(ctx context.Context, params AddProgramParams) (*Program, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.addProgram")
	defer span.End()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	program := Program{
		Name:      name,
		Exercises: splitExercises(params.ExercisesCSV),
	}
	s.state.Programs = append(s.state.Programs, program)

	s.persist()

	return &program, true
}

// DeleteProgram removes by current position: programs carry no identity
// beyond their position and nothing references them
func (s *Store) DeleteProgram(ctx context.Context, index int) bool {
	_, span := tracing.GlobalTracer.Start(ctx, "store.deleteProgram")
	defer span.End()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.state.Programs) {
		return false
	}
	s.state.Programs = append(s.state.Programs[:index], s.state.Programs[index+1:]...)

	s.persist()

	return true
}

type AddExerciseParams struct {
	Name   string
	Muscle *string
}

func (s *Store) AddExercise(ctx context.Context, params AddExerciseParams) (*Exercise, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.addExercise")
	defer span.End()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	exercise := Exercise{
		Name:   name,
		Muscle: params.Muscle,
	}
	s.state.Exercises = append(s.state.Exercises, exercise)

	s.persist()

	return &exercise, true
}

func (s *Store) DeleteExercise(ctx context.Context, index int) bool {
	_, span := tracing.GlobalTracer.Start(ctx, "store.deleteExercise")
	defer span.End()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.state.Exercises) {
		return false
	}
	s.state.Exercises = append(s.state.Exercises[:index], s.state.Exercises[index+1:]...)

	s.persist()

	return true
}

type AddProgressRecordParams struct {
	ClientID string
	Date     string
	Weight   *string
}

// AddProgressRecord requires a non-empty client id and date. It does not
// verify that the id currently resolves to a client - the caller offers
// only valid clients - but an empty id is never accepted.
func (s *Store) AddProgressRecord(ctx context.Context, params AddProgressRecordParams) (*ProgressRecord, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.addProgressRecord")
	defer span.End()

	if params.ClientID == "" || params.Date == "" {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	record := ProgressRecord{
		ClientID: params.ClientID,
		Date:     params.Date,
		Weight:   params.Weight,
	}
	s.state.Progress = append(s.state.Progress, record)

	s.persist()

	return &record, true
}

type AddEventParams struct {
	ClientID string
	Date     string
	Note     *string
}

func (s *Store) AddEvent(ctx context.Context, params AddEventParams) (*CalendarEvent, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.addEvent")
	defer span.End()

	if params.ClientID == "" || params.Date == "" {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	event := CalendarEvent{
		ClientID: params.ClientID,
		Date:     params.Date,
		Note:     params.Note,
	}
	s.state.Events = append(s.state.Events, event)

	s.persist()

	return &event, true
}

func (s *Store) DeleteEvent(ctx context.Context, index int) bool {
	_, span := tracing.GlobalTracer.Start(ctx, "store.deleteEvent")
	defer span.End()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.state.Events) {
		return false
	}
	s.state.Events = append(s.state.Events[:index], s.state.Events[index+1:]...)

	s.persist()

	return true
}

func (s *Store) UpdateSettings(ctx context.Context, theme, language string) (Settings, bool) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.updateSettings")
	defer span.End()

	if !ValidTheme(theme) || !ValidLanguage(language) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		return s.state.Settings, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.Settings.Theme = theme
	s.state.Settings.Language = language

	s.persist()

	return s.state.Settings, true
}

// ReplaceState replaces the whole store with the given serialized
// document, used by backup restore. A document that fails to parse leaves
// the store untouched and returns ErrRestoreParse. Validate, replace,
// migrate and persist all happen within one critical section - no other
// mutation is interleaved mid-restore.
func (s *Store) ReplaceState(ctx context.Context, raw []byte) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.replaceState")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: empty document", ErrRestoreParse)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("%w: %s", ErrRestoreParse, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = &state
	Migrate(s.state)
	s.persist()
	s.setClientsGauge()

	log.Debugf(
		"state replaced: %d clients, %d programs, %d exercises, %d progress records, %d events",
		len(state.Clients), len(state.Programs), len(state.Exercises), len(state.Progress), len(state.Events),
	)

	return nil
}

// ExportState produces a complete, self-contained serialization of the
// current store, suitable for a later ReplaceState
func (s *Store) ExportState(ctx context.Context) (_ []byte, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "store.exportState")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return json.MarshalIndent(s.state, "", "  ")
}

func (s *Store) Clients() []Client {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	clients := make([]Client, len(s.state.Clients))
	copy(clients, s.state.Clients)
	return clients
}

func (s *Store) Programs() []Program {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	programs := make([]Program, len(s.state.Programs))
	copy(programs, s.state.Programs)
	return programs
}

func (s *Store) Exercises() []Exercise {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	exercises := make([]Exercise, len(s.state.Exercises))
	copy(exercises, s.state.Exercises)
	return exercises
}

func (s *Store) Progress() []ProgressRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	progress := make([]ProgressRecord, len(s.state.Progress))
	copy(progress, s.state.Progress)
	return progress
}

func (s *Store) Events() []CalendarEvent {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	events := make([]CalendarEvent, len(s.state.Events))
	copy(events, s.state.Events)
	return events
}

func (s *Store) Settings() Settings {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state.Settings
}

// persist must be called with the write lock held (or before the store
// is shared). Failures are logged and counted, never fatal.
func (s *Store) persist() {
	if err := s.persistence.Save(s.state); err != nil {
		log.Errorf("failed to persist state: %s", err)
		if s.metricsManager != nil {
			s.metricsManager.CounterPersistFailures.Inc()
		}
	}
}

func (s *Store) setClientsGauge() {
	if s.metricsManager != nil {
		s.metricsManager.GaugeClients.Set(float64(len(s.state.Clients)))
	}
}

// splitExercises derives the exercise list from a comma-separated input:
// elements trimmed, empties discarded, order preserved, duplicates allowed
func splitExercises(csv string) []string {
	parts := strings.Split(csv, ",")
	exercises := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		exercises = append(exercises, p)
	}
	return exercises
}
