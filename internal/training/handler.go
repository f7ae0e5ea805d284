package training

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/traintrack/internal/telemetry/metrics"
	"github.com/2beens/traintrack/internal/telemetry/tracing"
	"github.com/2beens/traintrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Handler is the HTTP surface of the store, consumed by the web app.
// Rejected mutations (blank required fields and the like) surface as 400,
// the store itself treats them as no-ops.
type Handler struct {
	store          *Store
	metricsManager *metrics.Manager
}

func NewHandler(store *Store, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		store:          store,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/clients", handler.HandleListClients).Methods("GET", "OPTIONS").Name("list-clients")
	r.HandleFunc("/clients", handler.HandleAddClient).Methods("POST", "OPTIONS").Name("new-client")
	r.HandleFunc("/clients/{id}", handler.HandleDeleteClient).Methods("DELETE", "OPTIONS").Name("remove-client")

	r.HandleFunc("/programs", handler.HandleListPrograms).Methods("GET", "OPTIONS").Name("list-programs")
	r.HandleFunc("/programs", handler.HandleAddProgram).Methods("POST", "OPTIONS").Name("new-program")
	r.HandleFunc("/programs/{index}", handler.HandleDeleteProgram).Methods("DELETE", "OPTIONS").Name("remove-program")

	r.HandleFunc("/exercises", handler.HandleListExercises).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/exercises", handler.HandleAddExercise).Methods("POST", "OPTIONS").Name("new-exercise")
	r.HandleFunc("/exercises/{index}", handler.HandleDeleteExercise).Methods("DELETE", "OPTIONS").Name("remove-exercise")

	r.HandleFunc("/progress", handler.HandleListProgress).Methods("GET", "OPTIONS").Name("list-progress")
	r.HandleFunc("/progress", handler.HandleAddProgressRecord).Methods("POST", "OPTIONS").Name("new-progress-record")

	r.HandleFunc("/events", handler.HandleListEvents).Methods("GET", "OPTIONS").Name("list-events")
	r.HandleFunc("/events", handler.HandleAddEvent).Methods("POST", "OPTIONS").Name("new-event")
	r.HandleFunc("/events/{index}", handler.HandleDeleteEvent).Methods("DELETE", "OPTIONS").Name("remove-event")

	r.HandleFunc("/settings", handler.HandleGetSettings).Methods("GET", "OPTIONS").Name("get-settings")
	r.HandleFunc("/settings", handler.HandleUpdateSettings).Methods("PUT", "OPTIONS").Name("update-settings")

	r.HandleFunc("/backup", handler.HandleExport).Methods("GET", "OPTIONS").Name("export-backup")
	r.HandleFunc("/backup/restore", handler.HandleRestore).Methods("POST", "OPTIONS").Name("restore-backup")
}

type addClientRequest struct {
	Name   string  `json:"name"`
	Age    *string `json:"age,omitempty"`
	Weight *string `json:"weight,omitempty"`
}

type deleteClientResponse struct {
	DeletedID string `json:"deletedId"`
}

type deleteByIndexResponse struct {
	DeletedIndex int `json:"deletedIndex"`
}

func (handler *Handler) HandleAddClient(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.addClient")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req addClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new client, unmarshal json params: %s", err)
		http.Error(w, "add client failed", http.StatusBadRequest)
		return
	}

	client, applied := handler.store.AddClient(ctx, AddClientParams{
		Name:   req.Name,
		Age:    req.Age,
		Weight: req.Weight,
	})
	handler.countMutation("addClient", applied)
	if !applied {
		http.Error(w, "error, client name empty", http.StatusBadRequest)
		return
	}

	clientJson, err := json.Marshal(client)
	if err != nil {
		log.Errorf("failed to marshal new client: %s", err)
		http.Error(w, "error, failed to add new client", http.StatusInternalServerError)
		return
	}

	log.Debugf("new client added: %s", client.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, clientJson, http.StatusCreated)
}

func (handler *Handler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listClients")
	defer span.End()

	clientsJson, err := json.Marshal(handler.store.Clients())
	if err != nil {
		log.Errorf("marshal clients error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, clientsJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.deleteClient")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	deleted := handler.store.DeleteClient(ctx, id)
	handler.countMutation("deleteClient", deleted)
	if !deleted {
		log.Debugf("client %s not found", id)
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	deleteRespJson, err := json.Marshal(deleteClientResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

type addProgramRequest struct {
	Name string `json:"name"`
	// comma-separated exercise names
	Exercises string `json:"exercises"`
}

func (handler *Handler) HandleAddProgram(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.addProgram")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req addProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new program, unmarshal json params: %s", err)
		http.Error(w, "add program failed", http.StatusBadRequest)
		return
	}

	program, applied := handler.store.AddProgram(ctx, AddProgramParams{
		Name:         req.Name,
		ExercisesCSV: req.Exercises,
	})
	handler.countMutation("addProgram", applied)
	if !applied {
		http.Error(w, "error, program name empty", http.StatusBadRequest)
		return
	}

	programJson, err := json.Marshal(program)
	if err != nil {
		log.Errorf("failed to marshal new program: %s", err)
		http.Error(w, "error, failed to add new program", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, programJson, http.StatusCreated)
}

func (handler *Handler) HandleListPrograms(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listPrograms")
	defer span.End()

	programsJson, err := json.Marshal(handler.store.Programs())
	if err != nil {
		log.Errorf("marshal programs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, programsJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.deleteProgram")
	defer span.End()

	index, err := indexFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deleted := handler.store.DeleteProgram(ctx, index)
	handler.countMutation("deleteProgram", deleted)
	if !deleted {
		http.Error(w, "program not found", http.StatusNotFound)
		return
	}

	handler.writeDeleteByIndexResponse(w, index)
}

type addExerciseRequest struct {
	Name   string  `json:"name"`
	Muscle *string `json:"muscle,omitempty"`
}

func (handler *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.addExercise")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req addExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new exercise, unmarshal json params: %s", err)
		http.Error(w, "add exercise failed", http.StatusBadRequest)
		return
	}

	exercise, applied := handler.store.AddExercise(ctx, AddExerciseParams{
		Name:   req.Name,
		Muscle: req.Muscle,
	})
	handler.countMutation("addExercise", applied)
	if !applied {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("failed to marshal new exercise: %s", err)
		http.Error(w, "error, failed to add new exercise", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusCreated)
}

func (handler *Handler) HandleListExercises(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listExercises")
	defer span.End()

	exercisesJson, err := json.Marshal(handler.store.Exercises())
	if err != nil {
		log.Errorf("marshal exercises error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exercisesJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.deleteExercise")
	defer span.End()

	index, err := indexFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deleted := handler.store.DeleteExercise(ctx, index)
	handler.countMutation("deleteExercise", deleted)
	if !deleted {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return
	}

	handler.writeDeleteByIndexResponse(w, index)
}

type addProgressRecordRequest struct {
	ClientID string  `json:"clientId"`
	Date     string  `json:"date"`
	Weight   *string `json:"weight,omitempty"`
}

func (handler *Handler) HandleAddProgressRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.addProgressRecord")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req addProgressRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new progress record, unmarshal json params: %s", err)
		http.Error(w, "add progress record failed", http.StatusBadRequest)
		return
	}

	record, applied := handler.store.AddProgressRecord(ctx, AddProgressRecordParams{
		ClientID: req.ClientID,
		Date:     req.Date,
		Weight:   req.Weight,
	})
	handler.countMutation("addProgressRecord", applied)
	if !applied {
		http.Error(w, "error, client id or date empty", http.StatusBadRequest)
		return
	}

	recordJson, err := json.Marshal(record)
	if err != nil {
		log.Errorf("failed to marshal new progress record: %s", err)
		http.Error(w, "error, failed to add new progress record", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, recordJson, http.StatusCreated)
}

func (handler *Handler) HandleListProgress(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listProgress")
	defer span.End()

	progressJson, err := json.Marshal(handler.store.Progress())
	if err != nil {
		log.Errorf("marshal progress records error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, progressJson, http.StatusOK)
}

type addEventRequest struct {
	ClientID string  `json:"clientId"`
	Date     string  `json:"date"`
	Note     *string `json:"note,omitempty"`
}

func (handler *Handler) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.addEvent")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req addEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new event, unmarshal json params: %s", err)
		http.Error(w, "add event failed", http.StatusBadRequest)
		return
	}

	event, applied := handler.store.AddEvent(ctx, AddEventParams{
		ClientID: req.ClientID,
		Date:     req.Date,
		Note:     req.Note,
	})
	handler.countMutation("addEvent", applied)
	if !applied {
		http.Error(w, "error, client id or date empty", http.StatusBadRequest)
		return
	}

	eventJson, err := json.Marshal(event)
	if err != nil {
		log.Errorf("failed to marshal new event: %s", err)
		http.Error(w, "error, failed to add new event", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, eventJson, http.StatusCreated)
}

func (handler *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listEvents")
	defer span.End()

	eventsJson, err := json.Marshal(handler.store.Events())
	if err != nil {
		log.Errorf("marshal events error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, eventsJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.deleteEvent")
	defer span.End()

	index, err := indexFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deleted := handler.store.DeleteEvent(ctx, index)
	handler.countMutation("deleteEvent", deleted)
	if !deleted {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	handler.writeDeleteByIndexResponse(w, index)
}

type updateSettingsRequest struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

func (handler *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.getSettings")
	defer span.End()

	settingsJson, err := json.Marshal(handler.store.Settings())
	if err != nil {
		log.Errorf("marshal settings error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, settingsJson, http.StatusOK)
}

func (handler *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.updateSettings")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update settings, unmarshal json params: %s", err)
		http.Error(w, "update settings failed", http.StatusBadRequest)
		return
	}

	settings, applied := handler.store.UpdateSettings(ctx, req.Theme, req.Language)
	handler.countMutation("updateSettings", applied)
	if !applied {
		http.Error(w, "error, unknown theme or language", http.StatusBadRequest)
		return
	}

	settingsJson, err := json.Marshal(settings)
	if err != nil {
		log.Errorf("failed to marshal settings: %s", err)
		http.Error(w, "failed to marshal settings", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, settingsJson, http.StatusOK)
}

func (handler *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.export")
	defer span.End()

	stateJson, err := handler.store.ExportState(ctx)
	if err != nil {
		log.Errorf("failed to export state: %s", err)
		http.Error(w, "failed to export state", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterBackupExports.Inc()
	}

	filename := fmt.Sprintf("traintrack-backup-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, stateJson, http.StatusOK)
}

func (handler *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.restore")
	defer span.End()

	rawState, err := io.ReadAll(r.Body)
	if err != nil {
		log.Errorf("restore, failed to read request body: %s", err)
		http.Error(w, "restore failed", http.StatusBadRequest)
		return
	}

	if err := handler.store.ReplaceState(ctx, rawState); err != nil {
		// the one error the user directly observes; the store is unchanged
		log.Warnf("restore failed: %s", err)
		http.Error(w, "restore failed: invalid backup file", http.StatusBadRequest)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterBackupRestores.Inc()
	}

	log.Debugln("state restored from backup")
	pkg.WriteJSONResponseOK(w, `{"restored":true}`)
}

func (handler *Handler) writeDeleteByIndexResponse(w http.ResponseWriter, index int) {
	deleteRespJson, err := json.Marshal(deleteByIndexResponse{
		DeletedIndex: index,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) countMutation(op string, applied bool) {
	if handler.metricsManager == nil {
		return
	}
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	handler.metricsManager.CounterMutations.WithLabelValues(op, outcome).Inc()
}

func indexFromVars(r *http.Request) (int, error) {
	vars := mux.Vars(r)
	indexStr := vars["index"]
	if indexStr == "" {
		return 0, fmt.Errorf("error, index empty")
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return 0, fmt.Errorf("error, index NaN")
	}
	return index, nil
}
