package training_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/goleak"

	"github.com/2beens/traintrack/internal/telemetry/metrics"
	"github.com/2beens/traintrack/internal/training"
)

// TestMain will run goleak after all tests have been run in the package
// to detect any goroutine leaks
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRouter(t *testing.T) (*mux.Router, *training.Store) {
	t.Helper()

	fileStore, err := training.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := training.NewStore(fileStore, metrics.NewTestManager())

	r := mux.NewRouter()
	training.NewHandler(store, metrics.NewTestManager()).SetupRoutes(r)
	return r, store
}

func doJSONRequest(t *testing.T, router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_addAndListClients(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/clients", `{"name":"Marija","age":"31"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var client training.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &client))
	assert.NotEmpty(t, client.ID)
	assert.Equal(t, "Marija", client.Name)
	require.NotNil(t, client.Age)
	assert.Equal(t, "31", *client.Age)

	rec = doJSONRequest(t, router, "GET", "/clients", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var clients []training.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
	require.Len(t, clients, 1)
	assert.Equal(t, client.ID, clients[0].ID)
}

func TestHandler_addClient_rejections(t *testing.T) {
	router, store := testRouter(t)

	// blank name: validation no-op, surfaced as 400
	rec := doJSONRequest(t, router, "POST", "/clients", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.Clients())

	// missing content type
	req, err := http.NewRequest("POST", "/clients", bytes.NewReader([]byte(`{"name":"Ok"}`)))
	require.NoError(t, err)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// garbage body
	rec = doJSONRequest(t, router, "POST", "/clients", `{{{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_deleteClient(t *testing.T) {
	router, store := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/clients", `{"name":"Nikola"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var client training.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &client))

	rec = doJSONRequest(t, router, "DELETE", "/clients/"+client.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deletedId":"`+client.ID+`"}`, rec.Body.String())
	assert.Empty(t, store.Clients())

	rec = doJSONRequest(t, router, "DELETE", "/clients/"+client.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_programs(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/programs", `{"name":"Push","exercises":"bench, dips , press"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var program training.Program
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &program))
	assert.Equal(t, []string{"bench", "dips", "press"}, program.Exercises)

	rec = doJSONRequest(t, router, "DELETE", "/programs/5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSONRequest(t, router, "DELETE", "/programs/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSONRequest(t, router, "DELETE", "/programs/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deletedIndex":0}`, rec.Body.String())
}

func TestHandler_progressValidation(t *testing.T) {
	router, store := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/progress", `{"clientId":"","date":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.Progress())

	rec = doJSONRequest(t, router, "POST", "/progress", `{"clientId":"c-1","date":"2024-01-01","weight":"70"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record training.ProgressRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "c-1", record.ClientID)
	require.NotNil(t, record.Weight)
	assert.Equal(t, "70", *record.Weight)
}

func TestHandler_settings(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSONRequest(t, router, "GET", "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"light","language":"en"}`, rec.Body.String())

	rec = doJSONRequest(t, router, "PUT", "/settings", `{"theme":"dark","language":"fa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"dark","language":"fa"}`, rec.Body.String())

	rec = doJSONRequest(t, router, "PUT", "/settings", `{"theme":"neon","language":"en"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSONRequest(t, router, "GET", "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"dark","language":"fa"}`, rec.Body.String())
}

func TestHandler_backupExportAndRestore(t *testing.T) {
	router, store := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/clients", `{"name":"Luka"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSONRequest(t, router, "POST", "/programs", `{"name":"Legs","exercises":"squat,lunge"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSONRequest(t, router, "GET", "/backup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "traintrack-backup-")
	backup := rec.Body.Bytes()

	// wipe the store, then restore from the downloaded backup
	clientID := store.Clients()[0].ID
	rec = doJSONRequest(t, router, "DELETE", "/clients/"+clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, store.Clients())

	rec = doJSONRequest(t, router, "POST", "/backup/restore", string(backup))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"restored":true}`, rec.Body.String())

	require.Len(t, store.Clients(), 1)
	assert.Equal(t, clientID, store.Clients()[0].ID)
	require.Len(t, store.Programs(), 1)
	assert.Equal(t, []string{"squat", "lunge"}, store.Programs()[0].Exercises)
}

func TestHandler_restoreFailureLeavesStateUntouched(t *testing.T) {
	router, store := testRouter(t)

	rec := doJSONRequest(t, router, "POST", "/clients", `{"name":"Sava"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	clientsBefore := store.Clients()

	rec = doJSONRequest(t, router, "POST", "/backup/restore", "definitely not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid backup file")

	assert.Equal(t, clientsBefore, store.Clients())
}
