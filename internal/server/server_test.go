package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menagerie/internal/api"
	"menagerie/internal/config"
	"menagerie/internal/events"
	"menagerie/internal/gateway"
	"menagerie/internal/orchestrator"
	"menagerie/internal/personality"
	"menagerie/internal/template"
	"menagerie/internal/vault"
)

type rig struct {
	server *httptest.Server
	bus    *events.Bus
	credID string
}

// newRig wires the full domain stack behind the HTTP server, with a fake
// gateway standing in for the chat platform.
func newRig(t *testing.T) *rig {
	t.Helper()

	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "menagerie.yaml"))
	require.NoError(t, store.Load())
	require.NoError(t, store.Mutate(func(doc *config.Document) error {
		doc.Settings.DataDir = filepath.Join(dir, "data")
		doc.Settings.StopTimeout = 5 * time.Second
		return nil
	}))

	creds := vault.NewManager(store)
	credID, err := creds.Add("main", "gateway-token-for-tests")
	require.NoError(t, err)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	templates := template.NewManager(store)
	orch := orchestrator.New(store, creds, templates, personality.NewEngine(), gateway.NewFakeClient(), bus)
	orchestrator.NewAdapter(orch).Register()
	template.NewAdapter(templates).Register()
	vault.NewAdapter(creds).Register()

	srv := httptest.NewServer(New("unused", bus).Handler())
	t.Cleanup(srv.Close)
	return &rig{server: srv, bus: bus, credID: credID}
}

func (r *rig) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, r.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func (r *rig) createInstance(t *testing.T, name string) api.InstanceStatus {
	t.Helper()
	resp := r.do(t, http.MethodPost, "/api/instances", api.CreateInstanceRequest{
		Name:       name,
		Template:   "pure-grug",
		Credential: r.credID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var status api.InstanceStatus
	decode(t, resp, &status)
	return status
}

func TestInstanceLifecycleOverHTTP(t *testing.T) {
	r := newRig(t)

	created := r.createInstance(t, "grug-main")
	assert.Equal(t, api.StateStopped, created.State)

	resp := r.do(t, http.MethodPost, "/api/instances/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started api.InstanceStatus
	decode(t, resp, &started)
	assert.Equal(t, api.StateRunning, started.State)

	resp = r.do(t, http.MethodGet, "/api/instances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []api.InstanceStatus
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, api.StateRunning, list[0].State)

	resp = r.do(t, http.MethodPost, "/api/instances/"+created.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = r.do(t, http.MethodDelete, "/api/instances/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = r.do(t, http.MethodGet, "/api/instances/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateInstanceOverHTTP(t *testing.T) {
	r := newRig(t)
	created := r.createInstance(t, "before")

	newName := "after"
	resp := r.do(t, http.MethodPut, "/api/instances/"+created.ID, api.UpdateInstanceRequest{Name: &newName})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated api.InstanceStatus
	decode(t, resp, &updated)
	assert.Equal(t, "after", updated.Name)
}

func TestErrorStatusMapping(t *testing.T) {
	r := newRig(t)

	resp := r.do(t, http.MethodGet, "/api/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = r.do(t, http.MethodPost, "/api/instances", api.CreateInstanceRequest{
		Name: "", Template: "pure-grug", Credential: r.credID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["error"], "name")

	// Deleting a referenced template conflicts.
	r.createInstance(t, "holder")
	resp = r.do(t, http.MethodDelete, "/api/templates/pure-grug", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestTemplateCRUDOverHTTP(t *testing.T) {
	r := newRig(t)

	resp := r.do(t, http.MethodPost, "/api/templates", api.TemplateInfo{
		ID: "custom", Name: "Custom", Personality: "big_rob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = r.do(t, http.MethodGet, "/api/templates/custom", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tmpl api.TemplateInfo
	decode(t, resp, &tmpl)
	assert.Equal(t, "big_rob", tmpl.Personality)

	resp = r.do(t, http.MethodDelete, "/api/templates/custom", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestCredentialsAlwaysRedacted(t *testing.T) {
	r := newRig(t)

	resp := r.do(t, http.MethodPost, "/api/credentials", map[string]string{
		"name": "second", "token": "super-secret-gateway-token",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created api.CredentialInfo
	decode(t, resp, &created)
	assert.NotContains(t, created.Display, "secret")

	resp = r.do(t, http.MethodGet, "/api/credentials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := new(bytes.Buffer)
	raw.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.NotContains(t, raw.String(), "super-secret-gateway-token")
	assert.NotContains(t, raw.String(), "gateway-token-for-tests")
}

func TestDeactivateCredentialOverHTTP(t *testing.T) {
	r := newRig(t)

	resp := r.do(t, http.MethodPost, "/api/credentials/"+r.credID+"/deactivate", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = r.do(t, http.MethodGet, "/api/credentials", nil)
	var creds []api.CredentialInfo
	decode(t, resp, &creds)
	require.Len(t, creds, 1)
	assert.False(t, creds[0].Active)

	resp = r.do(t, http.MethodPost, "/api/credentials/missing/deactivate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	r := newRig(t)
	r.createInstance(t, "one")

	resp := r.do(t, http.MethodGet, "/api/system/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats api.SystemStats
	decode(t, resp, &stats)
	assert.Equal(t, 1, stats.InstanceCount)
	assert.Equal(t, 1, stats.StateCounts[api.StateStopped])
}

func TestStatusFeedStreamsTransitions(t *testing.T) {
	r := newRig(t)
	created := r.createInstance(t, "grug-main")

	wsURL := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	resp := r.do(t, http.MethodPost, "/api/instances/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event api.TransitionEvent
	require.NoError(t, ws.ReadJSON(&event))
	assert.Equal(t, created.ID, event.InstanceID)
	assert.Equal(t, api.StateStarting, event.NewState)

	require.NoError(t, ws.ReadJSON(&event))
	assert.Equal(t, api.StateRunning, event.NewState)
}
