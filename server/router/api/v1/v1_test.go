package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fankam/depanneo/internal/profile"
	apperrors "github.com/fankam/depanneo/server/internal/errors"
	"github.com/fankam/depanneo/server/events"
	"github.com/fankam/depanneo/server/service/dialog"
	"github.com/fankam/depanneo/store"
	"github.com/fankam/depanneo/store/teststore"
)

type fakeEngine struct {
	result *dialog.TurnResult
	err    error
}

func (f *fakeEngine) HandleMessage(ctx context.Context, userKey, message string) (*dialog.TurnResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type apiEnv struct {
	echo    *echo.Echo
	store   *store.Store
	bus     *events.EventBus
	engine  *fakeEngine
	service *APIV1Service
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	st, _ := teststore.NewStore()
	bus := events.NewEventBus()
	engine := &fakeEngine{result: &dialog.TurnResult{
		Reply:  "Bonjour !",
		Action: dialog.ActionGreet,
		Phase:  store.PhaseGreeting,
	}}

	service := NewAPIV1Service(&profile.Profile{Mode: "test"}, st, engine, bus)
	e := echo.New()
	service.Register(e)

	return &apiEnv{echo: e, store: st, bus: bus, engine: engine, service: service}
}

func (e *apiEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessage(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/messages",
		`{"user_key":"whatsapp:+237699000001","message":"Bonjour"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bonjour !", resp.Reply)
	assert.Equal(t, "GREET", resp.Action)
	assert.Equal(t, "GREETING", resp.Phase)
}

func TestHandleMessageAcceptsGatewayAttributes(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/messages",
		`{"user_key":"whatsapp:+237699000001","message":"Bonjour","channel":"whatsapp","media_refs":["https://cdn.example.com/photo.jpg"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "GREET", resp.Action)
}

func TestHandleMessageValidation(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/messages", `{"message":"Bonjour"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageStoreErrorMapsTo503(t *testing.T) {
	env := newAPIEnv(t)
	env.engine.err = apperrors.StoreUnavailable(fmt.Errorf("db down"))

	rec := env.do(http.MethodPost, "/api/v1/messages",
		`{"user_key":"whatsapp:+237699000001","message":"Bonjour"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleMessageRateLimited(t *testing.T) {
	env := newAPIEnv(t)
	body := `{"user_key":"whatsapp:+237699000002","message":"Bonjour"}`

	limited := false
	for i := 0; i < 10; i++ {
		if env.do(http.MethodPost, "/api/v1/messages", body).Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)

	// Other user keys are unaffected.
	rec := env.do(http.MethodPost, "/api/v1/messages",
		`{"user_key":"whatsapp:+237699000003","message":"Bonjour"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func seedRequest(t *testing.T, st *store.Store, uid, userKey string) *store.ServiceRequest {
	t.Helper()
	req, created, err := st.CreateServiceRequestIfNoneOpen(context.Background(), &store.ServiceRequest{
		UID: uid, UserKey: userKey,
		Category: "plumbing", Location: "Bonamoussadi", Description: "fuite d'eau",
	})
	require.NoError(t, err)
	require.True(t, created)
	return req
}

func TestListRequests(t *testing.T) {
	env := newAPIEnv(t)
	seedRequest(t, env.store, "req-1", "whatsapp:+237699000001")
	seedRequest(t, env.store, "req-2", "whatsapp:+237699000002")

	rec := env.do(http.MethodGet, "/api/v1/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []requestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = env.do(http.MethodGet, "/api/v1/requests?user_key=whatsapp:%2B237699000002", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "req-2", list[0].UID)

	rec = env.do(http.MethodGet, "/api/v1/requests?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRequest(t *testing.T) {
	env := newAPIEnv(t)
	seedRequest(t, env.store, "req-1", "whatsapp:+237699000001")

	rec := env.do(http.MethodGet, "/api/v1/requests/req-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp requestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.UID)
	assert.Equal(t, "PENDING", resp.Status)

	rec = env.do(http.MethodGet, "/api/v1/requests/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	provider, err := env.store.CreateProvider(context.Background(), &store.Provider{
		Name: "Mbarga Plomberie", Phone: "+237650000001",
		Categories: []string{"plumbing"}, Zone: "Bonamoussadi",
		Rating: 4.5, Available: true,
	})
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/v1/providers?category=plumbing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Available)

	rec = env.do(http.MethodGet, "/api/v1/providers?category=locksmith", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)

	path := fmt.Sprintf("/api/v1/providers/%d/availability", provider.ID)
	rec = env.do(http.MethodPut, path, `{"available":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Available)

	rec = env.do(http.MethodPut, "/api/v1/providers/abc/availability", `{"available":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEvents(t *testing.T) {
	env := newAPIEnv(t)
	env.bus.Publish(events.Event{Type: events.EventEscalationRaised, UserKey: "whatsapp:+237699000001"})
	env.bus.Publish(events.Event{Type: events.EventRequestCreated, RequestUID: "req-1"})

	rec := env.do(http.MethodGet, "/api/v1/events?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []events.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, events.EventRequestCreated, list[0].Type)
}
