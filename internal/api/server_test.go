package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/auth"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/repository/memory"
	"github.com/Kerhoff/CartBot/internal/service"
)

type replayStream struct {
	snapshots []assistant.Partial
	pos       int
}

func (s *replayStream) Next() bool {
	if s.pos >= len(s.snapshots) {
		return false
	}
	s.pos++
	return true
}

func (s *replayStream) Current() assistant.Partial { return s.snapshots[s.pos-1] }
func (s *replayStream) Err() error                 { return nil }
func (s *replayStream) Close() error               { return nil }

type replayModel struct {
	snapshots []assistant.Partial
}

func (m *replayModel) Stream(context.Context, string) (assistant.PartialStream, error) {
	return &replayStream{snapshots: m.snapshots}, nil
}

type testServer struct {
	srv     *httptest.Server
	svc     *service.Service
	jwt     *auth.JWTManager
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, model assistant.Model) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := metrics.New(prometheus.NewRegistry())
	svc := service.New(memory.NewStore(), logger, service.Config{Model: model, Metrics: m})
	jwt := auth.NewJWTManager("test-secret", time.Hour)

	srv := httptest.NewServer(NewServer(svc, jwt, m, logger).Handler())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, svc: svc, jwt: jwt, metrics: m}
}

// login creates a user and returns a bearer token for it.
func (ts *testServer) login(t *testing.T, name string) string {
	t.Helper()
	user, err := ts.svc.CreateUser(context.Background(), name, false)
	require.NoError(t, err)
	token, err := ts.jwt.Generate(user.ID, false)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.HTTPRequests.WithLabelValues("GET /healthz", "200")))
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/groups", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body := decode[errorResponse](t, resp)
			assert.Equal(t, "UNAUTHENTICATED", body.Code)
		})
	}
}

func TestShoppingListFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "ann")

	resp := ts.do(t, http.MethodGet, "/api/groups/personal", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	personal := decode[models.Group](t, resp)
	assert.True(t, personal.IsPersonal)

	itemsPath := "/api/groups/" + personal.ID + "/items"
	resp = ts.do(t, http.MethodPost, itemsPath, token, map[string]any{"name": "Milk", "amount": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	milk := decode[models.ShoppingListItem](t, resp)
	assert.Equal(t, 2, milk.Amount)

	resp = ts.do(t, http.MethodPost, "/api/groups/"+personal.ID+"/actions", token, map[string]any{
		"actions": []map[string]any{
			{"action": "add", "name": "milk", "amount": 1},
			{"action": "add", "name": "Bread", "amount": 1},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]models.ShoppingListItem](t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, "Bread", items[0].Name)
	assert.Equal(t, 3, items[1].Amount)

	resp = ts.do(t, http.MethodPost, "/api/items/"+milk.ID+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.ShoppingListItem](t, resp).IsCompleted)

	resp = ts.do(t, http.MethodDelete, itemsPath+"/completed", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decode[clearResponse](t, resp).Removed)

	resp = ts.do(t, http.MethodGet, itemsPath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items = decode[[]models.ShoppingListItem](t, resp)
	require.Len(t, items, 1)
	assert.Equal(t, "Bread", items[0].Name)
}

func TestExecuteActionsRejectsInvalidBatch(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "ann")
	personal := decode[models.Group](t, ts.do(t, http.MethodGet, "/api/groups/personal", token, nil))

	resp := ts.do(t, http.MethodPost, "/api/groups/"+personal.ID+"/actions", token, map[string]any{
		"actions": []map[string]any{{"action": "add", "name": "milk"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "AMOUNT_REQUIRED", decode[errorResponse](t, resp).Code)

	resp = ts.do(t, http.MethodPost, "/api/groups/"+personal.ID+"/actions", token, map[string]any{
		"actions": []map[string]any{{"action": "delete", "name": "ghost"}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInviteAndJoin(t *testing.T) {
	ts := newTestServer(t, nil)
	ann := ts.login(t, "ann")
	bob := ts.login(t, "bob")

	resp := ts.do(t, http.MethodPost, "/api/groups", ann, map[string]any{"name": "Flat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	group := decode[models.Group](t, resp)
	require.Len(t, group.InviteCode, 6)

	resp = ts.do(t, http.MethodGet, "/api/groups/"+group.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/invites/"+strings.ToLower(group.InviteCode), bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[models.InvitePreview](t, resp)
	assert.Equal(t, "Flat", preview.Name)
	assert.False(t, preview.IsAlreadyMember)

	resp = ts.do(t, http.MethodPost, "/api/invites/"+group.InviteCode+"/join", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/invites/"+group.InviteCode+"/join", bob, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_MEMBER", decode[errorResponse](t, resp).Code)

	resp = ts.do(t, http.MethodPost, "/api/groups/"+group.ID+"/invite-code/regenerate", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/groups/"+group.ID+"/leave", ann, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "LAST_ADMIN", decode[errorResponse](t, resp).Code)
}

func TestDecodeJSONRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "ann")

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/groups", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decode[errorResponse](t, resp).Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAssistantStreamsPartialsThenReply(t *testing.T) {
	eggs := 6
	ts := newTestServer(t, &replayModel{snapshots: []assistant.Partial{
		{Actions: []assistant.PartialAction{{Action: "add", Name: "eggs"}}},
		{Actions: []assistant.PartialAction{{Action: "add", Name: "eggs", Amount: &eggs}}, Message: "Added eggs."},
	}})
	token := ts.login(t, "ann")
	personal := decode[models.Group](t, ts.do(t, http.MethodGet, "/api/groups/personal", token, nil))

	resp := ts.do(t, http.MethodPost, "/api/groups/"+personal.ID+"/assistant", token, map[string]any{"prompt": "half a dozen eggs"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp.Body)
	require.Len(t, events, 3)
	assert.Equal(t, "partial", events[0].name)
	assert.Equal(t, "partial", events[1].name)
	assert.Equal(t, "reply", events[2].name)

	var reply replyEvent
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &reply))
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "eggs", reply.Actions[0].Name)
	assert.Equal(t, 6, *reply.Actions[0].Amount)
	assert.Equal(t, "Added eggs.", reply.Message)

	items := decode[[]models.ShoppingListItem](t, ts.do(t, http.MethodGet, "/api/groups/"+personal.ID+"/items", token, nil))
	assert.Empty(t, items)
}

func TestAssistantFailsBeforeStreaming(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "ann")
	personal := decode[models.Group](t, ts.do(t, http.MethodGet, "/api/groups/personal", token, nil))

	resp := ts.do(t, http.MethodPost, "/api/groups/"+personal.ID+"/assistant", token, map[string]any{"prompt": "milk"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "ASSISTANT_FAILED", decode[errorResponse](t, resp).Code)
}
