package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nicpaesk/killer-game/internal/api"
	"github.com/nicpaesk/killer-game/internal/api/apierr"
	"github.com/nicpaesk/killer-game/internal/api/response"
	"github.com/nicpaesk/killer-game/internal/factory"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/testutil"
)

const testBaseURL = "https://killer.example"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := testutil.NopLogger()

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(t.Context(), factory.Config{
		Logger:         logger,
		IdentityConfig: identity.Config{BcryptCost: bcrypt.MinCost},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		BaseURL:        testBaseURL,
		Storage:        app.Storage,
		GameController: app.GameController,
		SummaryService: app.SummaryService,
		Registry:       app.Registry,
		WSHandler:      app.WSHandler,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) multipart(t *testing.T, fields map[string]string, file string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("tasks_file", "tasks.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(file))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/games", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func createGame(t *testing.T, ts *testServer, players, tasks string) response.CreateGameResponse {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/games", map[string]string{"players": players, "tasks": tasks}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.CreateGameResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Rooms)
}

func TestCreateGame(t *testing.T) {
	ts := newTestServer(t)

	resp := createGame(t, ts, "Charlie\n  Alice \n\nBob\n", "hand them a spoon\n\nmake them say banana")

	assert.Len(t, resp.Code, 6)
	assert.True(t, strings.HasPrefix(resp.CreatorToken, "c_"))
	assert.Equal(t, testBaseURL+"/join/"+resp.Code, resp.JoinURL)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, resp.Players)
	assert.Equal(t, 2, resp.TaskCount)
}

func TestCreateGameValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		players string
		tasks   string
	}{
		{"one player", "Alice", "wave"},
		{"duplicate names", "Alice\nBob\nAlice", "wave"},
		{"no tasks", "Alice\nBob", "\n  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/games", map[string]string{"players": tt.players, "tasks": tt.tasks}, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
		})
	}
}

func TestCreateGameMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/games", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateGameWithTasksFile(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.multipart(t, map[string]string{"players": "Alice\nBob"}, "steal a chip\n\n  borrow a pen  \n")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.CreateGameResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TaskCount)

	stored, err := ts.app.Storage.GetGame(t.Context(), model.GameCode(resp.Code))
	require.NoError(t, err)
	assert.Equal(t, []string{"steal a chip", "borrow a pen"}, stored.Tasks)
}

func TestCreateGameRejectsBothTaskSources(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.multipart(t, map[string]string{"players": "Alice\nBob", "tasks": "wave"}, "steal a chip")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Message, "not both")
}

func TestCreateGameMultipartInlineTasks(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.multipart(t, map[string]string{"players": "Alice\nBob", "tasks": "wave\nnod"}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestGetGame(t *testing.T) {
	ts := newTestServer(t)
	created := createGame(t, ts, "Alice\nBob", "wave")

	// Codes are case-insensitive when typed
	rr := ts.request(http.MethodGet, "/api/v1/games/"+strings.ToLower(created.Code), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.GameState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, created.Code, resp.Code)
	assert.Equal(t, "lobby", resp.Status)
	require.Len(t, resp.Players, 2)
	assert.Equal(t, "not_joined", resp.Players[0].Status)
	assert.Equal(t, 0, resp.Alive)

	// The creator token never leaks into public state
	assert.NotContains(t, rr.Body.String(), created.CreatorToken)
}

func TestGetGameErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/games/ZZZZZZ", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, decodeError(t, rr).Code)

	rr = ts.request(http.MethodGet, "/api/v1/games/nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t)
	created := createGame(t, ts, "Alice\nBob", "wave")

	rr := ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/qr", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))

	rr = ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/qr?size=9", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/games/ZZZZZZ/qr", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssignmentsRequireCreator(t *testing.T) {
	ts := newTestServer(t)
	created := createGame(t, ts, "Alice\nBob", "wave")
	path := "/api/v1/games/" + created.Code + "/assignments"

	rr := ts.request(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodGet, path, nil, "c_wrong")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodGet, path, nil, created.CreatorToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.AssignmentOverview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "lobby", resp.Status)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "Alice", resp.Entries[0].Name)
	assert.Empty(t, resp.Entries[0].Target)
}

func TestAssignmentsAfterStart(t *testing.T) {
	ts := newTestServer(t)
	created := createGame(t, ts, "Alice\nBob\nCharlie", "wave")
	ctx := t.Context()

	for _, name := range []string{"Alice", "Bob", "Charlie"} {
		_, err := ts.app.IdentityService.Claim(ctx, model.GameCode(created.Code), name, "1234")
		require.NoError(t, err)
	}
	_, err := ts.app.GameController.StartGame(ctx, model.GameCode(created.Code), created.CreatorToken)
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/assignments", nil, created.CreatorToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.AssignmentOverview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Status)
	assert.True(t, resp.SingleCycle)
	for _, e := range resp.Entries {
		assert.NotEmpty(t, e.Target)
		assert.Equal(t, "wave", e.Task)
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t)
	created := createGame(t, ts, "Alice\nBob", "wave")
	ctx := t.Context()

	sess, err := ts.app.IdentityService.Claim(ctx, model.GameCode(created.Code), "Alice", "1234")
	require.NoError(t, err)

	// Anonymous
	rr := ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/summary", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var anon summary.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &anon))
	assert.Empty(t, anon.You)
	assert.Empty(t, anon.Winner)

	// Session as bearer token
	rr = ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/summary", nil, sess.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	var mine summary.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	assert.Equal(t, "Alice", mine.You)

	// Session as query parameter
	rr = ts.request(http.MethodGet, "/api/v1/games/"+created.Code+"/summary?session="+sess.Token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	assert.Equal(t, "Alice", mine.You)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodDelete, "/api/v1/games/ABCDEF", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
