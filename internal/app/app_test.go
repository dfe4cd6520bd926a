package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"servicemarket/marketplace-service/internal/app"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/config"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/store/memstore"
)

const secret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		GRPCPort:              "0",
		JWTSecret:             secret,
		ListingCacheTTL:       time.Minute,
		NotificationRetention: time.Hour,
		CleanupSchedule:       "@daily",
		InMemory:              true,
	}
}

func token(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func newServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutProvider(model.ProviderProfile{UserID: "p1", Name: "Kagiso", PrimaryCity: "Gaborone"})
	st.ApproveCategory("p1", 5)

	srv := httptest.NewServer(app.New(testConfig(), st, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func call(t *testing.T, srv *httptest.Server, method, path, tok, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)

	code, body := call(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, code)

	var h map[string]string
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h["status"])
	assert.Equal(t, "marketplace-service", h["service"])
	assert.Equal(t, app.Version, h["version"])
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newServer(t)

	code, body := call(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "marketplace_live_connections")
}

func TestAPIRequiresToken(t *testing.T) {
	srv, _ := newServer(t)

	code, _ := call(t, srv, http.MethodGet, "/jobs", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, srv, http.MethodGet, "/notifications", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, srv, http.MethodGet, "/ws", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPostApplySelectOverHTTP(t *testing.T) {
	srv, _ := newServer(t)
	reqTok := token(t, "r1", model.RoleRequester)
	provTok := token(t, "p1", model.RoleProvider)

	code, body := call(t, srv, http.MethodPost, "/jobs", reqTok,
		`{"title":"Fix geyser","city":"Gaborone","categoryId":5}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var job model.Job
	require.NoError(t, json.Unmarshal(body, &job))

	// The eligible provider was told about the new job.
	code, body = call(t, srv, http.MethodGet, "/notifications/unread/count", provTok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"count":1`)

	code, body = call(t, srv, http.MethodGet, "/jobs", provTok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), job.ID)

	code, body = call(t, srv, http.MethodPost, "/jobs/"+job.ID+"/apply", provTok, "")
	require.Equal(t, http.StatusCreated, code, string(body))
	var application model.Application
	require.NoError(t, json.Unmarshal(body, &application))

	code, body = call(t, srv, http.MethodPost, "/jobs/"+job.ID+"/select-provider", reqTok,
		`{"applicationId":"`+application.ID+`"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, model.JobAccepted, job.Status)
	require.NotNil(t, job.ProviderID)
	assert.Equal(t, "p1", *job.ProviderID)
}

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestLiveChannelReceivesNotifications(t *testing.T) {
	srv, _ := newServer(t)
	reqTok := token(t, "r1", model.RoleRequester)
	provTok := token(t, "p1", model.RoleProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + reqTok
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "auth", "userId": "r1"}))
	var f wireFrame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	require.Equal(t, "unread_count", f.Type)

	code, body := call(t, srv, http.MethodPost, "/jobs", reqTok,
		`{"title":"Fix geyser","city":"Gaborone","categoryId":5}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var job model.Job
	require.NoError(t, json.Unmarshal(body, &job))

	code, _ = call(t, srv, http.MethodPost, "/jobs/"+job.ID+"/apply", provTok, "")
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, wsjson.Read(ctx, conn, &f))
	require.Equal(t, "notification", f.Type)
	var n model.Notification
	require.NoError(t, json.Unmarshal(f.Payload, &n))
	assert.Equal(t, model.NotifyNewApplication, n.Type)
	assert.Equal(t, "r1", n.RecipientID)
}

func TestLiveChannelRejectsForeignAuth(t *testing.T) {
	srv, _ := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, "r1", model.RoleRequester)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "auth", "userId": "p1"}))
	var f wireFrame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Payload), "does not match token")
}

func TestRunStopsOnCancel(t *testing.T) {
	a := app.New(testConfig(), memstore.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
