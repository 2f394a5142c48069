package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	"sportclub/internal/domain/member"
	"sportclub/internal/modules/booking"
	"sportclub/internal/notification"
)

// Monday 19 Oct 2026, 09:00 UTC.
var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type testSuite struct {
	app *App
	db  *gorm.DB
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func setupSuite(t *testing.T) *testSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenInMemory(name)
	require.NoError(t, err)
	require.NoError(t, migrate.Run(db))

	cfg := &config.Config{
		JWTSecret:             "test_secret_key_32_characters_min",
		JWTTTL:                time.Hour,
		Location:              time.UTC,
		DefaultMonthlyClasses: 12,
		CancelCutoff:          time.Hour,
		MaxRangeDays:          62,
		BookingRateEvery:      time.Millisecond,
		BookingRateBurst:      100,
	}
	app := New(cfg, db,
		WithNotifier(notification.Discard{}),
		WithEngineOptions(booking.WithClock(func() time.Time { return testNow })),
	)
	return &testSuite{app: app, db: db}
}

func (s *testSuite) request(t *testing.T, method, path string, body any, token string) (int, testResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var resp testResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func (s *testSuite) staffAccount(t *testing.T, email string, role member.Role) {
	t.Helper()
	hash, err := member.HashPassword("Password123!")
	require.NoError(t, err)
	require.NoError(t, member.NewRepository(s.db).Create(context.Background(), &member.Member{
		Email: email, Name: string(role), PasswordHash: hash, Role: role, Status: member.StatusApproved,
	}))
}

func (s *testSuite) login(t *testing.T, email string) string {
	t.Helper()
	code, resp := s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": "Password123!"}, "")
	require.Equal(t, http.StatusOK, code, string(resp.Data))
	var out struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out.Tokens.AccessToken
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestMemberJourney(t *testing.T) {
	s := setupSuite(t)
	s.staffAccount(t, "admin@club.test", member.RoleAdmin)
	s.staffAccount(t, "coach@club.test", member.RoleTrainer)
	adminToken := s.login(t, "admin@club.test")
	coachToken := s.login(t, "coach@club.test")

	code, resp := s.request(t, http.MethodPost, "/api/v1/auth/register", gin.H{"name": "Anna", "email": "anna@club.test", "password": "Password123!"}, "")
	require.Equal(t, http.StatusCreated, code)
	anna := decode[struct {
		Member struct{ ID int64 } `json:"member"`
	}](t, resp.Data).Member.ID

	code, resp = s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "anna@club.test", "password": "Password123!"}, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PENDING_APPROVAL", resp.Error.Code)

	code, _ = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/members/%d/approve", anna), nil, coachToken)
	assert.Equal(t, http.StatusForbidden, code, "trainers cannot approve")
	code, _ = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/members/%d/approve", anna), nil, adminToken)
	require.Equal(t, http.StatusOK, code)
	annaToken := s.login(t, "anna@club.test")

	code, resp = s.request(t, http.MethodPost, "/api/v1/schedule/classes", gin.H{
		"title": "Boxing", "day_of_week": 1, "start_time": "18:00", "end_time": "19:00", "max_capacity": 1,
	}, coachToken)
	require.Equal(t, http.StatusCreated, code)
	classID := decode[struct {
		Class struct{ ID int64 } `json:"class"`
	}](t, resp.Data).Class.ID
	ref := fmt.Sprintf("recurring:%d", classID)

	code, _ = s.request(t, http.MethodPost, "/api/v1/schedule/classes", gin.H{
		"title": "Nope", "day_of_week": 1, "start_time": "18:00", "end_time": "19:00", "max_capacity": 1,
	}, annaToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = s.request(t, http.MethodGet, "/api/v1/schedule?date=2026-10-19", nil, annaToken)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), ref)

	code, resp = s.request(t, http.MethodPost, "/api/v1/bookings", gin.H{"date": "2026-10-19", "occurrence_ref": ref}, annaToken)
	require.Equal(t, http.StatusCreated, code, string(resp.Data))
	conf := decode[booking.Confirmation](t, resp.Data)
	assert.Equal(t, 11, conf.RemainingClasses)

	code, resp = s.request(t, http.MethodPost, "/api/v1/bookings", gin.H{"date": "2026-10-19", "occurrence_ref": ref}, annaToken)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "class_full", resp.Error.Code)

	code, resp = s.request(t, http.MethodPost, "/api/v1/bookings", gin.H{"date": "2026-10-26", "occurrence_ref": ref}, annaToken)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "outside_booking_window", resp.Error.Code)

	code, resp = s.request(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/can-cancel", conf.BookingID), nil, annaToken)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[booking.CancelCheck](t, resp.Data).CanCancel)

	code, _ = s.request(t, http.MethodGet, "/api/v1/roster?date=2026-10-19", nil, coachToken)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.request(t, http.MethodGet, "/api/v1/roster?date=2026-10-19", nil, annaToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", conf.BookingID), nil, annaToken)
	require.Equal(t, http.StatusOK, code)

	code, resp = s.request(t, http.MethodGet, "/api/v1/quota/entries?month=10&year=2026", nil, annaToken)
	require.Equal(t, http.StatusOK, code)
	entries := decode[struct {
		Entries []struct {
			Kind  string `json:"kind"`
			Delta int    `json:"delta"`
		} `json:"entries"`
	}](t, resp.Data).Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "reserve", entries[0].Kind)
	assert.Equal(t, "restore", entries[1].Kind)
}

func TestUnauthenticatedAndInfraRoutes(t *testing.T) {
	s := setupSuite(t)

	code, resp := s.request(t, http.MethodGet, "/api/v1/availability?date=2026-10-19", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTH_HEADER_MISSING", resp.Error.Code)

	code, _ = s.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
