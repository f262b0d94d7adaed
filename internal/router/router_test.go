package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-dashboard/internal/config"
	"github.com/noah-isme/syllabus-dashboard/internal/database"
	"github.com/noah-isme/syllabus-dashboard/internal/handler"
	"github.com/noah-isme/syllabus-dashboard/internal/middleware"
	"github.com/noah-isme/syllabus-dashboard/internal/repository"
	"github.com/noah-isme/syllabus-dashboard/internal/router"
	"github.com/noah-isme/syllabus-dashboard/internal/service"
	"github.com/noah-isme/syllabus-dashboard/internal/store"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
	"github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"
)

// fakeExtractor serves the upstream API with one syllabus that completes on the second poll.
type fakeExtractor struct {
	mu        sync.Mutex
	uploaded  bool
	polls     int
	completed bool
}

func (f *fakeExtractor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/upload/syllabus":
		f.uploaded = true
		_, _ = w.Write([]byte(`{"id":42,"filename":"cs101.pdf","processing_status":"processing"}`))
	case "/api/upload/status/42":
		f.polls++
		if f.polls < 2 {
			_, _ = w.Write([]byte(`{"id":42,"status":"processing"}`))
			return
		}
		f.completed = true
		_, _ = w.Write([]byte(`{"id":42,"status":"completed","assignment_count":2,"course_name":"CS101"}`))
	case "/api/assignments":
		if !f.completed {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"syllabus_id":42,"title":"Problem set 1","due_date":"2030-01-15","assignment_type":"Homework"},
			{"id":2,"syllabus_id":42,"title":"Midterm","due_date":"2030-02-20","assignment_type":"exam","estimated_hours":6}
		]`))
	case "/api/assignments/stats":
		if !f.completed {
			_, _ = w.Write([]byte(`{"total":0,"upcoming":0,"overdue":0,"total_hours":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"total":2,"upcoming":2,"overdue":0,"total_hours":6,"by_type":{"homework":1,"exam":1}}`))
	case "/api/upload/history":
		if !f.completed {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":42,"filename":"cs101.pdf","course_name":"CS101","processing_status":"completed","assignment_count":2}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found"}`))
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zerolog.Nop()

	upstream := httptest.NewServer(&fakeExtractor{})
	t.Cleanup(upstream.Close)

	cfg := config.Config{AppName: "Syllabus Dashboard", AppEnv: "test"}

	client, err := syllabusapi.New(syllabusapi.Config{BaseURL: upstream.URL + "/api", Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)

	db, err := database.Connect(config.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)

	cache := store.New(client, store.Options{}, logger)
	tokens, err := middleware.NewSessionTokens("test-secret", time.Hour)
	require.NoError(t, err)

	uploads := service.NewUploadService(client, cache, repository.NewIngestionRepository(db), nil, service.UploadConfig{
		PollInterval:      5 * time.Millisecond,
		ProcessingTimeout: 5 * time.Second,
		MaxUploadBytes:    1024 * 1024,
	}, logger)
	assignments := service.NewAssignmentService(cache, client, validator.New(validator.WithRequiredStructEnabled()), logger)
	syllabi := service.NewSyllabusService(cache, client, logger)
	exports := service.NewExportService(client)
	dashboard := service.NewDashboardService(cache, uploads, assignments, syllabi, exports, logger)

	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(tokens, logger),
		UploadHandler:     handler.NewUploadHandler(uploads, 1024*1024, nil, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignments, logger),
		SyllabusHandler:   handler.NewSyllabusHandler(syllabi, logger),
		DashboardHandler:  handler.NewDashboardHandler(dashboard, assignments, logger),
		ExportHandler:     handler.NewExportHandler(exports, logger),
		SessionMiddleware: middleware.SessionProtected(tokens),
	})
	return app
}

func call(t *testing.T, app *fiber.App, req *http.Request, token string, out interface{}) int {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(body) > 0 {
		var env envelope
		require.NoError(t, json.Unmarshal(body, &env))
		if len(env.Data) > 0 {
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
	}
	return resp.StatusCode
}

func TestDashboardFlow(t *testing.T) {
	app := newTestApp(t)

	var session struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
	}
	require.Equal(t, http.StatusCreated, call(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil), "", &session))
	require.NotEmpty(t, session.Token)

	var dashboard map[string]interface{}
	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), session.Token, &dashboard))
	require.Equal(t, false, dashboard["has_assignments"])
	require.Equal(t, service.EmptyDashboardPrompt, dashboard["empty_prompt"])

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "cs101.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n%syllabus"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	upload := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	upload.Header.Set("Content-Type", writer.FormDataContentType())

	var state map[string]interface{}
	require.Equal(t, http.StatusAccepted, call(t, app, upload, session.Token, &state))
	require.Equal(t, "uploading", state["state"])

	require.Eventually(t, func() bool {
		var current map[string]interface{}
		call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/current", nil), session.Token, &current)
		return current["state"] == "complete"
	}, 5*time.Second, 20*time.Millisecond)

	var current map[string]interface{}
	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/current", nil), session.Token, &current))
	require.Equal(t, "Found 2 assignments in CS101", current["message"])

	dashboard = nil
	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?type=exam", nil), session.Token, &dashboard))
	require.Equal(t, true, dashboard["has_assignments"])
	list := dashboard["assignments"].(map[string]interface{})
	require.EqualValues(t, 2, list["total"])
	require.EqualValues(t, 1, list["matched"])
	require.Len(t, dashboard["exports"], 3)

	require.Eventually(t, func() bool {
		var attempts struct {
			Items []map[string]interface{} `json:"items"`
		}
		call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/attempts", nil), session.Token, &attempts)
		return len(attempts.Items) == 1 && attempts.Items[0]["state"] == "complete"
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, http.StatusConflict, call(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil), session.Token, nil))
	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/uploads/reset", nil), session.Token, nil))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/assignments", "/api/v1/syllabi", "/api/v1/stats", "/api/v1/uploads/current", "/api/v1/export/ics"} {
		require.Equal(t, http.StatusUnauthorized, call(t, app, httptest.NewRequest(http.MethodGet, path, nil), "", nil), path)
	}
}

func TestPublicRoutes(t *testing.T) {
	app := newTestApp(t)

	var health handler.HealthResponse
	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), "", &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "Syllabus Dashboard", health.Service)

	require.Equal(t, http.StatusOK, call(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil), "", nil))
	require.Equal(t, http.StatusNotFound, call(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil), "", nil))
}
