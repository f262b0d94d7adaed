package syllabusapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL + "/api"}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestSubmitUploadSendsMultipartFile(t *testing.T) {
	var received []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload/syllabus", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "cs101.pdf", header.Filename)
		received, err = io.ReadAll(file)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 42, "filename": "cs101.pdf", "processing_status": "processing"})
	})

	client := newTestClient(t, mux)
	receipt, err := client.SubmitUpload(context.Background(), models.UploadFile{Name: "cs101.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	require.Equal(t, uint(42), receipt.ID)
	require.Equal(t, []byte("%PDF-1.4"), received)
}

func TestSubmitUploadSurfacesDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"File type .exe not supported"}`))
	}))

	_, err := client.SubmitUpload(context.Background(), models.UploadFile{Name: "a.pdf", Data: []byte("x")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "File type .exe not supported", apiErr.Detail)
}

func TestGetStatusValidatesPayload(t *testing.T) {
	payloads := map[string]string{
		"/api/upload/status/1": `{"id":1,"status":"completed","assignment_count":7,"course_name":"CS101"}`,
		"/api/upload/status/2": `{"id":2,"status":"failed: unreadable document","assignment_count":0,"course_name":null}`,
		"/api/upload/status/3": `{"id":3,"status":"exploded"}`,
		"/api/upload/status/4": `{"id":4,"status":"completed","assignment_count":-1}`,
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Syllabus not found"}`))
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	ctx := context.Background()

	completed, err := client.GetStatus(ctx, 1)
	require.NoError(t, err)
	require.True(t, completed.IsCompleted())
	require.Equal(t, 7, *completed.AssignmentCount)
	require.Equal(t, "CS101", *completed.CourseName)

	failed, err := client.GetStatus(ctx, 2)
	require.NoError(t, err)
	require.True(t, failed.IsFailed())
	require.Equal(t, "failed: unreadable document", failed.Status)

	_, err = client.GetStatus(ctx, 3)
	require.ErrorIs(t, err, ErrInvalidStatusPayload)

	_, err = client.GetStatus(ctx, 4)
	require.ErrorIs(t, err, ErrInvalidStatusPayload)

	_, err = client.GetStatus(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAssignmentsNormalizesTypes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/assignments", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("syllabus_id"))
		_, _ = w.Write([]byte(`[
			{"id":1,"syllabus_id":3,"title":"Week 1 reading","assignment_type":"reading","due_date":"2025-02-01"},
			{"id":2,"syllabus_id":3,"title":"Attendance","assignment_type":"attendance","due_date":null},
			{"id":3,"syllabus_id":3,"title":"Untyped"}
		]`))
	}))

	syllabusID := uint(3)
	assignments, err := client.ListAssignments(context.Background(), &syllabusID)
	require.NoError(t, err)
	require.Len(t, assignments, 3)
	require.Equal(t, models.AssignmentTypeReading, assignments[0].AssignmentType)
	require.Equal(t, 2025, assignments[0].DueDate.Year)
	require.Equal(t, models.AssignmentTypeOther, assignments[1].AssignmentType)
	require.Nil(t, assignments[1].DueDate)
	require.Equal(t, models.AssignmentTypeOther, assignments[2].AssignmentType)
}

func TestUpdateAssignmentSendsPatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]interface{}{"estimated_hours": 3.5}, body)
		_, _ = w.Write([]byte(`{"id":5,"syllabus_id":1,"title":"Lab","assignment_type":"lab","estimated_hours":3.5}`))
	}))

	hours := 3.5
	updated, err := client.UpdateAssignment(context.Background(), 5, models.AssignmentPatch{EstimatedHours: &hours})
	require.NoError(t, err)
	require.Equal(t, 3.5, updated.Hours())
}

func TestDeleteNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Assignment not found"}`))
	}))

	err := client.DeleteAssignment(context.Background(), 8)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestExportURL(t *testing.T) {
	client, err := New(Config{BaseURL: "http://extractor:8000/api/"}, zerolog.Nop())
	require.NoError(t, err)

	link, err := client.ExportURL(ExportICS, nil)
	require.NoError(t, err)
	require.Equal(t, "http://extractor:8000/api/export/ics", link)

	syllabusID := uint(9)
	link, err = client.ExportURL(ExportCSV, &syllabusID)
	require.NoError(t, err)
	require.Equal(t, "http://extractor:8000/api/export/csv?syllabus_id=9", link)

	_, err = client.ExportURL(ExportFormat("pdf"), nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

type correlationKey struct{}

func TestCorrelationIDForwarded(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("X-Correlation-ID")
		_, _ = w.Write([]byte(`{"total":0,"upcoming":0,"overdue":0,"total_hours":0}`))
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL: server.URL + "/api",
		CorrelationID: func(ctx context.Context) string {
			id, _ := ctx.Value(correlationKey{}).(string)
			return id
		},
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), correlationKey{}, "req-123")
	_, err = client.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, "req-123", received)
}
