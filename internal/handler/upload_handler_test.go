package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/internal/handler"
	"github.com/noah-isme/syllabus-dashboard/internal/ingestion"
	"github.com/noah-isme/syllabus-dashboard/internal/utils"
)

func newUploadApp(svc *uploadServiceStub, maxBytes int64) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	group := app.Group("/api/v1/uploads", withSession("session-1"))
	handler.NewUploadHandler(svc, maxBytes, nil, zerolog.Nop()).Register(group)
	return app
}

func multipartRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) utils.APIResponse {
	t.Helper()
	var envelope struct {
		utils.APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if data != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.APIResponse
}

func TestUploadHandler_SubmitAccepted(t *testing.T) {
	svc := &uploadServiceStub{state: dto.UploadStateResponse{State: ingestion.StateUploading, FileName: "syllabus.pdf"}}
	app := newUploadApp(svc, 1024)

	resp, err := app.Test(multipartRequest(t, map[string][]byte{"syllabus.pdf": []byte("%PDF-1.4 body")}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var state dto.UploadStateResponse
	envelope := decodeEnvelope(t, resp, &state)
	require.True(t, envelope.Success)
	require.Equal(t, ingestion.StateUploading, state.State)

	require.Equal(t, "session-1", svc.sessionID)
	require.Len(t, svc.files, 1)
	require.Equal(t, "syllabus.pdf", svc.files[0].Name)
	require.Equal(t, []byte("%PDF-1.4 body"), svc.files[0].Data)
}

func TestUploadHandler_OversizedPartIsNotBuffered(t *testing.T) {
	svc := &uploadServiceStub{submitErr: &ingestion.ValidationError{Reason: ingestion.ReasonSize, Message: "file exceeds the 10 MB limit"}}
	app := newUploadApp(svc, 8)

	resp, err := app.Test(multipartRequest(t, map[string][]byte{"big.pdf": bytes.Repeat([]byte("a"), 64)}))
	require.NoError(t, err)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	envelope := decodeEnvelope(t, resp, nil)
	require.False(t, envelope.Success)
	require.Equal(t, "file exceeds the 10 MB limit", envelope.Message)

	require.Len(t, svc.files, 1)
	require.EqualValues(t, 64, svc.files[0].Size)
	require.Nil(t, svc.files[0].Data)
}

func TestUploadHandler_SubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "type", err: &ingestion.ValidationError{Reason: ingestion.ReasonType, Message: "unsupported file type"}, status: http.StatusBadRequest},
		{name: "busy", err: ingestion.ErrBusy, status: http.StatusConflict},
		{name: "not idle", err: ingestion.ErrNotIdle, status: http.StatusConflict},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newUploadApp(&uploadServiceStub{submitErr: tc.err}, 1024)
			resp, err := app.Test(multipartRequest(t, map[string][]byte{"notes.txt": []byte("hello")}))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestUploadHandler_SubmitWithoutForm(t *testing.T) {
	svc := &uploadServiceStub{submitErr: &ingestion.ValidationError{Reason: ingestion.ReasonMissing, Message: "choose a file to upload"}}
	app := newUploadApp(svc, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.files)
}

func TestUploadHandler_ResetAndCurrent(t *testing.T) {
	svc := &uploadServiceStub{state: dto.UploadStateResponse{State: ingestion.StateIdle, CanSubmit: true}}
	app := newUploadApp(svc, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/current", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/uploads/reset", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	svc.resetErr = ingestion.ErrNotTerminal
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/uploads/reset", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUploadHandler_Attempts(t *testing.T) {
	svc := &uploadServiceStub{attempts: dto.IngestionRecordListResponse{
		Items:      []dto.IngestionRecordResponse{{ID: 3, FileName: "a.pdf", State: "complete"}},
		Pagination: dto.NewPaginationMeta(2, 5, 6),
	}}
	app := newUploadApp(svc, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/attempts?page=2&page_size=5", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, svc.page)
	require.Equal(t, 5, svc.pageSize)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/attempts?page=x", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadHandler_StreamRejectsPlainRequests(t *testing.T) {
	app := newUploadApp(&uploadServiceStub{}, 1024)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/ws", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestUploadHandler_StreamPushesStateChanges(t *testing.T) {
	svc := &uploadServiceStub{state: dto.UploadStateResponse{State: ingestion.StateIdle}}
	app := newUploadApp(svc, 1024)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(listener) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := fmt.Sprintf("ws://%s/api/v1/uploads/ws", listener.Addr().String())
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var state dto.UploadStateResponse
	require.NoError(t, conn.ReadJSON(&state))
	require.Equal(t, ingestion.StateIdle, state.State)

	svc.publish(dto.UploadStateResponse{State: ingestion.StateProcessing, Polls: 1})

	require.NoError(t, conn.ReadJSON(&state))
	require.Equal(t, ingestion.StateProcessing, state.State)
	require.Equal(t, 1, state.Polls)
}
