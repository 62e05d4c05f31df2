package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/http/handlers"
	"github.com/codelabx/regdesk/internal/kvstore"
	"github.com/codelabx/regdesk/internal/notifications"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake backend implementation of the handlers.RegistrationBackend interface

type fakeBackend struct {
	insertFn func(ctx context.Context, rec registration.Record) error
	existsFn func(ctx context.Context, flow, email, phone string) (bool, error)
	countFn  func(ctx context.Context, flow string) (int, error)
	listFn   func(ctx context.Context, flow string) ([]registration.Record, error)

	inserted []registration.Record
}

func (f *fakeBackend) Insert(ctx context.Context, rec registration.Record) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, rec)
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeBackend) ExistsByContact(ctx context.Context, flow, email, phone string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, flow, email, phone)
	}
	return false, nil
}

func (f *fakeBackend) CountTeams(ctx context.Context, flow string) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, flow)
	}
	return 0, nil
}

func (f *fakeBackend) ListByFlow(ctx context.Context, flow string) ([]registration.Record, error) {
	if f.listFn != nil {
		return f.listFn(ctx, flow)
	}
	return nil, nil
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, flow string, r *registration.Receipt) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeNotifier struct{}

func (fakeNotifier) SendConfirmation(_ context.Context, _ notifications.SendConfirmationInput) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type world struct {
	backend  *fakeBackend
	uploader *fakeUploader
	markers  *kvstore.Memory
	handler  *handlers.RegistrationsHandler
}

func newWorld(capacity int) *world {
	backend := &fakeBackend{}
	uploader := &fakeUploader{url: "https://cdn.example.com/receipts/r.png"}
	markers := kvstore.NewMemory(0)

	h := handlers.NewRegistrationsHandler(
		backend,
		uploader,
		fakeNotifier{},
		markers,
		nil,
		discardLogger(),
		[]registration.Flow{registration.HackathonFlow(capacity), registration.GeneralFlow()},
		10*time.Millisecond,
	)

	return &world{backend: backend, uploader: uploader, markers: markers, handler: h}
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func validHackathonDraft() map[string]interface{} {
	return map[string]interface{}{
		"teamName":             "Byte Brigade",
		"collegeName":          "NIT Harbor",
		"affiliatedUniversity": "Harbor State University",
		"leaderName":           "Asha Rao",
		"leaderEmail":          "asha@college.edu",
		"leaderPhone":          "+91 98765 43210",
		"alternateContact":     "+91 91234 56780",
		"teamSize":             3,
		"participants": []map[string]string{
			{"fullName": "Ravi Kumar"},
			{"fullName": "Meera Shah"},
		},
		"vegetarianCount": 1,
		"projectIdea":     "An offline-first attendance tracker for rural schools",
	}
}

// multipartRequest builds the submit body: a "data" JSON field plus an
// optional "receipt" file part.
func multipartRequest(t *testing.T, path string, draft map[string]interface{}, withReceipt bool) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	raw, err := json.Marshal(draft)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("data", string(raw)))

	if withReceipt {
		hdr := make(map[string][]string)
		hdr["Content-Disposition"] = []string{`form-data; name="receipt"; filename="payment.png"`}
		hdr["Content-Type"] = []string{"image/png"}

		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRegisterHandler_Success(t *testing.T) {
	wld := newWorld(25)
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), true))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID         string               `json:"id"`
		ReceiptURL string               `json:"receiptUrl"`
		Summary    registration.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, wld.uploader.url, resp.ReceiptURL)
	assert.Equal(t, "Byte Brigade", resp.Summary.TeamName)
	assert.Equal(t, 3, resp.Summary.TeamSize)

	require.Len(t, wld.backend.inserted, 1)
	assert.Equal(t, "hackathon", wld.backend.inserted[0].Flow)

	// already-registered markers are persisted for the leader's contact
	_, ok, err := wld.markers.Get(context.Background(), "registered:hackathon:email:asha@college.edu")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterHandler_UnknownFlow(t *testing.T) {
	wld := newWorld(25)
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/cooking", validHackathonDraft(), true))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterHandler_ValidationFailure(t *testing.T) {
	wld := newWorld(25)
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	draft := validHackathonDraft()
	draft["teamName"] = ""
	draft["leaderEmail"] = "not-an-email"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", draft, true))

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields map[string]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error.Code)
	assert.Contains(t, resp.Error.Details.Fields, "teamName")
	assert.Contains(t, resp.Error.Details.Fields, "leaderEmail")

	// nothing was uploaded or persisted
	assert.Zero(t, wld.uploader.calls)
	assert.Empty(t, wld.backend.inserted)
}

func TestRegisterHandler_MissingReceipt(t *testing.T) {
	wld := newWorld(25)
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), false))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "paymentReceipt")
	assert.Zero(t, wld.uploader.calls)
}

func TestRegisterHandler_CapacityClosed(t *testing.T) {
	wld := newWorld(25)
	wld.backend.countFn = func(ctx context.Context, flow string) (int, error) {
		return 25, nil
	}
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), true))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "registration_closed")
	assert.Zero(t, wld.uploader.calls)
	assert.Empty(t, wld.backend.inserted)
}

func TestRegisterHandler_DuplicateMarkerShortCircuits(t *testing.T) {
	wld := newWorld(25)

	err := wld.markers.Set(context.Background(), "registered:hackathon:email:asha@college.edu", "asha@college.edu")
	require.NoError(t, err)

	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), true))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_registered")
	assert.Zero(t, wld.uploader.calls)
}

func TestRegisterHandler_UniqueViolationAtInsert(t *testing.T) {
	wld := newWorld(25)
	wld.backend.insertFn = func(ctx context.Context, rec registration.Record) error {
		return registration.ErrAlreadyRegistered
	}
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), true))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_registered")

	// losing the race still seeds the marker for the next attempt
	_, ok, err := wld.markers.Get(context.Background(), "registered:hackathon:email:asha@college.edu")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterHandler_UploadFailure(t *testing.T) {
	wld := newWorld(25)
	wld.uploader.err = errors.New("bucket unreachable")
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/hackathon", validHackathonDraft(), true))

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upload_failed")
	assert.Empty(t, wld.backend.inserted)
}

func TestRegisterHandler_GeneralFlowNoReceipt(t *testing.T) {
	wld := newWorld(25)
	r := setupRouter(http.MethodPost, "/registrations/:flow", wld.handler.Register)

	draft := map[string]interface{}{
		"teamName":             "Solo Act",
		"collegeName":          "NIT Harbor",
		"affiliatedUniversity": "Harbor State University",
		"leaderName":           "Dev Patel",
		"leaderEmail":          "dev@college.edu",
		"leaderPhone":          "9876501234",
		"alternateContact":     "9123409876",
		"teamSize":             1,
		"participants": []map[string]string{
			{"fullName": "Dev Patel"},
		},
		"vegetarianCount": 0,
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/registrations/general", draft, false))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Zero(t, wld.uploader.calls)
	require.Len(t, wld.backend.inserted, 1)
	assert.Equal(t, "general", wld.backend.inserted[0].Flow)
	assert.Empty(t, wld.backend.inserted[0].ReceiptURL)
}

func TestCheckContactHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		exists     bool
		existsErr  error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "registered email",
			query:      "?email=asha@college.edu",
			exists:     true,
			wantStatus: http.StatusOK,
			wantBody:   `"registered":true`,
		},
		{
			name:       "fresh contact",
			query:      "?email=new@college.edu&phone=9876543210",
			exists:     false,
			wantStatus: http.StatusOK,
			wantBody:   `"registered":false`,
		},
		{
			name:       "lookup failure fails open",
			query:      "?email=flaky@college.edu",
			existsErr:  errors.New("db down"),
			wantStatus: http.StatusOK,
			wantBody:   `"registered":false`,
		},
		{
			name:       "no contact given",
			query:      "",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wld := newWorld(25)
			wld.backend.existsFn = func(ctx context.Context, flow, email, phone string) (bool, error) {
				return tt.exists, tt.existsErr
			}

			r := setupRouter(http.MethodGet, "/registrations/:flow/check", wld.handler.CheckContact)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registrations/hackathon/check"+tt.query, nil))

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCheckContactHandler_MarkerHitSkipsBackend(t *testing.T) {
	wld := newWorld(25)

	err := wld.markers.Set(context.Background(), "registered:hackathon:phone:9876543210", "9876543210")
	require.NoError(t, err)

	backendCalls := 0
	wld.backend.existsFn = func(ctx context.Context, flow, email, phone string) (bool, error) {
		backendCalls++
		return false, nil
	}

	r := setupRouter(http.MethodGet, "/registrations/:flow/check", wld.handler.CheckContact)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registrations/hackathon/check?phone=9876543210", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"registered":true`)
	assert.Zero(t, backendCalls)
}

func TestCapacityHandler(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		countErr error
		wantBody string
	}{
		{name: "open", count: 10, wantBody: `"closed":false`},
		{name: "exactly at quota", count: 25, wantBody: `"closed":true`},
		{name: "over quota", count: 30, wantBody: `"closed":true`},
		{name: "count failure fails open", countErr: errors.New("db down"), wantBody: `"closed":false`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wld := newWorld(25)
			wld.backend.countFn = func(ctx context.Context, flow string) (int, error) {
				return tt.count, tt.countErr
			}

			r := setupRouter(http.MethodGet, "/registrations/:flow/capacity", wld.handler.Capacity)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registrations/hackathon/capacity", nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
