package collector

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-export/internal/telegram"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) GetStatus() telegram.Status {
	args := m.Called()
	return args.Get(0).(telegram.Status)
}

func (m *mockAuth) IsQRInProgress() bool {
	return m.Called().Bool(0)
}

func (m *mockAuth) StartQR(ctx context.Context, onQRCode func(url string)) error {
	args := m.Called(ctx, onQRCode)
	return args.Error(0)
}

func (m *mockAuth) CancelQR() {
	m.Called()
}

type authEvent struct {
	kind string
	val  string
}

// recordingAuthObserver forwards every auth event to a channel
type recordingAuthObserver struct {
	events chan authEvent
}

func newRecordingAuthObserver() *recordingAuthObserver {
	return &recordingAuthObserver{events: make(chan authEvent, 8)}
}

func (o *recordingAuthObserver) AuthQR(url string)    { o.events <- authEvent{"qr", url} }
func (o *recordingAuthObserver) AuthSucceeded()       { o.events <- authEvent{"success", ""} }
func (o *recordingAuthObserver) AuthFailed(err error) { o.events <- authEvent{"error", err.Error()} }

func (o *recordingAuthObserver) next(t *testing.T) authEvent {
	t.Helper()
	select {
	case e := <-o.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no auth event")
		return authEvent{}
	}
}

func newAuthRouter(auth AuthService, observer AuthObserver) http.Handler {
	m := NewRunManager(newTestService(nil), sourceOf(newFakeClient()))
	return NewRouter(NewHandler(m, WithAuth(auth, observer)))
}

func TestHandler_AuthStatus(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusUnauthorized)
	auth.On("IsQRInProgress").Return(true)

	rec := doRequest(newAuthRouter(auth, nil), http.MethodGet, "/api/v1/auth/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UNAUTHORIZED","is_ready":false,"qr_in_progress":true}`, rec.Body.String())
}

func TestHandler_HealthReportsTelegramStatus(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusReady)

	rec := doRequest(newAuthRouter(auth, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"telegram":"READY"`)
}

func TestHandler_AuthNotConfigured(t *testing.T) {
	router, _ := newTestRouter(newFakeClient())

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/auth/qr", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_StartQR_Success(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusUnauthorized)
	auth.On("IsQRInProgress").Return(false)
	auth.On("StartQR", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onQRCode := args.Get(1).(func(string))
			onQRCode("tg://login?token=abc")
		}).
		Return(nil)
	observer := newRecordingAuthObserver()

	rec := doRequest(newAuthRouter(auth, observer), http.MethodPost, "/api/v1/auth/qr", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"started"}`, rec.Body.String())

	assert.Equal(t, authEvent{"qr", "tg://login?token=abc"}, observer.next(t))
	assert.Equal(t, authEvent{"success", ""}, observer.next(t))
	auth.AssertExpectations(t)
}

func TestHandler_StartQR_Failure(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusUnauthorized)
	auth.On("IsQRInProgress").Return(false)
	auth.On("StartQR", mock.Anything, mock.Anything).Return(errors.New("QR auth flow failed"))
	observer := newRecordingAuthObserver()

	rec := doRequest(newAuthRouter(auth, observer), http.MethodPost, "/api/v1/auth/qr", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, authEvent{"error", "QR auth flow failed"}, observer.next(t))
}

func TestHandler_StartQR_CanceledIsSilent(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusUnauthorized)
	auth.On("IsQRInProgress").Return(false)
	done := make(chan struct{})
	auth.On("StartQR", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(context.Canceled)
	observer := newRecordingAuthObserver()

	rec := doRequest(newAuthRouter(auth, observer), http.MethodPost, "/api/v1/auth/qr", "")
	require.Equal(t, http.StatusOK, rec.Code)

	<-done
	select {
	case e := <-observer.events:
		t.Fatalf("unexpected auth event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandler_StartQR_AlreadyLoggedIn(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusReady)

	rec := doRequest(newAuthRouter(auth, nil), http.MethodPost, "/api/v1/auth/qr", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already logged in")
	auth.AssertNotCalled(t, "StartQR", mock.Anything, mock.Anything)
}

func TestHandler_StartQR_AlreadyInProgress(t *testing.T) {
	auth := new(mockAuth)
	auth.On("GetStatus").Return(telegram.StatusUnauthorized)
	auth.On("IsQRInProgress").Return(true)

	rec := doRequest(newAuthRouter(auth, nil), http.MethodPost, "/api/v1/auth/qr", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"already in progress"}`, rec.Body.String())
	auth.AssertNotCalled(t, "StartQR", mock.Anything, mock.Anything)
}

func TestHandler_CancelQR(t *testing.T) {
	auth := new(mockAuth)
	auth.On("CancelQR").Return()

	rec := doRequest(newAuthRouter(auth, nil), http.MethodDelete, "/api/v1/auth/qr", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	auth.AssertCalled(t, "CancelQR")
}
