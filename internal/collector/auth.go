package collector

import (
	"context"
	"errors"
	"net/http"

	"github.com/blockedby/tg-export/internal/telegram"
)

// AuthService drives the telegram login of the exporter.
type AuthService interface {
	GetStatus() telegram.Status
	IsQRInProgress() bool
	StartQR(ctx context.Context, onQRCode func(url string)) error
	CancelQR()
}

// AuthObserver receives the events of a QR login flow.
type AuthObserver interface {
	AuthQR(url string)
	AuthSucceeded()
	AuthFailed(err error)
}

// HandlerOption configures optional handler collaborators.
type HandlerOption func(*Handler)

// WithAuth enables the /api/v1/auth endpoints. observer may be nil.
func WithAuth(auth AuthService, observer AuthObserver) HandlerOption {
	return func(h *Handler) {
		h.auth = auth
		h.authEvents = observer
	}
}

// AuthStatus handles GET /api/v1/auth/status
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		respondError(w, http.StatusServiceUnavailable, "telegram auth is not configured")
		return
	}

	status := h.auth.GetStatus()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         string(status),
		"is_ready":       status == telegram.StatusReady,
		"qr_in_progress": h.auth.IsQRInProgress(),
	})
}

// StartQR handles POST /api/v1/auth/qr
// the QR url arrives through the auth observer
func (h *Handler) StartQR(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		respondError(w, http.StatusServiceUnavailable, "telegram auth is not configured")
		return
	}

	if h.auth.GetStatus() == telegram.StatusReady {
		respondError(w, http.StatusBadRequest, "already logged in")
		return
	}

	if h.auth.IsQRInProgress() {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "already in progress"})
		return
	}

	// the flow outlives the request
	go func() {
		err := h.auth.StartQR(context.Background(), func(url string) {
			if h.authEvents != nil {
				h.authEvents.AuthQR(url)
			}
		})
		if h.authEvents == nil {
			return
		}
		switch {
		case err == nil:
			h.authEvents.AuthSucceeded()
		case !errors.Is(err, context.Canceled):
			h.authEvents.AuthFailed(err)
		}
	}()

	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// CancelQR handles DELETE /api/v1/auth/qr
func (h *Handler) CancelQR(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		respondError(w, http.StatusServiceUnavailable, "telegram auth is not configured")
		return
	}
	h.auth.CancelQR()
	respondJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}
