package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockedby/tg-export/internal/config"
	"github.com/blockedby/tg-export/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"gorm.io/gorm"
)

// Status represents the Telegram client status.
type Status string

// Status constants define the possible states of the Telegram client.
// ERROR follows a failed QR login until the next Connect or login.
const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusError        Status = "ERROR"
)

// ClientFactory is a function that creates a telegram client.
type ClientFactory func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error)

// QRClientFactory is a function that creates a raw telegram client for QR auth.
type QRClientFactory func(cfg *config.Config) (*QRClientBundle, error)

// Manager owns the stored session and hands out one authenticated
// Client per export run.
type Manager struct {
	db  *gorm.DB
	cfg *config.Config
	log *logger.Logger

	status Status
	mu     sync.RWMutex

	clientFactory   ClientFactory
	qrClientFactory QRClientFactory

	// QR flow state management
	qrInProgress atomic.Bool
	qrCancel     context.CancelFunc
	qrMu         sync.Mutex
}

// NewManager creates a new Telegram Manager.
// db stores the session when no session string is configured; it may be nil.
func NewManager(cfg *config.Config, db *gorm.DB) *Manager {
	return &Manager{
		db:              db,
		cfg:             cfg,
		log:             logger.Get(),
		status:          StatusInitializing,
		clientFactory:   NewPersistentClient,
		qrClientFactory: NewQRClient,
	}
}

// SetClientFactory allows overriding the client creation logic (e.g. for testing).
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientFactory = f
}

// SetQRClientFactory allows overriding the QR client creation logic (e.g. for testing).
func (m *Manager) SetQRClientFactory(f QRClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrClientFactory = f
}

// GetStatus returns the current Telegram client status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// hasStoredSession checks the sessions table for a saved login.
func (m *Manager) hasStoredSession() bool {
	if m.db == nil {
		return false
	}
	var count int64
	if err := m.db.Table("sessions").Count(&count).Error; err != nil {
		m.log.Warn().Err(err).Msg("telegram: failed to check sessions table")
		return false
	}
	return count > 0
}

// Connect opens an authenticated connection for one export run.
// The caller owns the returned Client and must Close it.
// Missing credentials or an unusable session yield ErrNotAuthorized.
func (m *Manager) Connect(ctx context.Context) (*Client, error) {
	if !m.cfg.HasTelegramCredentials() {
		m.setStatus(StatusUnauthorized)
		return nil, fmt.Errorf("%w: TG_API_ID and TG_API_HASH are required", ErrNotAuthorized)
	}

	if m.cfg.TGSessionStr == "" && !m.hasStoredSession() {
		m.log.Info().Msg("telegram: no session configured or stored, waiting for auth")
		m.setStatus(StatusUnauthorized)
		return nil, fmt.Errorf("%w: no session available, run tg-auth first", ErrNotAuthorized)
	}

	m.mu.RLock()
	factory := m.clientFactory
	m.mu.RUnlock()

	proto, err := factory(ctx, m.cfg, m.db)
	if err != nil {
		m.log.Warn().Err(err).Msg("telegram: failed to initialize client, switching to unauthorized mode")
		m.setStatus(StatusUnauthorized)
		return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}

	m.setStatus(StatusReady)
	m.log.Info().Msg("telegram: client is ready")

	return NewClient(proto, NewRateLimiter(m.cfg.TGRequestsPerSec, 1)), nil
}

// IsQRInProgress returns true if a QR login flow is currently in progress.
func (m *Manager) IsQRInProgress() bool {
	return m.qrInProgress.Load()
}

// StartQR runs the QR login flow and stores the resulting session.
// Blocks until login succeeds or ctx is canceled.
func (m *Manager) StartQR(ctx context.Context, onQRCode func(url string)) error {
	if m.db == nil {
		return errors.New("QR login needs a session database")
	}

	m.qrMu.Lock()
	if m.qrInProgress.Load() {
		m.qrMu.Unlock()
		return fmt.Errorf("QR login already in progress")
	}
	qrCtx, cancel := context.WithCancel(ctx)
	m.qrCancel = cancel
	m.qrInProgress.Store(true)
	m.qrMu.Unlock()

	defer func() {
		m.qrInProgress.Store(false)
		m.qrMu.Lock()
		if m.qrCancel != nil {
			m.qrCancel()
			m.qrCancel = nil
		}
		m.qrMu.Unlock()
	}()

	m.mu.RLock()
	factory := m.qrClientFactory
	m.mu.RUnlock()

	bundle, err := factory(m.cfg)
	if err != nil {
		m.setStatus(StatusError)
		return fmt.Errorf("create QR client: %w", err)
	}

	var authErr error
	var sessionData *session.Data

	err = bundle.Client.Run(qrCtx, func(ctx context.Context) error {
		qr := bundle.Client.QR()
		loggedIn := qrlogin.OnLoginToken(&bundle.Dispatcher)

		_, authErr = qr.Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			m.log.Info().Msg("telegram: QR token generated")
			onQRCode(token.URL())
			return nil
		})
		if authErr != nil {
			return authErr
		}

		loader := session.Loader{Storage: bundle.Storage}
		sessionData, authErr = loader.Load(ctx)
		return authErr
	})

	if err != nil || authErr != nil {
		if errors.Is(err, context.Canceled) || errors.Is(authErr, context.Canceled) {
			return context.Canceled
		}
		m.setStatus(StatusError)
		return fmt.Errorf("QR auth flow failed: %w", errors.Join(err, authErr))
	}

	if sessionData == nil {
		m.setStatus(StatusError)
		return fmt.Errorf("session data is nil after successful auth")
	}

	m.log.Info().Msg("telegram: saving session to database")
	if err := m.saveSession(sessionData); err != nil {
		m.setStatus(StatusError)
		return fmt.Errorf("save session: %w", err)
	}

	m.setStatus(StatusInitializing)
	return nil
}

// CancelQR cancels any ongoing QR login flow.
func (m *Manager) CancelQR() {
	m.qrMu.Lock()
	defer m.qrMu.Unlock()

	if m.qrCancel != nil {
		m.log.Info().Msg("telegram: canceling ongoing QR flow")
		m.qrCancel()
		m.qrCancel = nil
	}
	m.qrInProgress.Store(false)
}

func (m *Manager) saveSession(data *session.Data) error {
	sess, err := toStoredSession(data)
	if err != nil {
		return err
	}
	if err := m.db.AutoMigrate(sess); err != nil {
		return fmt.Errorf("migrate sessions table: %w", err)
	}
	// Version is the primary key, so Save upserts the single row
	return m.db.Save(sess).Error
}
