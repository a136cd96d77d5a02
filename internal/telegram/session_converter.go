package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
)

// storedSessionVersion is the version gotd writes into its session envelope.
const storedSessionVersion = 1

// toStoredSession wraps gotd session.Data into the row gotgproto's sql session reads.
// The row payload uses gotd's envelope: {"Version":1,"Data":{...}}.
func toStoredSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("session data is nil")
	}

	envelope := struct {
		Version int
		Data    session.Data
	}{
		Version: storedSessionVersion,
		Data:    *data,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    payload,
	}, nil
}
