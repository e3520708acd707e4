package eventlog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityVault/internal/storage"
	"liquidityVault/internal/vault"
)

// Sink publishes committed vault events as encoded log records.
type Sink struct {
	encoder *Encoder
	store   storage.Storage
	logger  *zap.Logger
}

// NewSink wires an encoder to a log store. It satisfies vault.EventSink.
func NewSink(encoder *Encoder, store storage.Storage, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{encoder: encoder, store: store, logger: logger}
}

var _ vault.EventSink = (*Sink)(nil)

// Publish encodes and stores the events of one committed session.
func (s *Sink) Publish(ctx context.Context, sessionID uint64, events []vault.Event) error {
	logs, err := s.encoder.Encode(sessionID, events)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	if err := s.store.PutLogBatch(ctx, logs); err != nil {
		return fmt.Errorf("store session %d logs: %w", sessionID, err)
	}
	s.logger.Debug("session logs stored", zap.Uint64("session_id", sessionID), zap.Int("logs", len(logs)))
	return nil
}
