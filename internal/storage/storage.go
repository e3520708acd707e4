package storage

import (
	"context"

	"liquidityVault/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// Memory keeps log records in memory.
type Memory struct {
	Logs []model.LogRecord
}

func (m *Memory) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.Logs = append(m.Logs, logs...)
	return nil
}
