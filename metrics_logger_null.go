package training

import "context"

// NullMetricsLogger is a no-op implementation of MetricsLogger.
type NullMetricsLogger struct{}

func NewNullMetricsLogger() *NullMetricsLogger {
	return &NullMetricsLogger{}
}

func (l *NullMetricsLogger) LogRecord(ctx context.Context, record *MetricsRecord) error {
	return nil
}

func (l *NullMetricsLogger) GetHistory(ctx context.Context, sessionID string) ([]*MetricsRecord, error) {
	return nil, nil
}
