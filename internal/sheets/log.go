package sheets

import (
	"context"
	"strconv"
	"sync/atomic"

	"finanzas/internal/log"
)

// LogWriter records activity rows as structured log lines. It is the sink
// used when no spreadsheet is configured.
type LogWriter struct {
	logger *log.Logger
	n      atomic.Int64
}

var _ ActivityWriter = (*LogWriter)(nil)

func NewLogWriter(logger *log.Logger) *LogWriter {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogWriter{logger: logger.WithComponent(log.ComponentSheets)}
}

func (w *LogWriter) AppendActivity(ctx context.Context, row Row) (string, error) {
	n := w.n.Add(1)
	w.logger.InfoContext(ctx, "Activity recorded",
		log.FieldEventID, row.EventID,
		log.FieldEventType, row.Type,
		log.FieldUserID, row.UserID,
		"entity_id", row.EntityID,
		"summary", row.Summary,
		"details", row.Details)
	return logRef(n), nil
}

func logRef(n int64) string {
	return "log:" + strconv.FormatInt(n, 10)
}
