package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"finanzas/internal/amqp"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// ActivityWorker turns domain events into rows of the activity sheet.
type ActivityWorker struct {
	writer sheets.ActivityWriter
	logger *log.Logger
}

func NewActivityWorker(writer sheets.ActivityWriter, logger *log.Logger) *ActivityWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ActivityWorker{writer: writer, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent appends one row for ev. A write failure is returned so the
// delivery is requeued.
func (w *ActivityWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	w.logger.InfoContext(ctx, "Processing event",
		log.FieldEventID, ev.ID,
		log.FieldEventType, ev.Type,
		log.FieldUserID, ev.UserID)

	ref, err := w.writer.AppendActivity(ctx, RowFromEvent(ev))
	if err != nil {
		return fmt.Errorf("append activity %s: %w", ev.ID, err)
	}

	w.logger.DebugContext(ctx, "Activity row written", log.FieldEventID, ev.ID, "row_ref", ref)
	return nil
}

// RowFromEvent maps an event onto the activity sheet columns. Attributes are
// flattened into a stable "key=value; ..." string.
func RowFromEvent(ev *amqp.Event) sheets.Row {
	return sheets.Row{
		Timestamp: ev.Timestamp,
		EventID:   ev.ID,
		Type:      string(ev.Type),
		UserID:    ev.UserID,
		EntityID:  ev.EntityID,
		Summary:   ev.Summary,
		Details:   details(ev.Attrs),
	}
}

func details(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + attrs[k]
	}
	return strings.Join(parts, "; ")
}
