// Package usage appends one metering record per successful dispatch. The
// log is write-only from the gateway's point of view; an external
// accounting view consumes it.
package usage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hearthside.org/internal/ids"
	"hearthside.org/internal/store"
)

const table = "usage_log"

// VendorInternal tags calls routed inside the gateway itself.
const VendorInternal = "internal"

// Record is one immutable metering row.
type Record struct {
	Vendor     string
	Category   string
	Endpoint   string
	Units      int64
	CostCents  int64
	CallerID   string
	AuthMethod string
	OccurredAt time.Time
}

// Logger writes usage records through the data-access interface.
type Logger struct {
	st  store.Store
	log zerolog.Logger
	now func() time.Time
}

// NewLogger constructs a usage Logger.
func NewLogger(st store.Store, log zerolog.Logger) *Logger {
	return &Logger{st: st, log: log, now: time.Now}
}

// Append writes the record. Failures are absorbed and surfaced only in
// diagnostics: metering must never fail the request it meters.
func (l *Logger) Append(ctx context.Context, rec Record) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = l.now().UTC()
	}
	if rec.Units == 0 {
		rec.Units = 1
	}
	row := store.Row{
		"id":          ids.New(),
		"vendor":      rec.Vendor,
		"category":    rec.Category,
		"endpoint":    rec.Endpoint,
		"units":       rec.Units,
		"cost_cents":  rec.CostCents,
		"caller_id":   rec.CallerID,
		"auth_method": rec.AuthMethod,
		"occurred_at": rec.OccurredAt,
	}
	if _, err := l.st.Insert(ctx, table, row); err != nil {
		l.log.Warn().Err(err).
			Str("category", rec.Category).
			Msg("usage record dropped")
	}
}
