package resource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hearthside.org/internal/resolve"
	"hearthside.org/internal/store"
)

const (
	taskStatusDone    = "done"
	taskStatusDefault = "open"
)

// Feature-request quota: the active ceiling is system-wide, the daily
// ceiling counts rows created since local midnight.
const (
	featureRequestMaxActive = 3
	featureRequestMaxDaily  = 10
)

var featureRequestActiveStatuses = []string{"open", "planned", "in_progress"}

// taskWrite resolves free-text assignee and space names and maintains the
// status-driven completion timestamp. The timestamp rule re-evaluates on
// every write that touches status, create and update alike.
func taskWrite(ctx context.Context, e *Engine, existing store.Row, patch store.Row) error {
	if existing == nil && isEmptyValue(patch["status"]) {
		patch["status"] = taskStatusDefault
	}

	if name, ok := patch["assigned_name"].(string); ok && strings.TrimSpace(name) != "" {
		row, err := e.res.ResolvePerson(ctx, name)
		if err != nil {
			return err
		}
		if row != nil {
			patch["assigned_to"] = row["id"]
			patch["assigned_name"] = resolve.PersonName(row)
		}
		// Unresolved names keep the free text; the FK stays unset.
	}
	if name, ok := patch["space_name"].(string); ok && strings.TrimSpace(name) != "" {
		row, err := e.res.ResolveSpace(ctx, name)
		if err != nil {
			return err
		}
		if row != nil {
			patch["space_id"] = row["id"]
			if canonical, ok := row["name"].(string); ok && canonical != "" {
				patch["space_name"] = canonical
			}
		}
	}

	if status, ok := patch["status"].(string); ok {
		if status == taskStatusDone {
			patch["completed_at"] = e.now().UTC()
		} else {
			patch["completed_at"] = nil
		}
	}
	return nil
}

// timeEntryWrite recomputes duration from whatever clock endpoints are in
// effect after the patch. Either endpoint absent leaves duration unset,
// never zero.
func timeEntryWrite(ctx context.Context, e *Engine, existing store.Row, patch store.Row) error {
	merged := existing.Clone()
	if merged == nil {
		merged = store.Row{}
	}
	for k, v := range patch {
		merged[k] = v
	}

	clockIn, okIn := asTime(merged["clock_in"])
	clockOut, okOut := asTime(merged["clock_out"])
	if okIn && okOut {
		patch["duration_minutes"] = int64(clockOut.Sub(clockIn) / time.Minute)
	} else {
		patch["duration_minutes"] = nil
	}
	return nil
}

// featureRequestWrite defaults new requests to the open status.
func featureRequestWrite(ctx context.Context, e *Engine, existing store.Row, patch store.Row) error {
	if existing == nil && isEmptyValue(patch["status"]) {
		patch["status"] = "open"
	}
	return nil
}

// featureRequestGate enforces both ceilings before insert. The engine holds
// the gate mutex across this check and the subsequent insert.
func featureRequestGate(ctx context.Context, e *Engine) error {
	active, err := e.st.Count(ctx, "feature_requests", []store.Cond{
		store.In("status", featureRequestActiveStatuses),
	})
	if err != nil {
		return err
	}
	if active >= featureRequestMaxActive {
		return fmt.Errorf("%w: too many active feature requests", ErrRateLimited)
	}

	now := e.now().In(e.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	daily, err := e.st.Count(ctx, "feature_requests", []store.Cond{
		store.Gte("created_at", midnight),
	})
	if err != nil {
		return err
	}
	if daily >= featureRequestMaxDaily {
		return fmt.Errorf("%w: daily feature request limit reached", ErrRateLimited)
	}
	return nil
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
