package resource_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resolve"
	"hearthside.org/internal/resource"
	"hearthside.org/internal/store"
)

var testNow = time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

type fixture struct {
	st       *store.Memory
	engine   *resource.Engine
	registry *resource.Registry
	matrix   *policy.Matrix
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	st.Seed("people", []store.Row{
		{"id": "per_res", "first_name": "Milo", "last_name": "Tanaka", "email": "milo@hearthside.org", "is_active": true},
		{"id": "per_other", "first_name": "Ines", "last_name": "Moreau", "is_active": true},
		{"id": "per_staff", "first_name": "Dana", "last_name": "Whitfield", "is_active": true},
	})
	st.Seed("spaces", []store.Row{
		{"id": "spc_common", "name": "Common Room", "is_listed": true, "is_secret": false, "is_archived": false},
		{"id": "spc_204", "name": "Room 204", "is_listed": true, "is_secret": false, "is_archived": false},
		{"id": "spc_vault", "name": "Vault", "is_listed": false, "is_secret": true, "is_archived": false},
		{"id": "spc_old", "name": "Old Annex", "is_listed": true, "is_secret": false, "is_archived": true},
	})
	st.Seed("assignments", []store.Row{
		{"id": "asg_1", "person_id": "per_res", "space_id": "spc_204"},
		{"id": "asg_2", "person_id": "per_other", "space_id": "spc_common"},
	})
	eng := resource.NewEngine(st, resolve.New(st, 16, time.Minute),
		resource.WithClock(func() time.Time { return testNow }),
		resource.WithLocation(time.UTC),
	)
	return &fixture{
		st:       st,
		engine:   eng,
		registry: resource.DefaultRegistry(),
		matrix:   policy.Default(),
	}
}

func (f *fixture) request(t *testing.T, name string, action policy.Action, ident auth.Identity) (resource.Descriptor, resource.Request) {
	t.Helper()
	d, ok := f.registry.Lookup(name)
	require.True(t, ok, "unknown resource %s", name)
	entry, ok := f.matrix.Lookup(name, action)
	require.True(t, ok, "no matrix entry for %s.%s", name, action)
	return d, resource.Request{Identity: ident, Entry: entry}
}

func resident() auth.Identity {
	return auth.Identity{UserID: "usr_res", PersonID: "per_res", Role: auth.RoleResident, Level: auth.LevelResident, Method: auth.MethodBearer}
}

func staff() auth.Identity {
	return auth.Identity{UserID: "usr_staff", PersonID: "per_staff", Role: auth.RoleStaff, Level: auth.LevelStaff, Method: auth.MethodBearer}
}

func anonymous() auth.Identity { return auth.Public() }

func TestListSpacesHidesUnlistedFromPublic(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "spaces", policy.ActionList, anonymous())

	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Count)
	for _, row := range res.Rows {
		require.NotEqual(t, "spc_vault", row["id"])
		require.NotEqual(t, "spc_old", row["id"])
	}
}

func TestListSpacesStaffSeesEverything(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "spaces", policy.ActionList, staff())

	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(4), res.Count)
}

func TestCreateAppliesColumnDefaults(t *testing.T) {
	f := newFixture(t)

	d, req := f.request(t, "spaces", policy.ActionCreate, staff())
	req.Data = map[string]any{"name": "Sun Room"}
	created, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, true, created["is_listed"])
	require.Equal(t, false, created["is_secret"])
	require.Equal(t, false, created["is_archived"])

	// The new space shows up for the public without the flags being set
	// explicitly, matching the schema defaults.
	d, listReq := f.request(t, "spaces", policy.ActionList, anonymous())
	res, err := f.engine.List(context.Background(), d, listReq)
	require.NoError(t, err)
	require.Equal(t, int64(3), res.Count)

	// An explicit value wins over the default.
	d, req = f.request(t, "spaces", policy.ActionCreate, staff())
	req.Data = map[string]any{"name": "Cellar", "is_listed": false}
	created, err = f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, false, created["is_listed"])
}

func TestGetHiddenSpaceIsNotFoundNotForbidden(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "spaces", policy.ActionGet, anonymous())
	req.ID = "spc_vault"

	_, err := f.engine.Get(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestListAssignmentsScopedToSelf(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "assignments", policy.ActionList, resident())

	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Count)
	require.Equal(t, "asg_1", res.Rows[0]["id"])
}

func TestListAssignmentsNoLinkedPersonIsEmptyNotError(t *testing.T) {
	f := newFixture(t)
	ident := resident()
	ident.PersonID = ""
	d, req := f.request(t, "assignments", policy.ActionList, ident)

	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Count)
	require.Empty(t, res.Rows)
}

func TestCreateTaskResolvesNamesAndDefaultsStatus(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "tasks", policy.ActionCreate, resident())
	req.Data = map[string]any{
		"title":         "Fix the dryer",
		"assigned_name": "tanaka",
		"space_name":    "204",
	}

	row, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "open", row["status"])
	require.Equal(t, "per_res", row["assigned_to"])
	require.Equal(t, "Milo Tanaka", row["assigned_name"])
	require.Equal(t, "spc_204", row["space_id"])
	require.Equal(t, "Room 204", row["space_name"])
	require.Nil(t, row["completed_at"])
	require.NotEmpty(t, row["id"])
	require.Equal(t, testNow, row["created_at"])
}

func TestCreateTaskUnresolvedNameKeepsFreeText(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "tasks", policy.ActionCreate, resident())
	req.Data = map[string]any{
		"title":         "Water plants",
		"assigned_name": "nobody matches this",
	}

	row, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "nobody matches this", row["assigned_name"])
	require.Nil(t, row["assigned_to"])
}

func TestCreateTaskMissingTitle(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "tasks", policy.ActionCreate, resident())
	req.Data = map[string]any{"description": "no title"}

	_, err := f.engine.Create(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrValidation)
}

func TestTaskStatusDrivesCompletedAt(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "tasks", policy.ActionCreate, staff())
	req.Data = map[string]any{"title": "Replace filter"}
	created, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	id := created["id"].(string)

	d, req = f.request(t, "tasks", policy.ActionUpdate, staff())
	req.ID = id
	req.Data = map[string]any{"status": "done"}
	updated, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "done", updated["status"])
	require.Equal(t, testNow, updated["completed_at"])

	// Reopening clears the timestamp; the rule re-evaluates on every
	// status write.
	req.Data = map[string]any{"status": "open"}
	updated, err = f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Nil(t, updated["completed_at"])
}

func TestTimeEntryDurationDerived(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "time_entries", policy.ActionCreate, resident())
	req.Data = map[string]any{
		"clock_in":  "2026-06-15T09:00:00Z",
		"clock_out": "2026-06-15T12:30:00Z",
	}
	created, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(210), created["duration_minutes"])
	// The self link is filled from the caller automatically.
	require.Equal(t, "per_res", created["associate_id"])

	// Removing one endpoint unsets duration rather than leaving a stale
	// value.
	d, req = f.request(t, "time_entries", policy.ActionUpdate, resident())
	req.ID = created["id"].(string)
	req.Data = map[string]any{"clock_out": nil}
	updated, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Nil(t, updated["duration_minutes"])
}

func TestBookingStatusRestrictedBelowStaff(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("bookings", []store.Row{
		{"id": "bok_1", "space_id": "spc_204", "person_id": "per_res", "status": "pending", "notes": "", "is_cancelled": false,
			"starts_at": "2026-07-01T10:00:00Z", "ends_at": "2026-07-01T12:00:00Z"},
	})

	d, req := f.request(t, "bookings", policy.ActionUpdate, resident())
	req.ID = "bok_1"
	req.Data = map[string]any{"status": "confirmed", "notes": "late arrival"}
	updated, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	// The restricted field is silently dropped, not rejected.
	require.Equal(t, "pending", updated["status"])
	require.Equal(t, "late arrival", updated["notes"])

	// A patch reduced to nothing is a no-op returning current state.
	req.Data = map[string]any{"status": "confirmed"}
	updated, err = f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "pending", updated["status"])

	d, req = f.request(t, "bookings", policy.ActionUpdate, staff())
	req.ID = "bok_1"
	req.Data = map[string]any{"status": "confirmed"}
	updated, err = f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "confirmed", updated["status"])
}

func TestSpaceTypeRestrictedToAdmin(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "spaces", policy.ActionUpdate, staff())
	req.ID = "spc_204"
	req.Data = map[string]any{"type": "dwelling", "description": "corner room"}

	updated, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "corner room", updated["description"])
	require.Nil(t, updated["type"])

	admin := auth.Identity{UserID: "usr_admin", Role: auth.RoleAdmin, Level: auth.LevelAdmin, Method: auth.MethodBearer}
	d, req = f.request(t, "spaces", policy.ActionUpdate, admin)
	req.ID = "spc_204"
	req.Data = map[string]any{"type": "dwelling"}
	updated, err = f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "dwelling", updated["type"])
}

func TestTimeEntryDurationComputedWhenClockOutArrives(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "time_entries", policy.ActionCreate, resident())
	req.Data = map[string]any{"clock_in": "2026-06-15T09:00:00Z"}
	created, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Nil(t, created["duration_minutes"])

	d, req = f.request(t, "time_entries", policy.ActionUpdate, resident())
	req.ID = created["id"].(string)
	req.Data = map[string]any{"clock_out": "2026-06-15T17:15:00Z"}
	updated, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(495), updated["duration_minutes"])
}

func TestFeatureRequestBoundaryIsExactlyThree(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("feature_requests", []store.Row{
		{"id": "fr_1", "title": "a", "status": "open", "created_at": testNow.Add(-time.Hour)},
		{"id": "fr_2", "title": "b", "status": "planned", "created_at": testNow.Add(-time.Hour)},
	})

	d, req := f.request(t, "feature_requests", policy.ActionCreate, resident())
	req.Data = map[string]any{"title": "third"}
	_, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)

	// The third active row fills the ceiling; the fourth attempt fails.
	req.Data = map[string]any{"title": "fourth"}
	_, err = f.engine.Create(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrRateLimited)
}

func TestFeatureRequestActiveCeiling(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("feature_requests", []store.Row{
		{"id": "fr_1", "title": "a", "status": "open", "created_at": testNow.Add(-72 * time.Hour)},
		{"id": "fr_2", "title": "b", "status": "planned", "created_at": testNow.Add(-72 * time.Hour)},
		{"id": "fr_3", "title": "c", "status": "in_progress", "created_at": testNow.Add(-72 * time.Hour)},
	})

	d, req := f.request(t, "feature_requests", policy.ActionCreate, resident())
	req.Data = map[string]any{"title": "one more"}
	_, err := f.engine.Create(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrRateLimited)
}

func TestFeatureRequestClosedRowsFreeTheCeiling(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("feature_requests", []store.Row{
		{"id": "fr_1", "title": "a", "status": "open", "created_at": testNow.Add(-72 * time.Hour)},
		{"id": "fr_2", "title": "b", "status": "done", "created_at": testNow.Add(-72 * time.Hour)},
		{"id": "fr_3", "title": "c", "status": "rejected", "created_at": testNow.Add(-72 * time.Hour)},
	})

	d, req := f.request(t, "feature_requests", policy.ActionCreate, resident())
	req.Data = map[string]any{"title": "one more"}
	row, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "open", row["status"])
	require.Equal(t, "per_res", row["person_id"])
}

func TestFeatureRequestDailyCeiling(t *testing.T) {
	f := newFixture(t)
	rows := make([]store.Row, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, store.Row{
			"id":         fmt.Sprintf("fr_%d", i),
			"title":      fmt.Sprintf("request %d", i),
			"status":     "done", // inactive, so only the daily ceiling can trip
			"created_at": testNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	f.st.Seed("feature_requests", rows)

	d, req := f.request(t, "feature_requests", policy.ActionCreate, resident())
	req.Data = map[string]any{"title": "eleventh today"}
	_, err := f.engine.Create(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrRateLimited)
}

func TestFeatureRequestYesterdayDoesNotCountToday(t *testing.T) {
	f := newFixture(t)
	rows := make([]store.Row, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, store.Row{
			"id":         fmt.Sprintf("fr_%d", i),
			"title":      fmt.Sprintf("request %d", i),
			"status":     "done",
			"created_at": testNow.Add(-36 * time.Hour),
		})
	}
	f.st.Seed("feature_requests", rows)

	d, req := f.request(t, "feature_requests", policy.ActionCreate, resident())
	req.Data = map[string]any{"title": "fresh day"}
	_, err := f.engine.Create(context.Background(), d, req)
	require.NoError(t, err)
}

func TestSoftDeleteArchivesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	admin := auth.Identity{UserID: "usr_admin", Role: auth.RoleAdmin, Level: auth.LevelAdmin, Method: auth.MethodBearer}

	d, req := f.request(t, "spaces", policy.ActionDelete, admin)
	req.ID = "spc_204"
	row, err := f.engine.Delete(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, true, row["is_archived"])

	// Junction rows referencing the space are cleaned up.
	n, err := f.st.Count(context.Background(), "assignments", []store.Cond{store.Eq("space_id", "spc_204")})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	// Deleting again succeeds with the same terminal state; admins still
	// see archived rows.
	row, err = f.engine.Delete(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, true, row["is_archived"])
}

func TestScopedSoftDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("bookings", []store.Row{
		{"id": "bok_del", "space_id": "spc_204", "person_id": "per_res", "status": "pending", "is_cancelled": false},
	})

	d, req := f.request(t, "bookings", policy.ActionDelete, resident())
	req.ID = "bok_del"
	row, err := f.engine.Delete(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, true, row["is_cancelled"])

	// The cancelled booking is gone from the owner's listings, yet a repeat
	// delete still resolves it and succeeds.
	_, err = f.engine.Get(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)

	row, err = f.engine.Delete(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, true, row["is_cancelled"])

	// Ownership still applies: someone else's archived booking stays out
	// of reach.
	other := resident()
	other.UserID, other.PersonID = "usr_other", "per_other"
	d, req = f.request(t, "bookings", policy.ActionDelete, other)
	req.ID = "bok_del"
	_, err = f.engine.Delete(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestHardDeleteReturnsTombstone(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("guests", []store.Row{
		{"id": "gst_1", "name": "Ava", "host_person_id": "per_res"},
	})

	d, req := f.request(t, "guests", policy.ActionDelete, resident())
	req.ID = "gst_1"
	row, err := f.engine.Delete(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "gst_1", row["id"])
	require.Equal(t, true, row["deleted"])

	_, err = f.engine.Delete(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestResidentCannotDeleteOthersGuest(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("guests", []store.Row{
		{"id": "gst_2", "name": "Noor", "host_person_id": "per_other"},
	})

	d, req := f.request(t, "guests", policy.ActionDelete, resident())
	req.ID = "gst_2"
	_, err := f.engine.Delete(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestCredentialsScopedToCategoryAndOwnedSpaces(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("credentials", []store.Row{
		{"id": "crd_own", "label": "Room 204 door", "secret": "s1", "category": "house", "space_id": "spc_204"},
		{"id": "crd_shared", "label": "Wifi", "secret": "s2", "category": "house", "space_id": nil},
		{"id": "crd_other", "label": "Common room safe", "secret": "s3", "category": "house", "space_id": "spc_common"},
		{"id": "crd_admin", "label": "Bank login", "secret": "s4", "category": "finance", "space_id": nil},
	})

	d, req := f.request(t, "credentials", policy.ActionList, resident())
	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Count)
	ids := []string{res.Rows[0]["id"].(string), res.Rows[1]["id"].(string)}
	require.ElementsMatch(t, []string{"crd_own", "crd_shared"}, ids)

	// A house credential for someone else's space reads as missing.
	d, req = f.request(t, "credentials", policy.ActionGet, resident())
	req.ID = "crd_other"
	_, err = f.engine.Get(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)

	// Off-category rows are invisible regardless of ownership.
	req.ID = "crd_admin"
	_, err = f.engine.Get(context.Background(), d, req)
	require.ErrorIs(t, err, resource.ErrNotFound)

	// Staff read the whole vault.
	d, req = f.request(t, "credentials", policy.ActionList, staff())
	res, err = f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(4), res.Count)
}

func TestProfileIgnoresSuppliedID(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "profile", policy.ActionGet, resident())
	req.ID = "per_other" // ignored: profile always resolves to the caller

	row, err := f.engine.Get(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "per_res", row["id"])
}

func TestProfileUpdateAllowlist(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "profile", policy.ActionUpdate, resident())
	req.Data = map[string]any{
		"phone":     "+1 555 0100",
		"is_active": false, // outside the self-service allowlist
		"type":      "staff",
	}
	row, err := f.engine.Update(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "+1 555 0100", row["phone"])
	require.Equal(t, true, row["is_active"])
	require.Nil(t, row["type"])
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	rows := make([]store.Row, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, store.Row{
			"id":       fmt.Sprintf("cam_%d", i),
			"name":     fmt.Sprintf("Camera %d", i),
			"is_armed": i%2 == 0,
		})
	}
	f.st.Seed("cameras", rows)

	d, req := f.request(t, "cameras", policy.ActionList, resident())
	req.Limit = 3
	req.Offset = 5
	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(7), res.Count)
	require.Len(t, res.Rows, 2)
	require.Equal(t, "Camera 5", res.Rows[0]["name"])
}

func TestListFiltersAreWhitelisted(t *testing.T) {
	f := newFixture(t)
	f.st.Seed("cameras", []store.Row{
		{"id": "cam_a", "name": "Porch", "location": "front", "is_armed": true},
		{"id": "cam_b", "name": "Garden", "location": "back", "is_armed": false},
	})

	d, req := f.request(t, "cameras", policy.ActionList, resident())
	req.Filters = map[string]any{
		"location": "front",
		"secret":   "ignored", // not filterable, silently dropped
	}
	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Count)
	require.Equal(t, "cam_a", res.Rows[0]["id"])
}

func TestOrderByUnknownColumnFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	d, req := f.request(t, "spaces", policy.ActionList, staff())
	req.OrderBy = "drop table"
	res, err := f.engine.List(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "Common Room", res.Rows[0]["name"])
}
