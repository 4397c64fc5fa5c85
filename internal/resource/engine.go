package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/ids"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resolve"
	"hearthside.org/internal/store"
)

const (
	limitDefault = 100
	limitMax     = 500
)

// Engine executes descriptors against the store. It holds no per-request
// state; the only mutable member is the quota mutex serializing gated
// creates.
type Engine struct {
	st  store.Store
	res *resolve.Resolver
	now func() time.Time
	loc *time.Location

	// gateMu spans the whole check-then-insert sequence of gated creates,
	// closing the quota race under concurrent callers.
	gateMu sync.Mutex
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithLocation sets the timezone used for local-midnight quota windows.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(st store.Store, res *resolve.Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		st:  st,
		res: res,
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one authorized, validated operation against a resource. Entry
// is the permission entry matched by the dispatcher, carried forward so
// policy is derived exactly once per request.
type Request struct {
	Identity  auth.Identity
	Entry     policy.Entry
	ID        string
	Data      map[string]any
	Filters   map[string]any
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc *bool
}

// ListResult carries page rows plus the exact pre-pagination total.
type ListResult struct {
	Rows  []store.Row
	Count int64
}

// List applies row scoping, whitelisted filters, ordering and pagination.
func (e *Engine) List(ctx context.Context, d Descriptor, req Request) (ListResult, error) {
	if d.Scope == ScopeCategoryOwnership && req.Entry.RowScoped && !req.Identity.StaffOrAbove() {
		return e.listCategoryScoped(ctx, d, req)
	}

	conds, emptySet := e.baseConds(d, req)
	if emptySet {
		return ListResult{Rows: []store.Row{}}, nil
	}
	conds = append(conds, filterConds(d, req.Filters)...)

	count, err := e.st.Count(ctx, d.Table, conds)
	if err != nil {
		return ListResult{}, err
	}
	rows, err := e.st.Select(ctx, store.Query{
		Table:  d.Table,
		Conds:  conds,
		Order:  []store.Order{e.order(d, req)},
		Limit:  clampLimit(req.Limit),
		Offset: max(req.Offset, 0),
	})
	if err != nil {
		return ListResult{}, err
	}
	if rows == nil {
		rows = []store.Row{}
	}
	return ListResult{Rows: rows, Count: count}, nil
}

// Get applies the same visibility rule as List to a single identifier.
// Not-found and not-visible are indistinguishable to the caller.
func (e *Engine) Get(ctx context.Context, d Descriptor, req Request) (store.Row, error) {
	if d.SelfProfile {
		return e.profileRow(ctx, d, req.Identity)
	}
	return e.visibleByID(ctx, d, req, req.ID)
}

// Create validates required fields, strips the payload to the creatable
// schema, runs hooks (fuzzy resolution, derived fields) and inserts.
func (e *Engine) Create(ctx context.Context, d Descriptor, req Request) (store.Row, error) {
	for _, f := range d.Required {
		if isEmptyValue(req.Data[f]) {
			return nil, fmt.Errorf("%w: %s is required", ErrValidation, f)
		}
	}

	if d.CreateGate != nil {
		e.gateMu.Lock()
		defer e.gateMu.Unlock()
		if err := d.CreateGate(ctx, e); err != nil {
			return nil, err
		}
	}

	row := intersect(req.Data, d.Creatable)
	for f, v := range d.Defaults {
		if cur, ok := row[f]; !ok || cur == nil {
			row[f] = v
		}
	}
	if d.BeforeWrite != nil {
		if err := d.BeforeWrite(ctx, e, nil, row); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	row["id"] = ids.New()
	row["created_at"] = now
	row["updated_at"] = now
	if d.Scope == ScopeSelfByLink && row[d.LinkField] == nil && req.Identity.PersonID != "" {
		row[d.LinkField] = req.Identity.PersonID
	}
	return e.st.Insert(ctx, d.Table, row)
}

// Update filters the payload to the updatable schema, silently drops fields
// restricted for the caller's tier, applies derived-field hooks and writes.
func (e *Engine) Update(ctx context.Context, d Descriptor, req Request) (store.Row, error) {
	var existing store.Row
	var err error
	if d.SelfProfile {
		existing, err = e.profileRow(ctx, d, req.Identity)
	} else {
		existing, err = e.visibleByID(ctx, d, req, req.ID)
	}
	if err != nil {
		return nil, err
	}
	id, _ := existing["id"].(string)

	patch := intersect(req.Data, d.Updatable)
	if len(req.Entry.RestrictedFields) > 0 && req.Identity.Level < req.Entry.RestrictUnder {
		for _, f := range req.Entry.RestrictedFields {
			delete(patch, f)
		}
	}
	if d.BeforeWrite != nil {
		if err := d.BeforeWrite(ctx, e, existing, patch); err != nil {
			return nil, err
		}
	}
	if len(patch) == 0 {
		return existing, nil
	}

	patch["updated_at"] = e.now().UTC()
	updated, found, err := e.st.Update(ctx, d.Table, []store.Cond{store.Eq("id", id)}, patch)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return updated, nil
}

// Delete removes or archives a row. Junction rows are always cleaned up
// before the parent changes, whether the delete is hard or soft. Soft
// delete is idempotent.
func (e *Engine) Delete(ctx context.Context, d Descriptor, req Request) (store.Row, error) {
	existing, err := e.deletableByID(ctx, d, req, req.ID)
	if err != nil {
		return nil, err
	}
	id, _ := existing["id"].(string)

	for _, j := range d.Junctions {
		if _, err := e.st.Delete(ctx, j.Table, []store.Cond{store.Eq(j.Field, id)}); err != nil {
			return nil, err
		}
	}

	if d.Delete.Soft {
		set := store.Row{
			d.Delete.Flag: d.Delete.Value,
			"updated_at":  e.now().UTC(),
		}
		updated, found, err := e.st.Update(ctx, d.Table, []store.Cond{store.Eq("id", id)}, set)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		return updated, nil
	}

	if _, err := e.st.Delete(ctx, d.Table, []store.Cond{store.Eq("id", id)}); err != nil {
		return nil, err
	}
	return store.Row{"id": id, "deleted": true}, nil
}

// baseConds builds the visibility narrowing for the caller: soft-deleted
// rows are hidden below staff as part of the base query, and the declared
// scoping shape applies when the permission entry is row-scoped. Staff and
// above bypass all narrowing through this single escape hatch.
func (e *Engine) baseConds(d Descriptor, req Request) (conds []store.Cond, emptySet bool) {
	if req.Identity.StaffOrAbove() {
		return nil, false
	}
	if d.Delete.Soft {
		conds = append(conds, store.Neq(d.Delete.Flag, d.Delete.Value))
	}
	scope, emptySet := scopeConds(d, req)
	if emptySet {
		return nil, true
	}
	return append(conds, scope...), false
}

// scopeConds is the ownership narrowing alone, without the archived-row
// visibility cond. Delete lookups use it directly so that repeating a soft
// delete finds the already-archived row instead of failing.
func scopeConds(d Descriptor, req Request) (conds []store.Cond, emptySet bool) {
	if !req.Entry.RowScoped {
		return nil, false
	}
	switch d.Scope {
	case ScopeSelfByLink:
		if req.Identity.PersonID == "" {
			return nil, true
		}
		conds = append(conds, store.Eq(d.LinkField, req.Identity.PersonID))
	case ScopeVisibilityFlag:
		conds = append(conds, d.Visibility...)
	}
	return conds, false
}

func (e *Engine) visibleByID(ctx context.Context, d Descriptor, req Request, id string) (store.Row, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	if d.Scope == ScopeCategoryOwnership && req.Entry.RowScoped && !req.Identity.StaffOrAbove() {
		return e.categoryScopedByID(ctx, d, req, id)
	}
	conds, emptySet := e.baseConds(d, req)
	if emptySet {
		return nil, ErrNotFound
	}
	conds = append([]store.Cond{store.Eq("id", id)}, conds...)
	row, found, err := e.st.Get(ctx, d.Table, conds)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return row, nil
}

// deletableByID resolves the delete target under the caller's ownership
// scope but ignores the archived-row flag: a row the caller already soft
// deleted is still theirs to delete again.
func (e *Engine) deletableByID(ctx context.Context, d Descriptor, req Request, id string) (store.Row, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	if d.Scope == ScopeCategoryOwnership && req.Entry.RowScoped && !req.Identity.StaffOrAbove() {
		return e.categoryScopedByID(ctx, d, req, id)
	}
	conds := []store.Cond{store.Eq("id", id)}
	if !req.Identity.StaffOrAbove() {
		scope, emptySet := scopeConds(d, req)
		if emptySet {
			return nil, ErrNotFound
		}
		conds = append(conds, scope...)
	}
	row, found, err := e.st.Get(ctx, d.Table, conds)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return row, nil
}

// profileRow resolves the self-service resource to the caller's own person
// record, ignoring any supplied id.
func (e *Engine) profileRow(ctx context.Context, d Descriptor, ident auth.Identity) (store.Row, error) {
	if ident.PersonID == "" {
		return nil, ErrNotFound
	}
	row, found, err := e.st.Get(ctx, d.Table, []store.Cond{store.Eq("id", ident.PersonID)})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return row, nil
}

// listCategoryScoped restricts the credentials vault for residents: only the
// declared category, limited to entries tied to one of the caller's assigned
// spaces or to no space at all (shared entries). Ownership is evaluated
// after the category query, with pagination applied to the filtered set so
// the count stays exact.
func (e *Engine) listCategoryScoped(ctx context.Context, d Descriptor, req Request) (ListResult, error) {
	if req.Identity.PersonID == "" {
		return ListResult{Rows: []store.Row{}}, nil
	}
	owned, err := e.ownedSpaces(ctx, req.Identity.PersonID)
	if err != nil {
		return ListResult{}, err
	}

	conds := []store.Cond{store.Eq(d.CategoryField, d.CategoryValue)}
	if d.Delete.Soft {
		conds = append(conds, store.Neq(d.Delete.Flag, d.Delete.Value))
	}
	conds = append(conds, filterConds(d, req.Filters)...)

	rows, err := e.st.Select(ctx, store.Query{
		Table: d.Table,
		Conds: conds,
		Order: []store.Order{e.order(d, req)},
	})
	if err != nil {
		return ListResult{}, err
	}

	visible := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if ownsRow(row, d.OwnerField, owned) {
			visible = append(visible, row)
		}
	}
	count := int64(len(visible))

	offset := max(req.Offset, 0)
	if offset >= len(visible) {
		return ListResult{Rows: []store.Row{}, Count: count}, nil
	}
	visible = visible[offset:]
	if limit := clampLimit(req.Limit); limit < len(visible) {
		visible = visible[:limit]
	}
	return ListResult{Rows: visible, Count: count}, nil
}

func (e *Engine) categoryScopedByID(ctx context.Context, d Descriptor, req Request, id string) (store.Row, error) {
	if req.Identity.PersonID == "" {
		return nil, ErrNotFound
	}
	conds := []store.Cond{store.Eq("id", id), store.Eq(d.CategoryField, d.CategoryValue)}
	if d.Delete.Soft {
		conds = append(conds, store.Neq(d.Delete.Flag, d.Delete.Value))
	}
	row, found, err := e.st.Get(ctx, d.Table, conds)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	owned, err := e.ownedSpaces(ctx, req.Identity.PersonID)
	if err != nil {
		return nil, err
	}
	if !ownsRow(row, d.OwnerField, owned) {
		return nil, ErrNotFound
	}
	return row, nil
}

func (e *Engine) ownedSpaces(ctx context.Context, personID string) (map[string]struct{}, error) {
	rows, err := e.st.Select(ctx, store.Query{
		Table: "assignments",
		Conds: []store.Cond{store.Eq("person_id", personID)},
	})
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if id, ok := row["space_id"].(string); ok && id != "" {
			owned[id] = struct{}{}
		}
	}
	return owned, nil
}

// ownsRow admits rows with no owner reference (shared entries) or an owner
// in the caller's assigned set.
func ownsRow(row store.Row, ownerField string, owned map[string]struct{}) bool {
	v := row[ownerField]
	if v == nil {
		return true
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return true
	}
	_, ok = owned[id]
	return ok
}

func filterConds(d Descriptor, filters map[string]any) []store.Cond {
	if len(filters) == 0 {
		return nil
	}
	conds := make([]store.Cond, 0, len(filters))
	for _, f := range d.Filterable {
		if v, ok := filters[f]; ok {
			conds = append(conds, store.Eq(f, v))
		}
	}
	return conds
}

func (e *Engine) order(d Descriptor, req Request) store.Order {
	o := d.DefaultOrder
	if field := strings.TrimSpace(req.OrderBy); field != "" && orderable(d, field) {
		o = store.Order{Field: field, Desc: o.Desc}
	}
	if req.OrderDesc != nil {
		o.Desc = *req.OrderDesc
	}
	return o
}

// orderable restricts order_by to known columns; anything else falls back
// to the resource default rather than erroring.
func orderable(d Descriptor, field string) bool {
	switch field {
	case d.DefaultOrder.Field, "id", "created_at", "updated_at":
		return true
	}
	for _, f := range d.Filterable {
		if f == field {
			return true
		}
	}
	return false
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return limitDefault
	case limit > limitMax:
		return limitMax
	default:
		return limit
	}
}

func intersect(data map[string]any, fields []string) store.Row {
	out := make(store.Row, len(fields))
	for _, f := range fields {
		if v, ok := data[f]; ok {
			out[f] = v
		}
	}
	return out
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
