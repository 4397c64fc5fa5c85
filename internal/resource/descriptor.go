// Package resource implements the gateway's entity handlers. Each resource
// is a declarative descriptor (schema, scoping shape, delete mode, hooks)
// executed by one generic engine, so field filtering and row scoping are set
// intersections and strategy lookups rather than per-resource conditionals.
package resource

import (
	"context"
	"errors"

	"hearthside.org/internal/policy"
	"hearthside.org/internal/store"
)

// Sentinel errors mapped to wire codes by the dispatcher.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("record not found")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ScopeStrategy names one of the three row-scoping shapes.
type ScopeStrategy string

const (
	ScopeNone              ScopeStrategy = ""
	ScopeSelfByLink        ScopeStrategy = "self_by_link"
	ScopeVisibilityFlag    ScopeStrategy = "visibility_flag"
	ScopeCategoryOwnership ScopeStrategy = "category_ownership"
)

// DeleteMode declares whether delete removes the row or flips a flag.
type DeleteMode struct {
	Soft  bool
	Flag  string
	Value any // value marking the row deleted, e.g. true for is_archived
}

func hardDelete() DeleteMode { return DeleteMode{} }

func softDelete(flag string, value any) DeleteMode {
	return DeleteMode{Soft: true, Flag: flag, Value: value}
}

// Junction is a relationship table cleaned up before its parent row changes.
type Junction struct {
	Table string
	Field string
}

// WriteHook adjusts a write payload before it is stored. existing is nil on
// create. Hooks own derived-field rules and fuzzy name resolution.
type WriteHook func(ctx context.Context, e *Engine, existing store.Row, patch store.Row) error

// GateFunc runs before a create is allowed (quota checks).
type GateFunc func(ctx context.Context, e *Engine) error

// Descriptor declares one resource as data.
type Descriptor struct {
	Name  string
	Table string

	// Supported actions; the permission matrix must cover exactly these.
	Supported []policy.Action

	// Required create fields, checked before any write.
	Required []string
	// Creatable and Updatable are the writable schemas; anything else in a
	// payload is stripped, not rejected.
	Creatable []string
	Updatable []string
	// Filterable whitelists caller-supplied filter keys; unknown keys are
	// ignored.
	Filterable []string

	// Defaults mirror the schema's column defaults so both store backends
	// produce the same row when a create omits the column. Status defaults
	// owned by a write hook are not repeated here.
	Defaults store.Row

	DefaultOrder store.Order

	Scope ScopeStrategy
	// LinkField is the FK column compared to the identity's person anchor
	// for self-by-link scoping.
	LinkField string
	// Visibility conds applied below staff for visibility-flag scoping.
	Visibility []store.Cond
	// Category-plus-ownership configuration (credentials vault).
	CategoryField string
	CategoryValue string
	OwnerField    string

	Delete    DeleteMode
	Junctions []Junction

	BeforeWrite WriteHook
	CreateGate  GateFunc

	// SelfProfile marks the self-service resource that is always scoped to
	// the caller's own person row regardless of any supplied id.
	SelfProfile bool
}

// Supports reports whether the descriptor handles the action.
func (d Descriptor) Supports(action policy.Action) bool {
	for _, a := range d.Supported {
		if a == action {
			return true
		}
	}
	return false
}

// Registry is the immutable resource set loaded at startup.
type Registry struct {
	byName map[string]Descriptor
}

// NewRegistry indexes descriptors by name.
func NewRegistry(descriptors []Descriptor) *Registry {
	byName := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}
	return &Registry{byName: byName}
}

// Lookup returns the descriptor for a resource name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// SupportedActions maps every resource to its action set, for matrix
// completeness validation at startup.
func (r *Registry) SupportedActions() map[string][]policy.Action {
	out := make(map[string][]policy.Action, len(r.byName))
	for name, d := range r.byName {
		out[name] = append([]policy.Action(nil), d.Supported...)
	}
	return out
}
