package resource

import (
	"hearthside.org/internal/policy"
	"hearthside.org/internal/store"
)

var allActions = []policy.Action{
	policy.ActionList, policy.ActionGet, policy.ActionCreate, policy.ActionUpdate, policy.ActionDelete,
}

// DefaultRegistry declares every resource exposed by the gateway.
func DefaultRegistry() *Registry {
	return NewRegistry([]Descriptor{
		{
			Name:      "spaces",
			Table:     "spaces",
			Supported: allActions,
			Required:  []string{"name"},
			Creatable: []string{"name", "description", "type", "is_listed", "is_secret", "capacity", "floor"},
			Updatable: []string{"name", "description", "type", "is_listed", "is_secret", "capacity", "floor"},
			Filterable: []string{
				"type", "is_listed", "floor",
			},
			DefaultOrder: store.Order{Field: "name"},
			Defaults:     store.Row{"is_listed": true, "is_secret": false, "is_archived": false},
			Scope:        ScopeVisibilityFlag,
			Visibility: []store.Cond{
				store.Eq("is_listed", true),
				store.Eq("is_secret", false),
			},
			Delete: softDelete("is_archived", true),
			Junctions: []Junction{
				{Table: "assignments", Field: "space_id"},
			},
		},
		{
			Name:         "people",
			Table:        "people",
			Supported:    allActions,
			Required:     []string{"first_name"},
			Creatable:    []string{"first_name", "last_name", "email", "phone", "type", "notes"},
			Updatable:    []string{"first_name", "last_name", "email", "phone", "type", "notes"},
			Filterable:   []string{"type", "email"},
			DefaultOrder: store.Order{Field: "last_name"},
			Defaults:     store.Row{"is_active": true},
			Delete:       softDelete("is_active", false),
			Junctions: []Junction{
				{Table: "assignments", Field: "person_id"},
				{Table: "guests", Field: "host_person_id"},
			},
		},
		{
			Name:         "users",
			Table:        "users",
			Supported:    allActions,
			Required:     []string{"email", "role"},
			Creatable:    []string{"email", "role", "person_id", "is_active"},
			Updatable:    []string{"email", "role", "person_id", "is_active"},
			Filterable:   []string{"role", "is_active"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Defaults:     store.Row{"is_active": true},
			Delete:       hardDelete(),
		},
		{
			Name:      "tasks",
			Table:     "tasks",
			Supported: allActions,
			Required:  []string{"title"},
			Creatable: []string{
				"title", "description", "status", "priority",
				"assigned_to", "assigned_name", "space_id", "space_name", "due_date",
			},
			Updatable: []string{
				"title", "description", "status", "priority",
				"assigned_to", "assigned_name", "space_id", "space_name", "due_date",
			},
			Filterable:   []string{"status", "priority", "assigned_to", "space_id"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Defaults:     store.Row{"is_archived": false},
			Delete:       softDelete("is_archived", true),
			BeforeWrite:  taskWrite,
		},
		{
			Name:         "assignments",
			Table:        "assignments",
			Supported:    allActions,
			Required:     []string{"person_id", "space_id"},
			Creatable:    []string{"person_id", "space_id", "starts_on", "ends_on"},
			Updatable:    []string{"starts_on", "ends_on"},
			Filterable:   []string{"person_id", "space_id"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Scope:        ScopeSelfByLink,
			LinkField:    "person_id",
			Delete:       hardDelete(),
		},
		{
			Name:         "time_entries",
			Table:        "time_entries",
			Supported:    allActions,
			Required:     []string{"clock_in"},
			Creatable:    []string{"associate_id", "clock_in", "clock_out", "project", "notes"},
			Updatable:    []string{"clock_in", "clock_out", "project", "notes"},
			Filterable:   []string{"associate_id", "project"},
			DefaultOrder: store.Order{Field: "clock_in", Desc: true},
			Scope:        ScopeSelfByLink,
			LinkField:    "associate_id",
			Delete:       hardDelete(),
			BeforeWrite:  timeEntryWrite,
		},
		{
			Name:         "events",
			Table:        "events",
			Supported:    allActions,
			Required:     []string{"title", "starts_at"},
			Creatable:    []string{"title", "description", "starts_at", "ends_at", "person_id", "location"},
			Updatable:    []string{"title", "description", "starts_at", "ends_at", "person_id", "location"},
			Filterable:   []string{"person_id"},
			DefaultOrder: store.Order{Field: "starts_at"},
			Defaults:     store.Row{"is_cancelled": false},
			Scope:        ScopeSelfByLink,
			LinkField:    "person_id",
			Delete:       softDelete("is_cancelled", true),
		},
		{
			Name:         "faq",
			Table:        "faq",
			Supported:    allActions,
			Required:     []string{"question", "answer"},
			Creatable:    []string{"question", "answer", "category", "is_published", "sort_order"},
			Updatable:    []string{"question", "answer", "category", "is_published", "sort_order"},
			Filterable:   []string{"category", "is_published"},
			DefaultOrder: store.Order{Field: "sort_order"},
			Defaults:     store.Row{"is_published": false, "sort_order": 0},
			Scope:        ScopeVisibilityFlag,
			Visibility:   []store.Cond{store.Eq("is_published", true)},
			Delete:       hardDelete(),
		},
		{
			Name:          "credentials",
			Table:         "credentials",
			Supported:     allActions,
			Required:      []string{"label", "secret"},
			Creatable:     []string{"label", "username", "secret", "category", "space_id", "url", "notes"},
			Updatable:     []string{"label", "username", "secret", "category", "space_id", "url", "notes"},
			Filterable:    []string{"category", "space_id"},
			DefaultOrder:  store.Order{Field: "label"},
			Scope:         ScopeCategoryOwnership,
			CategoryField: "category",
			CategoryValue: "house",
			OwnerField:    "space_id",
			Delete:        hardDelete(),
		},
		{
			Name:         "feature_requests",
			Table:        "feature_requests",
			Supported:    allActions,
			Required:     []string{"title"},
			Creatable:    []string{"title", "description", "status", "person_id"},
			Updatable:    []string{"title", "description", "status"},
			Filterable:   []string{"status"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Scope:        ScopeSelfByLink,
			LinkField:    "person_id",
			Delete:       hardDelete(),
			BeforeWrite:  featureRequestWrite,
			CreateGate:   featureRequestGate,
		},
		{
			Name:         "announcements",
			Table:        "announcements",
			Supported:    allActions,
			Required:     []string{"title", "body"},
			Creatable:    []string{"title", "body", "is_published", "pinned"},
			Updatable:    []string{"title", "body", "is_published", "pinned"},
			Filterable:   []string{"is_published", "pinned"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Defaults:     store.Row{"is_published": false, "pinned": false, "is_archived": false},
			Scope:        ScopeVisibilityFlag,
			Visibility:   []store.Cond{store.Eq("is_published", true)},
			Delete:       softDelete("is_archived", true),
		},
		{
			Name:         "documents",
			Table:        "documents",
			Supported:    allActions,
			Required:     []string{"title"},
			Creatable:    []string{"title", "url", "category", "is_public", "space_id"},
			Updatable:    []string{"title", "url", "category", "is_public", "space_id"},
			Filterable:   []string{"category", "is_public", "space_id"},
			DefaultOrder: store.Order{Field: "title"},
			Defaults:     store.Row{"is_public": false},
			Scope:        ScopeVisibilityFlag,
			Visibility:   []store.Cond{store.Eq("is_public", true)},
			Delete:       hardDelete(),
		},
		{
			Name:         "payments",
			Table:        "payments",
			Supported:    allActions,
			Required:     []string{"person_id", "amount_cents"},
			Creatable:    []string{"person_id", "amount_cents", "currency", "status", "memo", "paid_at", "sender_name"},
			Updatable:    []string{"status", "memo", "paid_at"},
			Filterable:   []string{"person_id", "status"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Defaults:     store.Row{"currency": "USD", "status": "pending"},
			Scope:        ScopeSelfByLink,
			LinkField:    "person_id",
			Delete:       hardDelete(),
		},
		{
			Name:         "messages",
			Table:        "messages",
			Supported:    allActions,
			Required:     []string{"recipient", "body"},
			Creatable:    []string{"recipient", "body", "channel", "person_id"},
			Updatable:    []string{"status"},
			Filterable:   []string{"channel", "person_id", "status"},
			DefaultOrder: store.Order{Field: "created_at", Desc: true},
			Delete:       hardDelete(),
		},
		{
			Name:         "vendors",
			Table:        "vendors",
			Supported:    allActions,
			Required:     []string{"name"},
			Creatable:    []string{"name", "contact_name", "phone", "email", "category", "notes"},
			Updatable:    []string{"name", "contact_name", "phone", "email", "category", "notes"},
			Filterable:   []string{"category"},
			DefaultOrder: store.Order{Field: "name"},
			Defaults:     store.Row{"is_active": true},
			Delete:       softDelete("is_active", false),
		},
		{
			Name:         "inventory",
			Table:        "inventory",
			Supported:    allActions,
			Required:     []string{"name"},
			Creatable:    []string{"name", "quantity", "location", "space_id", "category", "notes"},
			Updatable:    []string{"name", "quantity", "location", "space_id", "category", "notes"},
			Filterable:   []string{"category", "space_id"},
			DefaultOrder: store.Order{Field: "name"},
			Defaults:     store.Row{"quantity": 0, "is_active": true},
			Delete:       softDelete("is_active", false),
		},
		{
			Name:         "bookings",
			Table:        "bookings",
			Supported:    allActions,
			Required:     []string{"space_id", "starts_at", "ends_at"},
			Creatable:    []string{"space_id", "person_id", "starts_at", "ends_at", "status", "notes"},
			Updatable:    []string{"starts_at", "ends_at", "status", "notes"},
			Filterable:   []string{"space_id", "status"},
			DefaultOrder: store.Order{Field: "starts_at"},
			Defaults:     store.Row{"status": "pending", "is_cancelled": false},
			Scope:        ScopeSelfByLink,
			LinkField:    "person_id",
			Delete:       softDelete("is_cancelled", true),
		},
		{
			Name:         "guests",
			Table:        "guests",
			Supported:    allActions,
			Required:     []string{"name"},
			Creatable:    []string{"name", "host_person_id", "arrives_on", "departs_on", "notes"},
			Updatable:    []string{"arrives_on", "departs_on", "notes"},
			Filterable:   []string{"host_person_id"},
			DefaultOrder: store.Order{Field: "arrives_on"},
			Scope:        ScopeSelfByLink,
			LinkField:    "host_person_id",
			Delete:       hardDelete(),
		},
		{
			Name:         "cameras",
			Table:        "cameras",
			Supported:    allActions,
			Required:     []string{"name"},
			Creatable:    []string{"name", "location", "last_snapshot_url", "last_snapshot_at", "battery", "is_armed"},
			Updatable:    []string{"name", "location", "last_snapshot_url", "last_snapshot_at", "battery", "is_armed"},
			Filterable:   []string{"location", "is_armed"},
			DefaultOrder: store.Order{Field: "name"},
			Defaults:     store.Row{"is_armed": false},
			Delete:       hardDelete(),
		},
		{
			Name:      "profile",
			Table:     "people",
			Supported: []policy.Action{policy.ActionGet, policy.ActionUpdate},
			// Self-service edits use an explicit allowlist, separate from
			// the restricted-fields mechanism.
			Updatable:   []string{"first_name", "last_name", "email", "phone", "bio"},
			SelfProfile: true,
		},
	})
}
