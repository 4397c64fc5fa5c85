package policy

import "hearthside.org/internal/auth"

// entry is shorthand for building the default table.
func entry(minLevel int) Entry { return Entry{MinLevel: minLevel} }

func scoped(minLevel int) Entry { return Entry{MinLevel: minLevel, RowScoped: true} }

func restricted(minLevel int, fields ...string) Entry {
	return Entry{MinLevel: minLevel, RestrictedFields: fields, RestrictUnder: auth.LevelAdmin}
}

// Default returns the deploy-time permission table. Role levels: public=0,
// resident=1, staff=2, admin=3, service=4.
func Default() *Matrix {
	return NewMatrix(map[string]map[Action]Entry{
		"spaces": {
			ActionList:   scoped(auth.LevelPublic),
			ActionGet:    scoped(auth.LevelPublic),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: restricted(auth.LevelStaff, "type", "is_secret", "is_listed"),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"people": {
			ActionList:   entry(auth.LevelStaff),
			ActionGet:    entry(auth.LevelStaff),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"users": {
			ActionList:   entry(auth.LevelAdmin),
			ActionGet:    entry(auth.LevelAdmin),
			ActionCreate: entry(auth.LevelAdmin),
			ActionUpdate: entry(auth.LevelAdmin),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"tasks": {
			ActionList:   entry(auth.LevelResident),
			ActionGet:    entry(auth.LevelResident),
			ActionCreate: entry(auth.LevelResident),
			ActionUpdate: entry(auth.LevelResident),
			ActionDelete: entry(auth.LevelStaff),
		},
		"assignments": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"time_entries": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: scoped(auth.LevelResident),
			ActionUpdate: scoped(auth.LevelResident),
			ActionDelete: entry(auth.LevelStaff),
		},
		"events": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"faq": {
			ActionList:   scoped(auth.LevelPublic),
			ActionGet:    scoped(auth.LevelPublic),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"credentials": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"feature_requests": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelResident),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"announcements": {
			ActionList:   scoped(auth.LevelPublic),
			ActionGet:    scoped(auth.LevelPublic),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"documents": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"payments": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"messages": {
			ActionList:   entry(auth.LevelStaff),
			ActionGet:    entry(auth.LevelStaff),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelAdmin),
		},
		"vendors": {
			ActionList:   entry(auth.LevelStaff),
			ActionGet:    entry(auth.LevelStaff),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"inventory": {
			ActionList:   entry(auth.LevelResident),
			ActionGet:    entry(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"bookings": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: scoped(auth.LevelResident),
			ActionUpdate: Entry{MinLevel: auth.LevelResident, RowScoped: true, RestrictedFields: []string{"status"}, RestrictUnder: auth.LevelStaff},
			ActionDelete: scoped(auth.LevelResident),
		},
		"guests": {
			ActionList:   scoped(auth.LevelResident),
			ActionGet:    scoped(auth.LevelResident),
			ActionCreate: scoped(auth.LevelResident),
			ActionUpdate: scoped(auth.LevelResident),
			ActionDelete: scoped(auth.LevelResident),
		},
		"cameras": {
			ActionList:   entry(auth.LevelResident),
			ActionGet:    entry(auth.LevelResident),
			ActionCreate: entry(auth.LevelStaff),
			ActionUpdate: entry(auth.LevelStaff),
			ActionDelete: entry(auth.LevelStaff),
		},
		"profile": {
			ActionGet:    entry(auth.LevelResident),
			ActionUpdate: entry(auth.LevelResident),
		},
	})
}
