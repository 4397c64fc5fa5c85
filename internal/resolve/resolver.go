// Package resolve implements best-effort matching of free-text names to
// canonical person and space records. A miss is not an error: the caller
// keeps the free text and leaves the foreign key unset.
package resolve

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"hearthside.org/internal/store"
)

const (
	peopleTable = "people"
	spacesTable = "spaces"
)

// Resolver performs fuzzy person/space resolution against the store.
// Resolved person mappings are cached (input text to id) so repeated
// identical inputs take the cheap exact path; the cache owns its own expiry
// and is passed in by reference, never a package-level global.
type Resolver struct {
	st     store.Store
	people *expirable.LRU[string, string]
}

// New builds a Resolver with a bounded, expiring person-name cache.
func New(st store.Store, cacheSize int, ttl time.Duration) *Resolver {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Resolver{
		st:     st,
		people: expirable.NewLRU[string, string](cacheSize, nil, ttl),
	}
}

// InvalidateCache drops every cached person mapping.
func (r *Resolver) InvalidateCache() {
	r.people.Purge()
}

// candidate is one record considered during matching.
type candidate struct {
	row  store.Row
	name string // primary display name, original casing
}

// ResolvePerson matches free text to a person row, or returns nil when
// nothing matches. Resolution is deterministic for a fixed dataset.
func (r *Resolver) ResolvePerson(ctx context.Context, text string) (store.Row, error) {
	key := normalize(text)
	if key == "" {
		return nil, nil
	}
	if id, ok := r.people.Get(key); ok {
		row, found, err := r.st.Get(ctx, peopleTable, []store.Cond{store.Eq("id", id)})
		if err != nil {
			return nil, err
		}
		if found {
			return row, nil
		}
		r.people.Remove(key)
	}

	rows, err := r.st.Select(ctx, store.Query{Table: peopleTable})
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, 0, len(rows))
	for _, row := range rows {
		cands = append(cands, candidate{row: row, name: personName(row)})
	}
	match := pick(cands, key, func(c candidate) []string {
		return []string{
			str(c.row["first_name"]),
			str(c.row["last_name"]),
			c.name,
		}
	})
	if match == nil {
		return nil, nil
	}
	if id := str(match.row["id"]); id != "" {
		r.people.Add(key, id)
	}
	return match.row, nil
}

// ResolveSpace matches free text to a space row, or returns nil.
func (r *Resolver) ResolveSpace(ctx context.Context, text string) (store.Row, error) {
	key := normalize(text)
	if key == "" {
		return nil, nil
	}
	rows, err := r.st.Select(ctx, store.Query{Table: spacesTable})
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, 0, len(rows))
	for _, row := range rows {
		cands = append(cands, candidate{row: row, name: str(row["name"])})
	}
	match := pick(cands, key, func(c candidate) []string {
		return []string{c.name}
	})
	if match == nil {
		return nil, nil
	}
	return match.row, nil
}

// PersonName returns the display name for a matched person row.
func PersonName(row store.Row) string { return personName(row) }

// pick applies the resolution order: exact match on the primary name, then
// substring across the name parts, with ties broken by full-name containment
// and then by the most specific (shortest) name.
func pick(cands []candidate, key string, parts func(candidate) []string) *candidate {
	// Stable iteration order keeps resolution deterministic.
	sort.SliceStable(cands, func(i, j int) bool {
		return str(cands[i].row["id"]) < str(cands[j].row["id"])
	})

	for i := range cands {
		if normalize(cands[i].name) == key {
			return &cands[i]
		}
	}

	var subs []*candidate
	for i := range cands {
		for _, p := range parts(cands[i]) {
			if p == "" {
				continue
			}
			if strings.Contains(normalize(p), key) {
				subs = append(subs, &cands[i])
				break
			}
		}
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	for _, c := range subs {
		if strings.Contains(normalize(c.name), key) {
			return c
		}
	}
	best := subs[0]
	for _, c := range subs[1:] {
		if len(c.name) < len(best.name) {
			best = c
		}
	}
	return best
}

func personName(row store.Row) string {
	first := strings.TrimSpace(str(row["first_name"]))
	last := strings.TrimSpace(str(row["last_name"]))
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
