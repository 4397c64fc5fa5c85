package auth

import (
	"context"

	"hearthside.org/internal/store"
)

const usersTable = "users"

// StoreProfiles resolves account profiles from the users table.
type StoreProfiles struct {
	st store.Store
}

var _ ProfileLookup = (*StoreProfiles)(nil)

// NewStoreProfiles wraps a store as a ProfileLookup.
func NewStoreProfiles(st store.Store) *StoreProfiles {
	return &StoreProfiles{st: st}
}

func (p *StoreProfiles) ProfileByAccount(ctx context.Context, accountID string) (Profile, bool, error) {
	if accountID == "" {
		return Profile{}, false, nil
	}
	row, found, err := p.st.Get(ctx, usersTable, []store.Cond{store.Eq("id", accountID)})
	if err != nil {
		return Profile{}, false, err
	}
	if !found {
		return Profile{}, false, nil
	}
	profile := Profile{
		UserID: accountID,
		Active: true,
	}
	if role, ok := row["role"].(string); ok {
		profile.Role = role
	}
	if person, ok := row["person_id"].(string); ok {
		profile.PersonID = person
	}
	if active, ok := row["is_active"].(bool); ok {
		profile.Active = active
	}
	return profile, true, nil
}
