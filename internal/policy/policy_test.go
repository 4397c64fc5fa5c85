package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resource"
)

func TestDefaultMatrixCoversEveryHandler(t *testing.T) {
	m := policy.Default()
	err := m.Validate(resource.DefaultRegistry().SupportedActions())
	require.NoError(t, err)
}

func TestValidateReportsGaps(t *testing.T) {
	m := policy.NewMatrix(map[string]map[policy.Action]policy.Entry{
		"tasks": {policy.ActionList: {MinLevel: auth.LevelResident}},
	})

	err := m.Validate(map[string][]policy.Action{
		"tasks": {policy.ActionList, policy.ActionGet},
	})
	require.ErrorContains(t, err, "tasks.get")

	err = m.Validate(map[string][]policy.Action{})
	require.ErrorContains(t, err, "no registered handler")
}

func TestCheckThresholds(t *testing.T) {
	m := policy.NewMatrix(map[string]map[policy.Action]policy.Entry{
		"tasks": {
			policy.ActionList:   {MinLevel: auth.LevelResident, RowScoped: true},
			policy.ActionDelete: {MinLevel: auth.LevelAdmin},
		},
	})

	cases := []struct {
		name    string
		action  policy.Action
		level   int
		allowed bool
	}{
		{"public below minimum", policy.ActionList, auth.LevelPublic, false},
		{"resident at minimum", policy.ActionList, auth.LevelResident, true},
		{"staff above minimum", policy.ActionList, auth.LevelStaff, true},
		{"staff below admin action", policy.ActionDelete, auth.LevelStaff, false},
		{"service passes everything", policy.ActionDelete, auth.LevelService, true},
		{"invalid never allowed", policy.ActionList, auth.LevelInvalid, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, ok := m.Check("tasks", tc.action, tc.level)
			require.True(t, ok)
			require.Equal(t, tc.allowed, dec.Allowed)
		})
	}
}

func TestCheckCarriesEntryForward(t *testing.T) {
	m := policy.NewMatrix(map[string]map[policy.Action]policy.Entry{
		"bookings": {
			policy.ActionUpdate: {
				MinLevel:         auth.LevelResident,
				RowScoped:        true,
				RestrictedFields: []string{"status"},
				RestrictUnder:    auth.LevelStaff,
			},
		},
	})
	dec, ok := m.Check("bookings", policy.ActionUpdate, auth.LevelResident)
	require.True(t, ok)
	require.True(t, dec.Allowed)
	require.True(t, dec.Entry.RowScoped)
	require.Equal(t, []string{"status"}, dec.Entry.RestrictedFields)
}

func TestLookupMissingPair(t *testing.T) {
	m := policy.NewMatrix(map[string]map[policy.Action]policy.Entry{
		"faq": {policy.ActionList: {MinLevel: auth.LevelPublic}},
	})
	_, ok := m.Lookup("faq", policy.ActionDelete)
	require.False(t, ok)
	_, ok = m.Lookup("unknown", policy.ActionList)
	require.False(t, ok)

	_, ok = m.Check("faq", policy.ActionDelete, auth.LevelAdmin)
	require.False(t, ok)
}
