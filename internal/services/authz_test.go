package services

import (
	"testing"

	"civicmonitor-backend-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsOwner(t *testing.T) {
	issue := models.Issue{UserID: "citizen-1"}
	assert.True(t, IsOwner(Actor{ID: "citizen-1"}, issue))
	assert.False(t, IsOwner(Actor{ID: "citizen-2"}, issue))
	assert.False(t, IsOwner(Actor{}, models.Issue{}))
}

func TestIsScopedAdmin(t *testing.T) {
	admin := Actor{ID: "admin-x", IsAdmin: true}
	scope := AdminScope{
		UserID:        "admin-x",
		IsAdmin:       true,
		Level:         1,
		DepartmentIDs: []string{"bbmp"},
		LocalityIDs:   []string{"whitefield"},
	}

	cases := []struct {
		name       string
		department string
		locality   string
		want       bool
	}{
		{"BothMatch", "bbmp", "whitefield", true},
		{"DepartmentMismatch", "bescom", "whitefield", false},
		{"LocalityMismatch", "bbmp", "indiranagar", false},
		{"NeitherMatch", "bescom", "indiranagar", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issue := models.Issue{DepartmentID: tc.department, LocalityID: tc.locality}
			assert.Equal(t, tc.want, IsScopedAdmin(admin, scope, issue))
		})
	}

	t.Run("EmptyLocalitySet", func(t *testing.T) {
		partial := scope
		partial.LocalityIDs = nil
		assert.False(t, IsScopedAdmin(admin, partial, models.Issue{DepartmentID: "bbmp", LocalityID: "whitefield"}))
	})

	t.Run("NoAdminProfile", func(t *testing.T) {
		notAdmin := scope
		notAdmin.IsAdmin = false
		assert.False(t, IsScopedAdmin(admin, notAdmin, models.Issue{DepartmentID: "bbmp", LocalityID: "whitefield"}))
	})

	t.Run("ScopeOfAnotherUser", func(t *testing.T) {
		assert.False(t, IsScopedAdmin(Actor{ID: "admin-y"}, scope, models.Issue{DepartmentID: "bbmp", LocalityID: "whitefield"}))
	})
}

func TestRequireScopedAdminErrors(t *testing.T) {
	issue := models.Issue{DepartmentID: "bbmp", LocalityID: "whitefield"}

	err := requireScopedAdmin(Actor{ID: "u"}, AdminScope{UserID: "u"}, issue)
	assert.True(t, IsKind(err, KindForbidden))
	assert.Equal(t, "Admins only", err.Error())

	err = requireScopedAdmin(Actor{ID: "u"}, AdminScope{UserID: "u", IsAdmin: true, DepartmentIDs: []string{"bbmp"}}, issue)
	assert.True(t, IsKind(err, KindForbidden))
	assert.Equal(t, "Not authorized for this issue", err.Error())
}
