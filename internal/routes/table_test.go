package routes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/web"
)

func loadAppTable(t *testing.T) *Table {
	t.Helper()
	defs, err := LoadFile(web.RoutesFS, web.RoutesFile)
	require.NoError(t, err)
	table, err := New(defs)
	require.NoError(t, err)
	return table
}

func names(chain []*Route) []string {
	out := make([]string, len(chain))
	for i, r := range chain {
		out[i] = r.Component
	}
	return out
}

func TestAppTableResolvesEveryDeclaredPath(t *testing.T) {
	table := loadAppTable(t)

	cases := []struct {
		path      string
		name      string
		component string
		chain     []string
	}{
		{"/", "Home", "home", []string{"home"}},
		{"/features", "Features", "features", []string{"features"}},
		{"/about", "About", "about", []string{"about"}},
		{"/contact", "Contact", "contact", []string{"contact"}},
		{"/login", "Login", "login", []string{"login"}},
		{"/register", "Register", "register", []string{"register"}},
		{"/auth-success", "AuthSuccess", "auth_success", []string{"auth_success"}},
		{"/Dashboard", "Dashboard", "dashboard", []string{"main_page", "dashboard"}},
		{"/budgets", "Budgets", "budgets", []string{"main_page", "budgets"}},
		{"/goals", "Goals", "goals", []string{"main_page", "goals"}},
		{"/categories", "Categories", "categories", []string{"main_page", "categories"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			m, ok := table.Resolve(tc.path)
			require.True(t, ok, "expected a match")
			assert.Equal(t, tc.name, m.Route.Name)
			assert.Equal(t, tc.component, m.Route.Component)
			assert.Equal(t, tc.chain, names(m.Chain))
		})
	}
}

func TestDashboardDefaultChild(t *testing.T) {
	table := loadAppTable(t)
	for _, p := range []string{"/Dashboard", "/dashboard", "/Dashboard/", "/DASHBOARD?tab=1"} {
		m, ok := table.Resolve(p)
		require.True(t, ok, p)
		assert.Equal(t, "Dashboard", m.Route.Name, p)
		assert.True(t, m.Route.Guarded(), "dashboard inherits the layout guard")
	}
}

func TestAbsoluteChildrenDoNotTakeParentPrefix(t *testing.T) {
	table := loadAppTable(t)
	for _, p := range []string{"/Dashboard/budgets", "/Dashboard/goals", "/Dashboard/categories"} {
		_, ok := table.Resolve(p)
		assert.False(t, ok, "%s should not match", p)
	}

	budgets, ok := table.Lookup("Budgets")
	require.True(t, ok)
	assert.True(t, budgets.Absolute)
	assert.Equal(t, "/budgets", budgets.Path)
	assert.Equal(t, "main_page", budgets.Parent.Component)
	assert.True(t, budgets.Guarded())
}

func TestUndeclaredPathHasNoMatch(t *testing.T) {
	table := loadAppTable(t)
	for _, p := range []string{"/nope", "/about/team", "/budgets/2024", "//x"} {
		_, ok := table.Resolve(p)
		assert.False(t, ok, p)
	}
}

func TestLintFlagsAbsoluteChildren(t *testing.T) {
	table := loadAppTable(t)
	var flagged []string
	for _, w := range table.Warnings() {
		if w.Code == WarnAbsoluteChild {
			flagged = append(flagged, w.Route.Name)
		}
	}
	assert.Equal(t, []string{"Budgets", "Goals", "Categories"}, flagged)
}

func TestURLReverse(t *testing.T) {
	table, err := New([]Definition{
		{Path: "/", Name: "Home", Component: "home"},
		{Path: "/users/:id", Name: "User", Component: "user", Children: []Definition{
			{Path: "posts/:post", Name: "Post", Component: "post"},
		}},
	})
	require.NoError(t, err)

	u, err := table.URL("Home", nil)
	require.NoError(t, err)
	assert.Equal(t, "/", u)

	u, err = table.URL("Post", map[string]string{"id": "7", "post": "a b"})
	require.NoError(t, err)
	assert.Equal(t, "/users/7/posts/a%20b", u)

	_, err = table.URL("Post", map[string]string{"id": "7"})
	assert.True(t, errors.Is(err, ErrMissingParam))

	_, err = table.URL("Missing", nil)
	assert.True(t, errors.Is(err, ErrUnknownRouteName))
}

func TestParamsAndPrecedence(t *testing.T) {
	table, err := New([]Definition{
		{Path: "/items/:id", Name: "Item", Component: "item"},
		{Path: "/items/new", Name: "NewItem", Component: "new_item"},
	})
	require.NoError(t, err)

	m, ok := table.Resolve("/items/new")
	require.True(t, ok)
	assert.Equal(t, "NewItem", m.Route.Name, "static beats param")

	m, ok = table.Resolve("/items/42")
	require.True(t, ok)
	assert.Equal(t, "Item", m.Route.Name)
	assert.Equal(t, map[string]string{"id": "42"}, m.Params)
}

func TestRelativeChildJoinsParent(t *testing.T) {
	table, err := New([]Definition{
		{Path: "/app", Component: "shell", Children: []Definition{
			{Path: "", Name: "AppHome", Component: "home"},
			{Path: "settings", Name: "Settings", Component: "settings"},
		}},
	})
	require.NoError(t, err)

	m, ok := table.Resolve("/app/settings")
	require.True(t, ok)
	assert.Equal(t, "Settings", m.Route.Name)
	assert.Equal(t, []string{"shell", "settings"}, names(m.Chain))
	assert.Empty(t, table.Warnings())
}

func TestNewRejectsBadTables(t *testing.T) {
	cases := []struct {
		name string
		defs []Definition
		want error
	}{
		{"duplicate name", []Definition{
			{Path: "/a", Name: "X", Component: "a"},
			{Path: "/b", Name: "X", Component: "b"},
		}, ErrDuplicateName},
		{"duplicate path", []Definition{
			{Path: "/a", Component: "a"},
			{Path: "/A/", Component: "b"},
		}, ErrDuplicatePath},
		{"sibling collides with absolute child", []Definition{
			{Path: "/shell", Component: "shell", Children: []Definition{{Path: "/a", Component: "child"}}},
			{Path: "/a", Component: "a"},
		}, ErrDuplicatePath},
		{"relative root", []Definition{{Path: "a", Component: "a"}}, ErrRelativeRootRoute},
		{"missing component", []Definition{{Path: "/a"}}, ErrMissingComponent},
		{"bad param", []Definition{{Path: "/a/:1x", Component: "a"}}, ErrInvalidPattern},
		{"repeated param", []Definition{{Path: "/a/:id/:id", Component: "a"}}, ErrInvalidPattern},
		{"wildcard", []Definition{{Path: "/a/*", Component: "a"}}, ErrInvalidPattern},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.defs)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWithComponentsRejectsUnknown(t *testing.T) {
	known := func(c string) bool { return c == "home" }
	_, err := New([]Definition{{Path: "/", Component: "home"}, {Path: "/x", Component: "ghost"}}, WithComponents(known))
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[[routes]]\npath = \"/\"\ncomponnet = \"home\"\n"))
	assert.Error(t, err)
}

func TestTableIsNotAliasedByAccessors(t *testing.T) {
	table := loadAppTable(t)
	all := table.Routes()
	all[0] = nil
	assert.NotNil(t, table.Routes()[0])
	assert.Len(t, table.Roots(), 8)
}
