package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection() *Collection {
	return &Collection{
		ID:   "col-1",
		Name: "Sample API",
		Auth: Auth{Type: AuthBearer, Token: "col-token"},
		Requests: []*Request{
			{ID: "r1", Name: "Root One", Method: "GET", URL: "http://example.test/one"},
			{ID: "r2", Name: "Root Two", Method: "GET", URL: "http://example.test/two"},
		},
		Folders: []*Folder{
			{
				ID:   "f1",
				Name: "Users",
				Auth: Auth{Type: AuthBasic, Username: "folder-user"},
				Requests: []*Request{
					{ID: "r3", Name: "List Users", Method: "GET", URL: "http://example.test/users"},
				},
				Folders: []*Folder{
					{
						ID:   "f2",
						Name: "Admin",
						Requests: []*Request{
							{ID: "r4", Name: "Delete User", Method: "DELETE", URL: "http://example.test/users/1"},
						},
					},
				},
			},
			{
				ID:   "f3",
				Name: "Health",
				Requests: []*Request{
					{ID: "r5", Name: "Ping", Method: "GET", URL: "http://example.test/ping"},
				},
			},
		},
	}
}

func TestFlatten_Order(t *testing.T) {
	c := sampleCollection()
	entries := Flatten(c)

	require.Len(t, entries, 5)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.Request.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, ids)

	assert.Nil(t, entries[0].Folder)
	assert.Nil(t, entries[1].Folder)
	assert.Equal(t, "f1", entries[2].Folder.ID)
	assert.Equal(t, "f2", entries[3].Folder.ID)
	assert.Equal(t, "f3", entries[4].Folder.ID)
	assert.Equal(t, "col-1", entries[0].CollectionID)
}

func TestFlatten_Empty(t *testing.T) {
	entries := Flatten(&Collection{ID: "c", Name: "empty"})
	assert.Empty(t, entries)
}

func TestFindRequest(t *testing.T) {
	c := sampleCollection()

	t.Run("root request by name", func(t *testing.T) {
		r, owner := c.FindRequest("Root One")
		require.NotNil(t, r)
		assert.Equal(t, "r1", r.ID)
		assert.Nil(t, owner)
	})

	t.Run("nested request by id", func(t *testing.T) {
		r, owner := c.FindRequest("r4")
		require.NotNil(t, r)
		assert.Equal(t, "Delete User", r.Name)
		require.NotNil(t, owner)
		assert.Equal(t, "f2", owner.ID)
	})

	t.Run("unknown", func(t *testing.T) {
		r, owner := c.FindRequest("nope")
		assert.Nil(t, r)
		assert.Nil(t, owner)
	})
}

func TestEnsureIDs(t *testing.T) {
	c := &Collection{
		Name:     "fresh",
		Requests: []*Request{{Name: "a"}},
		Folders: []*Folder{
			{Name: "f", Requests: []*Request{{Name: "b"}}},
		},
	}
	c.EnsureIDs()

	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.Requests[0].ID)
	assert.NotEmpty(t, c.Folders[0].ID)
	assert.NotEmpty(t, c.Folders[0].Requests[0].ID)

	// existing ids are kept
	before := c.ID
	c.EnsureIDs()
	assert.Equal(t, before, c.ID)
}

func TestEffectiveAuth(t *testing.T) {
	bearer := Auth{Type: AuthBearer, Token: "tok"}

	t.Run("inherit takes the inherited auth", func(t *testing.T) {
		got := EffectiveAuth(Auth{Type: AuthInherit}, bearer)
		assert.Equal(t, bearer, got)
	})

	t.Run("inherit with nothing to inherit stays as-is", func(t *testing.T) {
		got := EffectiveAuth(Auth{Type: AuthInherit}, Auth{})
		assert.Equal(t, AuthInherit, got.Type)
	})

	t.Run("explicit auth is used verbatim", func(t *testing.T) {
		own := Auth{Type: AuthBasic, Username: "me"}
		got := EffectiveAuth(own, bearer)
		assert.Equal(t, own, got)
	})

	t.Run("none stays none", func(t *testing.T) {
		got := EffectiveAuth(Auth{Type: AuthNone}, bearer)
		assert.True(t, got.IsNone())
	})
}

func TestInheritedAuth(t *testing.T) {
	c := sampleCollection()

	t.Run("folder auth wins", func(t *testing.T) {
		got := InheritedAuth(c, c.Folders[0])
		assert.Equal(t, AuthBasic, got.Type)
		assert.Equal(t, "folder-user", got.Username)
	})

	t.Run("folder without auth falls back to collection", func(t *testing.T) {
		got := InheritedAuth(c, c.Folders[1])
		assert.Equal(t, AuthBearer, got.Type)
		assert.Equal(t, "col-token", got.Token)
	})

	t.Run("root request inherits collection auth", func(t *testing.T) {
		got := InheritedAuth(c, nil)
		assert.Equal(t, AuthBearer, got.Type)
	})
}

func TestVariableEffectiveValue(t *testing.T) {
	tests := []struct {
		name string
		v    Variable
		want string
	}{
		{"current wins", Variable{Value: "v", CurrentValue: "cur", InitialValue: "init"}, "cur"},
		{"value next", Variable{Value: "v", InitialValue: "init"}, "v"},
		{"initial last", Variable{InitialValue: "init"}, "init"},
		{"empty", Variable{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.EffectiveValue())
		})
	}
}
