package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/host-directory/filter"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testBase interfaces.EntryID = "cn=computers,cn=accounts,dc=example,dc=com"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBackend(t *testing.T) (*Backend, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore("test", discardLogger())
	opts := DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost
	return NewBackend(store, opts, discardLogger()), store
}

func hostEntry(fqdn string, extra interfaces.Attributes) *interfaces.Entry {
	attrs := interfaces.Attributes{
		"fqdn":        {fqdn},
		"objectclass": {"ipaobject", "nshost", "ipahost", "pkiuser", "ipaservice"},
	}
	for k, v := range extra {
		attrs.Set(k, v...)
	}
	return &interfaces.Entry{ID: testBase.Child("fqdn", fqdn), Attrs: attrs}
}

func TestBackend_CreateAndGet(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	entry := hostEntry("web.example.com", interfaces.Attributes{"userpassword": {"s3cret"}, "l": {"Berlin"}})
	require.NoError(t, b.CreateEntry(ctx, entry))

	got, err := b.GetEntry(ctx, "FQDN=Web.Example.Com,cn=computers,cn=accounts,dc=example,dc=com", nil)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "Berlin", got.Attrs.Get("l"))
	assert.False(t, got.Attrs.Has("userpassword"), "hashed secrets are never returned")

	_, err = uuid.Parse(got.Attrs.Get("ipauniqueid"))
	assert.NoError(t, err, "unique id is a UUID")

	projected, err := b.GetEntry(ctx, entry.ID, []string{"FQDN"})
	require.NoError(t, err)
	assert.Equal(t, interfaces.Attributes{"fqdn": {"web.example.com"}}, projected.Attrs)

	err = b.CreateEntry(ctx, hostEntry("web.example.com", nil))
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExists)

	_, err = b.GetEntry(ctx, testBase.Child("fqdn", "missing.example.com"), nil)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestBackend_VerifySecret(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	entry := hostEntry("a.example.com", interfaces.Attributes{"userpassword": {"otp-1"}})
	require.NoError(t, b.CreateEntry(ctx, entry))

	assert.NoError(t, b.VerifySecret(ctx, entry.ID, "userpassword", "otp-1"))
	assert.ErrorIs(t, b.VerifySecret(ctx, entry.ID, "userpassword", "wrong"), bcrypt.ErrMismatchedHashAndPassword)
	assert.ErrorIs(t, b.VerifySecret(ctx, entry.ID, "l", "x"), interfaces.ErrNotFound)
}

func TestBackend_UpdateEntry(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	entry := hostEntry("a.example.com", interfaces.Attributes{"l": {"Berlin"}, "description": {"old"}})
	require.NoError(t, b.CreateEntry(ctx, entry))

	require.NoError(t, b.UpdateEntry(ctx, entry.ID, interfaces.Attributes{
		"L":           {"Paris", "Lyon"},
		"description": {},
	}))

	got, err := b.GetEntry(ctx, entry.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", "Lyon"}, got.Attrs["l"])
	assert.False(t, got.Attrs.Has("description"))

	err = b.UpdateEntry(ctx, entry.ID, interfaces.Attributes{"ipauniqueid": {"x"}})
	assert.Error(t, err)

	err = b.UpdateEntry(ctx, testBase.Child("fqdn", "missing.example.com"), interfaces.Attributes{"l": {"x"}})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestBackend_DeleteEntry(t *testing.T) {
	b, store := newTestBackend(t)
	ctx := context.Background()

	entry := hostEntry("a.example.com", nil)
	require.NoError(t, b.CreateEntry(ctx, entry))
	require.NoError(t, b.DeleteEntry(ctx, entry.ID))

	keys, err := store.List(ctx, entryPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.ErrorIs(t, b.DeleteEntry(ctx, entry.ID), interfaces.ErrNotFound)
}

func TestBackend_FindByAttribute(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.CreateEntry(ctx, hostEntry("web.example.com", interfaces.Attributes{"serverhostname": {"web"}})))
	require.NoError(t, b.CreateEntry(ctx, hostEntry("web.other.org", interfaces.Attributes{"serverhostname": {"web"}})))
	require.NoError(t, b.CreateEntry(ctx, &interfaces.Entry{
		ID:    "cn=web,cn=groups,dc=example,dc=com",
		Attrs: interfaces.Attributes{"serverhostname": {"web"}, "objectclass": {"groupofnames"}},
	}))

	got, err := b.FindByAttribute(ctx, "serverhostname", "WEB", []string{"ipahost"}, []string{"fqdn"}, testBase)
	require.NoError(t, err)
	assert.Equal(t, "web.example.com", got.Attrs.Get("fqdn"), "first match in identifier order")
	assert.Equal(t, interfaces.Attributes{"fqdn": {"web.example.com"}}, got.Attrs)

	_, err = b.FindByAttribute(ctx, "serverhostname", "web", []string{"ipahost", "krbprincipal"}, nil, testBase)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = b.FindByAttribute(ctx, "serverhostname", "web", nil, nil, "cn=services,dc=example,dc=com")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestBackend_Search(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	for _, fqdn := range []string{"c.example.com", "a.example.com", "e.example.com", "b.example.com", "d.example.com"} {
		require.NoError(t, b.CreateEntry(ctx, hostEntry(fqdn, interfaces.Attributes{"l": {"Berlin"}})))
	}
	require.NoError(t, b.CreateEntry(ctx, hostEntry("x.example.com", interfaces.Attributes{"l": {"Paris"}})))

	req := interfaces.SearchRequest{
		Base:      testBase,
		Scope:     interfaces.ScopeSubtree,
		Filter:    filter.NewEquality("l", "berlin"),
		Attrs:     []string{"fqdn"},
		SizeLimit: 2,
	}

	var seen []string
	pages := 0
	for page, err := range interfaces.Pages(ctx, func(ctx context.Context, cursor string) (*interfaces.SearchPage, string, bool, error) {
		req.Cursor = cursor
		p, err := b.Search(ctx, req)
		if err != nil {
			return nil, "", false, err
		}
		return p, p.Cursor, p.Truncated, nil
	}) {
		require.NoError(t, err)
		pages++
		for _, e := range page.Entries {
			seen = append(seen, e.Attrs.Get("fqdn"))
		}
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com", "d.example.com", "e.example.com"}, seen)
}

func TestBackend_SearchScope(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.CreateEntry(ctx, &interfaces.Entry{ID: testBase, Attrs: interfaces.Attributes{"cn": {"computers"}}}))
	require.NoError(t, b.CreateEntry(ctx, hostEntry("a.example.com", nil)))
	require.NoError(t, b.CreateEntry(ctx, &interfaces.Entry{
		ID:    testBase.Child("fqdn", "a.example.com").Child("cn", "sub"),
		Attrs: interfaces.Attributes{"cn": {"sub"}},
	}))

	tests := []struct {
		name  string
		scope interfaces.Scope
		count int
	}{
		{name: "base", scope: interfaces.ScopeBase, count: 1},
		{name: "one level", scope: interfaces.ScopeOneLevel, count: 1},
		{name: "subtree", scope: interfaces.ScopeSubtree, count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := b.Search(ctx, interfaces.SearchRequest{Base: testBase, Scope: tt.scope})
			require.NoError(t, err)
			assert.Len(t, page.Entries, tt.count)
			assert.False(t, page.Truncated)
			assert.Empty(t, page.Cursor)
		})
	}
}

func TestBackend_KeyMaterial(t *testing.T) {
	b, _ := newTestBackend(t)
	b.now = func() time.Time { return time.Date(2026, time.May, 1, 12, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	withPrincipal := hostEntry("a.example.com", interfaces.Attributes{"krbprincipalname": {"host/a.example.com@EXAMPLE.COM"}})
	withoutPrincipal := hostEntry("b.example.com", nil)
	require.NoError(t, b.CreateEntry(ctx, withPrincipal))
	require.NoError(t, b.CreateEntry(ctx, withoutPrincipal))

	assert.ErrorIs(t, b.RemoveKeyMaterial(ctx, withPrincipal.ID), interfaces.ErrNotFound, "no key yet")
	assert.ErrorIs(t, b.SetKeyMaterial(ctx, withoutPrincipal.ID), interfaces.ErrNotFound)

	require.NoError(t, b.SetKeyMaterial(ctx, withPrincipal.ID))
	got, err := b.GetEntry(ctx, withPrincipal.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "20260501123000Z", got.Attrs.Get("krblastpwdchange"))
	assert.False(t, got.Attrs.Has("krbprincipalkey"), "raw keys are hidden")

	require.NoError(t, b.RemoveKeyMaterial(ctx, withPrincipal.ID))
	got, err = b.GetEntry(ctx, withPrincipal.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.Attrs.Has("krblastpwdchange"))
	assert.Equal(t, "host/a.example.com@EXAMPLE.COM", got.Attrs.Get("krbprincipalname"))

	assert.ErrorIs(t, b.RemoveKeyMaterial(ctx, withPrincipal.ID), interfaces.ErrNotFound)
}

func TestBackend_StoreErrors(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore("failing", discardLogger())}
	b := NewBackend(store, Options{BcryptCost: bcrypt.MinCost}, discardLogger())
	ctx := context.Background()

	err := b.CreateEntry(ctx, hostEntry("a.example.com", nil))
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, interfaces.ErrNotFound)

	_, err = b.Search(ctx, interfaces.SearchRequest{Base: testBase})
	assert.ErrorIs(t, err, errStoreDown)
}

var errStoreDown = errors.New("store down")

type failingStore struct {
	*storage.MemoryStore
}

func (f *failingStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	return nil, errStoreDown
}

func (f *failingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, errStoreDown
}
