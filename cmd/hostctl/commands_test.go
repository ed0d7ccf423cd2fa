package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/host-directory/cmd/flags"
	"github.com/ruteri/host-directory/cryptoutils"
	"github.com/ruteri/host-directory/directory"
	"github.com/ruteri/host-directory/hostrules"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/schema"
	"github.com/ruteri/host-directory/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory(t *testing.T) *flags.Directory {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	baseDN := interfaces.EntryID("dc=example,dc=com")

	s, err := schema.NewHostSchema(baseDN)
	require.NoError(t, err)
	opts := directory.DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost
	backend := directory.NewBackend(storage.NewMemoryStore("hostctl", log), opts, log)
	services := directory.NewServiceCatalog(backend, baseDN, 1, log)

	rules := hostrules.NewRules("EXAMPLE.COM", nil, cryptoutils.X509Parser{}, services, log)
	reg := pipeline.NewRegistry(pipeline.NewPipeline(backend, 0, log))
	require.NoError(t, reg.Register(rules.Commands(s)...))

	return &flags.Directory{Realm: "EXAMPLE.COM", Schema: s, Backend: backend, Services: services, Registry: reg}
}

func TestGetKeytabThenDisable(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	_, err := dir.Registry.Execute(ctx, "host_add", pipeline.Request{Key: "web.example.com", Options: pipeline.Options{Force: true}})
	require.NoError(t, err)

	_, err = dir.Registry.Execute(ctx, "host_disable", pipeline.Request{Key: "web.example.com"})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	res, err := getKeytab(ctx, dir, "web")
	require.NoError(t, err)
	assert.Equal(t, "web.example.com", res.Value)
	assert.Equal(t, `Retrieved keytab for "web.example.com"`, res.Summary)

	shown, err := dir.Registry.Execute(ctx, "host_show", pipeline.Request{Key: "web.example.com"})
	require.NoError(t, err)
	assert.Equal(t, true, shown.Entry[schema.HostHasKeytab])

	_, err = dir.Registry.Execute(ctx, "host_disable", pipeline.Request{Key: "web.example.com"})
	require.NoError(t, err)
}

func TestGetKeytab_Errors(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	_, err := getKeytab(ctx, dir, "missing.example.com")
	assert.Equal(t, 3, exitCode(err))

	// A host waiting for enrollment has no principal yet.
	_, err = dir.Registry.Execute(ctx, "host_add", pipeline.Request{
		Key:     "otp.example.com",
		Fields:  map[string][]string{schema.HostPassword: {"Secret123"}},
		Options: pipeline.Options{Force: true},
	})
	require.NoError(t, err)

	_, err = getKeytab(ctx, dir, "otp.example.com")
	var nf *interfaces.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "otp.example.com", nf.Key)
}

func TestFindServices(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	for _, principal := range []string{"HTTP/web.example.com", "ldap/web.example.com", "HTTP/db.example.com"} {
		_, err := dir.Services.AddService(ctx, principal, dir.Realm, true)
		require.NoError(t, err)
	}

	res, err := findServices(ctx, dir.Services, "web.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "2 services matched", res.Summary)
	assert.ElementsMatch(t, []pipeline.Record{
		{schema.AttrPrincipal: []string{"HTTP/web.example.com@EXAMPLE.COM"}},
		{schema.AttrPrincipal: []string{"ldap/web.example.com@EXAMPLE.COM"}},
	}, res.Entries)

	res, err = findServices(ctx, dir.Services, "db.")
	require.NoError(t, err)
	assert.Equal(t, "1 service matched", res.Summary)
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	_, err := dir.Registry.Execute(ctx, "host_add", pipeline.Request{
		Key:     "otp.example.com",
		Fields:  map[string][]string{schema.HostPassword: {"Secret123"}},
		Options: pipeline.Options{Force: true},
	})
	require.NoError(t, err)

	_, err = enroll(ctx, dir, "otp.example.com", "wrong")
	assert.Equal(t, 2, exitCode(err))

	res, err := enroll(ctx, dir, "otp", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "otp.example.com", res.Value)
	assert.Equal(t, `Enrolled host "otp.example.com"`, res.Summary)

	shown, err := dir.Registry.Execute(ctx, "host_show", pipeline.Request{Key: "otp.example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"host/otp.example.com@EXAMPLE.COM"}, shown.Entry[schema.HostPrincipal])
	assert.Equal(t, true, shown.Entry[schema.HostHasKeytab])

	// The password is consumed.
	_, err = enroll(ctx, dir, "otp.example.com", "Secret123")
	var nf *interfaces.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Host has no enrollment password", nf.Reason)
}
