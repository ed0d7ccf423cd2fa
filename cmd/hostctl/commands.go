package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/host-directory/cmd/flags"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/schema"
	"golang.org/x/crypto/bcrypt"
)

// getKeytab resolves key like show does and stores a fresh principal key on the
// entry.
func getKeytab(ctx context.Context, dir *flags.Directory, key string) (*pipeline.Result, error) {
	shown, err := dir.Registry.Execute(ctx, commandName(dir, pipeline.KindShow), pipeline.Request{
		Key:     key,
		Options: pipeline.Options{Attrs: []string{dir.Schema.PrimaryKey().Name}},
	})
	if err != nil {
		return nil, err
	}

	if err := dir.Backend.SetKeyMaterial(ctx, dir.Schema.DN(shown.Value)); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, &interfaces.NotFoundError{Key: shown.Value, Reason: "Host has no kerberos principal"}
		}
		return nil, &interfaces.BackendError{Op: "host_getkeytab", Key: shown.Value, Err: err}
	}

	return &pipeline.Result{
		Summary: fmt.Sprintf(`Retrieved keytab for "%s"`, shown.Value),
		Value:   shown.Value,
		Status:  true,
	}, nil
}

// enroll completes the self-service enrollment of a host created with a
// one-time password: the password is checked and consumed, the host principal
// is assigned through host_mod and a first key is stored.
func enroll(ctx context.Context, dir *flags.Directory, key, password string) (*pipeline.Result, error) {
	shown, err := dir.Registry.Execute(ctx, commandName(dir, pipeline.KindShow), pipeline.Request{
		Key:     key,
		Options: pipeline.Options{Attrs: []string{dir.Schema.PrimaryKey().Name}},
	})
	if err != nil {
		return nil, err
	}
	fqdn := shown.Value

	err = dir.Backend.VerifySecret(ctx, dir.Schema.DN(fqdn), schema.AttrPassword, password)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return nil, &interfaces.NotFoundError{Key: fqdn, Reason: "Host has no enrollment password"}
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return nil, &interfaces.ValidationError{Field: schema.HostPassword, Reason: "enrollment password does not match"}
	case err != nil:
		return nil, &interfaces.BackendError{Op: "host_enroll", Key: fqdn, Err: err}
	}

	_, err = dir.Registry.Execute(ctx, commandName(dir, pipeline.KindMod), pipeline.Request{
		Key: fqdn,
		Fields: map[string][]string{
			schema.HostPrincipal: {schema.HostPrincipalName(fqdn, dir.Realm)},
			schema.HostPassword:  {""},
		},
	})
	if err != nil {
		return nil, err
	}

	if err := dir.Backend.SetKeyMaterial(ctx, dir.Schema.DN(fqdn)); err != nil {
		return nil, &interfaces.BackendError{Op: "host_enroll", Key: fqdn, Err: err}
	}

	return &pipeline.Result{
		Summary: fmt.Sprintf(`Enrolled host "%s"`, fqdn),
		Value:   fqdn,
		Status:  true,
	}, nil
}

func findServices(ctx context.Context, services interfaces.ServiceCatalog, term string) (*pipeline.Result, error) {
	pages := interfaces.Pages(ctx, func(ctx context.Context, cursor string) (*interfaces.ServicePage, string, bool, error) {
		page, err := services.FindServices(ctx, term, cursor)
		if err != nil {
			return nil, "", false, err
		}
		return page, page.Cursor, page.Truncated, nil
	})

	res := &pipeline.Result{Value: term}
	for page, err := range pages {
		if err != nil {
			return nil, &interfaces.BackendError{Op: "service_find", Key: term, Err: err}
		}
		for _, principal := range page.Principals {
			res.Entries = append(res.Entries, pipeline.Record{schema.AttrPrincipal: []string{principal}})
		}
	}

	res.Count = len(res.Entries)
	noun := "services"
	if res.Count == 1 {
		noun = "service"
	}
	res.Summary = fmt.Sprintf("%d %s matched", res.Count, noun)
	return res, nil
}
