package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/host-directory/filter"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/schema"
)

// DefaultServicePageSize bounds each page returned by FindServices.
const DefaultServicePageSize = 100

// ServiceCatalog keeps service entries in a DirectoryBackend below the service container.
type ServiceCatalog struct {
	backend  interfaces.DirectoryBackend
	base     interfaces.EntryID
	hostBase interfaces.EntryID
	pageSize int
	log      *slog.Logger
}

var _ interfaces.ServiceCatalog = (*ServiceCatalog)(nil)

// NewServiceCatalog creates a catalog for the services below baseDN.
func NewServiceCatalog(backend interfaces.DirectoryBackend, baseDN interfaces.EntryID, pageSize int, log *slog.Logger) *ServiceCatalog {
	if log == nil {
		log = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultServicePageSize
	}
	return &ServiceCatalog{
		backend:  backend,
		base:     interfaces.EntryID(string(schema.ServiceContainer) + "," + string(baseDN)),
		hostBase: interfaces.EntryID(string(schema.HostContainer) + "," + string(baseDN)),
		pageSize: pageSize,
		log:      log,
	}
}

// AddService creates the entry of principal, managed by the host it names. Unless
// force is set the host must exist. A missing realm is filled in with realm.
func (c *ServiceCatalog) AddService(ctx context.Context, principal, realm string, force bool) (*interfaces.Entry, error) {
	service, hostname, principalRealm, err := schema.SplitPrincipal(principal)
	if err != nil {
		return nil, err
	}
	if principalRealm == "" {
		principalRealm = realm
	}
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	if service == "host" {
		return nil, &interfaces.ValidationError{Field: "principal", Value: principal, Reason: "host principals are managed by host entries"}
	}
	principal = schema.ServicePrincipal(service, hostname, principalRealm)

	managedBy := c.hostBase.Child(schema.AttrFQDN, hostname)
	if !force {
		host, err := c.backend.FindByAttribute(ctx, schema.AttrFQDN, hostname, schema.HostObjectClassMarkers, []string{schema.AttrFQDN}, c.hostBase)
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, &interfaces.NotFoundError{Key: hostname, Reason: "host not found"}
		}
		if err != nil {
			return nil, &interfaces.BackendError{Op: "service_add", Key: principal, Err: err}
		}
		managedBy = host.ID
	}

	entry := &interfaces.Entry{
		ID: c.base.Child(schema.AttrPrincipal, principal),
		Attrs: interfaces.Attributes{
			schema.AttrPrincipal:   {principal},
			schema.AttrObjectClass: schema.ServiceObjectClasses,
			schema.AttrManagedBy:   {managedBy.String()},
		},
	}
	if err := c.backend.CreateEntry(ctx, entry); err != nil {
		return nil, &interfaces.BackendError{Op: "service_add", Key: principal, Err: err}
	}

	c.log.Info("Added service", slog.String("principal", principal))
	return entry, nil
}

// FindServices returns one page of principals containing term.
func (c *ServiceCatalog) FindServices(ctx context.Context, term string, cursor string) (*interfaces.ServicePage, error) {
	f := filter.NewAnd(
		filter.NewEquality(schema.AttrObjectClass, "ipaservice"),
		filter.NewContains(schema.AttrPrincipal, term),
	)

	page, err := c.backend.Search(ctx, interfaces.SearchRequest{
		Base:      c.base,
		Scope:     interfaces.ScopeSubtree,
		Filter:    f,
		Attrs:     []string{schema.AttrPrincipal},
		SizeLimit: c.pageSize,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("searching services: %w", err)
	}

	out := &interfaces.ServicePage{Cursor: page.Cursor, Truncated: page.Truncated}
	for _, e := range page.Entries {
		out.Principals = append(out.Principals, e.Attrs[schema.AttrPrincipal]...)
	}
	return out, nil
}

// DeleteService removes the entry of principal.
func (c *ServiceCatalog) DeleteService(ctx context.Context, principal string) error {
	entry, err := c.backend.FindByAttribute(ctx, schema.AttrPrincipal, principal, []string{"ipaservice"}, nil, c.base)
	if err != nil {
		return err
	}
	if err := c.backend.DeleteEntry(ctx, entry.ID); err != nil {
		return err
	}

	c.log.Info("Deleted service", slog.String("principal", principal))
	return nil
}
