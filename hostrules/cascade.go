package hostrules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/schema"
)

// preDel removes the services of the host before the host entry itself goes.
// Nothing is rolled back: when a deletion fails the services already removed
// stay removed and are listed in the returned CascadeError.
func (r *Rules) preDel(ctx context.Context, call *pipeline.Call) (schema.ObjectClassSet, error) {
	if r.services == nil {
		return schema.ObjectClassSet{}, nil
	}

	deleted, err := r.deleteServices(ctx, call.Key, call.Log)
	if err != nil {
		return schema.ObjectClassSet{}, &interfaces.CascadeError{Key: call.Key, Deleted: deleted, Err: err}
	}
	if len(deleted) > 0 {
		call.Log.Info("Deleted dependent services", slog.String("key", call.Key), slog.Int("count", len(deleted)))
	}
	return schema.ObjectClassSet{}, nil
}

// deleteServices walks the service search for fqdn and deletes every principal
// bound to it. The search restarts after each pass that deleted something, since
// deletions may shift the catalog's pages; a pass without deletions ends the walk.
func (r *Rules) deleteServices(ctx context.Context, fqdn string, log *slog.Logger) ([]string, error) {
	pages := interfaces.Pages(ctx, func(ctx context.Context, cursor string) (*interfaces.ServicePage, string, bool, error) {
		page, err := r.services.FindServices(ctx, fqdn, cursor)
		if err != nil {
			return nil, "", false, err
		}
		return page, page.Cursor, page.Truncated, nil
	})

	var deleted []string
	for {
		removed := 0
		for page, err := range pages {
			if err != nil {
				return deleted, &interfaces.BackendError{Op: "service_find", Key: fqdn, Err: err}
			}
			for _, principal := range page.Principals {
				_, hostname, _, err := schema.SplitPrincipal(principal)
				if err != nil {
					log.Warn("Skipping malformed principal", slog.String("principal", principal))
					continue
				}
				if !strings.EqualFold(hostname, fqdn) {
					continue
				}
				if err := r.services.DeleteService(ctx, principal); err != nil {
					return deleted, &interfaces.BackendError{Op: "service_del", Key: principal, Err: err}
				}
				deleted = append(deleted, principal)
				removed++
			}
		}
		if removed == 0 {
			return deleted, nil
		}
	}
}
