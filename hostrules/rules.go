package hostrules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/host-directory/cryptoutils"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/schema"
)

// Rules holds the collaborators of the host hooks.
type Rules struct {
	realm    string
	names    interfaces.NameChecker
	certs    interfaces.CertificateParser
	services interfaces.ServiceCatalog
	log      *slog.Logger
}

// NewRules creates the host rules. names is only consulted by add without force;
// services may be nil when no service entries exist.
func NewRules(realm string, names interfaces.NameChecker, certs interfaces.CertificateParser, services interfaces.ServiceCatalog, log *slog.Logger) *Rules {
	if log == nil {
		log = slog.Default()
	}
	return &Rules{
		realm:    realm,
		names:    names,
		certs:    certs,
		services: services,
		log:      log,
	}
}

// Strategies returns the hook table keyed by operation kind.
func (r *Rules) Strategies() map[pipeline.Kind]pipeline.Strategy {
	return map[pipeline.Kind]pipeline.Strategy{
		pipeline.KindAdd: {
			Pre:     r.preAdd,
			Summary: summaryf(`Added host "%s"`),
		},
		pipeline.KindMod: {
			Pre:     r.preMod,
			Summary: summaryf(`Modified host "%s"`),
		},
		pipeline.KindDel: {
			Pre:     r.preDel,
			Summary: summaryf(`Deleted host "%s"`),
		},
		pipeline.KindFind: {
			Pre:     r.preFind,
			Summary: matchedSummary,
		},
		pipeline.KindShow: {
			Post: r.postShow,
		},
		pipeline.KindDisable: {
			Execute: r.disable,
			Summary: summaryf(`Removed kerberos key from "%s"`),
		},
	}
}

// Commands returns host_add, host_mod, host_del, host_find, host_show and
// host_disable bound to s.
func (r *Rules) Commands(s *schema.EntitySchema) []pipeline.Command {
	strategies := r.Strategies()
	kinds := []pipeline.Kind{
		pipeline.KindAdd,
		pipeline.KindMod,
		pipeline.KindDel,
		pipeline.KindFind,
		pipeline.KindShow,
		pipeline.KindDisable,
	}

	cmds := make([]pipeline.Command, 0, len(kinds))
	for _, kind := range kinds {
		cmds = append(cmds, pipeline.Command{
			Name:     s.Name + "_" + string(kind),
			Kind:     kind,
			Schema:   s,
			Strategy: strategies[kind],
		})
	}
	return cmds
}

func (r *Rules) preAdd(ctx context.Context, call *pipeline.Call) (schema.ObjectClassSet, error) {
	if !call.Options.Force {
		if err := r.checkNameExists(ctx, call.Key); err != nil {
			return schema.ObjectClassSet{}, err
		}
	}

	call.Attrs = call.Schema.Aliases().Payload(call.Attrs)
	shortName, _, _ := strings.Cut(call.Key, ".")
	call.Attrs.Set(schema.AttrCN, call.Key)
	call.Attrs.Set(schema.AttrShortName, shortName)
	call.Attrs.Set(schema.AttrManagedBy, call.ID.String())

	if values := call.Attrs[schema.AttrCertificate]; len(values) > 0 {
		der, err := decodeCertificate(values[0])
		if err != nil {
			return schema.ObjectClassSet{}, err
		}
		call.Attrs.Set(schema.AttrCertificate, der)
	}

	// A one-time password defers the principal to enrollment.
	if call.Attrs.Has(schema.AttrPassword) {
		call.Attrs.Delete(schema.AttrPrincipal)
		return call.ObjectClasses.Without(schema.KerberosObjectClasses...), nil
	}

	call.Attrs.Set(schema.AttrPrincipal, schema.HostPrincipalName(call.Key, r.realm))
	return call.ObjectClasses.With(schema.KerberosObjectClasses...), nil
}

func (r *Rules) checkNameExists(ctx context.Context, fqdn string) error {
	if r.names == nil {
		return &interfaces.DependencyError{Key: fqdn, Reason: "no naming service configured"}
	}
	exists, err := r.names.Exists(ctx, fqdn)
	if err != nil {
		return &interfaces.DependencyError{Key: fqdn, Reason: "DNS lookup failed", Err: err}
	}
	if !exists {
		return &interfaces.DependencyError{Key: fqdn, Reason: "Host does not have corresponding DNS A/AAAA record"}
	}
	return nil
}

func (r *Rules) preMod(ctx context.Context, call *pipeline.Call) (schema.ObjectClassSet, error) {
	call.Attrs = call.Schema.Aliases().Payload(call.Attrs)

	newPrincipal, setsPrincipal := call.Attrs[schema.AttrPrincipal]
	newCert, setsCert := call.Attrs[schema.AttrCertificate]
	if !setsPrincipal && !setsCert {
		return schema.ObjectClassSet{}, nil
	}

	current, err := call.Backend.GetEntry(ctx, call.ID, []string{schema.AttrObjectClass, schema.AttrPrincipal, schema.AttrCertificate})
	if err != nil {
		return schema.ObjectClassSet{}, backendError(call, err)
	}

	var classes schema.ObjectClassSet
	if setsPrincipal {
		// Clearing counts as a change.
		existing := current.Attrs.Get(schema.AttrPrincipal)
		if existing != "" && (len(newPrincipal) == 0 || call.Schema.IsImmutableViolation(schema.HostPrincipal, existing, newPrincipal[0])) {
			return schema.ObjectClassSet{}, &interfaces.ImmutabilityError{Field: schema.HostPrincipal, Key: call.Key, Current: existing}
		}
		if len(newPrincipal) > 0 {
			classes = schema.NewObjectClassSet(current.Attrs[schema.AttrObjectClass]...).With(schema.KerberosObjectClasses...)
		}
	}

	if setsCert {
		existing := current.Attrs.Get(schema.AttrCertificate)
		switch {
		case existing != "" && len(newCert) == 0:
			return schema.ObjectClassSet{}, &interfaces.ImmutabilityError{Field: schema.HostCertificate, Key: call.Key, Current: r.serialNumber([]byte(existing))}
		case existing != "":
			return schema.ObjectClassSet{}, &interfaces.DuplicateError{Field: schema.HostCertificate, Key: call.Key, SerialNumber: r.serialNumber([]byte(existing))}
		case len(newCert) > 0:
			der, err := decodeCertificate(newCert[0])
			if err != nil {
				return schema.ObjectClassSet{}, err
			}
			call.Attrs.Set(schema.AttrCertificate, der)
		}
	}

	return classes, nil
}

// decodeCertificate turns a payload certificate into the DER bytes that are stored.
func decodeCertificate(value string) (string, error) {
	der, err := cryptoutils.DecodeCertificate(value)
	if err != nil {
		return "", &interfaces.ValidationError{Field: schema.HostCertificate, Reason: "Base-64 encoded certificate required"}
	}
	return string(der), nil
}

func (r *Rules) serialNumber(der []byte) string {
	if r.certs == nil {
		return "unknown"
	}
	info, err := r.certs.Parse(der)
	if err != nil {
		r.log.Warn("Cannot parse stored certificate", "err", err)
		return "unknown"
	}
	return info.SerialNumber
}

func (r *Rules) preFind(ctx context.Context, call *pipeline.Call) (schema.ObjectClassSet, error) {
	aliases := call.Schema.Aliases()
	call.Filter = aliases.Filter(call.Filter)
	call.AttrsList = aliases.Names(call.AttrsList)
	return schema.ObjectClassSet{}, nil
}

func (r *Rules) postShow(ctx context.Context, call *pipeline.Call, entry *interfaces.Entry) error {
	if entry.Attrs.Has(schema.AttrKeyTimestamp) {
		entry.Attrs.Set(schema.HostHasKeytab, "true")
		if !call.Options.All {
			entry.Attrs.Delete(schema.AttrKeyTimestamp)
		}
	} else {
		entry.Attrs.Set(schema.HostHasKeytab, "false")
	}

	der := entry.Attrs.Get(schema.AttrCertificate)
	if der == "" || r.certs == nil {
		return nil
	}
	info, err := r.certs.Parse([]byte(der))
	if err != nil {
		call.Log.Warn("Cannot parse stored certificate", slog.String("key", call.Key), "err", err)
		return nil
	}

	entry.Attrs.Set(schema.HostSubject, info.Subject)
	entry.Attrs.Set(schema.HostIssuer, info.Issuer)
	entry.Attrs.Set(schema.HostSerialNumber, info.SerialNumber)
	entry.Attrs.Set(schema.HostValidNotBefore, cryptoutils.FormatValidity(info.NotBefore))
	entry.Attrs.Set(schema.HostValidNotAfter, cryptoutils.FormatValidity(info.NotAfter))
	entry.Attrs.Set(schema.HostMD5Fingerprint, info.MD5Fingerprint)
	entry.Attrs.Set(schema.HostSHA1Fingerprint, info.SHA1Fingerprint)
	return nil
}

func (r *Rules) disable(ctx context.Context, call *pipeline.Call) (*pipeline.Result, error) {
	entry, err := call.Backend.GetEntry(ctx, call.ID, []string{schema.AttrKeyTimestamp})
	if err != nil {
		return nil, backendError(call, err)
	}
	if !entry.Attrs.Has(schema.AttrKeyTimestamp) {
		return nil, &interfaces.NotFoundError{Key: call.Key, Reason: "Host principal has no kerberos key"}
	}

	if err := call.Backend.RemoveKeyMaterial(ctx, call.ID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, &interfaces.NotFoundError{Key: call.Key, Reason: "Host principal has no kerberos key"}
		}
		return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
	}

	return &pipeline.Result{Value: call.Key, Status: true}, nil
}

func backendError(call *pipeline.Call, err error) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return &interfaces.NotFoundError{Key: call.Key, Reason: call.Schema.Name + " not found"}
	}
	return &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
}

func summaryf(format string) func(*pipeline.Call, *pipeline.Result) string {
	return func(_ *pipeline.Call, res *pipeline.Result) string {
		return fmt.Sprintf(format, res.Value)
	}
}

func matchedSummary(call *pipeline.Call, res *pipeline.Result) string {
	noun := call.Schema.PluralName
	if res.Count == 1 {
		noun = call.Schema.Name
	}
	return fmt.Sprintf("%d %s matched", res.Count, noun)
}
