package directory

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/schema"
	"golang.org/x/crypto/bcrypt"
)

// entryPrefix is the store namespace holding directory entries.
const entryPrefix = "entries/"

// KeyTimestampLayout is the generalized time layout of the key timestamp attribute.
const KeyTimestampLayout = "20060102150405Z"

// Options tune the attribute handling of the reference backend.
type Options struct {
	// UniqueIDAttribute receives a random UUID on creation.
	UniqueIDAttribute string
	// HashedAttributes are stored as bcrypt hashes and never returned in clear.
	HashedAttributes []string
	// KeyAttributes hold principal key material.
	KeyAttributes []string
	// HiddenAttributes are kept in storage but never returned by reads.
	HiddenAttributes []string
	// BcryptCost is the cost of hashed attributes.
	BcryptCost int
}

// DefaultOptions returns the options used for host and service entries.
func DefaultOptions() Options {
	return Options{
		UniqueIDAttribute: schema.AttrUniqueID,
		HashedAttributes:  []string{schema.AttrPassword},
		KeyAttributes:     []string{schema.AttrPrincipalKey, schema.AttrKeyTimestamp},
		HiddenAttributes:  []string{schema.AttrPrincipalKey},
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// storedEntry is the serialized form of an entry. Values are byte strings so
// binary attributes survive JSON encoding.
type storedEntry struct {
	DN         string              `json:"dn"`
	Attributes map[string][][]byte `json:"attributes"`
}

// Backend is a DirectoryBackend keeping one serialized entry per store key.
// Writes are serialized by a mutex, which gives compare-and-set semantics to
// the read-modify-write sequences of a single process.
type Backend struct {
	store interfaces.EntryStore
	opts  Options
	log   *slog.Logger
	mu    sync.Mutex
	now   func() time.Time
}

var _ interfaces.DirectoryBackend = (*Backend)(nil)

// NewBackend creates a directory backend over store.
func NewBackend(store interfaces.EntryStore, opts Options, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Backend{
		store: store,
		opts:  opts,
		log:   log,
		now:   time.Now,
	}
}

// GetEntry fetches an entry by identifier.
func (b *Backend) GetEntry(ctx context.Context, id interfaces.EntryID, attrs []string) (*interfaces.Entry, error) {
	entry, err := b.load(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.Attrs = b.visible(entry.Attrs).Project(attrs)
	return entry, nil
}

// FindByAttribute returns the first entry below base, in identifier order, whose
// attr equals value and which carries all objectClasses.
func (b *Backend) FindByAttribute(ctx context.Context, attr, value string, objectClasses []string, attrs []string, base interfaces.EntryID) (*interfaces.Entry, error) {
	entries, err := b.all(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if !e.ID.Under(base) {
			continue
		}
		if !slices.ContainsFunc(e.Attrs[strings.ToLower(attr)], func(v string) bool { return strings.EqualFold(v, value) }) {
			continue
		}
		if !schema.NewObjectClassSet(e.Attrs[schema.AttrObjectClass]...).HasAll(objectClasses...) {
			continue
		}
		e.Attrs = b.visible(e.Attrs).Project(attrs)
		return e, nil
	}

	return nil, fmt.Errorf("%w: no entry with %s=%s below %s", interfaces.ErrNotFound, attr, value, base)
}

// Search returns the page of matching entries following req.Cursor. Entries are
// ordered by lowercase identifier; the cursor is the last identifier returned.
func (b *Backend) Search(ctx context.Context, req interfaces.SearchRequest) (*interfaces.SearchPage, error) {
	entries, err := b.all(ctx)
	if err != nil {
		return nil, err
	}

	page := &interfaces.SearchPage{}
	for _, e := range entries {
		if req.Cursor != "" && strings.ToLower(string(e.ID)) <= req.Cursor {
			continue
		}
		if !inScope(e.ID, req.Base, req.Scope) {
			continue
		}
		if req.Filter != nil && !req.Filter.Match(e.Attrs) {
			continue
		}
		if req.SizeLimit > 0 && len(page.Entries) == req.SizeLimit {
			page.Truncated = true
			break
		}
		e.Attrs = b.visible(e.Attrs).Project(req.Attrs)
		page.Entries = append(page.Entries, e)
	}

	if page.Truncated {
		page.Cursor = strings.ToLower(string(page.Entries[len(page.Entries)-1].ID))
	}

	b.log.Debug("Search",
		slog.String("base", req.Base.String()),
		slog.Int("entries", len(page.Entries)),
		slog.Bool("truncated", page.Truncated))

	return page, nil
}

// CreateEntry adds a new entry, assigning a unique id and hashing secrets.
func (b *Backend) CreateEntry(ctx context.Context, entry *interfaces.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.load(ctx, entry.ID); err == nil {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyExists, entry.ID)
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return err
	}

	attrs := make(interfaces.Attributes, len(entry.Attrs)+1)
	for name, values := range entry.Attrs {
		if len(values) == 0 {
			continue
		}
		if err := b.setValues(attrs, name, values); err != nil {
			return err
		}
	}
	if b.opts.UniqueIDAttribute != "" {
		attrs.Set(b.opts.UniqueIDAttribute, uuid.NewString())
	}

	if err := b.save(ctx, entry.ID, attrs); err != nil {
		return err
	}

	b.log.Info("Created entry", slog.String("dn", entry.ID.String()))
	return nil
}

// UpdateEntry replaces the given attributes; an empty value list removes one.
func (b *Backend) UpdateEntry(ctx context.Context, id interfaces.EntryID, changes interfaces.Attributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.load(ctx, id)
	if err != nil {
		return err
	}

	for name, values := range changes {
		if strings.EqualFold(name, b.opts.UniqueIDAttribute) {
			return fmt.Errorf("attribute %s is managed by the directory", name)
		}
		if len(values) == 0 {
			entry.Attrs.Delete(name)
			continue
		}
		if err := b.setValues(entry.Attrs, name, values); err != nil {
			return err
		}
	}

	if err := b.save(ctx, entry.ID, entry.Attrs); err != nil {
		return err
	}

	b.log.Info("Updated entry", slog.String("dn", id.String()), slog.Int("attributes", len(changes)))
	return nil
}

// DeleteEntry removes an entry.
func (b *Backend) DeleteEntry(ctx context.Context, id interfaces.EntryID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.load(ctx, id); err != nil {
		return err
	}
	if err := b.store.Delete(ctx, entryKey(id)); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}

	b.log.Info("Deleted entry", slog.String("dn", id.String()))
	return nil
}

// RemoveKeyMaterial clears the key attributes of an entry. Returns ErrNotFound
// if the entry holds none.
func (b *Backend) RemoveKeyMaterial(ctx context.Context, id interfaces.EntryID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.load(ctx, id)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(b.opts.KeyAttributes, entry.Attrs.Has) {
		return fmt.Errorf("%w: %s has no key material", interfaces.ErrNotFound, id)
	}
	for _, name := range b.opts.KeyAttributes {
		entry.Attrs.Delete(name)
	}

	if err := b.save(ctx, entry.ID, entry.Attrs); err != nil {
		return err
	}

	b.log.Info("Removed key material", slog.String("dn", id.String()))
	return nil
}

// SetKeyMaterial stores a fresh random principal key for an entry that has a
// principal, the way a keytab retrieval does, and stamps the key timestamp.
func (b *Backend) SetKeyMaterial(ctx context.Context, id interfaces.EntryID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.load(ctx, id)
	if err != nil {
		return err
	}
	if !entry.Attrs.Has(schema.AttrPrincipal) {
		return fmt.Errorf("%w: %s has no kerberos principal", interfaces.ErrNotFound, id)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	entry.Attrs.Set(schema.AttrPrincipalKey, string(key))
	entry.Attrs.Set(schema.AttrKeyTimestamp, b.now().UTC().Format(KeyTimestampLayout))

	return b.save(ctx, entry.ID, entry.Attrs)
}

// VerifySecret checks value against a hashed attribute of an entry.
func (b *Backend) VerifySecret(ctx context.Context, id interfaces.EntryID, attr, value string) error {
	entry, err := b.load(ctx, id)
	if err != nil {
		return err
	}
	hash := entry.Attrs.Get(attr)
	if hash == "" || !b.hashed(attr) {
		return fmt.Errorf("%w: %s has no %s", interfaces.ErrNotFound, id, attr)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(value))
}

func (b *Backend) setValues(attrs interfaces.Attributes, name string, values []string) error {
	if !b.hashed(name) {
		attrs.Set(name, slices.Clone(values)...)
		return nil
	}
	hashes := make([]string, len(values))
	for i, v := range values {
		h, err := bcrypt.GenerateFromPassword([]byte(v), b.opts.BcryptCost)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", name, err)
		}
		hashes[i] = string(h)
	}
	attrs.Set(name, hashes...)
	return nil
}

func (b *Backend) hashed(name string) bool {
	return slices.ContainsFunc(b.opts.HashedAttributes, func(h string) bool { return strings.EqualFold(h, name) })
}

// visible drops hashed secrets and raw key material from an entry read.
func (b *Backend) visible(attrs interfaces.Attributes) interfaces.Attributes {
	out := attrs.Clone()
	for _, name := range b.opts.HashedAttributes {
		out.Delete(name)
	}
	for _, name := range b.opts.HiddenAttributes {
		out.Delete(name)
	}
	return out
}

func (b *Backend) load(ctx context.Context, id interfaces.EntryID) (*interfaces.Entry, error) {
	data, err := b.store.Fetch(ctx, entryKey(id))
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	return decodeEntry(data)
}

func (b *Backend) save(ctx context.Context, id interfaces.EntryID, attrs interfaces.Attributes) error {
	data, err := encodeEntry(id, attrs)
	if err != nil {
		return err
	}
	if err := b.store.Store(ctx, entryKey(id), data); err != nil {
		return fmt.Errorf("storing %s: %w", id, err)
	}
	return nil
}

// all loads every entry sorted by lowercase identifier.
func (b *Backend) all(ctx context.Context) ([]*interfaces.Entry, error) {
	keys, err := b.store.List(ctx, entryPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	entries := make([]*interfaces.Entry, 0, len(keys))
	for _, key := range keys {
		data, err := b.store.Fetch(ctx, key)
		if errors.Is(err, interfaces.ErrContentNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", key, err)
		}
		e, err := decodeEntry(data)
		if err != nil {
			b.log.Warn("Skipping undecodable entry", slog.String("key", key), "err", err)
			continue
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(x, y *interfaces.Entry) int {
		return strings.Compare(strings.ToLower(string(x.ID)), strings.ToLower(string(y.ID)))
	})
	return entries, nil
}

func inScope(id, base interfaces.EntryID, scope interfaces.Scope) bool {
	switch scope {
	case interfaces.ScopeBase:
		return strings.EqualFold(string(id), string(base))
	case interfaces.ScopeOneLevel:
		return strings.EqualFold(string(id.Parent()), string(base))
	default:
		return id.Under(base)
	}
}

// entryKey derives the store key of an identifier; identifiers compare case-insensitively.
func entryKey(id interfaces.EntryID) string {
	sum := sha256.Sum256([]byte(strings.ToLower(string(id))))
	return entryPrefix + hex.EncodeToString(sum[:])
}

func encodeEntry(id interfaces.EntryID, attrs interfaces.Attributes) ([]byte, error) {
	stored := storedEntry{DN: string(id), Attributes: make(map[string][][]byte, len(attrs))}
	for name, values := range attrs {
		raw := make([][]byte, len(values))
		for i, v := range values {
			raw[i] = []byte(v)
		}
		stored.Attributes[strings.ToLower(name)] = raw
	}
	return json.Marshal(stored)
}

func decodeEntry(data []byte) (*interfaces.Entry, error) {
	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	attrs := make(interfaces.Attributes, len(stored.Attributes))
	for name, raw := range stored.Attributes {
		values := make([]string, len(raw))
		for i, v := range raw {
			values[i] = string(v)
		}
		attrs[name] = values
	}
	return &interfaces.Entry{ID: interfaces.EntryID(stored.DN), Attrs: attrs}, nil
}
