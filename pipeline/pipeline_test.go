package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testBaseDN interfaces.EntryID = "dc=example,dc=com"

func testSchema(t *testing.T) *schema.EntitySchema {
	t.Helper()
	s, err := schema.NewHostSchema(testBaseDN)
	require.NoError(t, err)
	return s
}

func hostEntry(s *schema.EntitySchema, fqdn string, attrs interfaces.Attributes) *interfaces.Entry {
	out := interfaces.Attributes{"fqdn": {fqdn}}
	for k, v := range attrs {
		out.Set(k, v...)
	}
	return &interfaces.Entry{ID: s.DN(fqdn), Attrs: out}
}

func TestRun_Add(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)

	var created *interfaces.Entry
	b.On("CreateEntry", mock.Anything, mock.AnythingOfType("*interfaces.Entry")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*interfaces.Entry) }).
		Return(nil)
	b.On("GetEntry", mock.Anything, s.DN("web.example.com"), mock.Anything).
		Return(hostEntry(s, "web.example.com", interfaces.Attributes{
			"l":               {"Berlin"},
			"userpassword":    {"$2a$hash"},
			"usercertificate": {"\x01\x02\x03"},
			"managedby":       {"fqdn=web.example.com"},
		}), nil)

	cmd := Command{
		Name:   "host_add",
		Kind:   KindAdd,
		Schema: s,
		Strategy: Strategy{
			Pre: func(ctx context.Context, call *Call) (schema.ObjectClassSet, error) {
				call.Attrs.Set("cn", call.Key)
				return call.ObjectClasses.With("krbprincipalaux"), nil
			},
			Summary: func(call *Call, res *Result) string { return "Added " + res.Value },
		},
	}

	res, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{
		Key:    "Web.Example.Com.",
		Fields: map[string][]string{"locality": {"Berlin"}},
	})
	require.NoError(t, err)
	b.AssertExpectations(t)

	require.NotNil(t, created)
	assert.Equal(t, s.DN("web.example.com"), created.ID)
	assert.Equal(t, []string{"Berlin"}, created.Attrs["l"])
	assert.Equal(t, []string{"web.example.com"}, created.Attrs["cn"])
	assert.Equal(t, []string{"web.example.com"}, created.Attrs["fqdn"])
	classes := schema.NewObjectClassSet(created.Attrs["objectclass"]...)
	assert.True(t, classes.HasAll(schema.HostObjectClassMarkers...))
	assert.True(t, classes.Has("krbprincipalaux"))

	assert.Equal(t, "Added web.example.com", res.Summary)
	assert.Equal(t, "web.example.com", res.Value)
	assert.Equal(t, []string{"Berlin"}, res.Entry["locality"])
	assert.Equal(t, []string{"AQID"}, res.Entry["certificate"], "binary values are base64 encoded")
	assert.Equal(t, []string{"fqdn=web.example.com"}, res.Entry["managedBy"])
	assert.NotContains(t, res.Entry, "l")
	assert.NotContains(t, res.Entry, "userpassword")
	assert.NotContains(t, res.Entry, "enrollmentPassword")
}

func TestRun_ValidationBeforeBackend(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name string
		kind Kind
		req  Request
	}{
		{name: "add without dot", kind: KindAdd, req: Request{Key: "web"}},
		{name: "mod without dot", kind: KindMod, req: Request{Key: "web", Fields: map[string][]string{"locality": {"x"}}}},
		{name: "find with dotless fqdn", kind: KindFind, req: Request{Fields: map[string][]string{"fqdn": {"web"}}}},
		{name: "add unknown field", kind: KindAdd, req: Request{Key: "a.example.com", Fields: map[string][]string{"color": {"red"}}}},
		{name: "mod without changes", kind: KindMod, req: Request{Key: "a.example.com"}},
		{name: "find bad filter", kind: KindFind, req: Request{Options: Options{Filter: "(l=x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(MockBackend)
			cmd := Command{Name: "host_" + string(tt.kind), Kind: tt.kind, Schema: s}

			_, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, tt.req)
			assert.ErrorIs(t, err, interfaces.ErrValidation)
			b.AssertNotCalled(t, "GetEntry", mock.Anything, mock.Anything, mock.Anything)
			b.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
			b.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_ResolveShortName(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)
	notFound := errors.Join(interfaces.ErrNotFound, errors.New("no such entry"))

	b.On("GetEntry", mock.Anything, s.DN("web"), []string{"fqdn"}).Return(nil, notFound)
	b.On("FindByAttribute", mock.Anything, "serverhostname", "web", schema.HostObjectClassMarkers, []string{"fqdn"}, s.ContainerDN()).
		Return(hostEntry(s, "web.example.com", nil), nil)
	b.On("DeleteEntry", mock.Anything, s.DN("web.example.com")).Return(nil)

	var hookKey string
	cmd := Command{
		Name:   "host_del",
		Kind:   KindDel,
		Schema: s,
		Strategy: Strategy{
			Pre: func(ctx context.Context, call *Call) (schema.ObjectClassSet, error) {
				hookKey = call.Key
				return schema.ObjectClassSet{}, nil
			},
		},
	}

	res, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{Key: "WEB"})
	require.NoError(t, err)
	b.AssertExpectations(t)
	assert.Equal(t, "web.example.com", hookKey, "hooks see the canonical key")
	assert.Equal(t, "web.example.com", res.Value)
	assert.True(t, res.Status)
}

func TestRun_ResolveNotFound(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)
	b.On("GetEntry", mock.Anything, s.DN("gone.example.com"), mock.Anything).Return(nil, interfaces.ErrNotFound)

	cmd := Command{Name: "host_show", Kind: KindShow, Schema: s}
	_, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{Key: "gone.example.com."})

	var nf *interfaces.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gone.example.com", nf.Key)
	b.AssertNotCalled(t, "FindByAttribute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_BackendError(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)
	down := errors.New("connection refused")
	b.On("GetEntry", mock.Anything, s.DN("a.example.com"), mock.Anything).Return(nil, down)

	cmd := Command{Name: "host_show", Kind: KindShow, Schema: s}
	_, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{Key: "a.example.com"})

	var berr *interfaces.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "host_show", berr.Op)
	assert.ErrorIs(t, err, interfaces.ErrBackend)
	assert.ErrorIs(t, err, down)
}

func TestRun_ModifyMergesObjectClasses(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)
	id := s.DN("a.example.com")

	var changes interfaces.Attributes
	b.On("GetEntry", mock.Anything, id, []string{"fqdn"}).Return(hostEntry(s, "a.example.com", nil), nil).Once()
	b.On("UpdateEntry", mock.Anything, id, mock.Anything).
		Run(func(args mock.Arguments) { changes = args.Get(2).(interfaces.Attributes) }).
		Return(nil)
	b.On("GetEntry", mock.Anything, id, mock.Anything).Return(hostEntry(s, "a.example.com", nil), nil)

	tests := []struct {
		name    string
		classes schema.ObjectClassSet
		want    []string
	}{
		{name: "empty set leaves classes alone", classes: schema.ObjectClassSet{}},
		{name: "returned set is written", classes: schema.NewObjectClassSet("nshost", "krbprincipal"), want: []string{"nshost", "krbprincipal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Command{
				Name:   "host_mod",
				Kind:   KindMod,
				Schema: s,
				Strategy: Strategy{
					Pre: func(ctx context.Context, call *Call) (schema.ObjectClassSet, error) {
						return tt.classes, nil
					},
				},
			}

			_, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{
				Key:    "a.example.com",
				Fields: map[string][]string{"description": {"db"}},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"db"}, changes["description"])
			assert.Equal(t, tt.want, changes["objectclass"])
		})
	}
}

func TestRun_FindPaging(t *testing.T) {
	s := testSchema(t)
	page1 := &interfaces.SearchPage{
		Entries: []*interfaces.Entry{
			hostEntry(s, "a.example.com", interfaces.Attributes{"l": {"Berlin"}}),
			hostEntry(s, "b.example.com", interfaces.Attributes{"l": {"Berlin"}}),
		},
		Cursor:    "b",
		Truncated: true,
	}
	page2 := &interfaces.SearchPage{
		Entries: []*interfaces.Entry{hostEntry(s, "c.example.com", interfaces.Attributes{"l": {"Berlin"}})},
	}

	tests := []struct {
		name      string
		sizeLimit int
		count     int
		truncated bool
	}{
		{name: "all pages", sizeLimit: 0, count: 3},
		{name: "size limit reached", sizeLimit: 2, count: 2, truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(MockBackend)
			var filterText string
			b.On("Search", mock.Anything, mock.MatchedBy(func(req interfaces.SearchRequest) bool { return req.Cursor == "" })).
				Run(func(args mock.Arguments) { filterText = args.Get(1).(interfaces.SearchRequest).Filter.String() }).
				Return(page1, nil)
			b.On("Search", mock.Anything, mock.MatchedBy(func(req interfaces.SearchRequest) bool { return req.Cursor == "b" })).
				Return(page2, nil)

			posts := 0
			cmd := Command{
				Name:   "host_find",
				Kind:   KindFind,
				Schema: s,
				Strategy: Strategy{
					Post: func(ctx context.Context, call *Call, entry *interfaces.Entry) error {
						posts++
						return nil
					},
				},
			}

			res, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{
				Fields:  map[string][]string{"locality": {"Berlin"}},
				Options: Options{Criteria: "example", SizeLimit: tt.sizeLimit},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.count, res.Count)
			assert.Len(t, res.Entries, tt.count)
			assert.Equal(t, tt.truncated, res.Truncated)
			assert.Equal(t, tt.count, posts)
			assert.Equal(t, []string{"a.example.com"}, res.Entries[0]["fqdn"])
			assert.Equal(t, []string{"Berlin"}, res.Entries[0]["locality"])

			assert.Contains(t, filterText, "(objectclass=ipahost)")
			assert.Contains(t, filterText, "(l=Berlin)")
			assert.Contains(t, filterText, "(|(fqdn=*example*)")
		})
	}
}

func TestRun_Executor(t *testing.T) {
	s := testSchema(t)
	b := new(MockBackend)
	b.On("GetEntry", mock.Anything, s.DN("a.example.com"), []string{"fqdn"}).Return(hostEntry(s, "a.example.com", nil), nil)

	cmd := Command{
		Name:   "host_disable",
		Kind:   KindDisable,
		Schema: s,
		Strategy: Strategy{
			Execute: func(ctx context.Context, call *Call) (*Result, error) {
				return &Result{Value: call.Key, Status: true}, nil
			},
			Summary: func(call *Call, res *Result) string { return "disabled " + res.Value },
		},
	}

	res, err := NewPipeline(b, 0, discardLogger()).Run(context.Background(), cmd, Request{Key: "a.example.com"})
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, "disabled a.example.com", res.Summary)

	_, err = NewPipeline(b, 0, discardLogger()).Run(context.Background(), Command{Name: "host_disable", Kind: KindDisable, Schema: s}, Request{Key: "a.example.com"})
	assert.Error(t, err, "disable needs an executor")
}

func TestRegistry(t *testing.T) {
	s := testSchema(t)
	reg := NewRegistry(NewPipeline(new(MockBackend), 0, discardLogger()))

	require.NoError(t, reg.Register(
		Command{Name: "host_show", Kind: KindShow, Schema: s},
		Command{Name: "host_add", Kind: KindAdd, Schema: s},
	))
	assert.Error(t, reg.Register(Command{Name: "host_add", Kind: KindAdd, Schema: s}))
	assert.Error(t, reg.Register(Command{Kind: KindAdd, Schema: s}))

	assert.Equal(t, []string{"host_add", "host_show"}, reg.Names())

	cmd, ok := reg.Command("host_show")
	assert.True(t, ok)
	assert.Equal(t, KindShow, cmd.Kind)

	_, err := reg.Execute(context.Background(), "host_frobnicate", Request{})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = reg.Execute(context.Background(), "host_add", Request{Key: "nodot"})
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}
