// ABOUTME: Tests for the admin console controller
// ABOUTME: Covers mount gating, tab fetches, save dispatch, delete confirmation, refetch policy, and cancellation

package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/catalog"
	"github.com/2389/brewdesk/internal/session"
)

type call struct {
	op   string
	kind catalog.Kind
	id   int64
	rec  catalog.Record
}

// fakeResources records calls and serves canned collections.
type fakeResources struct {
	mu        sync.Mutex
	calls     []call
	data      map[catalog.Kind][]catalog.Record
	listErr   error
	createErr error
	updateErr error
	deleteErr error
	// block, when set for a kind, holds List until it is closed.
	block map[catalog.Kind]chan struct{}
}

func newFakeResources() *fakeResources {
	return &fakeResources{
		data: map[catalog.Kind][]catalog.Record{
			catalog.KindOutlet: {
				&catalog.Outlet{ID: catalog.ID(1), Name: "KLCC", Category: "Kuala Lumpur"},
				&catalog.Outlet{ID: catalog.ID(2), Name: "Shah Alam", Category: "Selangor"},
			},
			catalog.KindProduct: {
				&catalog.Product{ID: catalog.ID(0), Name: "Tumbler", Category: "Drinkware", Stock: 3},
			},
		},
		block: map[catalog.Kind]chan struct{}{},
	}
}

func (f *fakeResources) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeResources) List(ctx context.Context, k catalog.Kind) ([]catalog.Record, error) {
	f.record(call{op: "list", kind: k})
	f.mu.Lock()
	ch := f.block[k]
	err := f.listErr
	recs := append([]catalog.Record(nil), f.data[k]...)
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (f *fakeResources) Create(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	f.record(call{op: "create", kind: rec.Kind(), rec: rec})
	return rec, f.createErr
}

func (f *fakeResources) Update(ctx context.Context, id int64, rec catalog.Record) (catalog.Record, error) {
	f.record(call{op: "update", kind: rec.Kind(), id: id, rec: rec})
	return rec, f.updateErr
}

func (f *fakeResources) Delete(ctx context.Context, k catalog.Kind, id int64) error {
	f.record(call{op: "delete", kind: k, id: id})
	return f.deleteErr
}

func (f *fakeResources) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func (f *fakeResources) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeResources) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type gateFunc func() error

func (g gateFunc) Require() error { return g() }

var allowAll = gateFunc(func() error { return nil })

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func mounted(t *testing.T, res *fakeResources, cfg Config) *Controller {
	t.Helper()
	c := New(res, allowAll, cfg)
	t.Cleanup(c.Close)
	require.NoError(t, c.Mount(t.Context()))
	res.reset()
	return c
}

func TestMount_Gated(t *testing.T) {
	res := newFakeResources()

	c := New(res, gateFunc(func() error { return session.ErrLoading }), Config{})
	assert.ErrorIs(t, c.Mount(t.Context()), session.ErrLoading)
	assert.Empty(t, res.ops(), "nothing is fetched before the session resolves")

	c = New(res, gateFunc(func() error { return session.ErrAnonymous }), Config{})
	assert.ErrorIs(t, c.Mount(t.Context()), session.ErrAnonymous)
	assert.Empty(t, res.ops())

	assert.ErrorIs(t, c.SelectKind(t.Context(), catalog.KindFood), ErrNotMounted)
	assert.ErrorIs(t, c.OpenCreate(), ErrNotMounted)
}

func TestMount_LoadsOutlets(t *testing.T) {
	res := newFakeResources()
	c := New(res, allowAll, Config{})
	defer c.Close()

	require.NoError(t, c.Mount(t.Context()))

	st := c.State()
	assert.True(t, st.Mounted)
	assert.Equal(t, catalog.KindOutlet, st.ActiveKind)
	assert.False(t, st.IsLoading)
	assert.Len(t, st.Collection, 2)
	assert.Equal(t, "KLCC", st.Collection[0].Values()["name"])
	assert.Equal(t, []string{"list"}, res.ops())
}

func TestSelectKind_ReplacesCollection(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	require.NoError(t, c.SelectKind(t.Context(), catalog.KindProduct))
	st := c.State()
	assert.Equal(t, catalog.KindProduct, st.ActiveKind)
	require.Len(t, st.Collection, 1)
	assert.Equal(t, "Tumbler", st.Collection[0].Values()["name"])

	require.NoError(t, c.SelectKind(t.Context(), catalog.KindDrink))
	assert.Empty(t, c.State().Collection)

	assert.ErrorIs(t, c.SelectKind(t.Context(), "pastry"), catalog.ErrUnknownKind)
}

func TestSelectKind_FailureLeavesEmpty(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	res.listErr = &apiclient.Error{Kind: apiclient.ErrServer, Status: 500}
	err := c.SelectKind(t.Context(), catalog.KindProduct)
	assert.ErrorIs(t, err, apiclient.ErrServer)

	st := c.State()
	assert.Empty(t, st.Collection)
	assert.False(t, st.IsLoading)
	assert.Equal(t, catalog.KindProduct, st.ActiveKind)
}

func TestSelectKind_LoadingWhileInFlight(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	release := make(chan struct{})
	res.block[catalog.KindProduct] = release

	done := make(chan error, 1)
	go func() { done <- c.SelectKind(t.Context(), catalog.KindProduct) }()

	require.Eventually(t, func() bool { return len(res.ops()) == 1 }, time.Second, 5*time.Millisecond)
	st := c.State()
	assert.True(t, st.IsLoading)
	assert.Empty(t, st.Collection, "collection is discarded when a fetch starts")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.State().IsLoading)
}

func TestSelectKind_StaleResultDropped(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	release := make(chan struct{})
	res.block[catalog.KindOutlet] = release

	slow := make(chan error, 1)
	go func() { slow <- c.SelectKind(t.Context(), catalog.KindOutlet) }()
	require.Eventually(t, func() bool { return len(res.ops()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.SelectKind(t.Context(), catalog.KindProduct))

	close(release)
	assert.ErrorIs(t, <-slow, ErrSuperseded)

	st := c.State()
	assert.Equal(t, catalog.KindProduct, st.ActiveKind)
	require.Len(t, st.Collection, 1)
	assert.Equal(t, catalog.KindProduct, st.Collection[0].Kind())
}

func TestModal_CreateAndEdit(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	require.NoError(t, c.OpenCreate())
	st := c.State()
	assert.True(t, st.Modal.Open)
	assert.Nil(t, st.Modal.Editing)
	assert.False(t, c.Form().Editing())
	assert.Equal(t, catalog.KindOutlet, c.Form().Kind())

	rec := st.Collection[1]
	require.NoError(t, c.OpenEdit(rec))
	st = c.State()
	assert.Same(t, rec, st.Modal.Editing, "edit holds the record by reference")
	name, err := c.Form().Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Shah Alam", name)

	c.CloseModal()
	assert.False(t, c.State().Modal.Open)
	assert.Empty(t, res.ops(), "opening and closing the modal makes no calls")

	err = c.OpenEdit(&catalog.Drink{ID: catalog.ID(1)})
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestSave_DispatchOnIdentifierPresence(t *testing.T) {
	tests := []struct {
		name string
		kind catalog.Kind
		rec  catalog.Record
		op   string
		id   int64
	}{
		{"outlet create", catalog.KindOutlet, &catalog.Outlet{Name: "Bangsar", Category: "Kuala Lumpur"}, "create", 0},
		{"outlet update", catalog.KindOutlet, &catalog.Outlet{ID: catalog.ID(2), Name: "Bangsar", Category: "Kuala Lumpur"}, "update", 2},
		{"product update id zero", catalog.KindProduct, &catalog.Product{ID: catalog.ID(0), Name: "Mug", Category: "Drinkware"}, "update", 0},
		{"product create", catalog.KindProduct, &catalog.Product{Name: "Mug", Category: "Drinkware"}, "create", 0},
		{"food create", catalog.KindFood, &catalog.Food{Name: "Toast", Category: "Bakery"}, "create", 0},
		{"food update", catalog.KindFood, &catalog.Food{ID: catalog.ID(8), Name: "Toast", Category: "Bakery"}, "update", 8},
		{"drink create", catalog.KindDrink, &catalog.Drink{Name: "Latte", Category: "Coffee"}, "create", 0},
		{"drink update id zero", catalog.KindDrink, &catalog.Drink{ID: catalog.ID(0), Name: "Latte", Category: "Coffee"}, "update", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFakeResources()
			c := mounted(t, res, Config{})
			require.NoError(t, c.SelectKind(t.Context(), tt.kind))
			require.NoError(t, c.OpenEdit(tt.rec))
			res.reset()

			require.NoError(t, c.Save(t.Context(), tt.rec))

			assert.Equal(t, []string{tt.op, "list"}, res.ops(), "exactly one refetch after a successful save")
			res.mu.Lock()
			mutation := res.calls[0]
			res.mu.Unlock()
			assert.Equal(t, tt.id, mutation.id)
			_, hasID := mutation.rec.Identifier()
			assert.False(t, hasID, "request body never carries the identifier")

			assert.False(t, c.State().Modal.Open)
		})
	}
}

func TestSave_FailureKeepsModalAndSkipsRefetch(t *testing.T) {
	res := newFakeResources()
	n := &notes{}
	c := mounted(t, res, Config{Notifier: n})

	before := c.State().Collection
	require.NoError(t, c.OpenCreate())

	res.createErr = &apiclient.Error{Kind: apiclient.ErrServer, Status: 500}
	err := c.Save(t.Context(), &catalog.Outlet{Name: "X", Category: "Selangor"})
	assert.ErrorIs(t, err, apiclient.ErrServer)

	assert.Equal(t, []string{"create"}, res.ops())
	st := c.State()
	assert.True(t, st.Modal.Open)
	assert.Equal(t, before, st.Collection)
	assert.Equal(t, []string{MsgSaveFailed}, n.all())
}

func TestSave_ValidationDetailNotified(t *testing.T) {
	res := newFakeResources()
	n := &notes{}
	c := mounted(t, res, Config{Notifier: n})

	res.updateErr = &apiclient.Error{Kind: apiclient.ErrValidation, Status: 400, Detail: "No fields to update"}
	err := c.Save(t.Context(), &catalog.Outlet{ID: catalog.ID(1), Name: "X", Category: "Selangor"})
	require.Error(t, err)
	assert.Equal(t, []string{"Failed to save item: No fields to update"}, n.all())
}

func TestSave_KindMismatch(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	err := c.Save(t.Context(), &catalog.Drink{Name: "Latte", Category: "Coffee"})
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Empty(t, res.ops())
}

func TestSaveForm(t *testing.T) {
	res := newFakeResources()
	n := &notes{}
	c := mounted(t, res, Config{Notifier: n})
	require.NoError(t, c.SelectKind(t.Context(), catalog.KindProduct))
	res.reset()

	require.NoError(t, c.OpenCreate())
	form := c.Form()
	require.NoError(t, form.Set("name", "Cold Cup"))
	require.NoError(t, form.Set("stock", "many"))

	err := c.SaveForm(t.Context(), form)
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, res.ops(), "validation happens before any call")
	require.Len(t, n.all(), 1)
	assert.Contains(t, n.all()[0], MsgSaveFailed)

	require.NoError(t, form.Set("category", "Drinkware"))
	require.NoError(t, form.Set("stock", "5"))
	require.NoError(t, c.SaveForm(t.Context(), form))
	assert.Equal(t, []string{"create", "list"}, res.ops())

	p, ok := res.calls[0].rec.(*catalog.Product)
	require.True(t, ok)
	assert.Equal(t, 5, p.Stock)
}

func TestRequestDelete_Declined(t *testing.T) {
	res := newFakeResources()
	var prompts []string
	c := mounted(t, res, Config{Confirmer: ConfirmFunc(func(p string) bool {
		prompts = append(prompts, p)
		return false
	})})

	deleted, err := c.RequestDelete(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, res.ops())
	assert.Equal(t, []string{DeletePrompt}, prompts)
	assert.Len(t, c.State().Collection, 2)
}

func TestRequestDelete_NilConfirmerDeclines(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	deleted, err := c.RequestDelete(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, res.ops())
}

func TestRequestDelete_Confirmed(t *testing.T) {
	for _, k := range catalog.Kinds {
		t.Run(string(k), func(t *testing.T) {
			res := newFakeResources()
			c := mounted(t, res, Config{Confirmer: ConfirmFunc(func(string) bool { return true })})
			require.NoError(t, c.SelectKind(t.Context(), k))
			res.reset()

			deleted, err := c.RequestDelete(t.Context(), 0)
			require.NoError(t, err)
			assert.True(t, deleted)
			assert.Equal(t, []string{"delete", "list"}, res.ops())

			res.mu.Lock()
			del := res.calls[0]
			res.mu.Unlock()
			assert.Equal(t, k, del.kind)
			assert.Equal(t, int64(0), del.id)
		})
	}
}

func TestRequestDelete_FailureSkipsRefetch(t *testing.T) {
	res := newFakeResources()
	n := &notes{}
	c := mounted(t, res, Config{
		Confirmer: ConfirmFunc(func(string) bool { return true }),
		Notifier:  n,
	})

	res.deleteErr = &apiclient.Error{Kind: apiclient.ErrNotFound, Status: 404, Detail: "Outlet not found"}
	deleted, err := c.RequestDelete(t.Context(), 42)
	assert.False(t, deleted)
	assert.ErrorIs(t, err, apiclient.ErrNotFound)

	assert.Equal(t, []string{"delete"}, res.ops())
	assert.Len(t, c.State().Collection, 2)
	assert.Equal(t, []string{MsgDeleteFailed}, n.all())
}

func TestRefetchFailureAfterMutationEmptiesCollection(t *testing.T) {
	res := newFakeResources()
	c := mounted(t, res, Config{})

	res.listErr = errors.New("backend went away")
	require.NoError(t, c.Save(t.Context(), &catalog.Outlet{Name: "New", Category: "Selangor"}))
	assert.Empty(t, c.State().Collection)
	assert.Equal(t, []string{"create", "list"}, res.ops())
}

func TestClose_CancelsInFlight(t *testing.T) {
	res := newFakeResources()
	c := New(res, allowAll, Config{})
	require.NoError(t, c.Mount(t.Context()))

	release := make(chan struct{})
	res.block[catalog.KindFood] = release

	done := make(chan error, 1)
	go func() { done <- c.SelectKind(t.Context(), catalog.KindFood) }()
	require.Eventually(t, func() bool { return len(res.ops()) == 2 }, time.Second, 5*time.Millisecond)

	c.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.ErrorIs(t, c.SelectKind(t.Context(), catalog.KindDrink), ErrClosed)
	assert.False(t, c.State().IsLoading)
}
