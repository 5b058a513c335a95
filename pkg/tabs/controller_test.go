package tabs

import (
	"context"
	"fmt"
	"testing"

	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/presenter"
	"github.com/grovetools/prodtrack/pkg/store"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.Store
	bus     *bus.Bus
	fetcher *fetch.Memory
	pres    *presenter.Presenter
	ctrl    *Controller
	hook    *logtest.Hook
}

func newFixture(t *testing.T, tabs []presenter.TabConfig, mode presenter.Mode) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(logger)

	st := store.New(store.WithLogger(entry))
	b := bus.New(st, bus.WithLogger(entry))
	mem := fetch.NewMemory(map[string][]fetch.Row{
		"typesList": {{"typeID": 7, "name": "Dairy"}, {"typeID": 8, "name": "Grain"}},
		"itemsList": {{"itemID": 1, "typeID": 7, "name": "Milk"}, {"itemID": 2, "typeID": 8, "name": "Flour"}},
	})
	p := presenter.New("ingredients", tabs, st, presenter.WithLogger(entry), presenter.WithMode(mode))
	c, err := New(p, b, mem, nil, WithLogger(entry))
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		p.Destroy()
	})
	return &fixture{store: st, bus: b, fetcher: mem, pres: p, ctrl: c, hook: hook}
}

func twoTabs() []presenter.TabConfig {
	return []presenter.TabConfig{
		{Label: "Types", ListEvent: "typesList", KeyField: "typeID", Columns: []string{"name"}},
		{Label: "Items", ListEvent: "itemsList", KeyField: "itemID", ParentKey: "typeID", Columns: []string{"name"}},
	}
}

func TestNoAutoAdvance(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	assert.Equal(t, []bool{true, false}, f.ctrl.TabStates())

	f.ctrl.HandleRowSelection(context.Background(), fetch.Row{"typeID": 7, "name": "Dairy"})

	assert.Equal(t, 0, f.ctrl.ActiveTab())
	assert.Equal(t, []bool{true, true}, f.ctrl.TabStates())
	assert.Equal(t, fetch.Row{"typeID": 7, "name": "Dairy"}, f.ctrl.ActiveRow())
	assert.Equal(t, 7, f.store.GetVar(":typeID"))
}

func TestStatesUpdatedAfterPresenter(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)

	var states []bool
	f.bus.Subscribe(bus.TabStatesUpdated, func(ctx context.Context, a bus.Action) error {
		states, _ = a.Payload["states"].([]bool)
		return nil
	})

	f.ctrl.HandleRowSelection(context.Background(), fetch.Row{"typeID": 7})

	assert.Equal(t, []bool{true, true}, states)
	assert.NotNil(t, f.ctrl.Selections()["tab0Selection"])
}

func TestTabChange(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	ctx := context.Background()

	err := f.ctrl.HandleTabChange(ctx, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeTabDisabled))
	assert.Equal(t, 0, f.ctrl.ActiveTab())
	assert.Nil(t, f.bus.GetAction(bus.TabChanged))

	f.ctrl.HandleRowSelection(ctx, fetch.Row{"typeID": 7})
	require.NotNil(t, f.ctrl.ActiveRow())

	require.NoError(t, f.ctrl.HandleTabChange(ctx, 1))

	assert.Equal(t, 1, f.ctrl.ActiveTab())
	assert.Nil(t, f.ctrl.ActiveRow(), "displayed row resets on tab change")
	changed := f.bus.GetAction(bus.TabChanged)
	require.NotNil(t, changed)
	assert.Equal(t, "itemsList", changed["listEvent"])
	assert.NotNil(t, f.ctrl.Selections()["tab0Selection"], "tab change keeps selections")

	err = f.ctrl.HandleTabChange(ctx, 5)
	assert.True(t, errors.Is(err, errors.ErrCodeTabConfig))
	assert.Equal(t, 1, f.ctrl.ActiveTab())
}

func TestTabClickedTicksAreNotStored(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)

	clicks := 0
	f.bus.Subscribe(bus.TabClicked, func(context.Context, bus.Action) error { clicks++; return nil })

	f.ctrl.HandleTabChange(context.Background(), 1)
	f.ctrl.HandleTabChange(context.Background(), 0)

	assert.Equal(t, 2, clicks)
	assert.Nil(t, f.bus.GetAction(bus.TabClicked))
}

func TestRowSelectionOnDeeperTabKeepsDisplayedRow(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	ctx := context.Background()

	f.ctrl.HandleRowSelection(ctx, fetch.Row{"typeID": 7})
	require.NoError(t, f.ctrl.HandleTabChange(ctx, 1))
	f.ctrl.HandleRowSelection(ctx, fetch.Row{"itemID": 1})

	assert.Equal(t, 1, f.ctrl.ActiveTab())
	assert.Equal(t, fetch.Row{"itemID": 1}, f.ctrl.ActiveRow())
	assert.Equal(t, fetch.Row{"itemID": 1}, f.ctrl.Selections()["tab1Selection"])
}

func TestView(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)

	v := f.ctrl.View()

	assert.Equal(t, "ingredients", v.Page)
	assert.Equal(t, "typesList", v.ListEvent)
	assert.Equal(t, []string{"name"}, v.Columns)
	require.Len(t, v.Tabs, 2)
	assert.Equal(t, TabView{Label: "Types", Enabled: true, Active: true}, v.Tabs[0])
	assert.Equal(t, TabView{Label: "Items", Enabled: false, Active: false}, v.Tabs[1])
}

func TestLoadResolvesAncestorParams(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	ctx := context.Background()
	f.store.Set(":acctID", 3)

	rows, err := f.ctrl.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, rows, f.store.GetVar(":typesList"))

	f.ctrl.HandleRowSelection(ctx, fetch.Row{"typeID": 7})
	require.NoError(t, f.ctrl.HandleTabChange(ctx, 1))

	params, err := f.ctrl.Params()
	require.NoError(t, err)
	assert.Equal(t, fetch.Params{"typeID": 7, "acctID": 3}, params)

	rows, err = f.ctrl.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Milk", rows[0]["name"])

	loaded := f.bus.GetAction(bus.ListLoaded)
	assert.Equal(t, 1, loaded["count"])
	requested := f.bus.GetAction(bus.ListRequested)
	assert.Equal(t, "itemsList", requested["listEvent"])
}

func TestLoadPropagatesFetchErrors(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	boom := fmt.Errorf("connection refused")
	f.ctrl.fetcher = fetch.FetcherFunc(func(ctx context.Context, query string, params fetch.Params) ([]fetch.Row, error) {
		return nil, errors.FetchFailed(query, boom)
	})

	calls := 0
	f.bus.Subscribe(bus.ListFailed, func(context.Context, bus.Action) error { calls++; return nil })

	_, err := f.ctrl.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "no retry")
	assert.Contains(t, f.bus.GetAction(bus.ListFailed).Str("error"), "connection refused")
}

func TestLoadRequiresAncestor(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	f.ctrl.activeTab = 1

	var failed bus.Payload
	f.bus.Subscribe(bus.ListFailed, func(ctx context.Context, a bus.Action) error {
		failed = a.Payload
		return nil
	})

	rows, err := f.ctrl.Load(context.Background())

	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	require.NotNil(t, failed)
	assert.Equal(t, "itemsList", failed["listEvent"])
}

func TestFlatLoadNeedsNoAncestor(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Flat)
	require.NoError(t, f.ctrl.HandleTabChange(context.Background(), 1))

	rows, err := f.ctrl.Load(context.Background())

	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLoadWithoutFetcher(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	f.ctrl.fetcher = nil

	_, err := f.ctrl.Load(context.Background())

	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestLogoutResetsController(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)
	ctx := context.Background()
	f.ctrl.HandleRowSelection(ctx, fetch.Row{"typeID": 7})
	require.NoError(t, f.ctrl.HandleTabChange(ctx, 1))

	f.bus.Trigger(ctx, bus.Logout, nil, nil)

	assert.Equal(t, 0, f.ctrl.ActiveTab())
	assert.Nil(t, f.ctrl.ActiveRow())
	assert.Equal(t, []bool{true, false}, f.ctrl.TabStates())
}

func TestCloseUnsubscribes(t *testing.T) {
	f := newFixture(t, twoTabs(), presenter.Hierarchical)

	f.ctrl.Close()
	f.ctrl.Close()

	// Only the presenter's subscription remains.
	assert.Equal(t, 1, f.bus.SubscriberCount(bus.RowSelected))
	f.pres.Destroy()
	assert.Equal(t, 0, f.bus.SubscriberCount(bus.RowSelected))
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
