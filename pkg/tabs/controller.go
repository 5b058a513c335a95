// Package tabs implements the hierarchical tab controller: it owns the
// active tab and the displayed row of one page and turns UI gestures into
// bus actions.
package tabs

import (
	"context"
	"sync"

	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/presenter"
	"github.com/grovetools/prodtrack/pkg/store"
	"github.com/sirupsen/logrus"
)

// UpdateStatesHandler is the bus name of the controller's RowSelected
// subscriber. It runs after the presenter has processed the selection.
const UpdateStatesHandler = "tabs.updateStates"

// AccountVar is passed to every list query when set.
const AccountVar = "acctID"

// TabView is the render state of one tab.
type TabView struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Active  bool   `json:"active"`
}

// View is everything a renderer needs for the page.
type View struct {
	Page      string    `json:"page"`
	Tabs      []TabView `json:"tabs"`
	ActiveTab int       `json:"activeTab"`
	ListEvent string    `json:"listEvent"`
	Columns   []string  `json:"columns"`
	ActiveRow fetch.Row `json:"activeRow,omitempty"`
}

// Controller drives one page.
type Controller struct {
	presenter *presenter.Presenter
	bus       *bus.Bus
	fetcher   fetch.Fetcher
	store     *store.Store
	logger    *logrus.Entry

	mu         sync.RWMutex
	activeTab  int
	selections presenter.Selections
	activeRow  fetch.Row
	states     []bool
	unsubs     []func()
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger overrides the controller logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a controller and attaches p to b. st defaults to the bus
// store.
func New(p *presenter.Presenter, b *bus.Bus, f fetch.Fetcher, st *store.Store, opts ...Option) (*Controller, error) {
	if p == nil || b == nil {
		return nil, errors.InvalidInput("tabs.New", "presenter and bus are required")
	}
	if st == nil {
		st = b.Store()
	}
	c := &Controller{
		presenter:  p,
		bus:        b,
		fetcher:    f,
		store:      st,
		selections: p.InitialSelections(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger("tabs")
	}
	c.logger = c.logger.WithField("page", p.Page())
	c.states = c.computeStates(c.selections)

	if err := p.Attach(b); err != nil {
		return nil, err
	}

	c.unsubs = []func(){
		b.Subscribe(bus.RowSelected, c.onRowSelected,
			bus.WithName(UpdateStatesHandler), bus.After(presenter.SelectionHandler)),
		b.Subscribe(bus.AccountChanged, c.onReset, bus.WithName("tabs.reset"), bus.After("presenter.reset")),
		b.Subscribe(bus.Logout, c.onReset, bus.WithName("tabs.reset"), bus.After("presenter.reset")),
	}
	return c, nil
}

// Page returns the page name.
func (c *Controller) Page() string { return c.presenter.Page() }

// ActiveTab returns the active tab index.
func (c *Controller) ActiveTab() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeTab
}

// Selections returns a copy of the controller's selections.
func (c *Controller) Selections() presenter.Selections {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selections.Clone()
}

// ActiveRow returns the row shown in the detail view, or nil.
func (c *Controller) ActiveRow() fetch.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeRow
}

// TabStates returns the enabled flag of every tab.
func (c *Controller) TabStates() []bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bool(nil), c.states...)
}

// HandleRowSelection is called once per row-selection gesture on the active
// tab. The active tab never changes as a result, even when the selection
// enables the next tab.
func (c *Controller) HandleRowSelection(ctx context.Context, row fetch.Row) string {
	tab := c.ActiveTab()
	return c.bus.Trigger(ctx, bus.RowSelected, bus.Payload{
		presenter.FieldPage: c.Page(),
		presenter.FieldTab:  tab,
		presenter.FieldRow:  row,
	}, bus.Context{"presenter": c.presenter})
}

func (c *Controller) onRowSelected(ctx context.Context, a bus.Action) error {
	if page := a.Payload.Str(presenter.FieldPage); page != "" && page != c.Page() {
		return nil
	}
	tab, _ := a.Payload.Int(presenter.FieldTab)
	sel := c.presenter.Current()
	states := c.computeStates(sel)

	c.mu.Lock()
	c.selections = sel
	if tab == c.activeTab {
		c.activeRow = presenter.RowFrom(a.Payload[presenter.FieldRow])
	}
	c.states = states
	c.mu.Unlock()

	c.bus.Trigger(ctx, bus.TabStatesUpdated, bus.Payload{
		presenter.FieldPage: c.Page(),
		"states":            append([]bool(nil), states...),
	}, nil)
	return nil
}

func (c *Controller) onReset(ctx context.Context, a bus.Action) error {
	sel := c.presenter.Current()
	c.mu.Lock()
	c.activeTab = 0
	c.activeRow = nil
	c.selections = sel
	c.states = c.computeStates(sel)
	c.mu.Unlock()
	return nil
}

// HandleTabChange switches to tab i. Every click produces a TabClicked tick.
// Disabled or unknown tabs are logged and ignored. A successful switch
// clears the displayed row and broadcasts TabChanged.
func (c *Controller) HandleTabChange(ctx context.Context, i int) error {
	c.bus.Trigger(ctx, bus.TabClicked, bus.Payload{presenter.FieldPage: c.Page(), presenter.FieldTab: i}, nil)

	if i < 0 || i >= c.presenter.TabCount() {
		err := errors.TabConfig(c.Page(), i, "tab index out of range")
		c.logger.WithFields(err.Fields()).Warn("Tab change ignored")
		return err
	}
	if !c.presenter.IsTabEnabled(i, c.Selections()) {
		err := errors.New(errors.ErrCodeTabDisabled, "tab is disabled").
			WithDetail("page", c.Page()).
			WithDetail("tab", i)
		c.logger.WithFields(err.Fields()).Warn("Tab change ignored")
		return err
	}

	c.mu.Lock()
	c.activeTab = i
	c.activeRow = nil
	c.mu.Unlock()

	c.presenter.HandleTabChange(i)
	c.bus.Trigger(ctx, bus.TabChanged, bus.Payload{
		presenter.FieldPage: c.Page(),
		presenter.FieldTab:  i,
		"listEvent":         c.presenter.ListEvent(i),
	}, nil)
	return nil
}

// View returns the render state.
func (c *Controller) View() View {
	c.mu.RLock()
	active := c.activeTab
	states := append([]bool(nil), c.states...)
	row := c.activeRow
	c.mu.RUnlock()

	v := View{
		Page:      c.Page(),
		ActiveTab: active,
		ListEvent: c.presenter.ListEvent(active),
		Columns:   c.presenter.Columns(active),
		ActiveRow: row,
	}
	for i, enabled := range states {
		tab, _ := c.presenter.Tab(i)
		v.Tabs = append(v.Tabs, TabView{Label: tab.Label, Enabled: enabled, Active: i == active})
	}
	return v
}

// Params resolves the query parameters of the active tab from store
// variables. A missing ancestor key is an error; the account is optional.
func (c *Controller) Params() (fetch.Params, error) {
	tab, _ := c.presenter.Tab(c.ActiveTab())
	var required []string
	if c.presenter.Mode().Cascades() && tab.ParentKey != "" {
		required = append(required, tab.ParentKey)
	}
	params, missing := fetch.ResolveParams(c.store, required...)
	if len(missing) > 0 {
		return nil, errors.InvalidInput("Load", "missing ancestor selection").
			WithDetail("page", c.Page()).
			WithDetail("missing", missing)
	}
	if acct := c.store.GetVar(store.VarKey(AccountVar)); acct != nil {
		params[AccountVar] = acct
	}
	return params, nil
}

// Load fetches the rows of the active tab. The rows are also written to the
// store under the list event name. Errors are returned to the caller after
// a ListFailed action; nothing is retried.
func (c *Controller) Load(ctx context.Context) ([]fetch.Row, error) {
	tab := c.ActiveTab()
	query := c.presenter.ListEvent(tab)
	base := bus.Payload{presenter.FieldPage: c.Page(), presenter.FieldTab: tab, "listEvent": query}

	if c.fetcher == nil {
		err := errors.InvalidInput("Load", "no fetcher configured").WithDetail("page", c.Page())
		c.fail(ctx, base, err)
		return nil, err
	}

	params, err := c.Params()
	if err != nil {
		c.fail(ctx, base, err)
		return nil, err
	}

	requested := base.Clone()
	requested["params"] = params
	c.bus.Trigger(ctx, bus.ListRequested, requested, nil)

	rows, err := c.fetcher.Fetch(ctx, query, params)
	if err != nil {
		c.fail(ctx, base, err)
		return nil, err
	}

	c.store.Set(store.VarKey(query), rows)
	loaded := base.Clone()
	loaded["count"] = len(rows)
	c.bus.Trigger(ctx, bus.ListLoaded, loaded, nil)
	return rows, nil
}

func (c *Controller) fail(ctx context.Context, base bus.Payload, err error) {
	c.logger.WithError(err).WithField("list_event", base["listEvent"]).Error("List load failed")
	failed := base.Clone()
	failed["error"] = err.Error()
	c.bus.Trigger(ctx, bus.ListFailed, failed, nil)
}

func (c *Controller) computeStates(sel presenter.Selections) []bool {
	states := make([]bool, c.presenter.TabCount())
	for i := range states {
		states[i] = c.presenter.IsTabEnabled(i, sel)
	}
	return states
}

// Close removes the controller's bus subscriptions. It does not destroy the
// presenter.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
