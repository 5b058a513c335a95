// Package presenter implements the selection state machine behind a tabbed
// page. Tab enablement is derived from the selections; nothing else is
// stored.
package presenter

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/store"
	"github.com/sirupsen/logrus"
)

// SelectionHandler is the bus name of the presenter's RowSelected subscriber.
// Subscribers that read selections during the same dispatch order themselves
// after it.
const SelectionHandler = "presenter.selection"

// Payload fields read from RowSelected actions.
const (
	FieldPage = "page"
	FieldTab  = "tab"
	FieldRow  = "row"
)

// TabConfig describes one tab.
type TabConfig = config.TabConfig

// Selections maps each tab's selection key to its selected row, or nil.
type Selections map[string]fetch.Row

// Clone returns a shallow copy.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Presenter holds the selection state of one page.
type Presenter struct {
	page   string
	tabs   []TabConfig
	mode   Mode
	store  *store.Store
	logger *logrus.Entry

	mu        sync.RWMutex
	current   Selections
	attached  *bus.Bus
	unsubs    []func()
	destroyed bool
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithMode selects the page mode. The default is Hierarchical.
func WithMode(m Mode) Option {
	return func(p *Presenter) {
		if m != nil {
			p.mode = m
		}
	}
}

// WithLogger overrides the presenter logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(p *Presenter) { p.logger = logger }
}

// New creates a presenter for page. tabs is copied.
func New(page string, tabs []TabConfig, st *store.Store, opts ...Option) *Presenter {
	p := &Presenter{
		page:  page,
		tabs:  append([]TabConfig(nil), tabs...),
		mode:  Hierarchical,
		store: st,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewLogger("presenter")
	}
	p.logger = p.logger.WithField("page", page)
	if len(p.tabs) == 0 {
		p.logger.WithFields(errors.TabConfig(page, 0, "no tabs configured").Fields()).
			Error("Presenter created without tab configuration")
	}
	p.current = p.InitialSelections()
	return p
}

// Page returns the page name.
func (p *Presenter) Page() string { return p.page }

// Mode returns the page mode.
func (p *Presenter) Mode() Mode { return p.mode }

// TabCount returns the number of configured tabs.
func (p *Presenter) TabCount() int { return len(p.tabs) }

// Tab returns the configuration of tab i.
func (p *Presenter) Tab(i int) (TabConfig, bool) {
	if i < 0 || i >= len(p.tabs) {
		return TabConfig{}, false
	}
	return p.tabs[i], true
}

// SelectionKey returns the selections key of tab i.
func (p *Presenter) SelectionKey(i int) string {
	if i >= 0 && i < len(p.tabs) && p.tabs[i].SelectionKey != "" {
		return p.tabs[i].SelectionKey
	}
	return fmt.Sprintf("tab%dSelection", i)
}

// InitialSelections returns a selection map with every tab unselected.
func (p *Presenter) InitialSelections() Selections {
	sel := make(Selections, len(p.tabs))
	for i := range p.tabs {
		sel[p.SelectionKey(i)] = nil
	}
	return sel
}

// Current returns the selections maintained by the bus subscription.
func (p *Presenter) Current() Selections {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// HandleRowSelection returns a new selection map with row selected on tab i.
// current is not modified. In cascading modes, later tabs are unselected,
// the ancestor key for tab i+1 is written to the store and the ancestor keys
// of deeper tabs are cleared, all before this method returns.
func (p *Presenter) HandleRowSelection(i int, row fetch.Row, current Selections) Selections {
	next := current.Clone()
	if i < 0 || i >= len(p.tabs) {
		p.logger.WithFields(errors.TabConfig(p.page, i, "tab index out of range").Fields()).
			Error("Row selection ignored")
		return next
	}

	next[p.SelectionKey(i)] = row
	if !p.mode.Cascades() {
		return next
	}

	vars := store.Vars{}
	for j := i + 1; j < len(p.tabs); j++ {
		next[p.SelectionKey(j)] = nil
		parent := p.tabs[j].ParentKey
		if parent == "" {
			continue
		}
		if j == i+1 {
			vars[store.VarKey(parent)] = ancestorValue(row, parent, p.tabs[i].KeyField)
		} else {
			vars[store.VarKey(parent)] = nil
		}
	}
	if len(vars) > 0 && p.store != nil {
		p.store.SetVars(vars)
	}

	p.logger.WithFields(logrus.Fields{
		"tab":       i,
		"selection": p.SelectionKey(i),
	}).Debug("Row selected")
	return next
}

func ancestorValue(row fetch.Row, parentKey, keyField string) interface{} {
	if row == nil {
		return nil
	}
	if v, ok := row[parentKey]; ok {
		return v
	}
	if keyField != "" {
		return row[keyField]
	}
	return nil
}

// IsTabEnabled reports whether tab i is usable under sel. Tab 0 is always
// enabled, even on a page with no tabs configured.
func (p *Presenter) IsTabEnabled(i int, sel Selections) bool {
	if i == 0 {
		return true
	}
	if i < 0 || i >= len(p.tabs) {
		return false
	}
	return p.mode.TabEnabled(p, i, sel)
}

// ListEvent returns the list query name of tab i. Parameters are not part of
// the name. A missing entry is logged and yields a placeholder.
func (p *Presenter) ListEvent(i int) string {
	if i < 0 || i >= len(p.tabs) || p.tabs[i].ListEvent == "" {
		p.logger.WithFields(errors.TabConfig(p.page, i, "missing list event").Fields()).
			Error("Tab has no list event")
		return fmt.Sprintf("missing-list-event-%s-%d", p.page, i)
	}
	return p.tabs[i].ListEvent
}

// Columns returns the columns of tab i, or an empty slice when unconfigured.
func (p *Presenter) Columns(i int) []string {
	if i < 0 || i >= len(p.tabs) || len(p.tabs[i].Columns) == 0 {
		p.logger.WithFields(errors.TabConfig(p.page, i, "missing columns").Fields()).
			Error("Tab has no columns")
		return []string{}
	}
	return append([]string(nil), p.tabs[i].Columns...)
}

// HandleTabChange records a tab switch. Selections are not touched.
func (p *Presenter) HandleTabChange(i int) {
	p.logger.WithField("tab", i).Debug("Tab changed")
}

// Reset drops every selection and clears the propagated ancestor keys.
func (p *Presenter) Reset() {
	p.mu.Lock()
	p.current = p.InitialSelections()
	p.mu.Unlock()

	if p.store == nil || !p.mode.Cascades() {
		return
	}
	var keys []string
	for _, t := range p.tabs {
		if t.ParentKey != "" {
			keys = append(keys, store.VarKey(t.ParentKey))
		}
	}
	p.store.Clear(keys...)
}

// Attach subscribes the presenter to b so Current follows RowSelected
// actions for this page. Account changes and logout reset the selections.
// Attaching twice to the same bus is a no-op.
func (p *Presenter) Attach(b *bus.Bus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return errors.InvalidInput("Attach", "presenter destroyed").WithDetail("page", p.page)
	}
	if p.attached == b {
		return nil
	}
	if p.attached != nil {
		return errors.InvalidInput("Attach", "presenter already attached to another bus").WithDetail("page", p.page)
	}
	p.attached = b

	p.unsubs = append(p.unsubs,
		b.Subscribe(bus.RowSelected, p.onRowSelected, bus.WithName(SelectionHandler)),
		b.Subscribe(bus.AccountChanged, p.onReset, bus.WithName("presenter.reset")),
		b.Subscribe(bus.Logout, p.onReset, bus.WithName("presenter.reset")),
	)
	return nil
}

func (p *Presenter) onRowSelected(ctx context.Context, a bus.Action) error {
	if page := a.Payload.Str(FieldPage); page != "" && page != p.page {
		return nil
	}
	tab, ok := a.Payload.Int(FieldTab)
	if !ok {
		return errors.InvalidInput("rowSelected", "payload has no tab index").WithDetail("page", p.page)
	}

	row := RowFrom(a.Payload[FieldRow])

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	next := p.HandleRowSelection(tab, row, current)

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()
	return nil
}

func (p *Presenter) onReset(ctx context.Context, a bus.Action) error {
	p.Reset()
	return nil
}

// RowFrom converts a payload value to a Row. Unsupported values yield nil.
func RowFrom(v interface{}) fetch.Row {
	switch r := v.(type) {
	case fetch.Row:
		return r
	case map[string]interface{}:
		return fetch.Row(r)
	}
	return nil
}

// Destroy removes every bus subscription synchronously. Calling it again is
// a no-op.
func (p *Presenter) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	p.logger.Debug("Presenter destroyed")
}
