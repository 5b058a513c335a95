package presenter

import "strings"

// Mode decides how selections on one tab affect the others.
type Mode interface {
	Name() string
	// TabEnabled reports whether tab i may be used given sel.
	TabEnabled(p *Presenter, i int, sel Selections) bool
	// Cascades reports whether selecting at a tab propagates ancestor keys
	// to later tabs and clears their selections.
	Cascades() bool
}

// Hierarchical pages drill down: tab i > 0 needs a selection on tab i-1.
var Hierarchical Mode = hierarchical{}

// Flat pages have independent tabs that are always enabled.
var Flat Mode = flat{}

type hierarchical struct{}

func (hierarchical) Name() string { return "hierarchical" }

func (hierarchical) TabEnabled(p *Presenter, i int, sel Selections) bool {
	if i == 0 {
		return true
	}
	return sel[p.SelectionKey(i-1)] != nil
}

func (hierarchical) Cascades() bool { return true }

type flat struct{}

func (flat) Name() string { return "flat" }

func (flat) TabEnabled(*Presenter, int, Selections) bool { return true }

func (flat) Cascades() bool { return false }

// ModeFor maps a configured mode name to a Mode. Unknown names are
// hierarchical.
func ModeFor(name string) Mode {
	if strings.EqualFold(name, Flat.Name()) {
		return Flat
	}
	return Hierarchical
}
