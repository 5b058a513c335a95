package bus

import (
	"github.com/grovetools/prodtrack/errors"
)

// Kind identifies an action. The set is closed: adding a kind means adding a
// constant before kindCount and its row in kindTable.
type Kind int

const (
	KindInvalid Kind = iota
	RowSelected
	TabChanged
	TabClicked
	TabStatesUpdated
	ListRequested
	ListLoaded
	ListFailed
	AccountChanged
	Logout
	FormSubmitted
	RecordSaved
	RecordDeleted
	PageMounted
	PageUnmounted

	kindCount
)

type kindInfo struct {
	name string
	// unstored kinds fire too often to be worth a store slot and have no
	// polling reader.
	unstored bool
}

var kindTable = [kindCount]kindInfo{
	KindInvalid:      {name: "invalid", unstored: true},
	RowSelected:      {name: "rowSelected"},
	TabChanged:       {name: "tabChanged"},
	TabClicked:       {name: "tabClicked", unstored: true},
	TabStatesUpdated: {name: "tabStatesUpdated"},
	ListRequested:    {name: "listRequested"},
	ListLoaded:       {name: "listLoaded"},
	ListFailed:       {name: "listFailed"},
	AccountChanged:   {name: "accountChanged"},
	Logout:           {name: "logout"},
	FormSubmitted:    {name: "formSubmitted"},
	RecordSaved:      {name: "recordSaved"},
	RecordDeleted:    {name: "recordDeleted"},
	PageMounted:      {name: "pageMounted"},
	PageUnmounted:    {name: "pageUnmounted"},
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k := KindInvalid + 1; k < kindCount; k++ {
		m[kindTable[k].name] = k
	}
	return m
}()

// String returns the action name used for store keys and logs.
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "invalid"
	}
	return kindTable[k].name
}

// Valid reports whether k is a dispatchable kind.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// Stored reports whether dispatches of k write their payload to the store
// by default.
func (k Kind) Stored() bool {
	return k.Valid() && !kindTable[k].unstored
}

// ParseKind resolves an action name.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	return KindInvalid, errors.UnknownAction(name)
}

// Kinds returns every dispatchable kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
