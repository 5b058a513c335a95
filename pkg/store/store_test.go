package store

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(WithLogger(logrus.NewEntry(logger))), hook
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	values := map[string]interface{}{
		":acctID":    42,
		":pageTitle": "Ingredients",
		":units":     []string{"kg", "g"},
		"%rowSelected": map[string]interface{}{
			"tab": 0,
		},
	}
	for k, v := range values {
		s.SetVars(Vars{k: v})
		assert.Equal(t, v, s.GetVar(k), "key %s", k)
	}

	assert.Nil(t, s.GetVar(":missing"))
	_, ok := s.Lookup(":missing")
	assert.False(t, ok)
}

func TestClearAll(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetVars(Vars{":a": 1, ":b": "two", "%c": true})

	s.ClearAll()

	for _, k := range []string{":a", ":b", "%c"} {
		assert.Nil(t, s.GetVar(k))
	}
	assert.Empty(t, s.Keys())
}

func TestClearSubset(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetVars(Vars{":acctID": 1, ":ingrTypes": []int{1, 2}, ":keep": "x"})

	var cleared []string
	s.WatchAll(func(c Change) { cleared = append(cleared, c.Key) })

	s.Clear(":acctID", ":ingrTypes", ":unknown")

	assert.Nil(t, s.GetVar(":acctID"))
	assert.Nil(t, s.GetVar(":ingrTypes"))
	assert.Equal(t, "x", s.GetVar(":keep"))
	assert.Equal(t, []string{":acctID", ":ingrTypes"}, cleared)
}

func TestWatchNotifiesOnlyOnChange(t *testing.T) {
	s, _ := newTestStore(t)

	var changes []Change
	unwatch := s.Watch(":batchID", func(c Change) { changes = append(changes, c) })

	s.Set(":batchID", 7)
	s.Set(":batchID", 7) // equal scalar, no notification
	s.Set(":batchID", 8)
	s.Set(":other", 1)

	require.Len(t, changes, 2)
	assert.Nil(t, changes[0].Old)
	assert.Equal(t, 7, changes[0].New)
	assert.Equal(t, 7, changes[1].Old)
	assert.Equal(t, 8, changes[1].New)

	unwatch()
	unwatch()
	s.Set(":batchID", 9)
	assert.Len(t, changes, 2)
}

func TestSliceChangeHeuristic(t *testing.T) {
	s, _ := newTestStore(t)

	var count int
	s.Watch(":rows", func(Change) { count++ })

	rows := []int{1, 2}
	s.Set(":rows", rows)
	s.Set(":rows", rows) // same backing array and length
	assert.Equal(t, 1, count)

	s.Set(":rows", append([]int(nil), rows...)) // new reference
	assert.Equal(t, 2, count)

	s.Set(":rows", []int{1, 2, 3})
	assert.Equal(t, 3, count)
}

func TestWritesAreWholeValueReplacement(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set(":form", map[string]interface{}{"name": "Flour", "qty": 3})
	s.Set(":form", map[string]interface{}{"name": "Sugar"})

	form := s.GetVar(":form").(map[string]interface{})
	assert.Equal(t, "Sugar", form["name"])
	assert.NotContains(t, form, "qty")
}

func TestWriteLogsLengthDelta(t *testing.T) {
	s, hook := newTestStore(t)
	s.Set(":ingredients", []string{"a"})
	s.Set(":ingredients", []string{"a", "b", "c"})

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, ":ingredients", last.Data["key"])
	assert.Equal(t, 2, last.Data["len_delta"])
}

func TestEmptyKeyRejected(t *testing.T) {
	s, hook := newTestStore(t)
	s.SetVars(Vars{"": 1, ":ok": 2})

	assert.Equal(t, 2, s.GetVar(":ok"))
	assert.NotContains(t, s.Keys(), "")

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestAssign(t *testing.T) {
	s, hook := newTestStore(t)

	type session struct {
		AcctID    int    `var:":acctID"`
		PageTitle string `var:":pageTitle"`
	}
	require.NoError(t, s.Assign(session{AcctID: 3, PageTitle: "Batches"}))
	assert.Equal(t, 3, s.GetVar(":acctID"))
	assert.Equal(t, "Batches", s.GetVar(":pageTitle"))

	require.NoError(t, s.Assign(map[string]interface{}{":recipeID": 5}))
	assert.Equal(t, 5, s.GetVar(":recipeID"))

	t.Run("non-object input is a logged no-op", func(t *testing.T) {
		before := s.Snapshot()
		hook.Reset()
		for _, bad := range []interface{}{nil, 42, "text", []int{1}} {
			assert.Error(t, s.Assign(bad))
		}
		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	})
}

func TestWatcherMayWriteBack(t *testing.T) {
	s, _ := newTestStore(t)
	s.Watch(":typeID", func(c Change) {
		s.Set(":itemID", nil)
	})
	s.Set(":itemID", 4)
	s.Set(":typeID", 1)
	assert.Nil(t, s.GetVar(":itemID"))
}

func TestWatcherPanicIsContained(t *testing.T) {
	s, _ := newTestStore(t)
	var second bool
	s.Watch(":k", func(Change) { panic("boom") })
	s.Watch(":k", func(Change) { second = true })

	assert.NotPanics(t, func() { s.Set(":k", 1) })
	assert.True(t, second)
}

func TestPollVar(t *testing.T) {
	s, _ := newTestStore(t)
	p := s.Poll(":pageTitle", "Untitled")
	defer p.Close()

	assert.Equal(t, "Untitled", p.Value())

	s.Set(":pageTitle", "Recipes")
	assert.Equal(t, "Recipes", p.Value())
	select {
	case <-p.Changed():
	default:
		t.Fatal("expected change signal")
	}

	s.ClearAll()
	assert.Equal(t, "Untitled", p.Value())

	p.Close()
	s.Set(":pageTitle", "Products")
	assert.Equal(t, "Untitled", p.Value())
}

func TestTeardown(t *testing.T) {
	s, _ := newTestStore(t)
	var calls int
	s.Watch(":a", func(Change) { calls++ })
	s.Set(":a", 1)

	s.Teardown()
	s.Set(":a", 2)

	assert.Nil(t, s.GetVar(":a"))
	assert.Equal(t, 1, calls)
}

func TestInstancesAreIsolated(t *testing.T) {
	a, _ := newTestStore(t)
	b, _ := newTestStore(t)
	a.Set(":acctID", 1)
	assert.Nil(t, b.GetVar(":acctID"))
}

func TestGetTyped(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set(":typeID", 7)

	v, ok := Get[int](s, ":typeID")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = Get[string](s, ":typeID")
	assert.False(t, ok)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, ":typeID", VarKey("typeID"))
	assert.Equal(t, ":typeID", VarKey(":typeID"))
	assert.Equal(t, "%rowSelected", ActionKey("rowSelected"))
}
