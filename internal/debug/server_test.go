//go:build !production

package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *pages.Session, *httptest.Server) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	sess, err := pages.NewSession(context.Background(), nil,
		pages.WithLogger(entry),
		pages.WithPersister(nil),
		pages.WithFetcher(fetch.NewMemory(pages.SampleData())))
	require.NoError(t, err)

	srv := New(sess, entry)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
		sess.Teardown(context.Background())
	})
	return srv, sess, ts
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available)
}

func TestSubscribersAndPages(t *testing.T) {
	_, sess, ts := newTestServer(t)
	_, err := sess.Mount(context.Background(), "ingredients")
	require.NoError(t, err)

	var subs map[string][]bus.SubscriberInfo
	getJSON(t, ts.URL+"/api/subscribers", &subs)
	require.Len(t, subs["rowSelected"], 2)
	assert.Equal(t, "presenter.selection", subs["rowSelected"][0].Name)
	assert.Equal(t, []string{"presenter.selection"}, subs["rowSelected"][1].After)

	var pageList []map[string]interface{}
	getJSON(t, ts.URL+"/api/pages", &pageList)
	require.Len(t, pageList, 4)
	for _, p := range pageList {
		assert.Equal(t, p["name"] == "ingredients", p["mounted"])
	}
}

func TestTrackingToggle(t *testing.T) {
	_, _, ts := newTestServer(t)
	defer tracker.SetEnabled(true)

	resp, err := http.Post(ts.URL+"/api/tracking", "application/json", strings.NewReader(`{"enabled":false}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, tracker.Enabled())

	var state map[string]bool
	getJSON(t, ts.URL+"/api/tracking", &state)
	assert.False(t, state["enabled"])

	resp, err = http.Post(ts.URL+"/api/tracking", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryMetricsAndStore(t *testing.T) {
	_, sess, ts := newTestServer(t)
	ctx := context.Background()
	sess.Bus.Trigger(ctx, bus.RecordSaved, bus.Payload{"page": "recipes", "function": "saveRecipe"}, nil)
	sess.Store.Set(":callback", func() {})

	var history []tracker.Record
	getJSON(t, ts.URL+"/api/history", &history)
	require.Len(t, history, 1)
	assert.Equal(t, "saveRecipe", history[0].ActionType)

	var metrics []tracker.Metric
	getJSON(t, ts.URL+"/api/metrics", &metrics)
	require.Len(t, metrics, 1)
	assert.Equal(t, 1, metrics[0].Calls)

	var snapshot map[string]interface{}
	getJSON(t, ts.URL+"/api/store", &snapshot)
	assert.Contains(t, snapshot, "%recordSaved")
	assert.IsType(t, "", snapshot[":callback"])

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/metrics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, sess.Tracker.Metrics())
}

func TestActionStream(t *testing.T) {
	srv, sess, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.count() == 1 }, time.Second, 10*time.Millisecond)

	sess.Bus.Trigger(context.Background(), bus.TabChanged, bus.Payload{"tab": 1}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "tabChanged", ev.Action)
	assert.Equal(t, float64(1), ev.Payload["tab"])
	assert.True(t, strings.HasPrefix(ev.ID, "tabChanged-"))
}

func TestLogTailKeepsRecentLines(t *testing.T) {
	tail := newLogTail(2)
	tail.Write([]byte("one\ntw"))
	tail.Write([]byte("o\nthree\n"))
	assert.Equal(t, []string{"two", "three"}, tail.snapshot())
}

func TestLogsEndpoint(t *testing.T) {
	t.Setenv("PRODTRACK_LOG_LEVEL", "info")
	_, _, ts := newTestServer(t)

	logger := logging.Configure(logrus.New(), logging.Config{
		Format: logging.FormatConfig{StructuredToStderr: "never"},
	})
	logger.Info("batch VF-2304 received")

	var lines []string
	getJSON(t, ts.URL+"/api/logs", &lines)
	require.NotEmpty(t, lines)
	assert.Contains(t, strings.Join(lines, "\n"), "batch VF-2304 received")
}
