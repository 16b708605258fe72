package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ron-matt163/wiki-llm/pkg/extractor"
	"github.com/ron-matt163/wiki-llm/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDeriver []string

func (d stubDeriver) Derive(context.Context, string) []string { return d }

type stubFetcher map[string]string

func (f stubFetcher) FetchMarkup(_ context.Context, title, _ string) (string, bool) {
	markup, ok := f[title]
	return markup, ok
}

type stubText struct {
	text string
	ok   bool
}

func (s stubText) FetchRenderedText(context.Context, string) (string, bool) {
	return s.text, s.ok
}

const engineMarkup = `<p>Engines turn heat into work.</p>
<table class="wikitable">
	<tr><th>Year</th><th>Engine</th></tr>
	<tr><td>1712</td><td>Newcomen</td></tr>
	<tr><td>1769</td><td>Watt</td></tr>
</table>`

func newTestServer(t *testing.T, text stubText) *httptest.Server {
	t.Helper()
	s := NewWSServer(Config{Pipeline: pipeline.PipelineConfig{Workers: 2}},
		stubDeriver{"Steam engine", "Nonexistent page"},
		stubFetcher{"Steam engine": engineMarkup},
		text,
		extractor.New(),
	)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilDone collects raw frames until a done or error message arrives.
func readUntilDone(t *testing.T, conn *websocket.Conn) []map[string]interface{} {
	t.Helper()
	var msgs []map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		msgs = append(msgs, msg)
		if msg["type"] == "done" || msg["type"] == "error" {
			return msgs
		}
	}
}

func byType(msgs []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, stubText{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuestionStream(t *testing.T) {
	ts := newTestServer(t, stubText{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "question", Content: "How did steam engines develop?"}))
	msgs := readUntilDone(t, conn)

	assert.Equal(t, "topics", msgs[0]["type"])
	assert.Equal(t, []interface{}{"Steam engine", "Nonexistent page"}, msgs[0]["data"])

	progress := byType(msgs, "progress")
	require.Len(t, progress, 2)
	found := map[string]bool{}
	for _, p := range progress {
		found[p["content"].(string)] = p["data"].(map[string]interface{})["found"].(bool)
	}
	assert.Equal(t, map[string]bool{"Steam engine": true, "Nonexistent page": false}, found)

	evidence := byType(msgs, "evidence")
	require.Len(t, evidence, 1)
	assert.Equal(t, "Steam engine", evidence[0]["content"])
	data := evidence[0]["data"].(map[string]interface{})
	assert.Equal(t, "Engines turn heat into work.", data["text"])
	tables := data["tables"].([]interface{})
	require.Len(t, tables, 1)
	assert.Equal(t, []interface{}{"Year", "Engine"}, tables[0].(map[string]interface{})["header"])

	last := msgs[len(msgs)-1]
	assert.Equal(t, "done", last["type"])
	assert.Equal(t, "How did steam engines develop?", last["content"])
}

func TestURLMessage(t *testing.T) {
	ts := newTestServer(t, stubText{text: "Test Page Test Content", ok: true})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "question", Content: "https://example.com/page"}))
	msgs := readUntilDone(t, conn)

	text := byType(msgs, "text")
	require.Len(t, text, 1)
	assert.Equal(t, "Test Page Test Content", text[0]["data"])
	assert.Equal(t, "done", msgs[len(msgs)-1]["type"])
}

func TestURLMessageFailure(t *testing.T) {
	ts := newTestServer(t, stubText{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "question", Content: "https://example.com/missing"}))
	msgs := readUntilDone(t, conn)

	last := msgs[len(msgs)-1]
	assert.Equal(t, "error", last["type"])
	assert.Contains(t, last["content"], "Failed to scrape URL")
}

func TestUnsupportedMessageType(t *testing.T) {
	ts := newTestServer(t, stubText{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))
	msgs := readUntilDone(t, conn)

	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Contains(t, msgs[0]["content"], `"subscribe"`)
}

func TestListenAndServeShutdown(t *testing.T) {
	s := NewWSServer(Config{Addr: "127.0.0.1:0"}, stubDeriver{}, stubFetcher{}, stubText{}, extractor.New())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
