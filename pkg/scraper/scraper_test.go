package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

func newTestScraper(t *testing.T, serverURL string, retries int) (*Scraper, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := NewWithConfig(ScraperConfig{
		APIURL:     serverURL + "/%s/w/api.php",
		MaxRetries: retries,
		Logger:     zap.New(core),
	})
	require.NoError(t, err)
	return s, logs
}

func TestScraperConfig(t *testing.T) {
	s, err := NewWithConfig(ScraperConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, s.config.APIURL)
	assert.Equal(t, 30*time.Second, s.config.Timeout)
	assert.Equal(t, defaultMaxRetries, s.config.MaxRetries)
	assert.Equal(t, "https://de.wikipedia.org/w/api.php", s.endpoint("de"))
	assert.Equal(t, "https://en.wikipedia.org/w/api.php", s.endpoint(""))

	_, err = NewWithConfig(ScraperConfig{APIURL: "https://en.wikipedia.org/w/api.php"})
	assert.Error(t, err)
}

func TestFetchMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fr/w/api.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "parse", q.Get("action"))
		assert.Equal(t, "Steam engine", q.Get("page"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "text", q.Get("prop"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"parse":{"title":"Steam engine","pageid":27678,"text":{"*":"<p>A steam engine is a heat engine.</p>"}}}`))
	}))
	defer server.Close()

	s, logs := newTestScraper(t, server.URL, -1)
	markup, ok := s.FetchMarkup(context.Background(), "Steam engine", "fr")
	require.True(t, ok)
	assert.Equal(t, "<p>A steam engine is a heat engine.</p>", markup)
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestFetchMarkupRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"info": "No such page"}}`))
	}))
	defer server.Close()

	s, logs := newTestScraper(t, server.URL, -1)
	markup, ok := s.FetchMarkup(context.Background(), "Nonexistent page", "")
	assert.False(t, ok)
	assert.Empty(t, markup)

	entries := logs.FilterMessage("could not fetch page markup").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields["error"], "No such page")
	assert.Equal(t, "Nonexistent page", fields["title"])
	assert.Equal(t, server.URL+"/en/w/api.php", fields["url"])
}

func TestFetchMarkupDegrades(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}},
		{"no parse section", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"batchcomplete":""}`))
		}},
		{"no rendered text", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parse":{"title":"X","text":{}}}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			s, logs := newTestScraper(t, server.URL, -1)
			_, ok := s.FetchMarkup(context.Background(), "X", "en")
			assert.False(t, ok)
			assert.Equal(t, 1, logs.FilterMessage("could not fetch page markup").Len())
		})
	}
}

func TestFetchMarkupTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	s, logs := newTestScraper(t, url, -1)
	_, ok := s.FetchMarkup(context.Background(), "James Watt", "en")
	assert.False(t, ok)

	entries := logs.FilterMessage("could not fetch page markup").All()
	require.Len(t, entries, 1)
	assert.Equal(t, url+"/en/w/api.php", entries[0].ContextMap()["url"])
	assert.NotEmpty(t, entries[0].ContextMap()["error"])
}

func TestFetchMarkupRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`{"parse":{"text":{"*":"<p>ok</p>"}}}`))
		}
	}))
	defer server.Close()

	s, _ := newTestScraper(t, server.URL, 2)
	markup, ok := s.FetchMarkup(context.Background(), "Watt", "en")
	require.True(t, ok)
	assert.Equal(t, "<p>ok</p>", markup)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchMarkupGivesUpAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s, _ := newTestScraper(t, server.URL, 2)
	_, ok := s.FetchMarkup(context.Background(), "Watt", "en")
	assert.False(t, ok)
	// 1 initial + 2 retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchMarkupDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s, _ := newTestScraper(t, server.URL, 2)
	_, ok := s.FetchMarkup(context.Background(), "Watt", "en")
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchRenderedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Test Page</title><style>body{}</style><meta name="x" content="y"></head>
				<body>
					<header>Site banner</header>
					<nav><a href="/">Home</a></nav>
					<main>
						<h1>Test<span>Content</span></h1>
						<p>This is   a test
						paragraph.</p>
						<script>var tracking = 1;</script>
						<noscript>Enable JS</noscript>
					</main>
					<footer>Copyright</footer>
				</body>
			</html>
		`))
	}))
	defer server.Close()

	s, _ := newTestScraper(t, server.URL, -1)
	text, ok := s.FetchRenderedText(context.Background(), server.URL)
	require.True(t, ok)
	assert.Equal(t, "Test Page Test Content This is a test paragraph.", text)
	for _, noise := range []string{"Site banner", "Home", "tracking", "Enable JS", "Copyright", "body{}"} {
		assert.NotContains(t, text, noise)
	}
}

func TestFetchRenderedTextDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	s, logs := newTestScraper(t, server.URL, -1)
	text, ok := s.FetchRenderedText(context.Background(), server.URL+"/page")
	assert.False(t, ok)
	assert.Empty(t, text)

	entries := logs.FilterMessage("could not fetch page").All()
	require.Len(t, entries, 1)
	assert.Equal(t, server.URL+"/page", entries[0].ContextMap()["url"])
	assert.True(t, strings.Contains(entries[0].ContextMap()["error"].(string), "410"))
}
