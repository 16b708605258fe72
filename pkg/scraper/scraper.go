package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ron-matt163/wiki-llm/internal/failsoft"
	"github.com/ron-matt163/wiki-llm/pkg/extractor"
	"go.uber.org/zap"
)

const (
	DefaultLang       = "en"
	DefaultAPIURL     = "https://%s.wikipedia.org/w/api.php"
	BrowserUserAgent  = "Mozilla/5.0"
	defaultAPIAgent   = "wikillm/0.1 (https://github.com/ron-matt163/wiki-llm)"
	defaultMaxRetries = 2
)

var (
	// ErrRemote marks an error the knowledge source reported itself.
	ErrRemote = errors.New("remote error")
	// ErrTransport marks network failures and non-2xx responses.
	ErrTransport = errors.New("transport failure")
)

// RemoteError is the error object of a MediaWiki API response.
type RemoteError struct {
	Code string
	Info string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("remote error: %s", e.Info)
	}
	return fmt.Sprintf("remote error (%s): %s", e.Code, e.Info)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d for URL: %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

type ScraperConfig struct {
	// APIURL is the query endpoint with a %s placeholder for the language code.
	APIURL    string
	UserAgent string
	Timeout   time.Duration
	// MaxRetries bounds retries of transient failures. Negative disables retrying.
	MaxRetries int
	Client     *http.Client
	Logger     *zap.Logger
}

type Scraper struct {
	config ScraperConfig
	client *http.Client
	logger *zap.Logger
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if strings.Count(config.APIURL, "%s") != 1 {
		return nil, fmt.Errorf("api url %q must contain exactly one %%s for the language", config.APIURL)
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultAPIAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scraper{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

func New() *Scraper {
	s, _ := NewWithConfig(ScraperConfig{})
	return s
}

func (s *Scraper) endpoint(lang string) string {
	if lang == "" {
		lang = DefaultLang
	}
	return fmt.Sprintf(s.config.APIURL, lang)
}

// FetchMarkup returns the rendered HTML of the page titled title in the given
// language edition. Any failure is logged and reported as absent.
func (s *Scraper) FetchMarkup(ctx context.Context, title, lang string) (string, bool) {
	endpoint := s.endpoint(lang)
	return failsoft.Do(s.logger, "could not fetch page markup", func() (string, error) {
		return s.fetchMarkup(ctx, endpoint, title)
	}, zap.String("title", title), zap.String("url", endpoint))
}

type parseResponse struct {
	Parse *struct {
		Title string            `json:"title"`
		Text  map[string]string `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

func (s *Scraper) fetchMarkup(ctx context.Context, endpoint, title string) (string, error) {
	params := url.Values{
		"action": {"parse"},
		"page":   {title},
		"format": {"json"},
		"prop":   {"text"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: req.URL.String(), Code: resp.StatusCode}
	}

	var body parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
	}
	if body.Error != nil {
		return "", &RemoteError{Code: body.Error.Code, Info: body.Error.Info}
	}
	if body.Parse == nil {
		return "", fmt.Errorf("%w: response has no parse section", ErrRemote)
	}
	markup, ok := body.Parse.Text["*"]
	if !ok {
		return "", fmt.Errorf("%w: response has no rendered text", ErrRemote)
	}
	return markup, nil
}

// FetchRenderedText fetches an arbitrary page and flattens it to whitespace
// normalized text. No tables are extracted.
func (s *Scraper) FetchRenderedText(ctx context.Context, pageURL string) (string, bool) {
	return failsoft.Do(s.logger, "could not fetch page", func() (string, error) {
		return s.fetchRenderedText(ctx, pageURL)
	}, zap.String("url", pageURL))
}

func (s *Scraper) fetchRenderedText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	resp, err := s.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	return extractor.FlattenText(doc), nil
}
