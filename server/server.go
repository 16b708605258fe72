package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ron-matt163/wiki-llm/pkg/pipeline"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var urlPattern = regexp.MustCompile(`^https?://\S+$`)

// Message is the envelope for every frame in both directions. Clients send
// {"type": "question", "content": "..."}; a content that is a bare URL is
// scraped to text instead of answered.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type TextFetcher interface {
	FetchRenderedText(ctx context.Context, url string) (string, bool)
}

type Config struct {
	Addr     string
	Pipeline pipeline.PipelineConfig
	Logger   *zap.Logger
}

type WSServer struct {
	config    Config
	deriver   pipeline.TopicDeriver
	fetcher   pipeline.PageFetcher
	text      TextFetcher
	extractor pipeline.ContentExtractor
	logger    *zap.Logger
}

func NewWSServer(config Config, deriver pipeline.TopicDeriver, fetcher pipeline.PageFetcher, text TextFetcher, extractor pipeline.ContentExtractor) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSServer{
		config:    config,
		deriver:   deriver,
		fetcher:   fetcher,
		text:      text,
		extractor: extractor,
		logger:    logger,
	}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.config.Addr, Handler: s.Handler()}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", zap.String("addr", s.config.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	c := &conn{ws: ws}
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if msg.Type != "question" {
			s.sendMessage(c, Message{Type: "error", Content: fmt.Sprintf("unsupported message type %q", msg.Type)})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, strings.TrimSpace(msg.Content))
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, query string) {
	if urlPattern.MatchString(query) {
		s.sendMessage(c, Message{Type: "status", Content: fmt.Sprintf("Processing URL: %s", query)})
		text, ok := s.text.FetchRenderedText(ctx, query)
		if !ok {
			s.sendMessage(c, Message{Type: "error", Content: fmt.Sprintf("Failed to scrape URL: %s", query)})
			return
		}
		s.sendMessage(c, Message{Type: "text", Content: query, Data: text})
		s.sendMessage(c, Message{Type: "done", Content: query})
		return
	}

	pc := s.config.Pipeline
	pc.OnTopics = func(topics []string) {
		s.sendMessage(c, Message{Type: "topics", Content: query, Data: topics})
	}
	pc.OnProgress = func(topic string, found bool) {
		s.sendMessage(c, Message{Type: "progress", Content: topic, Data: map[string]bool{"found": found}})
	}
	p := pipeline.NewWithConfig(s.deriver, s.fetcher, s.extractor, pc)

	res, err := p.Run(ctx, query)
	if err != nil {
		s.sendMessage(c, Message{Type: "error", Content: err.Error()})
		return
	}
	for _, topic := range res.Found() {
		s.sendMessage(c, Message{Type: "evidence", Content: topic, Data: res.Evidence[topic]})
	}
	s.sendMessage(c, Message{Type: "done", Content: query})
}

func (s *WSServer) sendMessage(c *conn, msg Message) {
	if err := c.send(msg); err != nil {
		s.logger.Debug("error sending message", zap.String("type", msg.Type), zap.Error(err))
	}
}
