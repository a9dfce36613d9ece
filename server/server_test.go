package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"truthlens-api/config"
	"truthlens-api/logging"
	"truthlens-api/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	return &config.Config{
		Server:   config.ServerConfig{Port: 0, APIPrefix: "/api"},
		Database: config.DatabaseConfig{Enabled: false},
		JWT:      config.JWTConfig{Secret: "server-secret", ExpiryHours: 1},
		Redis:    config.RedisConfig{Host: mr.Host(), Port: port},
		CORS:     config.CORSConfig{AllowedOrigins: "*"},
		LLM:      config.LLMConfig{Model: "gpt-4o-mini", TimeoutSeconds: 5},
		Search:   config.SearchConfig{Provider: "generated"},
		Analysis: config.AnalysisConfig{
			GuestRequestLimit:  2,
			GuestWindowHours:   24,
			TrustedDomains:     []string{"tengrinews.kz", "wikipedia.org"},
			URLFetchTimeoutSec: 5,
		},
		Feed: config.FeedConfig{PerFeed: 3, CacheSeconds: 300, RefreshSpec: "@every 1h"},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	mr := miniredis.RunT(t)
	app, err := New(testConfig(t, mr), logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func TestNewWithoutDatabase(t *testing.T) {
	app := newTestApp(t)
	if app.DB != nil || app.Users != nil {
		t.Fatal("database should be disabled")
	}

	router := app.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("login without database status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestNewAnalyzerFallsBackWithoutTavilyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr)
	cfg.Search.Provider = "tavily"

	a := NewAnalyzer(cfg, nil, logging.NewDiscardLogger(), nil)
	res, err := a.Evaluate(context.Background(), analysisText())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Sources) == 0 {
		t.Error("expected generated sources")
	}
	if res.Record.ID != "" {
		t.Errorf("evaluation should not persist, got id %q", res.Record.ID)
	}
}

func TestScheduler(t *testing.T) {
	app := newTestApp(t)

	c, err := app.newScheduler(context.Background())
	if err != nil {
		t.Fatalf("newScheduler: %v", err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}

	app.Config.Feed.RefreshSpec = ""
	if c, _ := app.newScheduler(context.Background()); len(c.Entries()) != 0 {
		t.Error("empty schedule should register no job")
	}

	app.Config.Feed.RefreshSpec = "every now and then"
	if _, err := app.newScheduler(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestSchedulerRecoversPanickingJob(t *testing.T) {
	app := newTestApp(t)
	hook := &recordingHook{}
	app.Logger.AddHook(hook)

	c, err := app.newScheduler(context.Background())
	if err != nil {
		t.Fatalf("newScheduler: %v", err)
	}
	id, err := c.AddFunc("@every 1h", func() { panic("feed exploded") })
	if err != nil {
		t.Fatalf("AddFunc: %v", err)
	}

	c.Entry(id).WrappedJob.Run()

	if hook.errors() == 0 {
		t.Error("expected the panic to be logged as an error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type recordingHook struct {
	mu      sync.Mutex
	entries []*logrus.Entry
}

func (h *recordingHook) Levels() []logrus.Level { return []logrus.Level{logrus.ErrorLevel} }

func (h *recordingHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *recordingHook) errors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func analysisText() services.AnalysisInput {
	return services.AnalysisInput{Text: "Researchers at the university published a peer-reviewed study on water quality."}
}
