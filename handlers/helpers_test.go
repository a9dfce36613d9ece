package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"truthlens-api/config"
	"truthlens-api/logging"
	"truthlens-api/models"
	"truthlens-api/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	deps   RouterDeps
	mr     *miniredis.Miniredis
	users  *fakeUsers
}

type envOption func(*RouterDeps)

// withUsers wires an in-memory user database.
func withUsers(users *fakeUsers) envOption {
	return func(d *RouterDeps) {
		d.Users = users
		d.Votes = users
		d.DB = users
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	kv := services.NewKVStoreFromClient(client)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, APIPrefix: "/api"},
		JWT:    config.JWTConfig{Secret: "handler-secret", ExpiryHours: 1},
		CORS:   config.CORSConfig{AllowedOrigins: "*"},
		LLM:    config.LLMConfig{Model: "gpt-4o-mini", TimeoutSeconds: 5},
		Search: config.SearchConfig{Provider: "generated"},
		Analysis: config.AnalysisConfig{
			GuestRequestLimit: 2,
			GuestWindowHours:  24,
			TrustedDomains:    []string{"tengrinews.kz", "wikipedia.org", "factcheck.org"},
		},
	}

	logger := logging.NewDiscardLogger()
	registry := prometheus.NewRegistry()
	metrics := services.NewMetrics(registry)
	model := services.NewLLMClient(cfg.LLM)
	store := services.NewPredictionStore(kv, logger)

	deps := RouterDeps{
		Config: cfg,
		Logger: logger,
		Analyzer: services.NewAnalyzer(services.AnalyzerDeps{
			Model:       model,
			Resolver:    services.NewContentResolver(nil, logger),
			Extractor:   services.NewClaimExtractor(model, logger, metrics),
			Searcher:    services.NewSourceSearcher(cfg.Analysis.TrustedDomains, 0, nil, logger, metrics),
			Synthesizer: services.NewVerdictSynthesizer(model, logger, metrics),
			Store:       store,
			Logger:      logger,
			Metrics:     metrics,
		}),
		Limiter:  services.NewGuestLimiter(kv, cfg.Analysis.GuestRequestLimit, 24*time.Hour, logger, metrics),
		Store:    store,
		KV:       kv,
		Auth:     services.NewAuthService(cfg.JWT),
		Feed:     services.NewNewsFeed(config.FeedConfig{PerFeed: 3, CacheSeconds: 300}, kv, logger),
		Gatherer: registry,
	}

	env := &testEnv{mr: mr}
	for _, opt := range opts {
		opt(&deps)
	}
	if u, ok := deps.Users.(*fakeUsers); ok {
		env.users = u
	}
	env.deps = deps
	env.router = NewRouter(deps)
	return env
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	token, err := e.deps.Auth.GenerateToken(userID, "reader@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func newGinContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

// fakeUsers is an in-memory user and vote repository.
type fakeUsers struct {
	mu      sync.Mutex
	nextID  uint
	byEmail map[string]models.User
	votes   map[string]map[uint]int
	pingErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]models.User{}, votes: map[string]map[uint]int{}}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, ok := f.byEmail[user.Email]; ok {
		return services.ErrUserExists
	}
	f.nextID++
	user.ID = f.nextID
	if user.Role == "" {
		user.Role = "user"
	}
	user.CreatedAt = time.Now().UTC()
	f.byEmail[user.Email] = *user
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUsers) SaveVote(_ context.Context, vote *models.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votes[vote.PredictionID] == nil {
		f.votes[vote.PredictionID] = map[uint]int{}
	}
	f.votes[vote.PredictionID][vote.UserID] = vote.Value
	return nil
}

func (f *fakeUsers) Tally(_ context.Context, predictionID string) (services.VoteTally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t services.VoteTally
	for _, v := range f.votes[predictionID] {
		if v > 0 {
			t.Up++
		} else {
			t.Down++
		}
	}
	return t, nil
}

func (f *fakeUsers) Ping(context.Context) error {
	return f.pingErr
}

// seedPrediction stores a record directly and returns its id.
func seedPrediction(t *testing.T, e *testEnv, text string, userID uint) string {
	t.Helper()
	id, err := e.deps.Store.Save(context.Background(), &models.PredictionRecord{
		Text:            text,
		Label:           models.LabelUncertain,
		Confidence:      0.5,
		Explanation:     "seeded",
		ReasoningPoints: []string{},
		Sources:         []string{"https://example.com/a"},
		Language:        "en",
		Claims:          []string{},
		UserID:          userID,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}
