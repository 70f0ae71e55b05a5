package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/routes"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test_secret_key_12345"

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubGenerator answers every reflection request with a fixed output.
type stubGenerator struct {
	mu    sync.Mutex
	calls []services.ReflectionInput
}

func (g *stubGenerator) Generate(_ context.Context, in services.ReflectionInput) services.ReflectionOutput {
	g.mu.Lock()
	g.calls = append(g.calls, in)
	g.mu.Unlock()
	return services.ReflectionOutput{
		PivotSentence:  "Sort first, then sweep.",
		Tips:           "- Look at the constraints",
		WhatToImprove:  "- Reach for the invariant sooner",
		MasterApproach: "Greedy after sorting.",
		FullReflection: "## Pivot\n\nSort first, then sweep.",
		ModelUsed:      "stub",
	}
}

type testEnv struct {
	db        *gorm.DB
	router    *gin.Engine
	clock     *clock
	generator *stubGenerator
}

// denseCatalog has one problem per (topic, difficulty) for difficulties
// 1..100 over eight topics.
func denseCatalog() *catalog.Catalog {
	topics := []string{
		"dp_general", "graph_traversal", "graph_shortest_path", "tree_general",
		"search_binary", "math_nt", "string_general", "tech_greedy",
	}
	var problems []catalog.Problem
	for _, topic := range topics {
		for d := 1; d <= 100; d++ {
			pattern := topic
			problems = append(problems, catalog.Problem{
				ID:         fmt.Sprintf("%s-%d", topic, d),
				Name:       fmt.Sprintf("%s #%d", topic, d),
				URL:        fmt.Sprintf("https://codeforces.com/%s/%d", topic, d),
				Source:     "codeforces",
				Difficulty: d,
				PatternID:  &pattern,
			})
		}
	}
	return catalog.New(problems)
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect("sqlite:file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migrations.Migrate(db))

	clk := &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	gen := &stubGenerator{}
	cat := denseCatalog()

	contests := services.NewContestService(db,
		catalog.NewSelector(cat, catalog.WithSeed(11)),
		services.NewRatingService(db),
		nil,
		services.WithClock(clk.Now),
	)
	users := services.NewUserService(db, nil, testSecret)
	reflections := services.NewReflectionService(db, gen)

	limits := routes.NoLimits()
	r := routes.NewRouter(routes.RouterOptions{
		JWTSecret:   testSecret,
		FrontendURL: "http://localhost:5173",
		Limits:      &limits,
	}, db, routes.Handlers{
		Users:       handlers.NewUserHandler(users),
		Contests:    handlers.NewContestHandler(contests),
		Reflections: handlers.NewReflectionHandler(reflections, contests),
		Catalog:     handlers.NewCatalogHandler(cat),
	}, handlers.NewHealthHandler(db, nil))

	return &testEnv{db: db, router: r, clock: clk, generator: gen}
}

func performRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// createTestUser signs up username and returns its id and token.
func createTestUser(t *testing.T, r http.Handler, username string) (string, string) {
	t.Helper()
	w := performRequest(r, http.MethodPost, "/api/users", map[string]any{"username": username}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
