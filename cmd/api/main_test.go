package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/config"
)

func TestHealthAndCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		CORSAllowedOrigins: "http://localhost:3000",
		StoreBackend:       config.StoreMemory,
		DispatchMode:       config.DispatchPool,
		WorkerConcurrency:  1,
		WorkerQueueSize:    1,
		ExtractSteps:       1,
		ScoringMode:        "presence",
	}
	rt, err := setupJobs(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("setupJobs returned error: %v", err)
	}
	defer rt.Close(context.Background())

	router := newRouter(cfg, rt, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %#v", body)
	}
}
