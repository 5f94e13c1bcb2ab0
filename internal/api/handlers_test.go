package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/gocatalog/internal/api"
	"github.com/jonesrussell/gocatalog/internal/database"
	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

type fakeSourceLister struct {
	sources []domain.Source
	err     error
}

func (f *fakeSourceLister) List(context.Context) ([]domain.Source, error) {
	return f.sources, f.err
}

func (f *fakeSourceLister) GetByID(_ context.Context, id string) (*domain.Source, error) {
	for i := range f.sources {
		if f.sources[i].ID == id {
			return &f.sources[i], nil
		}
	}
	return nil, database.ErrSourceNotFound
}

type fakeReviewLister struct {
	items []domain.ReviewItem
	err   error
}

func (f *fakeReviewLister) List(_ context.Context, limit int) ([]domain.ReviewItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(sources api.SourceLister, reviews api.ReviewLister, health map[string]api.Pinger) http.Handler {
	return api.NewRouter(api.RouterDeps{
		Sources: sources,
		Reviews: reviews,
		Health:  health,
	}, logger.NewNop())
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth_AllComponentsUp(t *testing.T) {
	router := newTestRouter(&fakeSourceLister{}, &fakeReviewLister{}, map[string]api.Pinger{
		"database": fakePinger{},
		"redis":    fakePinger{},
	})

	rec := doRequest(t, router, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Components["database"] != "ok" {
		t.Errorf("database component = %q, want ok", body.Components["database"])
	}
}

func TestHealth_DegradedComponent(t *testing.T) {
	router := newTestRouter(&fakeSourceLister{}, &fakeReviewLister{}, map[string]api.Pinger{
		"database": fakePinger{},
		"redis":    fakePinger{err: errors.New("connection refused")},
	})

	rec := doRequest(t, router, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health status = %d, want 503", rec.Code)
	}

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Components["redis"] != "connection refused" {
		t.Errorf("redis component = %q", body.Components["redis"])
	}
}

func TestSources_List(t *testing.T) {
	lister := &fakeSourceLister{sources: []domain.Source{
		{ID: "src-1", Name: "Example", Platform: domain.PlatformShopify},
		{ID: "src-2", Name: "Other", Platform: domain.PlatformCustom},
	}}
	router := newTestRouter(lister, &fakeReviewLister{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sources")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/sources status = %d, want 200", rec.Code)
	}

	var body struct {
		Count   int             `json:"count"`
		Sources []domain.Source `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 2 || len(body.Sources) != 2 {
		t.Errorf("count = %d, sources = %d, want 2 and 2", body.Count, len(body.Sources))
	}
}

func TestSources_GetByID(t *testing.T) {
	lister := &fakeSourceLister{sources: []domain.Source{{ID: "src-1", Name: "Example"}}}
	router := newTestRouter(lister, &fakeReviewLister{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sources/src-1")
	if rec.Code != http.StatusOK {
		t.Errorf("GET existing source status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sources/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing source status = %d, want 404", rec.Code)
	}
}

func TestReviews_List(t *testing.T) {
	reviews := &fakeReviewLister{items: []domain.ReviewItem{
		{ID: "r-1", Reason: domain.ReviewReasonValidation, CreatedAt: time.Now().UTC()},
	}}
	router := newTestRouter(&fakeSourceLister{}, reviews, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/reviews")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/reviews status = %d, want 200", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestReviews_List_BadLimit(t *testing.T) {
	router := newTestRouter(&fakeSourceLister{}, &fakeReviewLister{}, nil)

	for _, limit := range []string{"abc", "-1", "0"} {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/reviews?limit="+limit)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%q status = %d, want 400", limit, rec.Code)
		}
	}
}
