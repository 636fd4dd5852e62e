package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/dealboard/internal/activity"
	"github.com/V4T54L/dealboard/internal/adapter/api/handler"
	"github.com/V4T54L/dealboard/internal/adapter/metrics"
	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/domain/mocks"
	"github.com/V4T54L/dealboard/internal/pipeline"
	"github.com/V4T54L/dealboard/internal/pkg/config"
	"github.com/V4T54L/dealboard/internal/seed"
	"github.com/V4T54L/dealboard/internal/usecase"
)

type testEnv struct {
	router   http.Handler
	store    *pipeline.Store
	broker   *handler.SSEBroker
	notifier *mocks.MockNotifier
	metrics  *metrics.PipelineMetrics
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg == nil {
		cfg = &config.Config{RateLimitRPS: 1000, RateLimitBurst: 1000, CORSAllowedOrigins: []string{"*"}}
	}

	reg := domain.DefaultRegistry()
	store := pipeline.NewStore(reg, pipeline.WithLogger(logger))
	m := metrics.NewPipelineMetrics(prometheus.NewRegistry(), reg)
	feed := activity.NewFeed(reg, 20, logger)
	redactor := pii.NewRedactor([]string{"email", "phone"}, logger)
	broker := handler.NewSSEBroker(redactor, 8, m.SSEClients, logger)
	store.Subscribe(m.Observe)
	store.Subscribe(feed.Observe)
	store.Subscribe(broker.Observe)

	deals, err := seed.Default()
	if err != nil {
		t.Fatalf("seed.Default() error = %v", err)
	}
	if err := store.Import(deals...); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	notifier := &mocks.MockNotifier{}
	uc := usecase.NewPipelineUseCase(store, notifier, m, logger)

	return &testEnv{
		router:   NewRouter(cfg, logger, store, uc, feed, broker, redactor, m),
		store:    store,
		broker:   broker,
		notifier: notifier,
		metrics:  m,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) dealByTitle(t *testing.T, title string) domain.Deal {
	t.Helper()
	for _, d := range e.store.List() {
		if d.Title == title {
			return d
		}
	}
	t.Fatalf("no deal titled %q", title)
	return domain.Deal{}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
}

func TestRouter_HealthAndStages(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := env.do(http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("GET /health status = %d", rr.Code)
	}

	rr := env.do(http.MethodGet, "/stages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /stages status = %d", rr.Code)
	}
	var stages []domain.Stage
	decode(t, rr, &stages)
	if len(stages) != 4 || stages[0].ID != domain.StageQualified || stages[3].DisplayName != "Closed Won" {
		t.Errorf("unexpected stages: %+v", stages)
	}
}

func TestRouter_ListDeals(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
	}{
		{name: "All", path: "/deals", wantStatus: http.StatusOK, wantCount: 4},
		{name: "Search", path: "/deals?search=acme", wantStatus: http.StatusOK, wantCount: 1},
		{name: "Stage", path: "/deals?stage=proposal", wantStatus: http.StatusOK, wantCount: 2},
		{name: "Value range", path: "/deals?min=50000&max=100000", wantStatus: http.StatusOK, wantCount: 2},
		{name: "Sorted", path: "/deals?sort=value&desc=true", wantStatus: http.StatusOK, wantCount: 4},
		{name: "Bad priority", path: "/deals?priority=urgent", wantStatus: http.StatusBadRequest},
		{name: "Bad range", path: "/deals?min=10&max=5", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status got = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("content type got = %q", ct)
				}
				return
			}
			var resp handler.DealListResponse
			decode(t, rr, &resp)
			if len(resp.Deals) != tt.wantCount || resp.Summary.Count != tt.wantCount {
				t.Errorf("count got = %d/%d, want %d", len(resp.Deals), resp.Summary.Count, tt.wantCount)
			}
		})
	}

	t.Run("Sorted order", func(t *testing.T) {
		var resp handler.DealListResponse
		decode(t, env.do(http.MethodGet, "/deals?sort=value&desc=true", ""), &resp)
		if resp.Deals[0].Title != "Enterprise Integration Project" {
			t.Errorf("first deal got = %q", resp.Deals[0].Title)
		}
	})
}

func TestRouter_CreateDeal(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("Created", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/deals", `{"title":"Data Platform","company":"Initech","value":30000,"probability":40}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status got = %d: %s", rr.Code, rr.Body.String())
		}
		var deal domain.Deal
		decode(t, rr, &deal)
		if deal.ID == "" || deal.Stage != domain.StageQualified || deal.Priority != domain.PriorityMedium {
			t.Errorf("unexpected deal: %+v", deal)
		}
		if loc := rr.Header().Get("Location"); loc != "/deals/"+deal.ID {
			t.Errorf("Location got = %q", loc)
		}
		if env.store.Len() != 5 {
			t.Errorf("store size got = %d, want 5", env.store.Len())
		}
		if sent := env.notifier.Sent(); len(sent) != 1 || sent[0].Title != "Deal Created" {
			t.Errorf("unexpected toasts: %+v", sent)
		}
	})

	t.Run("Validation failed", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/deals", `{"title":"","value":-5,"probability":101}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status got = %d", rr.Code)
		}
		var problem handler.Problem
		decode(t, rr, &problem)
		for _, field := range []string{"title", "value", "probability"} {
			if len(problem.Errors[field]) == 0 {
				t.Errorf("expected error for field %q, got %v", field, problem.Errors)
			}
		}
		if env.store.Len() != 5 {
			t.Errorf("store changed on invalid create: %d", env.store.Len())
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		if rr := env.do(http.MethodPost, "/deals", `{"title":`); rr.Code != http.StatusBadRequest {
			t.Errorf("status got = %d", rr.Code)
		}
		if rr := env.do(http.MethodPost, "/deals", `{"budget":1}`); rr.Code != http.StatusBadRequest {
			t.Errorf("unknown field status got = %d", rr.Code)
		}
	})
}

func TestRouter_GetUpdateDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := env.dealByTitle(t, "Consulting Services Package")

	if rr := env.do(http.MethodGet, "/deals/"+deal.ID, ""); rr.Code != http.StatusOK {
		t.Errorf("GET status = %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/deals/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET missing status = %d", rr.Code)
	}

	rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{"probability":65,"notes":"ROI deck sent"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d: %s", rr.Code, rr.Body.String())
	}
	var updated domain.Deal
	decode(t, rr, &updated)
	if updated.Probability != 65 || updated.Notes != "ROI deck sent" || updated.Title != deal.Title {
		t.Errorf("unexpected update: %+v", updated)
	}

	if rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{"probability":150}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid PATCH status = %d", rr.Code)
	}
	if rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty PATCH status = %d", rr.Code)
	}
	if rr := env.do(http.MethodPatch, "/deals/missing", `{"notes":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("PATCH missing status = %d", rr.Code)
	}

	if rr := env.do(http.MethodDelete, "/deals/"+deal.ID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/deals/"+deal.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d", rr.Code)
	}
	if env.store.Len() != 3 {
		t.Errorf("store size got = %d, want 3", env.store.Len())
	}
}

func TestRouter_UpdateWithServedValue(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := env.dealByTitle(t, "Consulting Services Package")

	rr := env.do(http.MethodGet, "/deals/"+deal.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rr.Code)
	}
	var served map[string]json.RawMessage
	decode(t, rr, &served)
	if len(served["value"]) == 0 || served["value"][0] != '"' {
		t.Fatalf("served value got = %s, want a decimal string", served["value"])
	}

	rr = env.do(http.MethodPatch, "/deals/"+deal.ID, `{"value":`+string(served["value"])+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH with served value status = %d: %s", rr.Code, rr.Body.String())
	}
	got, _ := env.store.Get(deal.ID)
	if !got.Value.Equal(deal.Value) {
		t.Errorf("value got = %s, want %s", got.Value, deal.Value)
	}

	if rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{"value":"1234.5"}`); rr.Code != http.StatusOK {
		t.Fatalf("PATCH string value status = %d: %s", rr.Code, rr.Body.String())
	}
	if got, _ := env.store.Get(deal.ID); got.Value.String() != "1234.5" {
		t.Errorf("value got = %s, want 1234.5", got.Value)
	}

	if rr := env.do(http.MethodPost, "/deals", `{"title":"Quoted","value":"250.75"}`); rr.Code != http.StatusCreated {
		t.Errorf("POST string value status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{"value":"lots"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("PATCH non-numeric value status = %d", rr.Code)
	}
}

func TestRouter_RedactsContactDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := env.dealByTitle(t, "Q4 Software License Renewal")
	if deal.Email == "" || deal.Phone == "" {
		t.Fatalf("seed deal has no contact details: %+v", deal)
	}

	checkDeal := func(where string, d domain.Deal) {
		t.Helper()
		if d.Email != "" && d.Email != pii.RedactedPlaceholder {
			t.Errorf("%s: email got = %q", where, d.Email)
		}
		if d.Phone != "" && d.Phone != pii.RedactedPlaceholder {
			t.Errorf("%s: phone got = %q", where, d.Phone)
		}
	}

	var got domain.Deal
	decode(t, env.do(http.MethodGet, "/deals/"+deal.ID, ""), &got)
	if got.Email != pii.RedactedPlaceholder || got.Phone != pii.RedactedPlaceholder {
		t.Errorf("GET /deals/{id} got email %q phone %q", got.Email, got.Phone)
	}
	if got.Contact != deal.Contact {
		t.Errorf("contact got = %q, want %q", got.Contact, deal.Contact)
	}

	var list handler.DealListResponse
	decode(t, env.do(http.MethodGet, "/deals", ""), &list)
	for _, d := range list.Deals {
		checkDeal("GET /deals", d)
	}

	var board handler.BoardResponse
	decode(t, env.do(http.MethodGet, "/pipeline", ""), &board)
	for _, col := range board.Columns {
		for _, d := range col.Deals {
			checkDeal("GET /pipeline", d)
		}
	}

	rr := env.do(http.MethodPost, "/deals", `{"title":"Private","value":1,"email":"p@q.r"}`)
	decode(t, rr, &got)
	checkDeal("POST /deals", got)

	// echoing the served deal back leaves the stored contact alone
	rr = env.do(http.MethodPatch, "/deals/"+deal.ID, `{"email":"[REDACTED]","notes":"called"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d: %s", rr.Code, rr.Body.String())
	}
	stored, _ := env.store.Get(deal.ID)
	if stored.Email != deal.Email || stored.Notes != "called" {
		t.Errorf("stored deal got email %q notes %q", stored.Email, stored.Notes)
	}
	if rr := env.do(http.MethodPatch, "/deals/"+deal.ID, `{"email":"[REDACTED]"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("placeholder-only PATCH status = %d", rr.Code)
	}
}

func TestRouter_MoveAndDrop(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := env.dealByTitle(t, "Q4 Software License Renewal")

	rr := env.do(http.MethodPost, "/deals/"+deal.ID+"/move", `{"stage":"closedWon"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rr.Code, rr.Body.String())
	}
	if got, _ := env.store.Get(deal.ID); got.Stage != domain.StageClosedWon {
		t.Errorf("stage got = %s", got.Stage)
	}
	if rr := env.do(http.MethodPost, "/deals/"+deal.ID+"/move", `{"stage":"lost"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid stage status = %d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/deals/missing/move", `{"stage":"proposal"}`); rr.Code != http.StatusNotFound {
		t.Errorf("missing deal status = %d", rr.Code)
	}

	body := `{"deal_id":"` + deal.ID + `","source":"closedWon","destination":"closedWon"}`
	rr = env.do(http.MethodPost, "/pipeline/drop", body)
	var drop handler.DropResponse
	decode(t, rr, &drop)
	if rr.Code != http.StatusOK || drop.Moved {
		t.Errorf("same-column drop got status %d moved %v", rr.Code, drop.Moved)
	}

	body = `{"deal_id":"` + deal.ID + `","source":"closedWon","destination":"proposal"}`
	rr = env.do(http.MethodPost, "/pipeline/drop", body)
	decode(t, rr, &drop)
	if !drop.Moved || drop.Deal.Stage != domain.StageProposal {
		t.Errorf("unexpected drop result: %+v", drop)
	}

	if rr := env.do(http.MethodPost, "/pipeline/drop", `{"source":"proposal"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("incomplete drop status = %d", rr.Code)
	}
}

func TestRouter_BoardAndActivity(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodGet, "/pipeline", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("board status = %d", rr.Code)
	}
	var board handler.BoardResponse
	decode(t, rr, &board)
	if len(board.Columns) != 4 {
		t.Fatalf("columns got = %d, want 4", len(board.Columns))
	}
	proposal := board.Columns[1]
	if proposal.Stage.ID != domain.StageProposal || proposal.Totals.Count != 2 || proposal.Totals.TotalValue.IntPart() != 215000 {
		t.Errorf("unexpected proposal column: %+v", proposal.Totals)
	}
	if board.Columns[3].Deals == nil {
		t.Error("empty column must encode as an empty list")
	}

	env.do(http.MethodPost, "/deals", `{"title":"A","value":1}`)
	env.do(http.MethodPost, "/deals", `{"title":"B","value":2}`)

	rr = env.do(http.MethodGet, "/activity?limit=1", "")
	var entries []activity.Entry
	decode(t, rr, &entries)
	if len(entries) != 1 || entries[0].Title != "Added new deal: B" {
		t.Errorf("unexpected activity: %+v", entries)
	}
	if rr := env.do(http.MethodGet, "/activity?limit=zero", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	env := newTestEnv(t, &config.Config{RateLimitRPS: 0.001, RateLimitBurst: 1, CORSAllowedOrigins: []string{"*"}})

	if rr := env.do(http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/health", ""); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d", rr.Code)
	}
}

func TestRouter_Events(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	defer env.broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type got = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() pipeline.Snapshot {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read error = %v", err)
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var snap pipeline.Snapshot
				if err := json.Unmarshal([]byte(data), &snap); err != nil {
					t.Fatalf("bad event %q: %v", data, err)
				}
				return snap
			}
		}
	}

	initial := next()
	if len(initial.Deals) != 4 || initial.Change.Op != pipeline.OpImported {
		t.Fatalf("unexpected initial snapshot: version %d op %s", initial.Version, initial.Change.Op)
	}
	for _, d := range initial.Deals {
		if d.Email != pii.RedactedPlaceholder || d.Phone != pii.RedactedPlaceholder {
			t.Errorf("contact details leaked for %s", d.Title)
		}
	}

	// wait for the stream to be registered before mutating
	for env.broker.Clients() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if rr := env.do(http.MethodPost, "/deals", `{"title":"Streamed","value":5,"email":"x@y.z"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	created := next()
	if created.Change.Op != pipeline.OpCreated || created.Change.Deal.Title != "Streamed" {
		t.Errorf("unexpected change: %+v", created.Change)
	}
	if created.Change.Deal.Email != pii.RedactedPlaceholder {
		t.Errorf("change email got = %q", created.Change.Deal.Email)
	}
	if got, _ := env.store.Get(created.Change.DealID); got.Email != "x@y.z" {
		t.Errorf("store copy was redacted: %q", got.Email)
	}
}

func TestAdminRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg, domain.DefaultRegistry())
	m.RecordMutation("create", "ok")

	rr := httptest.NewRecorder()
	NewAdminRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status got = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `dealboard_pipeline_mutations_total{op="create",status="ok"} 1`) {
		t.Errorf("metrics output missing mutation counter:\n%s", rr.Body.String())
	}
}
