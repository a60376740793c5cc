package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/service"
)

func date(s string) models.Date {
	t, _ := time.Parse("2006-01-02", s)
	return models.Date{Time: t, Valid: true}
}

type fixture struct {
	router        *gin.Engine
	clock         *quartz.Mock
	tickets       Dataset
	participation Dataset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := db.New(db.Options{Logger: zerolog.Nop()})
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tickets := []models.Ticket{
		{ReferenceID: "R1", Status: "Open", State: "Johor", MaintenanceType: "Network", RegisteredAt: date("2024-01-05"), RegisteredMonth: "2024-01"},
		{ReferenceID: "R2", Status: "Open", State: "Perak", MaintenanceType: "Power", RegisteredAt: date("2024-02-10"), RegisteredMonth: "2024-02"},
		{ReferenceID: "R3", Status: "Closed", State: "Johor", MaintenanceType: "Network", RegisteredAt: date("2024-03-15"), RegisteredMonth: "2024-03"},
	}
	if _, err := store.Load(ctx, db.TicketsTable.Name, db.TicketRows(tickets), db.LoadOptions{}); err != nil {
		t.Fatalf("load tickets: %v", err)
	}
	rows := []models.Participation{
		{ParticipantID: "P1", EventID: "E1", StateName: "Johor", NadiName: "Kampung A", Latitude: 1.5, Longitude: 103.7, EventYear: 2024},
		{ParticipantID: "P2", EventID: "E1", StateName: "Johor", NadiName: "Kampung A", Latitude: 1.5, Longitude: 103.7, EventYear: 2024},
		{ParticipantID: "P3", EventID: "E2", StateName: "Perak", NadiName: "Kampung B", Latitude: 4.6, Longitude: 101.1, EventYear: 2023},
	}
	if _, err := store.Load(ctx, db.ParticipationTable.Name, db.ParticipationRows(rows), db.LoadOptions{}); err != nil {
		t.Fatalf("load participation: %v", err)
	}

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC))
	engine := analytics.New(store, zerolog.Nop())
	opts := service.SessionOptions{Clock: clock, Logger: zerolog.Nop(), Location: time.UTC}
	ts := service.NewTicketSession(store, engine, opts)
	ps := service.NewParticipationSession(store, engine, opts)
	t.Cleanup(ts.Close)
	t.Cleanup(ps.Close)

	h := &Handler{
		Store:     store,
		Engine:    engine,
		Loader:    &service.Loader{Store: store, Logger: zerolog.Nop()},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
		Location:  time.UTC,
		Clock:     clock,
	}
	f := &fixture{
		router:        gin.New(),
		clock:         clock,
		tickets:       TicketDataset(store, ts, time.UTC),
		participation: ParticipationDataset(store, ps, time.UTC),
	}
	r := f.router
	r.GET("/healthz", h.Healthz)
	r.GET("/api/status", h.Status)
	for _, ds := range []Dataset{f.tickets, f.participation} {
		g := r.Group("/api/" + ds.Name)
		g.GET("", h.Records(ds))
		g.GET("/options", h.Options(ds))
		g.GET("/distribution/:dimension", h.Distribution(ds))
		g.GET("/timeseries", h.TimeSeries(ds))
		g.GET("/crosstab", h.Crosstab(ds))
		g.GET("/export", h.Export(ds))
		g.GET("/session", h.SessionGet(ds))
		g.POST("/session/toggle", h.SessionToggle(ds))
		g.POST("/session/dates", h.SessionDates(ds))
		g.POST("/session/quick-range", h.SessionQuickRange(ds))
		g.POST("/session/apply", h.SessionApply(ds))
		g.POST("/session/refresh", h.SessionRefresh(ds))
	}
	r.GET("/api/tickets/summary", h.TicketSummary(f.tickets))
	r.GET("/api/participation/kpis", h.KPIs(f.participation))
	r.GET("/api/participation/geo", h.Geo(f.participation))
	r.GET("/api/participation/states", h.States(f.participation))
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &env)
	return env.Error.Code
}

func sessionView(t *testing.T, w *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	decode(t, w, &resp)
	return resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHealthzUninitialized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{Store: db.New(db.Options{Logger: zerolog.Nop()}), Logger: zerolog.Nop()}
	r := gin.New()
	r.GET("/healthz", h.Healthz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "STORE_UNAVAILABLE" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestRecordsFiltered(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets?status=Open&limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Items    []models.Ticket `json:"items"`
		Total    int             `json:"total"`
		Filtered int             `json:"filtered"`
		Limit    int             `json:"limit"`
		Query    string          `json:"query"`
	}
	decode(t, w, &resp)
	if resp.Total != 3 || resp.Filtered != 2 || len(resp.Items) != 1 || resp.Limit != 1 {
		t.Fatalf("unexpected page %+v", resp)
	}
	if resp.Items[0].ReferenceID != "R2" {
		t.Fatalf("expected newest ticket first, got %s", resp.Items[0].ReferenceID)
	}
	if resp.Query != "status=Open" {
		t.Fatalf("unexpected query %q", resp.Query)
	}
}

func TestRecordsValidation(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/api/tickets?limit=-5", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/api/tickets?period=fortnight", "")
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_FILTER" {
		t.Fatalf("expected INVALID_FILTER, got %d %s", w.Code, w.Body.String())
	}
}

func TestRecordsQuickPeriod(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets?period=current-month", "")
	var resp struct {
		Filtered int    `json:"filtered"`
		Query    string `json:"query"`
	}
	decode(t, w, &resp)
	if resp.Filtered != 1 {
		t.Fatalf("expected only the March ticket, got %d", resp.Filtered)
	}
	if resp.Query != "end=2024-03-31&start=2024-03-01" {
		t.Fatalf("unexpected query %q", resp.Query)
	}
}

func TestDistribution(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets/distribution/state?type=Network", "")
	var resp struct {
		Items []models.Count `json:"items"`
	}
	decode(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Value != "Johor" || resp.Items[0].Count != 2 {
		t.Fatalf("unexpected distribution %+v", resp.Items)
	}

	if w := f.do(t, http.MethodGet, "/api/tickets/distribution/colour", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown dimension, got %d", w.Code)
	}
}

func TestTimeSeries(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets/timeseries?months=2", "")
	var resp struct {
		Items []models.SeriesPoint `json:"items"`
	}
	decode(t, w, &resp)
	if len(resp.Items) != 2 || resp.Items[0].Period != "2024-02" || resp.Items[1].Period != "2024-03" {
		t.Fatalf("unexpected series %+v", resp.Items)
	}
}

func TestCrosstabJSONAndCSV(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets/crosstab?rows=state&cols=status", "")
	var x models.Crosstab
	decode(t, w, &x)
	if x.Total != 3 || len(x.Rows) != 2 || x.Rows[0] != "Johor" {
		t.Fatalf("unexpected crosstab %+v", x)
	}

	w = f.do(t, http.MethodGet, "/api/tickets/crosstab?rows=state&cols=status&format=csv", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "tickets-crosstab-2024-03-20.csv") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}

	if w := f.do(t, http.MethodGet, "/api/tickets/crosstab?rows=state&cols=state", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("identical dimensions should be rejected, got %d", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets/export?format=csv&state=Johor", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 || records[0][0] != "REFID MCMC" {
		t.Fatalf("unexpected export %v", records)
	}

	if w := f.do(t, http.MethodGet, "/api/tickets/export?format=pdf", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format should be rejected, got %d", w.Code)
	}
}

func TestParticipationEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/participation/kpis?state=All", "")
	var kpis models.ParticipationKPIs
	decode(t, w, &kpis)
	if kpis.TotalParticipants != 3 || kpis.TotalEvents != 2 {
		t.Fatalf("unexpected kpis %+v", kpis)
	}

	w = f.do(t, http.MethodGet, "/api/participation/kpis?year=2024", "")
	decode(t, w, &kpis)
	if kpis.TotalParticipants != 2 {
		t.Fatalf("year filter not applied: %+v", kpis)
	}

	w = f.do(t, http.MethodGet, "/api/participation/geo", "")
	var geo struct {
		Items []models.GeoPoint `json:"items"`
	}
	decode(t, w, &geo)
	if len(geo.Items) != 2 || geo.Items[0].Participants != 2 {
		t.Fatalf("unexpected points %+v", geo.Items)
	}
	w = f.do(t, http.MethodGet, "/api/participation/geo?radius_km=1000", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("radius above limit should be rejected, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/participation/states", "")
	var states struct {
		Items []models.StateMetrics `json:"items"`
	}
	decode(t, w, &states)
	if len(states.Items) != 2 {
		t.Fatalf("unexpected states %+v", states.Items)
	}

	w = f.do(t, http.MethodGet, "/api/participation/options", "")
	var opts struct {
		Options    map[string][]string `json:"options"`
		Convention string              `json:"convention"`
	}
	decode(t, w, &opts)
	if len(opts.Options["year"]) != 2 || opts.Convention == "" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w := f.do(t, http.MethodPost, "/api/tickets/session/toggle", `{"dimension":"status","value":"Open"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	resp := sessionView(t, w)
	if resp.Query != "status=Open" || !resp.Snapshot.Pending || resp.ActiveFilters != 1 {
		t.Fatalf("unexpected toggle response %+v", resp)
	}

	f.clock.Advance(service.DefaultDebounce).MustWait(ctx)
	resp = sessionView(t, f.do(t, http.MethodGet, "/api/tickets/session", ""))
	if resp.Snapshot.Pending || resp.Snapshot.Filtered != 2 || resp.Snapshot.Total != 3 {
		t.Fatalf("unexpected snapshot %+v", resp.Snapshot)
	}

	w = f.do(t, http.MethodPost, "/api/tickets/session/toggle", `{"dimension":"colour","value":"red"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown dimension should be rejected, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/api/tickets/session/toggle", `{"dimension":"status"}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "VALIDATION_ERROR" {
		t.Fatalf("missing value should fail validation, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/tickets/session/dates", `{"start":"2024-03-01","end":"2024-02-01"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range should be rejected, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/api/tickets/session/quick-range", `{"period":"previous-month"}`)
	resp = sessionView(t, w)
	if resp.Start != "2024-02-01" || resp.End != "2024-02-29" {
		t.Fatalf("unexpected range %s..%s", resp.Start, resp.End)
	}

	resp = sessionView(t, f.do(t, http.MethodPost, "/api/tickets/session/refresh", ""))
	if resp.Snapshot.Pending || resp.Snapshot.Filtered != 1 {
		t.Fatalf("unexpected refreshed snapshot %+v", resp.Snapshot)
	}

	resp = sessionView(t, f.do(t, http.MethodPost, "/api/tickets/session/apply?state=Perak", ""))
	if resp.Query != "state=Perak" || len(resp.Filters["status"]) != 0 {
		t.Fatalf("apply should replace the state, got %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	var resp struct {
		Datasets []service.Status `json:"datasets"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/status", ""), &resp)
	if len(resp.Datasets) != 2 || resp.Datasets[0].Dataset != service.DatasetTickets {
		t.Fatalf("unexpected status %+v", resp.Datasets)
	}
}
