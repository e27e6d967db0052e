package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/buildinfo"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
)

type envelope struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Code     string          `json:"code"`
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	logger := log.New(os.Stderr)
	logger.SetLevel(log.ErrorLevel)
	b, err := backend.Open(context.Background(), backend.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(New(b, logger, opts).Handler())
	t.Cleanup(func() {
		ts.Close()
		b.Close()
	})
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestPartsAPI(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"create", "POST", "/api/v1/parts", `{"part_number":"BIKE","name":"Bike","attributes":{"color":"red"}}`, 201, ""},
		{"create duplicate", "POST", "/api/v1/parts", `{"part_number":"BIKE","name":"Bike"}`, 409, "CONFLICT"},
		{"create invalid", "POST", "/api/v1/parts", `{"part_number":"","name":"x"}`, 400, "VALIDATION_ERROR"},
		{"bad json", "POST", "/api/v1/parts", `{"part_number":`, 400, "INVALID_FORMAT"},
		{"unknown field", "POST", "/api/v1/parts", `{"part_no":"X"}`, 400, "INVALID_FORMAT"},
		{"get", "GET", "/api/v1/parts/BIKE", "", 200, ""},
		{"get missing", "GET", "/api/v1/parts/NOPE", "", 404, "NOT_FOUND"},
		{"upsert", "PUT", "/api/v1/parts/WHEEL", `{"name":"Wheel","attributes":{"unit_weight":1.5}}`, 200, ""},
		{"upsert mismatch", "PUT", "/api/v1/parts/WHEEL", `{"part_number":"X","name":"Wheel"}`, 400, "VALIDATION_ERROR"},
		{"attributes", "PATCH", "/api/v1/parts/BIKE/attributes", `{"attributes":{"unit_weight":9}}`, 200, ""},
		{"list", "GET", "/api/v1/parts?q=whe", "", 200, ""},
		{"delete bad flag", "DELETE", "/api/v1/parts/BIKE?allow_if_referenced=maybe", "", 400, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, ts, tt.method, tt.path, tt.body)
			if status != tt.wantStatus || env.Code != tt.wantCode {
				t.Errorf("status=%d code=%q errors=%v, want %d %q", status, env.Code, env.Errors, tt.wantStatus, tt.wantCode)
			}
			if env.OK != (tt.wantCode == "") {
				t.Errorf("ok = %v", env.OK)
			}
		})
	}

	_, env := do(t, ts, "GET", "/api/v1/parts?q=whe", "")
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Count != 1 {
		t.Errorf("list data = %s", env.Data)
	}
}

func TestGraphAPI(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, p := range []string{"A", "B", "C"} {
		do(t, ts, "PUT", "/api/v1/parts/"+p, `{"name":"`+p+`"}`)
	}
	do(t, ts, "PUT", "/api/v1/parts/C", `{"name":"C","attributes":{"unit_weight":2}}`)
	do(t, ts, "PUT", "/api/v1/relationships", `{"parent_part_number":"A","child_part_number":"B","qty":2}`)
	do(t, ts, "PUT", "/api/v1/relationships", `{"parent_part_number":"B","child_part_number":"C","qty":3}`)

	status, env := do(t, ts, "PUT", "/api/v1/relationships", `{"parent_part_number":"C","child_part_number":"A","qty":1}`)
	if status != http.StatusUnprocessableEntity || env.Code != "CYCLE_ERROR" || env.Errors[0] != "Cycle detected: C -> A -> B -> C" {
		t.Errorf("cycle: %d %+v", status, env)
	}
	status, env = do(t, ts, "PUT", "/api/v1/relationships", `{"parent_part_number":"A","child_part_number":"GHOST","qty":1}`)
	if status != http.StatusUnprocessableEntity || env.Code != "DANGLING_REFERENCE" {
		t.Errorf("dangling: %d %+v", status, env)
	}

	_, env = do(t, ts, "GET", "/api/v1/parts/A/children", "")
	if !strings.Contains(string(env.Data), `"child_part_number":"B"`) {
		t.Errorf("children = %s", env.Data)
	}

	_, env = do(t, ts, "POST", "/api/v1/rollups/weight", `{"root_part_number":"A","top_n":1}`)
	var weight struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &weight); err != nil || weight.Total != 12 {
		t.Errorf("weight = %s", env.Data)
	}
	_, env = do(t, ts, "POST", "/api/v1/rollups/numeric", `{"root_part_number":"A","attribute_key":"unit_weight"}`)
	if !strings.Contains(string(env.Data), `"total":12`) {
		t.Errorf("numeric = %s", env.Data)
	}
	status, _ = do(t, ts, "POST", "/api/v1/rollups/numeric", `{"root_part_number":"ZZZ","attribute_key":"unit_weight"}`)
	if status != http.StatusNotFound {
		t.Errorf("unknown root status = %d", status)
	}
}

func TestNumericRollupIncludeRoot(t *testing.T) {
	ts := newTestServer(t, Options{})
	do(t, ts, "PUT", "/api/v1/parts/A", `{"name":"A","attributes":{"weight_kg":10}}`)
	do(t, ts, "PUT", "/api/v1/parts/B", `{"name":"B","attributes":{"weight_kg":2}}`)
	do(t, ts, "PUT", "/api/v1/relationships", `{"parent_part_number":"A","child_part_number":"B","qty":2}`)

	tests := []struct {
		name string
		body string
		want float64
	}{
		{"omitted", `{"root_part_number":"A","attribute_key":"weight_kg"}`, 14},
		{"true", `{"root_part_number":"A","attribute_key":"weight_kg","include_root":true}`, 14},
		{"false", `{"root_part_number":"A","attribute_key":"weight_kg","include_root":false}`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, ts, "POST", "/api/v1/rollups/numeric", tt.body)
			var res struct {
				Total float64 `json:"total"`
			}
			if err := json.Unmarshal(env.Data, &res); err != nil {
				t.Fatal(err)
			}
			if status != http.StatusOK || res.Total != tt.want {
				t.Errorf("status=%d total=%v, want %v", status, res.Total, tt.want)
			}
		})
	}
}

func TestSnapshotAPI(t *testing.T) {
	ts := newTestServer(t, Options{})
	do(t, ts, "PUT", "/api/v1/parts/BIKE", `{"name":"Bike"}`)

	status, env := do(t, ts, "POST", "/api/v1/snapshots", `{"root_part_number":"BIKE","label":"v1"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %+v", status, env)
	}
	var created struct {
		Snapshot struct {
			ID string `json:"snapshot_id"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if status, _ := do(t, ts, "POST", "/api/v1/snapshots", `{"root_part_number":"BIKE"}`); status != http.StatusOK {
		t.Errorf("dedup status = %d", status)
	}
	if status, _ := do(t, ts, "GET", "/api/v1/snapshots/"+created.Snapshot.ID, ""); status != http.StatusOK {
		t.Errorf("get status = %d", status)
	}

	_, env = do(t, ts, "GET", "/api/v1/diff?a="+created.Snapshot.ID+"&b="+created.Snapshot.ID, "")
	if !strings.Contains(string(env.Data), `"signatures_equal":true`) {
		t.Errorf("diff = %s", env.Data)
	}
	status, env = do(t, ts, "GET", "/api/v1/diff?a=snap_20990101_000000_00000000&b=snap_20990101_000000_11111111", "")
	if status != http.StatusNotFound || len(env.Errors) != 2 {
		t.Errorf("missing diff: %d %+v", status, env)
	}

	status, env = do(t, ts, "GET", "/api/v1/snapshots/bad", "")
	if status != http.StatusNotFound || env.Code != "NOT_FOUND" || env.Errors[0] != "Snapshot 'bad' not found" {
		t.Errorf("malformed id: %d %+v", status, env)
	}
	status, env = do(t, ts, "GET", "/api/v1/diff?a="+created.Snapshot.ID+"&b=bad", "")
	if status != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Errorf("diff with malformed id: %d %+v", status, env)
	}
}

type recordingHTTPHooks struct {
	mu     sync.Mutex
	routes []string
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestRequestHookAndMetrics(t *testing.T) {
	t.Cleanup(observability.Reset)
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true,"data":{},"errors":[],"warnings":[]}`)
	})
	ts := newTestServer(t, Options{Metrics: metrics})

	if status, _ := do(t, ts, "GET", "/metrics", ""); status != http.StatusOK {
		t.Errorf("metrics status = %d", status)
	}
	do(t, ts, "GET", "/api/v1/parts/NOPE", "")

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.routes) != 2 || !strings.Contains(hooks.routes[1], "{partNumber}") {
		t.Errorf("routes = %v", hooks.routes)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeValidation, 400},
		{errors.ErrCodeInvalidFormat, 400},
		{errors.ErrCodeNotFound, 404},
		{errors.ErrCodeConflict, 409},
		{errors.ErrCodeCycle, 422},
		{errors.ErrCodeDanglingReference, 422},
		{errors.ErrCodeInternal, 500},
		{"", 500},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.code); got != tt.want {
			t.Errorf("StatusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{})
	do(t, ts, "POST", "/api/v1/parts", `{"part_number":"BIKE","name":"Bike"}`)

	status, env := do(t, ts, "GET", "/healthz", "")
	if status != 200 || !env.OK {
		t.Fatalf("healthz = %d %+v", status, env)
	}
	var got struct {
		Build struct {
			Version string `json:"version"`
		} `json:"build"`
		Parts int `json:"parts"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Build.Version != buildinfo.Version || got.Parts != 1 {
		t.Errorf("healthz data = %+v", got)
	}
}
