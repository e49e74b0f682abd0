package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brisppy/battlelog-archiver/internal/testutil"
	"github.com/brisppy/battlelog-archiver/pkg/battlelog"
	"github.com/brisppy/battlelog-archiver/pkg/progress"
)

const reportPrefix = "/battlereport/loadgeneralreport/"

// fastPolicy keeps test runs quick.
func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  6,
		ShortDelay:   time.Millisecond,
		LongDelay:    time.Millisecond,
		NetworkDelay: time.Millisecond,
	}
}

// echoReports serves every report request with a body carrying the report id
// from the request path.
func echoReports(mock *testutil.MockBattlelog) {
	mock.SetHandler(reportPrefix, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		id := parts[2]
		fmt.Fprintf(w, `{"id":%q,"winner":1}`, id)
	})
}

func makeStubs(n int) []battlelog.ReportStub {
	stubs := make([]battlelog.ReportStub, n)
	for i := range stubs {
		stubs[i] = battlelog.ReportStub{
			GameReportID: fmt.Sprintf("r%d", i+1),
			CreatedAt:    int64(10000 - i),
		}
	}
	return stubs
}

// recordingObserver captures attempt outcomes per report.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]progress.Outcome
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: make(map[string][]progress.Outcome)}
}

func (o *recordingObserver) ReportAttempt(reportID string, outcome progress.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[reportID] = append(o.outcomes[reportID], outcome)
}

func (o *recordingObserver) get(reportID string) []progress.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[reportID]
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		size      int
		wantSizes []int
	}{
		{"exact multiple", 40, 20, []int{20, 20}},
		{"remainder batch", 25, 20, []int{20, 5}},
		{"single batch", 5, 20, []int{5}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"empty input", 0, 20, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := makeStubs(tt.n)
			batches := partition(stubs, tt.size)

			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("batches = %d, want %d", len(batches), len(tt.wantSizes))
			}

			seen := make(map[string]int)
			for i, batch := range batches {
				if len(batch) != tt.wantSizes[i] {
					t.Errorf("batch %d size = %d, want %d", i, len(batch), tt.wantSizes[i])
				}
				for _, stub := range batch {
					seen[stub.GameReportID]++
				}
			}
			for _, stub := range stubs {
				if seen[stub.GameReportID] != 1 {
					t.Errorf("stub %s appears %d times, want exactly 1", stub.GameReportID, seen[stub.GameReportID])
				}
			}
		})
	}
}

func newFetcher(t *testing.T, mock *testutil.MockBattlelog, observer progress.Observer) *BatchFetcher {
	t.Helper()
	client, err := battlelog.New(testutil.NewTestSession(), battlelog.Config{
		BaseURL:           mock.URL(),
		Timeout:           5 * time.Second,
		GatewayRetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("battlelog.New() error = %v", err)
	}
	return NewBatchFetcher(client, BatchFetcherConfig{
		BatchSize: 20,
		Policy:    fastPolicy(),
	}, observer)
}

func TestFetchAll_AllSucceed(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()
	echoReports(mock)

	stubs := makeStubs(25) // 2 batches: 20 + 5
	f := newFetcher(t, mock, nil)

	details, err := f.FetchAll(context.Background(), stubs, testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(details) != 25 {
		t.Fatalf("details = %d, want 25", len(details))
	}

	want := make(map[string]bool)
	for _, stub := range stubs {
		want[stub.GameReportID] = true
	}
	for _, d := range details {
		if !want[d.ID] {
			t.Errorf("detail id %q does not correspond to any input stub", d.ID)
		}
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(d.Body, &body); err != nil {
			t.Errorf("detail %s body is not valid JSON: %v", d.ID, err)
		}
	}
	if got := mock.Requests(); got != 25 {
		t.Errorf("requests = %d, want 25 (one per stub)", got)
	}
}

func TestFetchAll_EmptyInput(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	f := newFetcher(t, mock, nil)
	details, err := f.FetchAll(context.Background(), nil, testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(details) != 0 {
		t.Errorf("details = %d, want 0", len(details))
	}
	if got := mock.Requests(); got != 0 {
		t.Errorf("requests = %d, want 0 for empty input", got)
	}
}

func TestFetchAll_EmptyBodyExhaustsCap(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	// r2 never materializes; r1 and r3 are fine.
	echoReports(mock)
	mock.SetScript(reportPrefix+"r2/", []testutil.MockResponse{
		{StatusCode: http.StatusOK, Body: `null`},
	})

	observer := newRecordingObserver()
	stubs := makeStubs(3)
	f := newFetcher(t, mock, observer)

	details, err := f.FetchAll(context.Background(), stubs, testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(details) != 2 {
		t.Fatalf("details = %d, want 2 (failed record must not lose others)", len(details))
	}
	for _, d := range details {
		if d.ID == "r2" {
			t.Error("r2 exhausted its attempts and must be absent")
		}
	}

	// 6 attempts on the dead record, the last one emitting failed.
	if got := mock.PrefixCount(reportPrefix + "r2/"); got != 6 {
		t.Errorf("attempts on r2 = %d, want 6 (attempt cap)", got)
	}
	outcomes := observer.get("r2")
	if len(outcomes) != 6 {
		t.Fatalf("observed outcomes for r2 = %d, want 6", len(outcomes))
	}
	if outcomes[len(outcomes)-1] != progress.OutcomeFailed {
		t.Errorf("final outcome = %q, want failed", outcomes[len(outcomes)-1])
	}
	for _, outcome := range outcomes[:len(outcomes)-1] {
		if outcome != progress.OutcomeRetrying {
			t.Errorf("intermediate outcome = %q, want retrying", outcome)
		}
	}
}

func TestFetchAll_RateLimitedThenSucceeds(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	mock.SetScript(reportPrefix+"r1/", []testutil.MockResponse{
		{StatusCode: http.StatusServiceUnavailable, Body: `throttled`},
		{StatusCode: http.StatusOK, Body: `{"id":"r1","winner":2}`},
	})

	observer := newRecordingObserver()
	f := newFetcher(t, mock, observer)

	details, err := f.FetchAll(context.Background(), makeStubs(1), testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(details) != 1 {
		t.Fatalf("details = %d, want 1", len(details))
	}
	if details[0].ID != "r1" {
		t.Errorf("detail id = %q, want r1", details[0].ID)
	}
	if !strings.Contains(string(details[0].Body), `"winner":2`) {
		t.Errorf("detail body = %s, want the post-throttle body", details[0].Body)
	}

	outcomes := observer.get("r1")
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %v, want rate_limited then success", outcomes)
	}
	if outcomes[0] != progress.OutcomeRateLimited || outcomes[1] != progress.OutcomeSuccess {
		t.Errorf("outcomes = %v, want [rate_limited success]", outcomes)
	}
}

func TestFetchAll_EmptyThenSucceeds(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	mock.SetScript(reportPrefix+"r1/", []testutil.MockResponse{
		{StatusCode: http.StatusOK, Body: ``},
		{StatusCode: http.StatusOK, Body: `null`},
		{StatusCode: http.StatusOK, Body: `{"id":"r1"}`},
	})

	f := newFetcher(t, mock, nil)
	details, err := f.FetchAll(context.Background(), makeStubs(1), testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(details) != 1 || details[0].ID != "r1" {
		t.Fatalf("details = %v, want r1 hydrated after empty responses", details)
	}
}

func TestFetchAll_NetworkErrorsDoNotBurnAttempts(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	// Five empty bodies put the record one short of the attempt cap, then
	// two dropped connections, then a real body. Connection: close keeps
	// every request on a fresh connection so the transport surfaces the
	// drops as errors instead of silently retrying a reused connection.
	var mu sync.Mutex
	calls := 0
	mock.SetHandler(reportPrefix+"r1/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		switch {
		case n <= 5:
			w.Header().Set("Connection", "close")
			w.Write([]byte(`null`))
		case n <= 7:
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
		default:
			w.Write([]byte(`{"id":"r1","winner":1}`))
		}
	})

	observer := newRecordingObserver()
	f := newFetcher(t, mock, observer)

	details, err := f.FetchAll(context.Background(), makeStubs(1), testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	// With the cap at 6, the record survives only if the two transport
	// errors left the attempt count untouched.
	if len(details) != 1 || details[0].ID != "r1" {
		t.Fatalf("details = %v, want r1 hydrated despite transport errors", details)
	}

	want := []progress.Outcome{
		progress.OutcomeRetrying,
		progress.OutcomeRetrying,
		progress.OutcomeRetrying,
		progress.OutcomeRetrying,
		progress.OutcomeRetrying,
		progress.OutcomeNetworkError,
		progress.OutcomeNetworkError,
		progress.OutcomeSuccess,
	}
	outcomes := observer.get("r1")
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
	for i, outcome := range outcomes {
		if outcome != want[i] {
			t.Fatalf("outcomes = %v, want %v", outcomes, want)
		}
	}
	if got := mock.PrefixCount(reportPrefix + "r1/"); got != 8 {
		t.Errorf("requests = %d, want 8", got)
	}
}

func TestFetchAll_ResultIsSubsetOfInput(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	// Mix of healthy, permanently empty, and throttled-once records.
	echoReports(mock)
	mock.SetScript(reportPrefix+"r3/", []testutil.MockResponse{
		{StatusCode: http.StatusOK, Body: `{}`},
	})
	mock.SetScript(reportPrefix+"r5/", []testutil.MockResponse{
		{StatusCode: http.StatusTooManyRequests, Body: ``},
		{StatusCode: http.StatusOK, Body: `{"id":"r5"}`},
	})

	stubs := makeStubs(8)
	f := newFetcher(t, mock, nil)
	details, err := f.FetchAll(context.Background(), stubs, testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	input := make(map[string]bool)
	for _, stub := range stubs {
		input[stub.GameReportID] = true
	}
	for _, d := range details {
		if !input[d.ID] {
			t.Errorf("detail %q carries an id absent from the input stubs", d.ID)
		}
	}
	if len(details) != 7 {
		t.Errorf("details = %d, want 7 (r3 dropped, r5 recovered)", len(details))
	}
}

func TestFetchAll_MissingIDFallsBackToStub(t *testing.T) {
	mock := testutil.NewMockBattlelog()
	defer mock.Close()

	mock.SetResponse(reportPrefix, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"winner":1}`,
	})

	f := newFetcher(t, mock, nil)
	details, err := f.FetchAll(context.Background(), makeStubs(1), testIdentity)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(details) != 1 || details[0].ID != "r1" {
		t.Fatalf("details = %v, want stub id fallback r1", details)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxAttempts != 6 {
		t.Errorf("MaxAttempts = %d, want 6", p.MaxAttempts)
	}
	if p.ShortDelay != 3*time.Second {
		t.Errorf("ShortDelay = %v, want 3s", p.ShortDelay)
	}
	if p.LongDelay != 10*time.Minute {
		t.Errorf("LongDelay = %v, want 10m", p.LongDelay)
	}
	if p.NetworkDelay != 10*time.Second {
		t.Errorf("NetworkDelay = %v, want 10s", p.NetworkDelay)
	}
	if p.LongDelay <= p.ShortDelay {
		t.Error("rate-limit delay must be substantially longer than the retry delay")
	}
}
