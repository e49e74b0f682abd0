package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/brisppy/battlelog-archiver/pkg/battlelog"
	"github.com/brisppy/battlelog-archiver/pkg/logging"
	"github.com/brisppy/battlelog-archiver/pkg/progress"
)

// Prometheus metrics for report hydration.
var (
	reportAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battlelog_report_attempts_total",
		Help: "Total report fetch attempts by outcome",
	}, []string{"outcome"})

	reportsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battlelog_reports_fetched_total",
		Help: "Total reports hydrated successfully",
	})

	reportsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battlelog_reports_dropped_total",
		Help: "Total reports dropped after exhausting the attempt cap",
	})
)

// BatchFetcherConfig tunes the bounded fan-out.
type BatchFetcherConfig struct {
	// BatchSize bounds peak concurrency: one in-flight request per stub
	// within a batch, batches strictly sequential. This is backpressure
	// against Battlelog's throttling, not a throughput knob; raising it
	// trades fewer round trips for more rate-limit stalls.
	BatchSize int

	// Policy is the per-record retry/backoff policy.
	Policy RetryPolicy
}

// DefaultBatchFetcherConfig returns safe fetch defaults.
func DefaultBatchFetcherConfig() BatchFetcherConfig {
	return BatchFetcherConfig{
		BatchSize: 20,
		Policy:    DefaultRetryPolicy(),
	}
}

// BatchFetcher hydrates report stubs in sequential fixed-size batches with
// concurrent fetches inside each batch.
type BatchFetcher struct {
	client   *battlelog.Client
	config   BatchFetcherConfig
	observer progress.Observer
	logger   zerolog.Logger
}

// NewBatchFetcher creates a BatchFetcher. A nil observer discards progress
// events.
func NewBatchFetcher(client *battlelog.Client, cfg BatchFetcherConfig, observer progress.Observer) *BatchFetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchFetcherConfig().BatchSize
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if observer == nil {
		observer = progress.Nop{}
	}
	return &BatchFetcher{
		client:   client,
		config:   cfg,
		observer: observer,
		logger:   logging.NewLogger("report-fetcher"),
	}
}

// FetchAll hydrates every stub and returns the successes. Individual record
// failures never fail the run; a report that exhausts its attempt cap is
// simply absent from the result. Every returned detail corresponds to an
// input stub.
func (f *BatchFetcher) FetchAll(ctx context.Context, stubs []battlelog.ReportStub, identity battlelog.ProfileIdentity) ([]battlelog.ReportDetail, error) {
	if len(stubs) == 0 {
		return nil, nil
	}

	batches := partition(stubs, f.config.BatchSize)
	f.logger.Info().
		Int("stubs", len(stubs)).
		Int("batches", len(batches)).
		Int("batch_size", f.config.BatchSize).
		Msg("Hydrating reports")

	details := make([]battlelog.ReportDetail, 0, len(stubs))
	for i, batch := range batches {
		// One result slot per task; aggregation happens only after
		// every task in the batch has settled.
		slots := make([]*battlelog.ReportDetail, len(batch))

		var wg sync.WaitGroup
		for j, stub := range batch {
			wg.Add(1)
			go func(j int, stub battlelog.ReportStub) {
				defer wg.Done()
				slots[j] = f.fetchOne(ctx, stub, identity)
			}(j, stub)
		}
		wg.Wait()

		for _, d := range slots {
			if d != nil {
				details = append(details, *d)
			}
		}

		f.logger.Debug().
			Int("batch", i+1).
			Int("batches", len(batches)).
			Int("hydrated", len(details)).
			Msg("Batch complete")

		if err := ctx.Err(); err != nil {
			return details, err
		}
	}

	f.logger.Info().
		Int("hydrated", len(details)).
		Int("dropped", len(stubs)-len(details)).
		Msg("Report hydration complete")

	return details, nil
}

// fetchOne runs the per-record retry state machine until the report is
// hydrated, permanently dropped, or the context ends. Returns nil when the
// report yielded no data within the attempt cap.
func (f *BatchFetcher) fetchOne(ctx context.Context, stub battlelog.ReportStub, identity battlelog.ProfileIdentity) *battlelog.ReportDetail {
	endpoint := "/battlereport/loadgeneralreport/" +
		url.PathEscape(stub.GameReportID) + "/1/" + url.PathEscape(identity.ProfileID) + "/"

	attempts := 0
	for {
		status, body, err := f.client.GetOnce(ctx, endpoint)

		switch {
		case err != nil:
			// Transport-level instability, not an application
			// signal; retry without touching the attempt count.
			if ctx.Err() != nil {
				return nil
			}
			f.emit(stub.GameReportID, progress.OutcomeNetworkError)
			if !f.sleep(ctx, f.config.Policy.NetworkDelay) {
				return nil
			}

		case status != http.StatusOK:
			// Battlelog answers throttled clients with assorted
			// non-200 statuses. Treated as temporary, retried
			// forever after the long delay.
			f.emit(stub.GameReportID, progress.OutcomeRateLimited)
			if !f.sleep(ctx, f.config.Policy.LongDelay) {
				return nil
			}

		case battlelog.IsEmptyJSON(body):
			attempts++
			if attempts >= f.config.Policy.MaxAttempts {
				f.emit(stub.GameReportID, progress.OutcomeFailed)
				reportsDroppedTotal.Inc()
				f.logger.Debug().
					Str("report_id", stub.GameReportID).
					Int("attempts", attempts).
					Msg("Report dropped after attempt cap")
				return nil
			}
			f.emit(stub.GameReportID, progress.OutcomeRetrying)
			if !f.sleep(ctx, f.config.Policy.ShortDelay) {
				return nil
			}

		default:
			detail, ok := decodeDetail(stub, body)
			if !ok {
				// 200 with a body that is not valid JSON is
				// the same "no data yet" lag signal as an
				// empty body.
				attempts++
				if attempts >= f.config.Policy.MaxAttempts {
					f.emit(stub.GameReportID, progress.OutcomeFailed)
					reportsDroppedTotal.Inc()
					return nil
				}
				f.emit(stub.GameReportID, progress.OutcomeRetrying)
				if !f.sleep(ctx, f.config.Policy.ShortDelay) {
					return nil
				}
				continue
			}
			f.emit(stub.GameReportID, progress.OutcomeSuccess)
			reportsFetchedTotal.Inc()
			return detail
		}
	}
}

// emit forwards an attempt outcome to the observer and metrics.
func (f *BatchFetcher) emit(reportID string, outcome progress.Outcome) {
	reportAttemptsTotal.WithLabelValues(string(outcome)).Inc()
	f.observer.ReportAttempt(reportID, outcome)
}

// sleep waits for d or until the context ends; reports whether the caller
// should continue.
func (f *BatchFetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// decodeDetail validates the report body and extracts its id. The body's own
// id field names the persisted file; when absent, the stub id stands in.
func decodeDetail(stub battlelog.ReportStub, body []byte) (*battlelog.ReportDetail, bool) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false
	}

	var idHolder struct {
		ID string `json:"id"`
	}
	// Best effort: some report bodies carry numeric ids, which this
	// decode ignores in favor of the stub id.
	_ = json.Unmarshal(raw, &idHolder)

	id := idHolder.ID
	if id == "" {
		id = stub.GameReportID
	}

	return &battlelog.ReportDetail{ID: id, Body: raw}, true
}

// partition splits stubs into consecutive batches of at most size elements.
// Every stub lands in exactly one batch; ceil(len/size) batches are formed.
func partition(stubs []battlelog.ReportStub, size int) [][]battlelog.ReportStub {
	if size <= 0 || len(stubs) == 0 {
		return nil
	}
	batches := make([][]battlelog.ReportStub, 0, (len(stubs)+size-1)/size)
	for start := 0; start < len(stubs); start += size {
		end := start + size
		if end > len(stubs) {
			end = len(stubs)
		}
		batches = append(batches, stubs[start:end])
	}
	return batches
}
