// Package reports implements the archive retrieval engine: sequential
// enumeration of the paginated battle-report index and bounded concurrent
// hydration of the individual reports.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/brisppy/battlelog-archiver/pkg/battlelog"
	"github.com/brisppy/battlelog-archiver/pkg/logging"
)

// ErrReportsHidden is returned when the report list payload lacks the
// expected data field, which Battlelog uses when a soldier's battle reports
// are hidden or inaccessible. This is permanent for the profile, never
// retried.
var ErrReportsHidden = errors.New("battle reports are hidden or inaccessible for this profile")

// EnumeratorConfig tunes index enumeration.
type EnumeratorConfig struct {
	// PageSize is requested per index page. Battlelog accepts large
	// values; 2048 keeps the page count low.
	PageSize int

	// EmptyPageThreshold is the number of consecutive empty pages that
	// terminates enumeration. The service emits no end-of-data marker, so
	// sustained emptiness is the only termination signal; the threshold
	// tolerates transient empty pages from backend lag.
	EmptyPageThreshold int
}

// DefaultEnumeratorConfig returns safe enumeration defaults.
func DefaultEnumeratorConfig() EnumeratorConfig {
	return EnumeratorConfig{
		PageSize:           2048,
		EmptyPageThreshold: 5,
	}
}

// Enumerator walks the paginated report-list endpoint. Enumeration is
// strictly sequential: each page request is cursored on the previous page's
// last timestamp and must not be parallelized.
type Enumerator struct {
	client *battlelog.Client
	config EnumeratorConfig
	logger zerolog.Logger
}

// NewEnumerator creates an Enumerator over the given client.
func NewEnumerator(client *battlelog.Client, cfg EnumeratorConfig) *Enumerator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultEnumeratorConfig().PageSize
	}
	if cfg.EmptyPageThreshold <= 0 {
		cfg.EmptyPageThreshold = DefaultEnumeratorConfig().EmptyPageThreshold
	}
	return &Enumerator{
		client: client,
		config: cfg,
		logger: logging.NewLogger("report-enumerator"),
	}
}

// reportListPage mirrors the report-list response shape. Data is a pointer
// so a payload without the field (hidden reports) is distinguishable from a
// payload with an empty report batch.
type reportListPage struct {
	Data *struct {
		GameReports []battlelog.ReportStub `json:"gameReports"`
	} `json:"data"`
}

// Enumerate returns the complete ordered stub list for the profile.
// It fails with ErrReportsHidden when the first page lacks the data field,
// and otherwise runs until EmptyPageThreshold consecutive empty pages have
// been observed. A profile with zero reports terminates the same way: the
// empty first page counts toward the threshold and the more-endpoint is
// cursored at zero until the threshold is reached.
func (e *Enumerator) Enumerate(ctx context.Context, identity battlelog.ProfileIdentity) ([]battlelog.ReportStub, error) {
	pageSize := strconv.Itoa(e.config.PageSize)
	firstEndpoint := "/warsawbattlereportspopulate/" + url.PathEscape(identity.ProfileID) + "/" + pageSize + "/1/"

	batch, err := e.fetchPage(ctx, firstEndpoint, true)
	if err != nil {
		return nil, err
	}

	var stubs []battlelog.ReportStub
	emptyPages := 0
	pages := 1

	if len(batch) == 0 {
		emptyPages++
	} else {
		stubs = append(stubs, batch...)
	}

	for emptyPages < e.config.EmptyPageThreshold {
		// Cursor on the last known stub; zero before anything has
		// been discovered (the zero-report guard).
		var cursor int64
		if len(stubs) > 0 {
			cursor = stubs[len(stubs)-1].CreatedAt
		}

		endpoint := "/warsawbattlereportspopulatemore/" + url.PathEscape(identity.ProfileID) +
			"/" + pageSize + "/1/" + strconv.FormatInt(cursor, 10)

		batch, err := e.fetchPage(ctx, endpoint, false)
		if err != nil {
			return nil, err
		}
		pages++

		if len(batch) == 0 {
			emptyPages++
			continue
		}

		emptyPages = 0
		stubs = append(stubs, batch...)
		e.logger.Info().
			Int("pages", pages).
			Int("stubs", len(stubs)).
			Msg("Report index growing")
	}

	e.logger.Info().
		Int("pages", pages).
		Int("stubs", len(stubs)).
		Msg("Report index complete")

	return stubs, nil
}

// fetchPage fetches and decodes one index page. firstPage controls whether a
// missing data field is fatal: only the first page proves accessibility, and
// later pages inherit it.
func (e *Enumerator) fetchPage(ctx context.Context, endpoint string, firstPage bool) ([]battlelog.ReportStub, error) {
	raw, err := e.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var page reportListPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &battlelog.Error{
			Class:    battlelog.ErrorClassDecode,
			Endpoint: endpoint,
			Err:      fmt.Errorf("decode report list page: %w", err),
		}
	}

	if page.Data == nil {
		if firstPage {
			return nil, &battlelog.Error{
				Class:    battlelog.ErrorClassDecode,
				Endpoint: endpoint,
				Err:      ErrReportsHidden,
			}
		}
		// A later page without the field is treated as empty; the
		// threshold decides whether enumeration ends.
		return nil, nil
	}

	return page.Data.GameReports, nil
}
