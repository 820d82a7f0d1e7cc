package sensorsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// result classifies one POST /readings answer.
type result int

const (
	resultAccepted result = iota
	resultDuplicate
	resultThrottled
	resultRejected
	resultFailed
)

// counters aggregates results across submitters.
type counters struct {
	submitted, accepted, deduped, throttled, rejected, failed atomic.Int64
}

func (c *counters) add(r result) {
	c.submitted.Add(1)
	switch r {
	case resultAccepted:
		c.accepted.Add(1)
	case resultDuplicate:
		c.deduped.Add(1)
	case resultThrottled:
		c.throttled.Add(1)
	case resultRejected:
		c.rejected.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *counters) fill(st *Stats) {
	st.Submitted = int(c.submitted.Load())
	st.Accepted = int(c.accepted.Load())
	st.Deduped = int(c.deduped.Load())
	st.Throttled = int(c.throttled.Load())
	st.Rejected = int(c.rejected.Load())
	st.Failed = int(c.failed.Load())
}

// submitter posts readings to the gateway.
type submitter struct {
	client *http.Client
	url    string
	log    logger.Logger
}

func newSubmitter(baseURL string, timeout time.Duration, log logger.Logger) *submitter {
	return &submitter{
		client: &http.Client{Timeout: timeout},
		url:    baseURL + "/readings",
		log:    log,
	}
}

// submitAll posts readings with at most workers requests in flight.
// Individual failures are counted, not returned.
func (s *submitter) submitAll(ctx context.Context, readings []model.FillReading, workers int, c *counters) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range readings {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c.add(s.submit(ctx, r))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *submitter) submit(ctx context.Context, r model.FillReading) result { //nolint:gocritic // hugeParam: readings are passed by value
	body, err := json.Marshal(r)
	if err != nil {
		return resultFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return resultFailed
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug(ctx, "submit failed", logger.String("reading_id", r.ReadingID), logger.Error(err))
		return resultFailed
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return resultAccepted
	case http.StatusOK:
		var ack ackResponse
		if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && !ack.Duplicate {
			return resultAccepted
		}
		return resultDuplicate
	case http.StatusTooManyRequests:
		return resultThrottled
	case http.StatusBadRequest:
		return resultRejected
	default:
		s.log.Debug(ctx, "unexpected status",
			logger.String("reading_id", r.ReadingID),
			logger.Int("status", resp.StatusCode),
		)
		return resultFailed
	}
}

// getJSON fetches path from the gateway into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
