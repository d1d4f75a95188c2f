package bitmex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trader/internal/market"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Bucket sizes accepted by the bucketed endpoints.
var binMinutes = map[string]int{"1m": 1, "5m": 5, "1h": 60, "1d": 1440}

// QuoteBuckets returns count quote bins of binSize starting at start.
func (c *Client) QuoteBuckets(ctx context.Context, binSize string, start time.Time, count int) ([]Quote, error) {
	var rows []Quote
	if err := c.do(ctx, http.MethodGet, "/quote/bucketed", c.bucketQuery(binSize, start, count), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TradeBuckets returns count trade bins of binSize starting at start.
func (c *Client) TradeBuckets(ctx context.Context, binSize string, start time.Time, count int) ([]TradeBin, error) {
	var rows []TradeBin
	if err := c.do(ctx, http.MethodGet, "/trade/bucketed", c.bucketQuery(binSize, start, count), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) bucketQuery(binSize string, start time.Time, count int) url.Values {
	return url.Values{
		"binSize":   {binSize},
		"symbol":    {c.cfg.Symbol},
		"startTime": {start.UTC().Format(time.RFC3339)},
		"count":     {strconv.Itoa(count)},
	}
}

// History downloads quote bins day by day and turns them into record ticks.
// The daily trade bin starting at a date closes the previous day, so its
// close is the previous close of every tick of that date.
type History struct {
	Client  *Client
	BinSize string
	Pause   time.Duration
}

// Fetch writes ticks for every date in [start, end).
func (h History) Fetch(ctx context.Context, start, end time.Time, write func(market.Tick) error) error {
	minutes, ok := binMinutes[h.BinSize]
	if !ok {
		return errors.Wrapf(exception.ErrConfigInvalid, "bin size %q", h.BinSize)
	}
	perDay := 1440 / minutes

	day := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)
	for ; day.Before(last); day = day.AddDate(0, 0, 1) {
		if err := h.fetchDay(ctx, day, perDay, write); err != nil {
			return errors.Wrapf(err, "fetch %s", day.Format(time.DateOnly))
		}
		logs.Infof("fetched %s", day.Format(time.DateOnly))

		if h.Pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.Pause):
			}
		}
	}
	return nil
}

func (h History) fetchDay(ctx context.Context, day time.Time, perDay int, write func(market.Tick) error) error {
	bins, err := h.Client.TradeBuckets(ctx, "1d", day, 1)
	if err != nil {
		return err
	}
	prevClose := -1.0
	if len(bins) > 0 {
		prevClose = price(bins[0].Close)
	}

	quotes, err := h.Client.QuoteBuckets(ctx, h.BinSize, day, perDay)
	if err != nil {
		return err
	}
	for _, q := range quotes {
		if err := write(q.Tick(prevClose)); err != nil {
			return err
		}
	}
	return nil
}
