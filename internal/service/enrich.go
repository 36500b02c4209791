package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmespath-community/go-jmespath"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-bol-sync/internal/bol"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

// errSkipItem marks a target an enrichment does not apply to.
var errSkipItem = errors.New("enrichment does not apply")

var (
	competitorPricesExpr  = jmespath.MustCompile("offers[].price")
	competitorRatingsExpr = jmespath.MustCompile("ratings[].{rating: rating, count: count}")
	rankEntriesExpr       = jmespath.MustCompile("ranks[].{rank: rank, impressions: impressions}")
	catalogAttrsExpr      = jmespath.MustCompile("attributes[].{id: id, value: values[0].value}")
	forecastTotalExpr     = jmespath.MustCompile(
		"{minimum: total.minimum, maximum: total.maximum, periods: length(periods || `[]`)}")
)

type searcher interface {
	Search(data any) (any, error)
}

// enrichTarget is one product selected from the latest offers snapshot.
type enrichTarget struct {
	EAN     string
	OfferID string
}

type enrichFetch func(ctx context.Context, token string, t enrichTarget) (map[string]any, error)

// throttle spaces item calls of one tenant by a fixed delay. The first call
// goes out immediately.
type throttle struct {
	delay   time.Duration
	started bool
}

func (t *throttle) wait(ctx context.Context) error {
	if !t.started || t.delay <= 0 {
		t.started = true
		return ctx.Err()
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// enrich runs the per-product passes over the tenant's latest offers. Item
// failures drop the item; only cancellation and storage errors fail the pass.
func (s *SyncService) enrich(
	ctx context.Context,
	tenantID, token string,
	summary *tenantSummary,
	log *slog.Logger,
) error {
	targets, err := s.enrichTargets(ctx, tenantID)
	if err != nil {
		log.WarnContext(ctx, "enrichment skipped", "error", err)
		summary.notes = append(summary.notes, "enrichment skipped")
		return nil
	}
	if len(targets) == 0 {
		return nil
	}

	passes := []struct {
		dataType string
		fetch    enrichFetch
	}{
		{model.DataTypeCompetitors, s.competitorPricing},
		{model.DataTypeRanks, s.rankTracking},
		{model.DataTypeCatalog, s.catalogContent},
		{model.DataTypeForecast, s.salesForecast},
	}

	th := &throttle{delay: s.cfg.ItemDelay}
	for _, p := range passes {
		records, err := s.collectItems(ctx, token, targets, p.dataType, p.fetch, th, log)
		if err != nil {
			return err
		}
		if _, err := s.writer.write(ctx, tenantID, p.dataType, records, nil); err != nil {
			return err
		}
		summary.records[p.dataType] = len(records)
	}
	return nil
}

func (s *SyncService) collectItems(
	ctx context.Context,
	token string,
	targets []enrichTarget,
	dataType string,
	fetch enrichFetch,
	th *throttle,
	log *slog.Logger,
) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(targets))
	for _, t := range targets {
		if err := th.wait(ctx); err != nil {
			return nil, err
		}
		rec, err := fetch(ctx, token, t)
		switch {
		case errors.Is(err, errSkipItem):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.DebugContext(ctx, "enrichment item dropped", "data_type", dataType, "ean", t.EAN, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// enrichTargets reads distinct EANs from the latest offers snapshot, in
// snapshot order, up to EnrichLimit. No snapshot yet means no targets.
func (s *SyncService) enrichTargets(ctx context.Context, tenantID string) ([]enrichTarget, error) {
	snap, err := s.latest.Latest(ctx, tenantID, model.DataTypeOffers)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load offers snapshot: %w", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(snap.Records, &rows); err != nil {
		return nil, fmt.Errorf("decode offers snapshot %s: %w", snap.ID, err)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]enrichTarget, 0, min(len(rows), s.cfg.EnrichLimit))
	for _, row := range rows {
		ean := strings.TrimSpace(fmt.Sprint(valueOr(row["ean"], "")))
		if ean == "" {
			continue
		}
		if _, dup := seen[ean]; dup {
			continue
		}
		seen[ean] = struct{}{}
		out = append(out, enrichTarget{
			EAN:     ean,
			OfferID: strings.TrimSpace(fmt.Sprint(valueOr(row["offerId"], ""))),
		})
		if len(out) == s.cfg.EnrichLimit {
			break
		}
	}
	return out, nil
}

// competitorPricing fetches competing offers and ratings for one EAN as a
// concurrent pair and summarizes both.
func (s *SyncService) competitorPricing(ctx context.Context, token string, t enrichTarget) (map[string]any, error) {
	var offers, ratings *bol.Response
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered(func() (err error) {
		offers, err = s.fetchOK(gctx, token, bol.CompetingOffers(t.EAN))
		return err
	}))
	g.Go(recovered(func() (err error) {
		ratings, err = s.fetchOK(gctx, token, bol.ProductRatings(t.EAN))
		return err
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarizeCompetition(t.EAN, offers.Data, ratings.Data)
}

func (s *SyncService) rankTracking(ctx context.Context, token string, t enrichTarget) (map[string]any, error) {
	resp, err := s.fetchOK(ctx, token, bol.ProductRanks(t.EAN, s.now()))
	if err != nil {
		return nil, err
	}
	entries, err := searchList(rankEntriesExpr, resp.Data)
	if err != nil {
		return nil, err
	}

	rec := map[string]any{"ean": t.EAN, "searchTerms": len(entries), "bestRank": nil, "impressions": 0}
	var (
		best        float64
		impressions float64
	)
	for i, e := range entries {
		rank, _ := number(e["rank"])
		if i == 0 || rank < best {
			best = rank
		}
		n, _ := number(e["impressions"])
		impressions += n
	}
	if len(entries) > 0 {
		rec["bestRank"] = best
	}
	rec["impressions"] = impressions
	return rec, nil
}

func (s *SyncService) catalogContent(ctx context.Context, token string, t enrichTarget) (map[string]any, error) {
	resp, err := s.fetchOK(ctx, token, bol.CatalogProduct(t.EAN))
	if err != nil {
		return nil, err
	}
	attrs, err := searchList(catalogAttrsExpr, resp.Data)
	if err != nil {
		return nil, err
	}

	rec := map[string]any{"ean": t.EAN, "title": nil, "description": nil, "attributes": len(attrs)}
	for _, a := range attrs {
		switch a["id"] {
		case "Title":
			rec["title"] = a["value"]
		case "Description":
			rec["description"] = a["value"]
		}
	}
	return rec, nil
}

func (s *SyncService) salesForecast(ctx context.Context, token string, t enrichTarget) (map[string]any, error) {
	if t.OfferID == "" {
		return nil, errSkipItem
	}
	resp, err := s.fetchOK(ctx, token, bol.SalesForecast(t.OfferID, s.cfg.ForecastWeeks))
	if err != nil {
		return nil, err
	}
	res, err := forecastTotalExpr.Search(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("read forecast: %w", err)
	}
	total, _ := res.(map[string]any)
	return map[string]any{
		"ean":        t.EAN,
		"offerId":    t.OfferID,
		"weeksAhead": s.cfg.ForecastWeeks,
		"minimum":    total["minimum"],
		"maximum":    total["maximum"],
		"periods":    total["periods"],
	}, nil
}

// fetchOK issues req and turns a non-success response into an error.
func (s *SyncService) fetchOK(ctx context.Context, token string, req bol.Request) (*bol.Response, error) {
	resp, err := s.client.Do(ctx, token, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s %s: upstream status %d", req.Method, req.Path, resp.Status)
	}
	return resp, nil
}

// summarizeCompetition reduces competing offers to price bounds and the
// rating histogram to a weighted average. Prices are kept as fixed two-digit
// strings.
func summarizeCompetition(ean string, offersData, ratingsData any) (map[string]any, error) {
	rawPrices, err := competitorPricesExpr.Search(offersData)
	if err != nil {
		return nil, fmt.Errorf("read competing offers: %w", err)
	}
	prices := make([]decimal.Decimal, 0)
	if list, ok := rawPrices.([]any); ok {
		for _, p := range list {
			if f, ok := number(p); ok {
				prices = append(prices, decimal.NewFromFloat(f))
			}
		}
	}

	rec := map[string]any{
		"ean":           ean,
		"offerCount":    len(prices),
		"lowestPrice":   nil,
		"highestPrice":  nil,
		"averagePrice":  nil,
		"ratingCount":   0,
		"averageRating": nil,
	}
	if len(prices) > 0 {
		lowest, highest := decimal.Min(prices[0], prices[1:]...), decimal.Max(prices[0], prices[1:]...)
		avg := decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices))))
		rec["lowestPrice"] = lowest.StringFixed(2)
		rec["highestPrice"] = highest.StringFixed(2)
		rec["averagePrice"] = avg.StringFixed(2)
	}

	ratings, err := searchList(competitorRatingsExpr, ratingsData)
	if err != nil {
		return nil, err
	}
	weighted, count := decimal.Zero, decimal.Zero
	for _, r := range ratings {
		stars, ok1 := number(r["rating"])
		n, ok2 := number(r["count"])
		if !ok1 || !ok2 || n <= 0 {
			continue
		}
		weighted = weighted.Add(decimal.NewFromFloat(stars).Mul(decimal.NewFromFloat(n)))
		count = count.Add(decimal.NewFromFloat(n))
	}
	if count.IsPositive() {
		rec["ratingCount"] = count.IntPart()
		rec["averageRating"] = weighted.Div(count).StringFixed(2)
	}
	return rec, nil
}

// searchList runs a projection and keeps the object elements. A missing list
// yields an empty slice.
func searchList(expr searcher, data any) ([]map[string]any, error) {
	res, err := expr.Search(data)
	if err != nil {
		return nil, fmt.Errorf("extract list: %w", err)
	}
	list, _ := res.([]any)
	return objects(list), nil
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}

func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}

// recovered turns a panic in a paired call into an error so it cannot take
// the process down from a goroutine the tenant boundary does not cover.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}
