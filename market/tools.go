package market

import (
	"context"
	"errors"
	"sort"

	"github.com/spindrift-labs/statserve/stats"
	"github.com/spindrift-labs/statserve/tool"
)

const (
	defaultPeriod   = "1y"
	defaultInterval = "1d"
	maxCompare      = 5
	maxSamplePoints = 30
)

// Registrations returns the market data tool set backed by provider.
func Registrations(provider Provider) []tool.Registration {
	return []tool.Registration{
		stockInfoRegistration(provider),
		historicalDataRegistration(provider),
		dividendsRegistration(provider),
		compareTickersRegistration(provider),
	}
}

func wrapProviderErr(err error) error {
	if errors.Is(err, ErrUpstream) {
		return &tool.InvokeError{Kind: tool.KindUpstreamFailure, Cause: err}
	}
	return err
}

func stockInfoRegistration(provider Provider) tool.Registration {
	return tool.Registration{
		Name:        "stock_info",
		Description: "Get basic information about a ticker: company name, sector, industry, market cap, valuation figures.",
		Schema: tool.Schema{
			Params: []tool.Param{
				{Name: "ticker", Kind: tool.KindString, Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ticker, _ := tool.StringArg(args, "ticker")
			info, err := provider.StockInfo(ctx, ticker)
			if err != nil {
				return nil, wrapProviderErr(err)
			}
			return map[string]any{
				"ticker":         info.Ticker,
				"name":           info.Name,
				"sector":         info.Sector,
				"industry":       info.Industry,
				"market_cap":     info.MarketCap,
				"current_price":  info.Price,
				"pe_ratio":       info.PERatio,
				"dividend_yield": info.DividendYield,
				"52_week_high":   info.High52Week,
				"52_week_low":    info.Low52Week,
			}, nil
		},
	}
}

func historicalDataRegistration(provider Provider) tool.Registration {
	return tool.Registration{
		Name:        "historical_data",
		Description: "Get historical price data for a ticker over a period, with window statistics and a bounded sample of bars.",
		Schema: tool.Schema{
			Params: []tool.Param{
				{Name: "ticker", Kind: tool.KindString, Required: true},
				{Name: "period", Kind: tool.KindString, Default: defaultPeriod},
				{Name: "interval", Kind: tool.KindString, Default: defaultInterval},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ticker, _ := tool.StringArg(args, "ticker")
			period, _ := tool.StringArg(args, "period")
			interval, _ := tool.StringArg(args, "interval")

			bars, err := provider.History(ctx, ticker, period, interval)
			if err != nil {
				return nil, wrapProviderErr(err)
			}
			if len(bars) == 0 {
				return nil, tool.NewInvokeError(tool.KindUpstreamFailure,
					"no historical data available for %q", ticker)
			}

			return map[string]any{
				"ticker":      ticker,
				"period":      period,
				"interval":    interval,
				"stats":       windowStats(bars),
				"sample_data": sampleBars(bars),
			}, nil
		},
	}
}

// windowStats summarizes a bar window using the statistics engine.
func windowStats(bars []Bar) map[string]any {
	closes := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		lows[i] = bar.Low
		highs[i] = bar.High
		volumes[i] = bar.Volume
	}

	startPrice := closes[0]
	endPrice := closes[len(closes)-1]
	change := endPrice - startPrice
	changePct := 0.0
	if startPrice != 0 {
		changePct = change / startPrice * 100
	}

	return map[string]any{
		"start_date":       bars[0].Date,
		"end_date":         bars[len(bars)-1].Date,
		"start_price":      startPrice,
		"end_price":        endPrice,
		"min_price":        stats.Min(lows),
		"max_price":        stats.Max(highs),
		"price_change":     change,
		"price_change_pct": changePct,
		"avg_volume":       stats.Mean(volumes),
	}
}

// sampleBars bounds the returned bars to maxSamplePoints by step sampling
// from the tail, keeping the most recent observations.
func sampleBars(bars []Bar) []Bar {
	if len(bars) <= maxSamplePoints {
		return bars
	}
	step := len(bars) / maxSamplePoints
	sampled := make([]Bar, 0, maxSamplePoints)
	for i := len(bars) - 1; i >= 0 && len(sampled) < maxSamplePoints; i -= step {
		sampled = append(sampled, bars[i])
	}
	// Reverse back into chronological order.
	for i, j := 0, len(sampled)-1; i < j; i, j = i+1, j-1 {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	}
	return sampled
}

func dividendsRegistration(provider Provider) tool.Registration {
	return tool.Registration{
		Name:        "dividends",
		Description: "Get dividend history, trailing-twelve-month total, and current yield for a ticker.",
		Schema: tool.Schema{
			Params: []tool.Param{
				{Name: "ticker", Kind: tool.KindString, Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ticker, _ := tool.StringArg(args, "ticker")

			dividends, err := provider.Dividends(ctx, ticker)
			if err != nil {
				return nil, wrapProviderErr(err)
			}
			if len(dividends) == 0 {
				// Paying no dividends is an answer, not a failure.
				return map[string]any{
					"ticker":        ticker,
					"has_dividends": false,
					"message":       "This stock does not pay dividends.",
				}, nil
			}

			sorted := make([]Dividend, len(dividends))
			copy(sorted, dividends)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

			// TTM approximated by the last four distributions.
			ttm := 0.0
			for i := 0; i < len(sorted) && i < 4; i++ {
				ttm += sorted[i].Amount
			}

			info, err := provider.StockInfo(ctx, ticker)
			if err != nil {
				return nil, wrapProviderErr(err)
			}
			currentYield := 0.0
			if info.Price > 0 {
				currentYield = ttm / info.Price * 100
			}

			recent := sorted
			if len(recent) > 8 {
				recent = recent[:8]
			}
			history := make([]map[string]any, len(recent))
			for i, d := range recent {
				history[i] = map[string]any{"date": d.Date, "amount": d.Amount}
			}

			return map[string]any{
				"ticker":                 ticker,
				"has_dividends":          true,
				"dividend_yield_percent": currentYield,
				"ttm_dividend":           ttm,
				"current_price":          info.Price,
				"dividend_history":       history,
			}, nil
		},
	}
}

func compareTickersRegistration(provider Provider) tool.Registration {
	return tool.Registration{
		Name:        "compare_tickers",
		Description: "Compare performance and key metrics of up to five tickers over a period.",
		Schema: tool.Schema{
			Params: []tool.Param{
				{Name: "tickers", Kind: tool.KindStringList, Required: true, MaxItems: maxCompare},
				{Name: "period", Kind: tool.KindString, Default: defaultPeriod},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			tickers, _ := tool.StringListArg(args, "tickers")
			period, _ := tool.StringArg(args, "period")

			comparison := make(map[string]any, len(tickers))
			for _, ticker := range tickers {
				info, err := provider.StockInfo(ctx, ticker)
				if err != nil {
					return nil, wrapProviderErr(err)
				}
				entry := map[string]any{
					"name":           info.Name,
					"sector":         info.Sector,
					"market_cap":     info.MarketCap,
					"current_price":  info.Price,
					"pe_ratio":       info.PERatio,
					"dividend_yield": info.DividendYield,
					"52_week_high":   info.High52Week,
					"52_week_low":    info.Low52Week,
				}

				bars, err := provider.History(ctx, ticker, period, defaultInterval)
				if err != nil {
					return nil, wrapProviderErr(err)
				}
				if len(bars) > 0 {
					start := bars[0].Close
					end := bars[len(bars)-1].Close
					entry["start_price"] = start
					entry["end_price"] = end
					entry["price_change"] = end - start
					if start != 0 {
						entry["price_change_pct"] = (end - start) / start * 100
					}
				}
				comparison[ticker] = entry
			}

			return map[string]any{
				"tickers":    tickers,
				"period":     period,
				"comparison": comparison,
			}, nil
		},
	}
}
