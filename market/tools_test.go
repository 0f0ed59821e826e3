package market

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spindrift-labs/statserve/tool"
)

func marketDispatcher(t *testing.T, provider Provider) *tool.Dispatcher {
	t.Helper()
	registry := tool.NewRegistry()
	registry.MustRegister(Registrations(provider)...)
	return tool.NewDispatcher(tool.DispatcherConfig{Registry: registry})
}

func decodeWire(t *testing.T, wire string) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(wire), &decoded); err != nil {
		t.Fatalf("wire text is not valid JSON: %v\n%s", err, wire)
	}
	return decoded
}

func TestStockInfoTool(t *testing.T) {
	d := marketDispatcher(t, newCountingProvider())

	decoded := decodeWire(t, d.Invoke(context.Background(), "stock_info", map[string]any{
		"ticker": "AAPL",
	}))
	if decoded["name"] != "Apple Inc." {
		t.Fatalf("name = %v", decoded["name"])
	}
	if decoded["current_price"] != 200.0 {
		t.Fatalf("current_price = %v", decoded["current_price"])
	}
	if _, ok := decoded["completed_at"]; !ok {
		t.Fatal("metadata missing from market tool result")
	}
}

func TestStockInfoToolMissingTicker(t *testing.T) {
	d := marketDispatcher(t, newCountingProvider())

	decoded := decodeWire(t, d.Invoke(context.Background(), "stock_info", map[string]any{}))
	msg, _ := decoded["error"].(string)
	if !strings.HasPrefix(msg, tool.KindTypeMismatch+": ") {
		t.Fatalf("error = %q, want %s prefix", msg, tool.KindTypeMismatch)
	}
}

func TestHistoricalDataToolStats(t *testing.T) {
	d := marketDispatcher(t, newCountingProvider())

	decoded := decodeWire(t, d.Invoke(context.Background(), "historical_data", map[string]any{
		"ticker": "AAPL",
	}))
	if decoded["period"] != "1y" {
		t.Fatalf("default period = %v, want 1y", decoded["period"])
	}
	windowStats, ok := decoded["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats = %v", decoded["stats"])
	}
	if windowStats["min_price"] != 95.0 {
		t.Fatalf("min_price = %v, want 95", windowStats["min_price"])
	}
	if windowStats["max_price"] != 112.0 {
		t.Fatalf("max_price = %v, want 112", windowStats["max_price"])
	}
	if windowStats["price_change"] != 10.0 {
		t.Fatalf("price_change = %v, want 10", windowStats["price_change"])
	}
	if windowStats["avg_volume"] != 1100.0 {
		t.Fatalf("avg_volume = %v, want 1100", windowStats["avg_volume"])
	}
}

func TestHistoricalDataToolEmptyWindow(t *testing.T) {
	provider := newCountingProvider()
	provider.bars = nil
	d := marketDispatcher(t, provider)

	decoded := decodeWire(t, d.Invoke(context.Background(), "historical_data", map[string]any{
		"ticker": "NOPE",
	}))
	msg, _ := decoded["error"].(string)
	if !strings.HasPrefix(msg, tool.KindUpstreamFailure+": ") {
		t.Fatalf("error = %q, want %s prefix", msg, tool.KindUpstreamFailure)
	}
}

func TestDividendsTool(t *testing.T) {
	provider := newCountingProvider()
	provider.divs = []Dividend{
		{Date: "2025-10-15", Amount: 0.25},
		{Date: "2026-01-15", Amount: 0.25},
		{Date: "2025-07-15", Amount: 0.24},
		{Date: "2025-04-15", Amount: 0.24},
		{Date: "2025-01-15", Amount: 0.23},
	}
	d := marketDispatcher(t, provider)

	decoded := decodeWire(t, d.Invoke(context.Background(), "dividends", map[string]any{
		"ticker": "AAPL",
	}))
	if decoded["has_dividends"] != true {
		t.Fatalf("has_dividends = %v", decoded["has_dividends"])
	}
	// TTM = four most recent distributions: 0.25+0.25+0.24+0.24.
	ttm, _ := decoded["ttm_dividend"].(float64)
	if ttm < 0.979 || ttm > 0.981 {
		t.Fatalf("ttm_dividend = %v, want 0.98", ttm)
	}
	history, _ := decoded["dividend_history"].([]any)
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	first, _ := history[0].(map[string]any)
	if first["date"] != "2026-01-15" {
		t.Fatalf("history[0].date = %v, want most recent first", first["date"])
	}
}

func TestDividendsToolNonePaid(t *testing.T) {
	provider := newCountingProvider()
	provider.divs = nil
	d := marketDispatcher(t, provider)

	decoded := decodeWire(t, d.Invoke(context.Background(), "dividends", map[string]any{
		"ticker": "GOOG",
	}))
	if decoded["has_dividends"] != false {
		t.Fatalf("has_dividends = %v, want false success, not error", decoded["has_dividends"])
	}
	if _, isErr := decoded["error"]; isErr {
		t.Fatal("no dividends must be a success payload")
	}
}

func TestCompareTickersTool(t *testing.T) {
	d := marketDispatcher(t, newCountingProvider())

	decoded := decodeWire(t, d.Invoke(context.Background(), "compare_tickers", map[string]any{
		"tickers": []any{"AAPL", "MSFT"},
	}))
	comparison, ok := decoded["comparison"].(map[string]any)
	if !ok {
		t.Fatalf("comparison = %v", decoded["comparison"])
	}
	if len(comparison) != 2 {
		t.Fatalf("comparison size = %d, want 2", len(comparison))
	}
	apple, _ := comparison["AAPL"].(map[string]any)
	if apple["price_change_pct"] != 10.0 {
		t.Fatalf("price_change_pct = %v, want 10", apple["price_change_pct"])
	}
}

func TestCompareTickersCapsAtFive(t *testing.T) {
	provider := newCountingProvider()
	d := marketDispatcher(t, provider)

	decoded := decodeWire(t, d.Invoke(context.Background(), "compare_tickers", map[string]any{
		"tickers": []any{"A", "B", "C", "D", "E", "F", "G"},
	}))
	tickers, _ := decoded["tickers"].([]any)
	if len(tickers) != 5 {
		t.Fatalf("tickers = %v, want capped at 5", tickers)
	}
}

func TestProviderErrorSurfacesUpstreamFailure(t *testing.T) {
	provider := newCountingProvider()
	provider.err = ErrUpstream
	d := marketDispatcher(t, provider)

	decoded := decodeWire(t, d.Invoke(context.Background(), "stock_info", map[string]any{
		"ticker": "AAPL",
	}))
	msg, _ := decoded["error"].(string)
	if !strings.HasPrefix(msg, tool.KindUpstreamFailure+": ") {
		t.Fatalf("error = %q, want %s prefix", msg, tool.KindUpstreamFailure)
	}
}

func TestSampleBarsBounded(t *testing.T) {
	bars := make([]Bar, 100)
	for i := range bars {
		bars[i] = Bar{Date: "d", Close: float64(i)}
	}
	sampled := sampleBars(bars)
	if len(sampled) > 30 {
		t.Fatalf("sampled = %d bars, want <= 30", len(sampled))
	}
	// Most recent bar always survives sampling.
	if sampled[len(sampled)-1].Close != 99 {
		t.Fatalf("last sampled close = %v, want 99", sampled[len(sampled)-1].Close)
	}
}
