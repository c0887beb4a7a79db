package usecase

import (
	"context"
	"fmt"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	"FinSqueeze/pkg/util"
)

const maxWindowBars = 50000

// BarsUseCase resolves a bounded bar window for one instrument.
type BarsUseCase struct {
	store domrepo.BarStore
}

func NewBarsUseCase(store domrepo.BarStore) *BarsUseCase {
	return &BarsUseCase{store: store}
}

// WindowParams selects the bars an analysis runs on. Span ("400d", "6w")
// takes precedence over Window when set.
type WindowParams struct {
	Symbol    string
	Window    int
	Span      string
	Timeframe domrepo.Timeframe
}

// Resolve normalizes the params and returns the effective bar count.
func (p *WindowParams) Resolve(defWindow int) error {
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	p.Timeframe = domrepo.NormalizeTimeframe(string(p.Timeframe))
	if p.Span != "" {
		d, err := util.ParseSpan(p.Span)
		if err != nil {
			return fmt.Errorf("span: %w", err)
		}
		p.Window = util.SpanToBars(d, p.Timeframe.Duration())
	}
	if p.Window <= 0 {
		p.Window = defWindow
	}
	if p.Window > maxWindowBars {
		p.Window = maxWindowBars
	}
	return nil
}

// Load returns the latest Window bars. An empty series is reported as
// insufficient history so callers never run the engine on nothing.
func (uc *BarsUseCase) Load(ctx context.Context, p WindowParams) ([]models.Bar, error) {
	bars, err := uc.store.GetLatestNBars(ctx, p.Symbol, p.Window, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, &models.InsufficientHistoryError{
			Symbol: p.Symbol, Window: p.Window, Required: 1, Reason: "no bars returned",
		}
	}
	if len(bars) > p.Window {
		bars = bars[len(bars)-p.Window:]
	}
	return bars, nil
}
