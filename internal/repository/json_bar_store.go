package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	"FinSqueeze/pkg/util"
)

// JSONBarStore serves a fixed bar series read from a JSON array. It backs the
// offline CLI; every timeframe returns the same series.
type JSONBarStore struct {
	bars []models.Bar
}

var _ domrepo.BarStore = (*JSONBarStore)(nil)

// OpenJSONBarStore reads path ("-" for stdin).
func OpenJSONBarStore(path string) (*JSONBarStore, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bars: %w", err)
		}
		defer f.Close()
		r = f
	}
	return NewJSONBarStore(r)
}

func NewJSONBarStore(r io.Reader) (*JSONBarStore, error) {
	var bars []models.Bar
	if err := json.NewDecoder(r).Decode(&bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return &JSONBarStore{bars: bars}, nil
}

// Until drops bars after t, replaying the store as of that moment.
func (s *JSONBarStore) Until(t time.Time) {
	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Time.After(t) })
	s.bars = s.bars[:i]
}

// series keeps bars of symbol; bars without a symbol match any instrument.
func (s *JSONBarStore) series(symbol string) []models.Bar {
	symbol = util.NormalizeSymbol(symbol)
	out := make([]models.Bar, 0, len(s.bars))
	for _, b := range s.bars {
		if b.Symbol == "" || util.NormalizeSymbol(b.Symbol) == symbol {
			out = append(out, b)
		}
	}
	return out
}

func (s *JSONBarStore) GetBars(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	var out []models.Bar
	for _, b := range s.series(symbol) {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *JSONBarStore) GetLatestNBars(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	bars := s.series(symbol)
	if n > 0 && n < len(bars) {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}
