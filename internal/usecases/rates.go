package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/changewld/backend/internal/entities"
)

// Fallback constants used when an upstream source fails; each source falls
// back independently so partial outages still produce a complete quote.
const (
	FallbackWldUsd = 0.76
	FallbackUsdCop = 3700
)

const rateSourceLabel = "Binance + ExchangeRate.host (cache y fallback)"

// SpotPriceSource yields the WLD/USD spot price.
type SpotPriceSource interface {
	WLDUSD(ctx context.Context) (float64, error)
}

// FXRateSource yields the USD/COP exchange rate.
type FXRateSource interface {
	USDCOP(ctx context.Context) (float64, error)
}

// RateService computes the user-facing WLD -> COP quote and caches it for a
// fixed freshness window. A cache miss triggers exactly one refresh even
// under concurrent callers (single-flight); upstream failures are absorbed
// with fallback constants and never surface to the caller.
type RateService struct {
	logger *slog.Logger
	spot   SpotPriceSource
	fx     FXRateSource

	spread decimal.Decimal
	ttl    time.Duration

	mu        sync.RWMutex
	cached    *entities.RateQuote
	fetchedAt time.Time

	group singleflight.Group
}

func NewRateService(logger *slog.Logger, spot SpotPriceSource, fx FXRateSource, spread float64, ttl time.Duration) *RateService {
	return &RateService{
		logger: logger,
		spot:   spot,
		fx:     fx,
		spread: decimal.NewFromFloat(spread),
		ttl:    ttl,
	}
}

// GetRate returns the current quote. The second result reports whether it
// was served from cache without touching the upstream sources.
func (s *RateService) GetRate(ctx context.Context) (entities.RateQuote, bool, error) {
	if quote, ok := s.freshQuote(); ok {
		return quote, true, nil
	}

	result, err, _ := s.group.Do("rate", func() (any, error) {
		// A concurrent caller may have refreshed while we waited on
		// the flight lock.
		if quote, ok := s.freshQuote(); ok {
			return quote, nil
		}
		return s.refresh(ctx), nil
	})
	if err != nil {
		return entities.RateQuote{}, false, err
	}
	return result.(entities.RateQuote), false, nil
}

func (s *RateService) freshQuote() (entities.RateQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		return *s.cached, true
	}
	return entities.RateQuote{}, false
}

// refresh queries both sources concurrently, substitutes fallbacks for
// whichever failed and stores the computed quote.
func (s *RateService) refresh(ctx context.Context) entities.RateQuote {
	var (
		wldUsd = FallbackWldUsd
		usdCop = float64(FallbackUsdCop)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, err := s.spot.WLDUSD(gctx)
		if err != nil {
			s.logger.Warn("WLD/USD source failed, using fallback", "fallback", FallbackWldUsd, "error", err)
			return nil
		}
		wldUsd = price
		return nil
	})
	g.Go(func() error {
		rate, err := s.fx.USDCOP(gctx)
		if err != nil {
			s.logger.Warn("USD/COP source failed, using fallback", "fallback", FallbackUsdCop, "error", err)
			return nil
		}
		usdCop = rate
		return nil
	})
	_ = g.Wait() // goroutines never return errors, failures become fallbacks

	quote := s.compute(wldUsd, usdCop)

	s.mu.Lock()
	s.cached = &quote
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("Rate quote refreshed",
		"wld_usd", quote.WldUsd,
		"usd_cop", quote.UsdCop,
		"wld_cop_usuario", quote.WldCopUsuario)
	return quote
}

func (s *RateService) compute(wldUsd, usdCop float64) entities.RateQuote {
	usd := decimal.NewFromFloat(wldUsd)
	cop := decimal.NewFromFloat(usdCop)

	bruto := usd.Mul(cop)
	usuario := bruto.Mul(decimal.NewFromInt(1).Sub(s.spread))

	return entities.RateQuote{
		WldUsd:        usd.Round(6).InexactFloat64(),
		UsdCop:        cop.Round(2).InexactFloat64(),
		WldCopBruto:   bruto.Round(2).InexactFloat64(),
		WldCopUsuario: usuario.Round(2).InexactFloat64(),
		SpreadPercent: s.spread.Mul(decimal.NewFromInt(100)).InexactFloat64(),
		Fuente:        rateSourceLabel,
		Fecha:         time.Now().UTC(),
	}
}
