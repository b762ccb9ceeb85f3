// Command demo constructs a MatchingEngine, submits a fixed script of
// orders, and prints the resulting trades and book state. It is a
// demonstration driver, not part of the matching core library.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"matchcore/internal/common"
	"matchcore/internal/engine"
	"matchcore/internal/risk"
)

// dailyResetInterval is how often the demo drives RiskManager.ResetDay.
// Daily-boundary scheduling is left external to the risk manager itself;
// this is one example of a driver for it.
const dailyResetInterval = 24 * time.Hour

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limits := risk.Limits{
		MaxOrderSize:    decimal.NewFromInt(10_000),
		MaxPositionSize: decimal.NewFromInt(50_000),
		MaxDailyLoss:    decimal.NewFromInt(1_000_000),
		MaxOrderValue:   decimal.NewFromInt(5_000_000),
	}
	riskMgr := risk.New(limits)
	eng := engine.New(riskMgr, engine.WithLogger(log.Logger))

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return runDailyResetScheduler(t, riskMgr)
	})

	runScript(eng)

	log.Info().Msg("demo script complete, awaiting shutdown signal")
	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("scheduler exited with error")
	}
}

// runDailyResetScheduler supervises the periodic RiskManager.ResetDay call
// that, in production, would fire at the daily boundary; tomb gives it the
// same die-cleanly-on-shutdown discipline as any other supervised goroutine.
func runDailyResetScheduler(t *tomb.Tomb, riskMgr *risk.Manager) error {
	ticker := time.NewTicker(dailyResetInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			log.Info().Msg("daily boundary reached, resetting risk counters")
			riskMgr.ResetDay()
		}
	}
}

// runScript submits a fixed sequence of orders covering a simple cross,
// FIFO tie-breaking at a shared price level, and a stop-loss trigger
// cascade, logging the resulting trades and book state as it goes.
func runScript(eng *engine.MatchingEngine) {
	clk := eng.Clock()
	const symbol = "AAPL"

	submit := func(order *common.Order, label string) []*common.Trade {
		trades, err := eng.SubmitOrder(order)
		if err != nil {
			log.Warn().Err(err).Str("step", label).Msg("order not accepted")
			return nil
		}
		log.Info().Str("step", label).Int("trades", len(trades)).Msg("order submitted")
		for _, tr := range trades {
			log.Info().
				Str("step", label).
				Str("price", tr.Price.String()).
				Str("qty", tr.Quantity.String()).
				Str("buyer", tr.BuyerAccount).
				Str("seller", tr.SellerAccount).
				Msg("trade")
		}
		return trades
	}

	mustLimit := func(side common.Side, qty, price decimal.Decimal, account string) *common.Order {
		o, err := common.New(clk, symbol, side, common.Limit, qty, price, decimal.Zero, account)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid demo order")
		}
		return o
	}
	mustMarket := func(side common.Side, qty decimal.Decimal, account string) *common.Order {
		o, err := common.New(clk, symbol, side, common.Market, qty, decimal.Zero, decimal.Zero, account)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid demo order")
		}
		return o
	}

	// Simple cross: a resting sell filled immediately by a matching buy.
	submit(mustLimit(common.Sell, decimal.NewFromInt(10), decimal.NewFromInt(100), "acct-x"), "simple-cross-sell")
	submit(mustLimit(common.Buy, decimal.NewFromInt(10), decimal.NewFromInt(100), "acct-y"), "simple-cross-buy")

	// FIFO tie-break: two asks resting at the same price, swept by one taker.
	submit(mustLimit(common.Sell, decimal.NewFromInt(5), decimal.NewFromInt(102), "acct-q1"), "fifo-q1")
	submit(mustLimit(common.Sell, decimal.NewFromInt(5), decimal.NewFromInt(102), "acct-q2"), "fifo-q2")
	submit(mustMarket(common.Buy, decimal.NewFromInt(7), "acct-taker"), "fifo-sweep")

	// Stop-loss trigger: a resting bid sets up the trade price a stop order
	// will fire on.
	submit(mustLimit(common.Buy, decimal.NewFromInt(10), decimal.NewFromInt(99), "acct-bidder"), "stop-setup-bid")
	stop, err := common.New(clk, symbol, common.Sell, common.StopLoss, decimal.NewFromInt(5), decimal.Zero, decimal.NewFromInt(100), "acct-stopper")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid demo stop order")
	}
	submit(stop, "stop-place")
	submit(mustLimit(common.Sell, decimal.NewFromInt(1), decimal.NewFromInt(99), "acct-aggressor"), "stop-trigger")

	if view, err := eng.GetOrderBook(symbol); err == nil {
		if price, qty, ok := view.BestBid(); ok {
			log.Info().Str("price", price.String()).Str("qty", qty.String()).Msg("final best bid")
		}
		if price, qty, ok := view.BestAsk(); ok {
			log.Info().Str("price", price.String()).Str("qty", qty.String()).Msg("final best ask")
		}
	}
}
