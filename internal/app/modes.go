package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openslot/openslot/internal/domain"
	"github.com/openslot/openslot/internal/engine"
	"github.com/openslot/openslot/internal/scheduler"
	"github.com/openslot/openslot/internal/server"
	"github.com/openslot/openslot/internal/server/handler"
	"github.com/openslot/openslot/internal/server/ws"
)

// archiveInterval is how often the settlement archiver runs when enabled.
const archiveInterval = 24 * time.Hour

// buildEngine assembles the auction engine from wired dependencies.
func (a *App) buildEngine(deps *Dependencies, extra ...engine.Option) *engine.Engine {
	opts := []engine.Option{engine.WithLogger(a.logger)}
	if deps.SignalBus != nil {
		opts = append(opts, engine.WithSignalBus(deps.SignalBus))
	}
	if deps.RateLimiter != nil {
		opts = append(opts, engine.WithRateLimiter(deps.RateLimiter))
	}
	if deps.Notifier != nil {
		opts = append(opts, engine.WithNotifier(deps.Notifier))
	}
	opts = append(opts, extra...)

	return engine.New(deps.Store, deps.Gateway, engine.Config{
		AuctionWindow: a.cfg.Auction.Window.Duration,
		FeeRate:       a.cfg.Auction.FeeRate,
		BidRateLimit:  a.cfg.Auction.BidRateLimit,
		BidRateWindow: a.cfg.Auction.BidRateWindow.Duration,
	}, opts...)
}

// ServeMode runs the HTTP + WebSocket API alongside the background sweep
// scheduler and, when enabled, the settlement archiver.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "redis not configured, websocket feed disabled")
	}

	sch := scheduler.New(eng, a.cfg.Auction.SweepInterval.Duration, deps.LockManager, a.logger)
	g.Go(func() error {
		return sch.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Principals: handler.NewPrincipalHandler(eng, a.logger),
		Slots:      handler.NewSlotHandler(eng, a.logger),
		Contracts:  handler.NewContractHandler(eng, a.logger),
		Sweeps:     handler.NewSweepHandler(eng, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// SweepMode runs the sweep scheduler headless, without the HTTP API. Meant
// for dedicated worker deployments next to one or more serve instances; the
// distributed sweep lock keeps passes from overlapping.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)

	sch := scheduler.New(eng, a.cfg.Auction.SweepInterval.Duration, deps.LockManager, a.logger)
	g.Go(func() error {
		return sch.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// startArchiver adds a periodic archive goroutine to the group when the
// archiver is wired. Rows older than the retention window are exported to
// object storage; failures are logged and retried on the next tick.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(archiveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)

				contracts, err := deps.Archiver.ArchiveContracts(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archive contracts failed", slog.String("error", err.Error()))
				}
				bids, err := deps.Archiver.ArchiveBids(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archive bids failed", slog.String("error", err.Error()))
				}
				if contracts > 0 || bids > 0 {
					a.logger.InfoContext(ctx, "archive pass done",
						slog.Int64("contracts", contracts),
						slog.Int64("bids", bids),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}

// SimulateMode drives one full auction lifecycle against the in-memory store
// with a controllable clock: a won auction that completes on time, then a
// second auction whose winner breaches. Useful as a smoke test of the engine
// wiring without any external services.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode")

	now := time.Now().UTC()
	eng := a.buildEngine(deps, engine.WithClock(func() time.Time { return now }))

	issuer, err := a.simPrincipal(ctx, eng, domain.PrincipalKindIssuer, "Acme Research")
	if err != nil {
		return err
	}
	bidders := make([]domain.Principal, 0, 3)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		b, err := a.simPrincipal(ctx, eng, domain.PrincipalKindBidder, name)
		if err != nil {
			return err
		}
		bidders = append(bidders, b)
	}

	// Round 1: three bids, one below reserve; winner completes on time.
	slot, err := eng.CreateSlot(ctx, issuer.ID, domain.TierStandard, "analytics", []string{"analytics", "dashboards"}, 50_000)
	if err != nil {
		return fmt.Errorf("simulate: create slot: %w", err)
	}
	for i, amount := range []int64{80_000, 65_000, 40_000} {
		if _, err := eng.PlaceBid(ctx, slot.ID, bidders[i].ID, amount); err != nil {
			return fmt.Errorf("simulate: bid %d: %w", amount, err)
		}
	}

	now = now.Add(a.cfg.Auction.Window.Duration + time.Minute)
	res, err := eng.CloseAuction(ctx, slot.ID)
	if err != nil {
		return fmt.Errorf("simulate: close auction: %w", err)
	}
	a.logger.InfoContext(ctx, "simulate: auction closed",
		slog.String("slot_id", res.Slot.ID),
		slog.String("winning_bid_id", res.Contract.WinningBidID),
		slog.Int64("clearing_price", res.Contract.ClearingPrice),
		slog.Int("refunded", len(res.Refunded)),
	)

	now = now.Add(24 * time.Hour)
	contract, err := eng.CompleteContract(ctx, res.Contract.ID, issuer.ID)
	if err != nil {
		return fmt.Errorf("simulate: complete contract: %w", err)
	}
	a.logger.InfoContext(ctx, "simulate: contract completed",
		slog.String("contract_id", contract.ID),
		slog.Int64("platform_fee", engine.PlatformFee(contract.ClearingPrice, a.cfg.Auction.FeeRate)),
	)

	// Round 2: a single bid wins and the contract runs past its deadline.
	slot2, err := eng.CreateSlot(ctx, issuer.ID, domain.TierSprint, "analytics", []string{"analytics", "dashboards"}, 50_000)
	if err != nil {
		return fmt.Errorf("simulate: create second slot: %w", err)
	}
	if _, err := eng.PlaceBid(ctx, slot2.ID, bidders[1].ID, 70_000); err != nil {
		return fmt.Errorf("simulate: second bid: %w", err)
	}

	now = now.Add(a.cfg.Auction.Window.Duration + time.Minute)
	if _, err := eng.CloseAuction(ctx, slot2.ID); err != nil {
		return fmt.Errorf("simulate: close second auction: %w", err)
	}

	now = now.Add(domain.TierSprint.Duration() + time.Hour)
	report, err := eng.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("simulate: sweep: %w", err)
	}
	a.logger.InfoContext(ctx, "simulate: sweep done",
		slog.Int("auctions_closed", report.AuctionsClosed),
		slog.Int("contracts_breached", report.ContractsBreached),
	)

	a.logger.InfoContext(ctx, "simulate: lifecycle complete")
	return nil
}

// simPrincipal registers and verifies one principal for the simulation.
func (a *App) simPrincipal(ctx context.Context, eng *engine.Engine, kind domain.PrincipalKind, name string) (domain.Principal, error) {
	p, err := eng.RegisterPrincipal(ctx, kind, name)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("simulate: register %s: %w", name, err)
	}
	if err := eng.VerifyPrincipal(ctx, p.ID); err != nil {
		return domain.Principal{}, fmt.Errorf("simulate: verify %s: %w", name, err)
	}
	return p, nil
}
