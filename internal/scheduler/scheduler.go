package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/nhatm/estate-ledger/internal/core/service"
	"github.com/nhatm/estate-ledger/internal/port"
)

// Scheduler drives the two background processes: the rental payout pass and
// the portfolio snapshot pass. Both run for every account on a fixed cadence
// and for a single account whenever a ledger change event arrives. A pass is
// cancellable between accounts, never inside one atomic batch; a failing
// account is logged and skipped so one bad record cannot stall the sweep.
type Scheduler struct {
	store     port.LedgerStore
	cache     port.CacheRepository
	payouts   *service.PayoutService
	snapshots *service.SnapshotService
	interval  time.Duration

	sched  gocron.Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

func New(store port.LedgerStore, cache port.CacheRepository, payouts *service.PayoutService, snapshots *service.SnapshotService, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		cache:     cache,
		payouts:   payouts,
		snapshots: snapshots,
		interval:  interval,
	}
}

// Start begins the periodic sweep and the change-event listener. It returns
// once both are running.
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	sched, err := gocron.NewScheduler()
	if err != nil {
		cancel()
		close(s.done)
		return err
	}
	s.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
	)
	if err != nil {
		cancel()
		close(s.done)
		return err
	}
	sched.Start()

	changes, err := s.cache.AccountChanges(ctx)
	if err != nil {
		cancel()
		sched.Shutdown()
		close(s.done)
		return err
	}
	go func() {
		defer close(s.done)
		for accountID := range changes {
			if ctx.Err() != nil {
				return
			}
			s.RunAccount(ctx, accountID)
		}
	}()

	log.Printf("scheduler started, sweep interval %s", s.interval)
	return nil
}

// Stop cancels any in-flight pass at the next batch boundary and waits for
// the listener to drain.
func (s *Scheduler) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("scheduler shutdown: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Sweep runs the payout and snapshot passes for every account.
func (s *Scheduler) Sweep(ctx context.Context) {
	ids, err := s.store.ListAccountIDs(ctx)
	if err != nil {
		log.Printf("sweep: list accounts: %v", err)
		return
	}
	for _, accountID := range ids {
		if ctx.Err() != nil {
			return
		}
		s.RunAccount(ctx, accountID)
	}
}

// RunAccount runs both background passes for one account.
func (s *Scheduler) RunAccount(ctx context.Context, accountID string) {
	credited, err := s.payouts.Run(ctx, accountID)
	if err != nil {
		log.Printf("payout pass for %s: %v", accountID, err)
	} else if credited.IsPositive() {
		log.Printf("credited %s rental income to %s", credited, accountID)
	}

	if _, err := s.snapshots.Run(ctx, accountID); err != nil {
		log.Printf("snapshot pass for %s: %v", accountID, err)
	}
}
