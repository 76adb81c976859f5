// Package sweeper runs the background expiration task: a periodic job,
// active only on the primary role, that acquires the store's write guard
// and removes every expired entry in one pass.
package sweeper

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"redikv/internal/storage"
)

// DefaultInterval is the reference cadence: keys may be
// read-visible-but-expired for up to one interval, but Store.Get always
// re-checks expiration itself, so this laxness never leaks through reads.
const DefaultInterval = 6 * time.Second

// OnSweep, when set, is invoked with the number of keys removed after each
// run — used to drive the expired_keys_total metric.
type Sweeper struct {
	scheduler gocron.Scheduler
	store     *storage.Store
	log       *logrus.Entry
	OnSweep   func(removed int)
}

// New builds a Sweeper that will remove expired keys from store every
// interval once Start is called.
func New(store *storage.Store, interval time.Duration, log *logrus.Logger) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	s := &Sweeper{
		scheduler: scheduler,
		store:     store,
		log:       log.WithField("component", "sweeper"),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Sweeper) run() {
	removed := s.store.SweepExpired()
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("swept expired keys")
	}
	if s.OnSweep != nil {
		s.OnSweep(removed)
	}
}

// Start begins running the scheduled sweep in the background.
func (s *Sweeper) Start() {
	s.scheduler.Start()
}

// Stop halts the scheduler, blocking until any in-flight sweep completes.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
