package transfer

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletcore/internal/common"
)

const (
	defaultWindow        = 30 * time.Second
	defaultEntryTimeout  = 60 * time.Second
	defaultSweepInterval = 10 * time.Second
)

// Registry deduplicates in-flight transfers keyed on (sender, recipient,
// amount, time window). Amounts are rounded to 2 decimals before keying so
// float-noise variants of the same transfer collide. Every entry is written
// under both the current and the previous window key and lookups check both,
// which makes the fixed window behave like a sliding one and closes the gap
// at window boundaries.
type Registry struct {
	window        time.Duration
	entryTimeout  time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
	stopped sync.Once
}

type entry struct {
	sender       string
	recipient    string
	amount       uint64 // hundredths of a token unit
	registeredAt time.Time
	keys         [2]string
	pending      *Pending
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock overrides the clock. Tests use this to cross window
// boundaries deterministically.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithRegistryWindow overrides the dedup window.
func WithRegistryWindow(window time.Duration) RegistryOption {
	return func(r *Registry) { r.window = window }
}

// WithRegistryTimeout overrides the hard entry timeout.
func WithRegistryTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) { r.entryTimeout = timeout }
}

// WithRegistryLogger attaches a logger.
func WithRegistryLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a registry. Call Start to enable the background sweep
// and Stop to shut it down.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		window:        defaultWindow,
		entryTimeout:  defaultEntryTimeout,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		log:           zerolog.Nop(),
		entries:       make(map[string]*entry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckAndRegister looks up an in-flight transfer for the tuple and registers
// one if none exists. The check and the insert happen under one lock hold;
// two racing calls can never both observe "no existing entry".
//
// When existing is true, pending belongs to the earlier call and settle is
// nil: the duplicate caller only observes, it owns nothing. Otherwise the
// caller must settle the entry with the terminal outcome, which resolves the
// pending for all waiters and then releases both window keys. Settle is
// idempotent and safe to omit; the sweep is the backstop.
func (r *Registry) CheckAndRegister(sender, recipient string, amountMicro uint64) (pending *Pending, existing bool, settle func(*Outcome)) {
	amount := common.RoundToHundredths(amountMicro)
	now := r.now()
	windowIndex := now.UnixMilli() / r.window.Milliseconds()

	current := dedupKey(sender, recipient, amount, windowIndex)
	previous := dedupKey(sender, recipient, amount, windowIndex-1)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range []string{current, previous} {
		if ent, ok := r.entries[key]; ok {
			if now.Sub(ent.registeredAt) > r.entryTimeout {
				// stale even though the sweep has not collected it yet
				continue
			}
			return ent.pending, true, nil
		}
	}

	ent := &entry{
		sender:       sender,
		recipient:    recipient,
		amount:       amount,
		registeredAt: now,
		keys:         [2]string{current, previous},
		pending:      newPending(),
	}
	// the same entry lives under both adjacent window keys
	r.entries[current] = ent
	r.entries[previous] = ent

	var settleOnce sync.Once
	settle = func(o *Outcome) {
		settleOnce.Do(func() {
			// resolve before removing the keys so waiters that held the
			// pending always observe the outcome
			ent.pending.resolve(o)
			r.remove(ent)
		})
	}
	return ent.pending, false, settle
}

func (r *Registry) remove(ent *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range ent.keys {
		if r.entries[key] == ent {
			delete(r.entries, key)
		}
	}
}

// Start launches the periodic sweep that evicts entries past the hard
// timeout.
func (r *Registry) Start() {
	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweep.
func (r *Registry) Stop() {
	r.stopped.Do(func() { close(r.stop) })
}

func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, ent := range r.entries {
		if now.Sub(ent.registeredAt) > r.entryTimeout {
			delete(r.entries, key)
			removed++
		}
	}
	if removed > 0 {
		r.log.Debug().Int("removed", removed).Msg("swept stale transfer registry entries")
	}
}

// size reports live entries, counting each dual-keyed entry twice.
func (r *Registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func dedupKey(sender, recipient string, amountHundredths uint64, windowIndex int64) string {
	return sender + "|" + recipient + "|" + common.HundredthsString(amountHundredths) + "|" + strconv.FormatInt(windowIndex, 10)
}
