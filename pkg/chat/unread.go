package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultUnreadInterval is the chat-list badge refresh cadence. Much
// longer than the conversation poll — the badge tolerates staleness.
const DefaultUnreadInterval = 30 * time.Second

// UnreadFetcher is the slice of the REST client the badge poller needs.
type UnreadFetcher interface {
	UnreadCount(ctx context.Context) (int, error)
}

// UnreadPoller refreshes the chat-entry unread badge on its own timer,
// independent of any open conversation. Same lifecycle contract as the
// engine: one timer, idempotent Start/Stop, failed ticks retried next
// interval without surfacing.
type UnreadPoller struct {
	fetcher  UnreadFetcher
	onChange func(int)
	log      zerolog.Logger

	mu       sync.Mutex
	interval time.Duration
	running  bool
	stopChan chan struct{}
	last     int
	haveLast bool
}

func NewUnreadPoller(fetcher UnreadFetcher, interval time.Duration, onChange func(int), log zerolog.Logger) *UnreadPoller {
	if interval <= 0 {
		interval = DefaultUnreadInterval
	}
	return &UnreadPoller{
		fetcher:  fetcher,
		interval: interval,
		onChange: onChange,
		log:      log.With().Str("component", "unread_poller").Logger(),
	}
}

func (p *UnreadPoller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()

	go p.run(stop)
}

func (p *UnreadPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)
}

// SetInterval applies a new badge cadence, typically after a config hot
// reload. A running loop is restarted; a stopped poller picks it up on
// the next Start.
func (p *UnreadPoller) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultUnreadInterval
	}
	p.mu.Lock()
	if interval == p.interval {
		p.mu.Unlock()
		return
	}
	p.interval = interval
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopChan)
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()
	go p.run(stop)
}

func (p *UnreadPoller) pollInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *UnreadPoller) run(stop chan struct{}) {
	p.tick()
	ticker := time.NewTicker(p.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *UnreadPoller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval())
	defer cancel()
	count, err := p.fetcher.UnreadCount(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("Unread count fetch failed, keeping last value")
		return
	}
	p.mu.Lock()
	changed := !p.haveLast || count != p.last
	p.last = count
	p.haveLast = true
	p.mu.Unlock()
	if changed && p.onChange != nil {
		p.onChange(count)
	}
}

// Last returns the most recent successfully fetched count.
func (p *UnreadPoller) Last() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.haveLast
}
