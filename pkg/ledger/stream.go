package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/flightsurety/pkg/services/oracle"
	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// History is used to replay notifications from past blocks.
	History interface {
		GetBlockCount() (uint32, error)
		GetBlockByIndex(index uint32) (*block.Block, error)
		GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
	}

	// Subscriber delivers live notifications and blocks. Receiver channels
	// are closed when the connection is lost.
	Subscriber interface {
		ReceiveExecutionNotifications(flt *neorpc.NotificationFilter, rcvr chan<- *state.ContainedNotificationEvent) (string, error)
		ReceiveBlocks(flt *neorpc.BlockFilter, rcvr chan<- *block.Block) (string, error)
		GetError() error
		Close()
	}

	// Dialer creates a new Subscriber connection.
	Dialer func(ctx context.Context) (Subscriber, error)

	// StreamConfig contains Stream parameters.
	StreamConfig struct {
		Log *zap.Logger
		// Contracts are the hashes notifications are accepted from.
		Contracts         []util.Uint160
		StartHeight       uint32
		ReconnectInterval time.Duration
		BufferSize        int
		DedupCacheSize    int
		History           History
		Dial              Dialer
	}

	// Stream merges notifications replayed from history starting at
	// StartHeight with live ones into a single ordered channel. Every
	// notification is delivered once, connection failures are delivered as
	// error events followed by reconnection.
	Stream struct {
		StreamConfig

		events chan oracle.Event
		seen   *lru.Cache
		// next is the first block not known to be fully delivered, replay
		// after reconnection starts from it.
		next    uint32
		started *atomic.Bool
		ctx     context.Context
		cancel  context.CancelFunc
		quit    chan struct{}
		done    chan struct{}
	}

	// liveItem is either a notification or a new block marker.
	liveItem struct {
		event *state.ContainedNotificationEvent
		block uint32
	}

	// backlog keeps live items received while history is replayed.
	backlog struct {
		lock   sync.Mutex
		items  []liveItem
		closed bool
		ready  chan struct{}
	}
)

// NewStream creates a notification stream.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.History == nil || cfg.Dial == nil {
		return nil, errors.New("no history or dialer")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	seen, err := lru.New(cfg.DedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("can't create dedup cache: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		StreamConfig: cfg,
		events:       make(chan oracle.Event, max(cfg.BufferSize, 0)),
		seen:         seen,
		next:         cfg.StartHeight,
		started:      atomic.NewBool(false),
		ctx:          ctx,
		cancel:       cancel,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Events returns the notification channel. It's closed once the stream is
// stopped.
func (s *Stream) Events() <-chan oracle.Event {
	return s.events
}

// Start runs the stream in a separate goroutine. Subsequent calls are no-op.
func (s *Stream) Start() {
	if !s.started.CAS(false, true) {
		return
	}
	s.Log.Info("starting notification stream", zap.Uint32("from", s.next))
	go s.run()
}

// Shutdown stops the stream and waits for it to finish.
func (s *Stream) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	s.Log.Info("stopping notification stream")
	close(s.quit)
	s.cancel()
	<-s.done
}

func (s *Stream) run() {
	defer close(s.done)
	defer close(s.events)
	for {
		err := s.session()
		if s.stopping() {
			return
		}
		s.Log.Warn("notification stream interrupted",
			zap.Error(err),
			zap.Duration("reconnect in", s.ReconnectInterval))
		if !s.emit(oracle.Event{Err: err}) {
			return
		}
		select {
		case <-s.quit:
			return
		case <-time.After(s.ReconnectInterval):
		}
	}
}

func (s *Stream) stopping() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// session subscribes for live notifications, replays the history and then
// forwards live notifications until the connection is lost.
func (s *Stream) session() error {
	sub, err := s.Dial(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer sub.Close()

	var (
		live   = make(chan *state.ContainedNotificationEvent)
		blocks = make(chan *block.Block)
		b      = &backlog{ready: make(chan struct{}, 1)}
	)
	go b.collect(live, blocks)
	if _, err := sub.ReceiveExecutionNotifications(nil, live); err != nil {
		close(live)
		close(blocks)
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if _, err := sub.ReceiveBlocks(nil, blocks); err != nil {
		close(blocks)
		return fmt.Errorf("failed to subscribe for blocks: %w", err)
	}

	if err := s.replay(); err != nil {
		return err
	}
	for {
		select {
		case <-s.quit:
			return nil
		case <-b.ready:
			items, closed := b.take()
			for _, it := range items {
				if it.event == nil {
					s.blockAdded(it.block)
					continue
				}
				if !s.forward(it.event) {
					return nil
				}
			}
			if closed {
				if err := sub.GetError(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return errors.New("connection lost")
			}
		}
	}
}

// replay delivers notifications from blocks up to the current height and
// moves the starting point for the next replay.
func (s *Stream) replay() error {
	count, err := s.History.GetBlockCount()
	if err != nil {
		return fmt.Errorf("failed to get block count: %w", err)
	}
	if s.next < count {
		s.Log.Info("replaying notifications", zap.Uint32("from", s.next), zap.Uint32("to", count-1))
	}
	trig := trigger.Application
	for ; s.next < count; s.next++ {
		b, err := s.History.GetBlockByIndex(s.next)
		if err != nil {
			return fmt.Errorf("failed to get block %d: %w", s.next, err)
		}
		for _, tx := range b.Transactions {
			h := tx.Hash()
			aer, err := s.History.GetApplicationLog(h, &trig)
			if err != nil {
				return fmt.Errorf("failed to get application log for %s: %w", h.StringLE(), err)
			}
			for _, ex := range aer.Executions {
				if ex.VMState != vmstate.Halt {
					continue
				}
				for _, e := range ex.Events {
					if !s.forward(&state.ContainedNotificationEvent{Container: h, NotificationEvent: e}) {
						return errors.New("stopped")
					}
				}
			}
		}
	}
	return nil
}

// blockAdded moves the replay starting point to the new block. Notifications
// of all previous blocks are delivered by then, the ones of the new block
// may still be in flight and are replayed after reconnection.
func (s *Stream) blockAdded(index uint32) {
	if index > s.next {
		s.next = index
	}
}

// forward sends watched notifications not seen before, it returns false if
// the stream is stopped.
func (s *Stream) forward(ev *state.ContainedNotificationEvent) bool {
	if !slices.Contains(s.Contracts, ev.ScriptHash) {
		return true
	}
	if key, ok := dedupKey(ev); ok {
		if seen, _ := s.seen.ContainsOrAdd(key, struct{}{}); seen {
			return true
		}
	}
	return s.emit(oracle.Event{Container: ev.Container, NotificationEvent: ev.NotificationEvent})
}

func (s *Stream) emit(ev oracle.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

// dedupKey identifies a notification by transaction, emitter, name and
// payload.
func dedupKey(ev *state.ContainedNotificationEvent) (string, bool) {
	if ev.Item == nil {
		return "", false
	}
	payload, err := stackitem.Serialize(ev.Item)
	if err != nil {
		return "", false
	}
	return ev.Container.StringLE() + ev.ScriptHash.StringLE() + ev.Name + hex.EncodeToString(payload), true
}

// collect reads both receivers in arrival order until both are closed.
func (b *backlog) collect(live <-chan *state.ContainedNotificationEvent, blocks <-chan *block.Block) {
	for live != nil || blocks != nil {
		select {
		case ev, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			b.push(liveItem{event: ev})
		case blk, ok := <-blocks:
			if !ok {
				blocks = nil
				continue
			}
			b.push(liveItem{block: blk.Index})
		}
	}
	b.close()
}

func (b *backlog) push(it liveItem) {
	b.lock.Lock()
	b.items = append(b.items, it)
	b.lock.Unlock()
	b.notify()
}

func (b *backlog) close() {
	b.lock.Lock()
	b.closed = true
	b.lock.Unlock()
	b.notify()
}

func (b *backlog) notify() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *backlog) take() ([]liveItem, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	items := b.items
	b.items = nil
	return items, b.closed
}
