// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"hash/fnv"
	"sync"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/common/logger"
	"convocore/internal/common/metrics"
	"convocore/internal/models"
)

// Handler processes one inbound message. The dispatcher guarantees it is
// never invoked concurrently for the same conversation key.
type Handler func(ctx context.Context, msg *models.InboundMessage)

// Dispatcher fans inbound messages across a fixed set of lanes. Messages for
// the same (tenant, channel user) always hash to the same lane, so turns for
// one conversation run strictly in arrival order while distinct
// conversations proceed in parallel.
type Dispatcher struct {
	lanes   []chan *models.InboundMessage
	handler Handler
	logger  logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// mu orders Dispatch sends against Stop closing the lanes: senders hold
	// the read lock for the whole check-then-send, Stop closes under the
	// write lock.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(laneCount, queueDepth int, handler Handler, log logger.Logger) *Dispatcher {
	if laneCount <= 0 {
		laneCount = 32
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	lanes := make([]chan *models.InboundMessage, laneCount)
	for i := range lanes {
		lanes[i] = make(chan *models.InboundMessage, queueDepth)
	}
	return &Dispatcher{
		lanes:   lanes,
		handler: handler,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Start launches one worker goroutine per lane.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for _, lane := range d.lanes {
			d.wg.Add(1)
			go d.run(ctx, lane)
		}
		d.logger.Info("dispatcher started", map[string]interface{}{
			"lanes":      len(d.lanes),
			"queueDepth": cap(d.lanes[0]),
		})
	})
}

// Dispatch enqueues a message onto its conversation's lane. A full lane
// rejects the message immediately so the ingress can signal backpressure
// instead of blocking the accept loop.
func (d *Dispatcher) Dispatch(msg *models.InboundMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return domainerrors.NewConnectionError("dispatcher", context.Canceled)
	}

	lane := d.laneFor(msg.TenantID, msg.ChannelUserID)
	select {
	case d.lanes[lane] <- msg:
		return nil
	default:
		metrics.DroppedTurns.WithLabelValues(msg.TenantID).Inc()
		return domainerrors.NewRateLimitedError("dispatcher")
	}
}

// Stop refuses new messages, drains every lane and waits for in-flight turns.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
		d.mu.Unlock()
		d.wg.Wait()
		d.logger.Info("dispatcher stopped", nil)
	})
}

func (d *Dispatcher) run(ctx context.Context, ch <-chan *models.InboundMessage) {
	defer d.wg.Done()
	for msg := range ch {
		d.handler(ctx, msg)
	}
}

func (d *Dispatcher) laneFor(tenantID, channelUserID string) int {
	h := fnv.New32a()
	h.Write([]byte(models.SessionKey(tenantID, channelUserID)))
	return int(h.Sum32() % uint32(len(d.lanes)))
}
