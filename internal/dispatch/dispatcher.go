// Copyright 2015 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"net"
	"time"

	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/message"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/streamio"
	"github.com/dspeterson/dory/internal/wire"
	"github.com/sirupsen/logrus"
)

// MessageSink is the dispatcher's view back into the router: where a
// retried sub-batch and a terminally-failed one go (spec §4.5 step 6,
// spec §8). router.Router implements this directly.
type MessageSink interface {
	Requeue(msg *message.Message, now time.Time)
	Discard(topic string, reason discard.Reason, identity []byte, now time.Time)
}

// Config bounds one dispatcher's timing and limits. One Config is shared
// by every broker's dispatcher; only the address differs per instance.
type Config struct {
	DialTimeout          time.Duration
	RequiredAcks         int16
	ReplicationTimeoutMs int32
	ProduceDataLimit     int
	MaxResponseSize      int
	QueueCapacity        int
	MaxFailedAttempts    int // mirrors router.Config.MaxFailedDeliveryAttempts

	// PauseMinDelay/PauseMaxDoublings/PauseQuiescent parameterize both the
	// reconnect backoff (Connecting -> Broken -> Connecting) and the
	// error-rate pause (spec §4.5 step 7); both use this package's Pause
	// type but run independent instances.
	PauseMinDelay    time.Duration
	PauseMaxDoublings int
	PauseQuiescent   time.Duration

	// ErrorRateTrigger is how many consecutive non-ack partition results
	// (retriable or permanent) in a row arm the error-rate pause.
	ErrorRateTrigger int

	ClientID string
}

// dialFunc exists so tests can substitute a fake dialer instead of
// opening a real TCP connection.
type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Dispatcher is the per-broker worker of spec §4.5: a state machine,
// a bounded send queue, an in-flight correlation table, and the
// produce-request factory, all driven by repeated Step calls from the
// engine's poll loop rather than a dedicated blocking goroutine — this
// keeps every dispatcher's state single-owner with no locking beyond the
// MPSC queue itself (spec §5).
type Dispatcher struct {
	brokerIndex int32
	addr        string
	log         *logrus.Entry
	cfg         Config
	sink        MessageSink
	factory     *Factory
	dial        dialFunc

	inflight     *InFlightTable
	errorPause   *Pause
	connectPause *Pause

	state State
	conn  net.Conn
	reader *streamio.Reader

	queue   chan router.RoutedGroup
	pending []router.RoutedGroup

	consecutiveErrors int
	nextCorrelation   int32
}

// NewDispatcher creates a dispatcher for the broker at addr, starting in
// Connecting state.
func NewDispatcher(brokerIndex int32, addr string, log *logrus.Logger, cfg Config, factory *Factory, sink MessageSink) *Dispatcher {
	d := &Dispatcher{
		brokerIndex:  brokerIndex,
		addr:         addr,
		log:          log.WithField("broker", brokerIndex),
		cfg:          cfg,
		sink:         sink,
		factory:      factory,
		dial:         dialTCP,
		inflight:     NewInFlightTable(),
		errorPause:   NewPause(cfg.PauseMinDelay, cfg.PauseMaxDoublings, cfg.PauseQuiescent),
		connectPause: NewPause(cfg.PauseMinDelay, cfg.PauseMaxDoublings, cfg.PauseQuiescent),
		state:        Connecting,
		queue:        make(chan router.RoutedGroup, cfg.QueueCapacity),
	}
	return d
}

func dialTCP(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// State returns the dispatcher's current FSM state.
func (d *Dispatcher) State() State { return d.state }

// BrokerIndex returns the broker this dispatcher serves.
func (d *Dispatcher) BrokerIndex() int32 { return d.brokerIndex }

// Addr returns the broker address this dispatcher connects to, used by
// the engine's reconciliation step to detect a broker whose host:port
// changed between metadata refreshes.
func (d *Dispatcher) Addr() string { return d.addr }

// TryEnqueue implements router.DispatcherQueue. It never blocks: a full
// queue, or a dispatcher no longer accepting new work, is reported by
// returning false so the router applies its own backpressure handling.
func (d *Dispatcher) TryEnqueue(g router.RoutedGroup) bool {
	if d.state == Draining || d.state == Stopping {
		return false
	}
	select {
	case d.queue <- g:
		return true
	default:
		return false
	}
}

// Drain transitions a live dispatcher into Draining: it stops accepting
// new groups and keeps stepping until every queued and in-flight message
// has been acknowledged or discarded (spec §4.6 graceful shutdown).
func (d *Dispatcher) Drain() {
	if d.state == Connecting || d.state == Ready || d.state == Broken {
		d.state = Draining
	}
}

// Idle reports whether this dispatcher has nothing left to flush —  the
// engine's graceful-shutdown loop polls this across every dispatcher to
// decide when the deadline can stop waiting early.
func (d *Dispatcher) Idle() bool {
	return len(d.queue) == 0 && len(d.pending) == 0 && d.inflight.Len() == 0
}

// Stop forces immediate termination (spec §4.6 fast shutdown, or the end
// of the graceful deadline): anything still queued or in flight is
// discarded with ServerShutdown rather than flushed.
func (d *Dispatcher) Stop(now time.Time) {
	d.discardQueued(now)
	for _, e := range d.inflight.TakeAll() {
		d.discardGroups(e.Groups, now, discard.ServerShutdown)
	}
	d.discardGroups(d.pending, now, discard.ServerShutdown)
	d.pending = nil
	d.closeConn()
	d.state = Stopping
}

func (d *Dispatcher) discardQueued(now time.Time) {
	for {
		select {
		case g := <-d.queue:
			d.discardGroups([]router.RoutedGroup{g}, now, discard.ServerShutdown)
		default:
			return
		}
	}
}

func (d *Dispatcher) discardGroups(groups []router.RoutedGroup, now time.Time, reason discard.Reason) {
	for _, g := range groups {
		for _, msg := range g.Messages {
			d.sink.Discard(msg.Topic, reason, msg.Identity, now)
			msg.Release()
		}
	}
}

func (d *Dispatcher) closeConn() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	d.reader = nil
}

// Step advances the dispatcher's FSM by one tick, using snap to assign
// any-partition groups (via the factory) when building a request. The
// engine calls this once per poll iteration for every live dispatcher.
func (d *Dispatcher) Step(snap *metadata.Snapshot, now time.Time) {
	switch d.state {
	case Connecting:
		d.stepConnecting(now)
	case Ready:
		d.stepReady(snap, now)
	case Draining:
		d.stepDraining(snap, now)
	case Broken:
		d.stepBroken(now)
	case Stopping:
		// Terminal; nothing left to do.
	}
}

func (d *Dispatcher) stepConnecting(now time.Time) {
	if d.connectPause.Active(now) {
		return
	}
	conn, err := d.dial("tcp", d.addr, d.cfg.DialTimeout)
	if err != nil {
		d.log.WithError(err).Warn("connect failed")
		d.connectPause.Trigger(now)
		d.state = Broken
		return
	}
	d.conn = conn
	d.reader = streamio.New(streamio.NewSizePrefixHook(false, d.cfg.MaxResponseSize), 0)
	d.state = Ready
}

func (d *Dispatcher) stepBroken(now time.Time) {
	if !d.connectPause.Active(now) {
		d.state = Connecting
	}
}

// stepReady drains the send queue into d.pending, builds and writes as
// many produce requests as the data limit allows, reads and correlates
// any responses currently available, and arms the error-rate pause if
// the broker has been returning too many non-ack results in a row (spec
// §4.5 steps 1-7).
func (d *Dispatcher) stepReady(snap *metadata.Snapshot, now time.Time) {
	d.drainQueue()
	d.readResponses(now)
	if d.errorPause.Active(now) {
		return
	}
	d.sendPending(snap, now)
}

func (d *Dispatcher) stepDraining(snap *metadata.Snapshot, now time.Time) {
	if d.conn == nil {
		// Nothing to flush with and no reconnect while draining: stop now,
		// discarding whatever is still queued or pending (spec §4.6
		// graceful shutdown has its own deadline at the engine level).
		d.Stop(now)
		return
	}
	d.readResponses(now)
	if !d.errorPause.Active(now) {
		d.sendPending(snap, now)
	}
	if d.Idle() {
		d.Stop(now)
	}
}

func (d *Dispatcher) drainQueue() {
	for {
		select {
		case g := <-d.queue:
			d.pending = append(d.pending, g)
		default:
			return
		}
	}
}

func (d *Dispatcher) sendPending(snap *metadata.Snapshot, now time.Time) {
	if len(d.pending) == 0 || d.conn == nil {
		return
	}
	d.nextCorrelation++
	result, err := d.factory.Build(d.pending, snap, d.nextCorrelation, d.cfg.RequiredAcks, d.cfg.ReplicationTimeoutMs)
	if err != nil {
		d.log.WithError(err).Error("failed to build produce request")
		return
	}
	d.pending = result.Pending
	if result.Request == nil {
		return
	}

	if _, err := d.conn.Write(result.Request.Encode()); err != nil {
		d.log.WithError(err).Warn("write failed, requeuing in-flight groups")
		d.handleConnectionLoss(now)
		return
	}
	d.inflight.Add(result.Request.CorrelationID, result.Consumed, now)
}

func (d *Dispatcher) readResponses(now time.Time) {
	if d.conn == nil {
		return
	}
	// Bound how many frames one Step processes so a burst of responses
	// cannot starve other dispatchers sharing the engine's poll loop.
	for i := 0; i < 16; i++ {
		// An already-expired deadline makes Read non-blocking: data
		// already buffered by the kernel is still returned, but an empty
		// socket surfaces as a timeout instead of blocking this Step call
		// (spec §4.5.2's EINTR/EAGAIN-equivalent).
		d.conn.SetReadDeadline(time.Now())
		if err := d.reader.Read(d.conn); err != nil {
			d.log.WithError(err).Warn("read failed, requeuing in-flight groups")
			d.handleConnectionLoss(now)
			return
		}
		switch d.reader.State() {
		case streamio.MsgReady:
			frame, err := d.reader.ConsumeReadyMsg()
			if err != nil {
				d.log.WithError(err).Error("failed to consume response frame")
				d.handleConnectionLoss(now)
				return
			}
			d.handleResponse(frame, now)
		case streamio.DataInvalid:
			d.log.Error("broker sent an unparseable response frame")
			d.handleConnectionLoss(now)
			return
		case streamio.AtEnd:
			d.log.Warn("broker closed connection")
			d.handleConnectionLoss(now)
			return
		default: // ReadNeeded
			return
		}
	}
}

// handleConnectionLoss tears down the socket, re-queues every in-flight
// group at the router, and moves to Broken so the connect backoff runs
// before the next Connecting attempt. Not-yet-sent groups stay in
// d.pending for the next connection. A draining dispatcher stays in
// Draining, and its next Step stops it (spec §8).
func (d *Dispatcher) handleConnectionLoss(now time.Time) {
	d.closeConn()
	for _, e := range d.inflight.TakeAll() {
		d.requeueGroups(e.Groups, now)
	}
	if d.state == Draining {
		// Stay in Draining; stepDraining will call Stop once it observes
		// the connection is gone rather than waiting for a reconnect.
		return
	}
	d.connectPause.Trigger(now)
	d.state = Broken
}

func (d *Dispatcher) requeueGroups(groups []router.RoutedGroup, now time.Time) {
	for _, g := range groups {
		for _, msg := range g.Messages {
			d.sink.Requeue(msg, now)
		}
	}
}

// handleResponse decodes one Produce response frame and resolves every
// partition result against the in-flight table (spec §4.5 step 6).
func (d *Dispatcher) handleResponse(frame []byte, now time.Time) {
	resp, err := wire.DecodeProduceResponse(frame)
	if err != nil {
		d.log.WithError(err).Error("malformed produce response")
		d.handleConnectionLoss(now)
		return
	}

	entry, ok := d.inflight.Take(resp.CorrelationID)
	if !ok {
		d.log.WithField("correlation_id", resp.CorrelationID).Warn("response for unknown correlation id")
		return
	}

	byKey := make(map[partKey]int16, len(entry.Groups))
	for _, topic := range resp.Topics {
		for _, part := range topic.Partitions {
			byKey[partKey{topic.Name, part.PartitionID}] = part.ErrorCode
		}
	}

	for _, g := range entry.Groups {
		code, ok := byKey[partKey{g.Topic, g.Partition}]
		if !ok {
			// The broker did not report on this partition at all; treat it
			// the same as a retriable error so it gets another attempt.
			d.resolveGroup(g, wire.DispositionRetriable, -1, now)
			continue
		}
		d.resolveGroup(g, wire.ClassifyProduceError(code), code, now)
	}
}

type partKey struct {
	topic     string
	partition int32
}

func (d *Dispatcher) resolveGroup(g router.RoutedGroup, disposition wire.Disposition, code int16, now time.Time) {
	switch disposition {
	case wire.DispositionAck:
		d.consecutiveErrors = 0
		for _, msg := range g.Messages {
			msg.SetState(message.StateAcked)
			msg.Release()
		}
	case wire.DispositionPermanent:
		d.armErrorPauseOnError(now)
		info := wire.LookupKafkaErrorCode(code)
		for _, msg := range g.Messages {
			d.log.WithFields(logrus.Fields{"topic": msg.Topic, "kafka_error_code": code, "kafka_error": info.Name}).Warn("broker rejected message")
			d.sink.Discard(msg.Topic, discard.KafkaErrorAck, msg.Identity, now)
			msg.Release()
		}
	default: // Retriable or Unknown: retry up to the attempt limit.
		d.armErrorPauseOnError(now)
		for _, msg := range g.Messages {
			msg.AttemptCount++
			if d.cfg.MaxFailedAttempts > 0 && msg.AttemptCount >= d.cfg.MaxFailedAttempts {
				d.sink.Discard(msg.Topic, discard.FailedDeliveryAttemptLimit, msg.Identity, now)
				msg.Release()
				continue
			}
			d.sink.Requeue(msg, now)
		}
	}
}

func (d *Dispatcher) armErrorPauseOnError(now time.Time) {
	d.consecutiveErrors++
	if d.cfg.ErrorRateTrigger > 0 && d.consecutiveErrors >= d.cfg.ErrorRateTrigger {
		d.errorPause.Trigger(now)
		d.consecutiveErrors = 0
	}
}
