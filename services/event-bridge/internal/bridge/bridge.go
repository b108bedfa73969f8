// Package bridge runs the loop that moves events from the durable log
// into the workflow engine: blocking group read, decode, route,
// dispatch, ack. A record is acked once its workflow has successfully
// started; everything the engine does after that is its own business.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/engine"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/route"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/stream"
)

// LogClient is the slice of the durable-log surface the loop needs.
// Satisfied by *stream.Client.
type LogClient interface {
	EnsureGroup(ctx context.Context, streamName, group string) error
	ReadGroup(ctx context.Context, group, consumer string, streams []string, count int64, block time.Duration) ([]stream.Batch, error)
	AutoClaim(ctx context.Context, streamName, group, consumer string, minIdle time.Duration, count int64) ([]stream.Record, error)
	Ack(ctx context.Context, streamName, group, recordID string) error
}

// Bridge owns the loop's collaborators and configuration. One Bridge,
// one goroutine: construct it in main, call Initialize then Run.
type Bridge struct {
	log        *slog.Logger
	client     LogClient
	dispatcher Dispatcher
	streams      []string
	group        string
	consumer     string
	readCount    int64
	blockFor     time.Duration
	errPause     time.Duration
	claimMinIdle time.Duration
}

type Config struct {
	Group    string
	Consumer string
	// ReadCount caps records per group read; BlockFor bounds the
	// blocking read; ErrPause is the fixed sit-out after a read error.
	ReadCount int64
	BlockFor  time.Duration
	ErrPause  time.Duration
	// ClaimMinIdle is how long a pending record must sit unacked before
	// the loop claims it back for another dispatch attempt.
	ClaimMinIdle time.Duration
}

func New(logger *slog.Logger, client LogClient, dispatcher Dispatcher, cfg Config) *Bridge {
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 10
	}
	if cfg.BlockFor <= 0 {
		cfg.BlockFor = 5 * time.Second
	}
	if cfg.ErrPause <= 0 {
		cfg.ErrPause = 5 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = 1 * time.Minute
	}
	return &Bridge{
		log:          logger,
		client:       client,
		dispatcher:   dispatcher,
		streams:      route.Streams(),
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		readCount:    cfg.ReadCount,
		blockFor:     cfg.BlockFor,
		errPause:     cfg.ErrPause,
		claimMinIdle: cfg.ClaimMinIdle,
	}
}

// Initialize ensures the consumer group exists on every configured
// stream. Fatal at startup; also re-run mid-loop when the broker reports
// the group missing.
func (b *Bridge) Initialize(ctx context.Context) error {
	for _, s := range b.streams {
		if err := b.client.EnsureGroup(ctx, s, b.group); err != nil {
			return err
		}
	}
	return nil
}

// Run consumes until ctx is cancelled. Each pass first claims stale
// pending records back, then blocks on the group read; records within a
// batch are handled sequentially in broker order.
func (b *Bridge) Run(ctx context.Context) error {
	b.log.Info("event bridge started",
		"streams", b.streams, "group", b.group, "consumer", b.consumer)

	for {
		if ctx.Err() != nil {
			b.log.Info("event bridge stopping")
			return nil
		}

		b.claimPending(ctx)

		batches, err := b.client.ReadGroup(ctx, b.group, b.consumer, b.streams, b.readCount, b.blockFor)
		if err != nil {
			if ctx.Err() != nil {
				b.log.Info("event bridge stopping")
				return nil
			}
			if stream.IsNoGroup(err) {
				// An operator deleted the group; recreate rather than
				// crash-loop the whole process.
				b.log.Warn("consumer group missing, re-creating", "err", err)
				groupRecreations.Inc()
				if err := b.Initialize(ctx); err != nil {
					b.log.Error("group re-creation failed", "err", err)
					b.pause(ctx)
				}
				continue
			}
			b.log.Error("group read failed", "err", err)
			readErrors.Inc()
			b.pause(ctx)
			continue
		}

		for _, batch := range batches {
			for _, rec := range batch.Records {
				recordsRead.WithLabelValues(batch.Stream).Inc()
				b.processRecord(ctx, batch.Stream, rec)
			}
		}
	}
}

// claimPending re-delivers records that sat in the group's pending list
// past claimMinIdle: dispatch failures left unacked by an earlier pass,
// and the orphaned entries of consumers that died mid-batch. Claimed
// records go through the same processing path as fresh reads; duplicate
// workflow starts collapse on the dedup key.
func (b *Bridge) claimPending(ctx context.Context) {
	for _, s := range b.streams {
		recs, err := b.client.AutoClaim(ctx, s, b.group, b.consumer, b.claimMinIdle, b.readCount)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A missing group surfaces on the next read, which
			// re-creates it; anything else waits for the next pass.
			b.log.Error("pending claim failed", "stream", s, "err", err)
			continue
		}
		for _, rec := range recs {
			recordsClaimed.WithLabelValues(s).Inc()
			b.processRecord(ctx, s, rec)
		}
	}
}

// ackPolicy is the per-record decision Run makes after processing.
type ackPolicy int

const (
	// ackNone leaves the record pending so the broker redelivers it.
	ackNone ackPolicy = iota
	// ackRecord acknowledges the record; it is done, for better or worse.
	ackRecord
)

func (b *Bridge) processRecord(ctx context.Context, streamName string, rec stream.Record) {
	ctx, span := otel.Tracer("bridge").Start(ctx, "bridge.record",
		trace.WithAttributes(
			attribute.String("messaging.destination", streamName),
			attribute.String("messaging.message_id", rec.ID),
		),
	)
	defer span.End()

	if policy := b.handleRecord(ctx, streamName, rec); policy == ackRecord {
		if err := b.client.Ack(ctx, streamName, b.group, rec.ID); err != nil {
			// Left pending; redelivery is deduplicated at dispatch.
			b.log.Error("ack failed", "stream", streamName, "record_id", rec.ID, "err", err)
			span.RecordError(err)
			return
		}
		recordsAcked.WithLabelValues(streamName).Inc()
	}
}

func (b *Bridge) handleRecord(ctx context.Context, streamName string, rec stream.Record) ackPolicy {
	wt, ok := route.Route(streamName)
	if !ok {
		// Configuration gap: keep the record pending for an operator.
		b.log.Warn("no workflow for stream, leaving record pending",
			"stream", streamName, "record_id", rec.ID)
		return ackNone
	}

	ev, err := event.Decode(streamName, rec)
	if err != nil {
		decodeFailures.WithLabelValues(streamName).Inc()
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			// Structurally invalid now, structurally invalid on every
			// redelivery: ack so it cannot poison the group.
			b.log.Error("record failed validation, acking as poison",
				"stream", streamName, "record_id", rec.ID, "err", err)
			return ackRecord
		}
		b.log.Error("record decode failed", "stream", streamName, "record_id", rec.ID, "err", err)
		return ackNone
	}

	workflowID, err := b.dispatcher.Dispatch(ctx, wt, ev, stream.DedupKey(streamName, rec.ID))
	if err != nil {
		if errors.Is(err, engine.ErrDuplicateWorkflow) {
			// Redelivery of a record whose workflow already started;
			// the missing piece was only the ack.
			b.log.Info("duplicate dispatch suppressed, acking record",
				"stream", streamName, "record_id", rec.ID)
			return ackRecord
		}
		dispatchErrors.WithLabelValues(streamName).Inc()
		b.log.Error("workflow dispatch failed, leaving record pending",
			"stream", streamName, "record_id", rec.ID, "workflow_type", string(wt), "err", err)
		return ackNone
	}

	b.log.Info("workflow dispatched",
		"stream", streamName, "record_id", rec.ID,
		"workflow_type", string(wt), "workflow_id", workflowID)
	return ackRecord
}

func (b *Bridge) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.errPause):
	}
}
