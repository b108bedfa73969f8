package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream names consumed by the bridge. Producers across the suite append
// to these; the bridge owns the consumer-group cursor on both.
const (
	InterAppEvents      = "inter-app-events"
	OrgAssignmentEvents = "organization-assignment-events"
)

// Record is one immutable entry of a stream. The bridge never rewrites a
// record; the only state transition it performs is the acknowledgment.
type Record struct {
	ID     string
	Values map[string]string
}

// Batch is the per-stream slice of records one group read returned.
type Batch struct {
	Stream  string
	Records []Record
}

// Client wraps the broker's stream commands behind the small surface the
// bridge loop needs: ensure group, blocking group read, ack.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewClient(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// EnsureGroup creates the consumer group at the start of the stream,
// creating the stream itself if it does not exist yet. Re-creating an
// existing group is not an error.
func (c *Client) EnsureGroup(ctx context.Context, streamName, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, streamName, group, "0").Err()
	if err == nil {
		return nil
	}
	if isBusyGroup(err) {
		c.logger.Debug("consumer group already exists", "stream", streamName, "group", group)
		return nil
	}
	return fmt.Errorf("create group %s on %s: %w", group, streamName, err)
}

// ReadGroup blocks up to block waiting for undelivered records on any of
// the given streams. A timeout is not an error: it returns an empty
// result so the caller simply loops.
func (c *Client) ReadGroup(ctx context.Context, group, consumer string, streams []string, count int64, block time.Duration) ([]Batch, error) {
	// XREADGROUP wants stream names followed by one ">" per stream.
	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  args,
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	batches := make([]Batch, 0, len(res))
	for _, xs := range res {
		b := Batch{Stream: xs.Stream, Records: make([]Record, 0, len(xs.Messages))}
		for _, msg := range xs.Messages {
			b.Records = append(b.Records, recordFromMessage(msg))
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// AutoClaim transfers ownership of the group's pending records that have
// been idle for at least minIdle to this consumer and returns them for
// reprocessing. Group reads with ">" never revisit pending entries, so
// this is the only path by which a record left unacked (dispatch
// failure, crashed consumer) is ever redelivered.
func (c *Client) AutoClaim(ctx context.Context, streamName, group, consumer string, minIdle time.Duration, count int64) ([]Record, error) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamName,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, recordFromMessage(msg))
	}
	return records, nil
}

func recordFromMessage(msg redis.XMessage) Record {
	values := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			values[k] = s
		} else {
			values[k] = fmt.Sprint(v)
		}
	}
	return Record{ID: msg.ID, Values: values}
}

// Ack marks a record as processed for the group. After a successful ack
// the broker will never redeliver the record.
func (c *Client) Ack(ctx context.Context, streamName, group, recordID string) error {
	if err := c.rdb.XAck(ctx, streamName, group, recordID).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", recordID, streamName, err)
	}
	return nil
}

// IsNoGroup reports whether err is the broker's "consumer group does not
// exist" fault, which the bridge recovers from by re-creating all groups.
func IsNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// DedupKey derives the stable identity of a record used to suppress
// duplicate workflow starts when the broker redelivers it.
func DedupKey(streamName, recordID string) string {
	return streamName + "/" + recordID
}
