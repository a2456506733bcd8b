package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"LiqSweep/pkg/logger"
)

type keys struct{ pending, retry, dead string }

func keysFor(prefix string) keys {
	return keys{pending: prefix + ":messages", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisPublisher pushes messages onto a list consumed by RedisConsumer.
type RedisPublisher struct {
	client *redis.Client
	keys   keys
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, keys: keysFor(prefix)}
}

func (p *RedisPublisher) Publish(ctx context.Context, msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.client.LPush(ctx, p.keys.pending, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", p.keys.pending, err)
	}
	return nil
}

// ConsumerConfig tunes RedisConsumer. Zero values take defaults.
type ConsumerConfig struct {
	Workers     int
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
	PollTimeout time.Duration
}

func (c *ConsumerConfig) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = time.Minute
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// retryDelay doubles per attempt up to RetryMax.
func (c ConsumerConfig) retryDelay(attempts int) time.Duration {
	d := c.RetryBase
	for i := 1; i < attempts && d < c.RetryMax; i++ {
		d *= 2
	}
	if d > c.RetryMax {
		d = c.RetryMax
	}
	return d
}

// promoteScript moves up to ARGV[2] retries due by ARGV[1] back to pending.
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call("ZREM", KEYS[1], m)
	redis.call("LPUSH", KEYS[2], m)
end
return #due`)

type outcome int

const (
	handled outcome = iota
	retryLater
	deadLetter
)

// RedisConsumer runs Jobs for messages on a Redis list. Failed messages are
// retried with backoff through a sorted set; exhausted or permanent failures
// land on the dead-letter list.
type RedisConsumer struct {
	log    *logger.Logger
	client *redis.Client
	keys   keys
	cfg    ConsumerConfig
	jobs   map[string]Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisConsumer(log *logger.Logger, client *redis.Client, prefix string, cfg ConsumerConfig, jobs ...Job) *RedisConsumer {
	if log == nil {
		log = logger.Nop()
	}
	cfg.setDefaults()
	c := &RedisConsumer{
		log:    log.With(logger.String("component", "queue"), logger.String("queue", prefix)),
		client: client,
		keys:   keysFor(prefix),
		cfg:    cfg,
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		c.jobs[j.Type()] = j
	}
	return c
}

// Start pings Redis and launches the workers and the retry promoter.
func (c *RedisConsumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("queue consumer already running")
	}
	pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pcancel()
	if err := c.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.work(ctx)
	}
	c.wg.Add(1)
	go c.promote(ctx)
	c.log.Info("queue consumer started", logger.Int("workers", c.cfg.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight messages.
func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue consumer stop: %w", ctx.Err())
	}
}

// Depth counts pending, retrying and dead-lettered messages.
type Depth struct {
	Pending int64 `json:"pending"`
	Retry   int64 `json:"retry"`
	Dead    int64 `json:"dead"`
}

func (c *RedisConsumer) Depth(ctx context.Context) (Depth, error) {
	pipe := c.client.Pipeline()
	p := pipe.LLen(ctx, c.keys.pending)
	r := pipe.ZCard(ctx, c.keys.retry)
	d := pipe.LLen(ctx, c.keys.dead)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Depth{}, fmt.Errorf("queue depth: %w", err)
	}
	return Depth{Pending: p.Val(), Retry: r.Val(), Dead: d.Val()}, nil
}

func (c *RedisConsumer) work(ctx context.Context) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		res, err := c.client.BRPop(ctx, c.cfg.PollTimeout, c.keys.pending).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Error("brpop", logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			c.log.Error("undecodable message", logger.Error(err))
			c.bury(ctx, []byte(res[1]))
			continue
		}
		c.settle(ctx, &msg)
	}
}

// dispatch runs the message's job and decides what happens to it next.
func (c *RedisConsumer) dispatch(ctx context.Context, msg *Message) outcome {
	job, ok := c.jobs[msg.Type]
	if !ok {
		msg.LastError = "no job for type " + msg.Type
		return deadLetter
	}
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		return handled
	}
	msg.Attempts++
	msg.LastError = err.Error()
	if IsPermanent(err) || msg.Attempts >= c.cfg.MaxAttempts {
		return deadLetter
	}
	return retryLater
}

func (c *RedisConsumer) settle(ctx context.Context, msg *Message) {
	out := c.dispatch(ctx, msg)
	if out == handled {
		return
	}
	// the worker context may be cancelled mid-shutdown; bookkeeping must land
	wctx := context.WithoutCancel(ctx)
	b, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode message", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	if out == retryLater {
		at := time.Now().Add(c.cfg.retryDelay(msg.Attempts))
		c.log.Warn("message retry scheduled",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int("attempt", msg.Attempts),
			logger.String("error", msg.LastError))
		if err := c.client.ZAdd(wctx, c.keys.retry, redis.Z{Score: float64(at.UnixMilli()), Member: b}).Err(); err != nil {
			c.log.Error("schedule retry", logger.String("id", msg.ID), logger.Error(err))
		}
		return
	}
	c.log.Error("message dead-lettered",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempts", msg.Attempts),
		logger.String("error", msg.LastError))
	c.bury(wctx, b)
}

func (c *RedisConsumer) bury(ctx context.Context, b []byte) {
	if err := c.client.LPush(context.WithoutCancel(ctx), c.keys.dead, b).Err(); err != nil {
		c.log.Error("dead-letter push", logger.Error(err))
	}
}

func (c *RedisConsumer) promote(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.RetryBase / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			n, err := promoteScript.Run(ctx, c.client, []string{c.keys.retry, c.keys.pending}, now, 100).Int()
			if err != nil && ctx.Err() == nil {
				c.log.Error("promote retries", logger.Error(err))
			} else if n > 0 {
				c.log.Debug("retries promoted", logger.Int("count", n))
			}
		}
	}
}

var _ Publisher = (*RedisPublisher)(nil)
