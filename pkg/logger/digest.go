package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a digest batch; the Kafka producer implements it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload any) error
}

// DigestConfig controls error digests. Identical error lines (same message,
// caller and fields) are counted instead of repeated, and the pending set is
// published every Window or as soon as MaxEntries distinct lines pile up.
type DigestConfig struct {
	Window     time.Duration
	MaxEntries int
	Topic      string
	Publisher  Publisher
	// Service tags every entry.
	Service string
}

type DigestEntry struct {
	Service   string         `json:"service,omitempty"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller"`
	Fields    map[string]any `json:"fields,omitempty"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[uint64]*DigestEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	d := &Digest{cfg: cfg, pending: make(map[uint64]*DigestEntry), stop: make(chan struct{})}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Digest) add(msg string, fields []Field, caller string) {
	vals := make(map[string]any, len(fields))
	for _, f := range fields {
		vals[f.Key] = f.Value()
	}
	key := digestKey(msg, caller, vals)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	d.pending[key] = &DigestEntry{
		Service: d.cfg.Service, Message: msg, Caller: caller, Fields: vals,
		Count: 1, FirstSeen: now, LastSeen: now,
	}
	if len(d.pending) >= d.cfg.MaxEntries {
		d.flushLocked()
	}
}

func digestKey(msg, caller string, vals map[string]any) uint64 {
	h := fnv.New64a()
	fmt.Fprint(h, msg, "\x00", caller)
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, vals[k])
	}
	return h.Sum64()
}

func (d *Digest) loop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.Window)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-d.stop:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
			return
		}
	}
}

func (d *Digest) flushLocked() {
	if len(d.pending) == 0 {
		return
	}
	batch := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, *e)
	}
	d.pending = make(map[uint64]*DigestEntry)
	if d.cfg.Publisher == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "publish error digest: %v\n", err)
		}
	}()
}

// Close publishes what is pending and waits for in-flight batches.
func (d *Digest) Close() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}
