package usecase

import (
	"context"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	mid "LiqSweep/internal/middleware"
	"LiqSweep/pkg/logger"
)

// TickCollector reads the live feed and pushes ticks through the pipeline.
type TickCollector struct {
	stream  drepo.MarketStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.TickPipeline
	log     *logger.Logger
}

func NewTickCollector(stream drepo.MarketStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.TickPipeline, log *logger.Logger) *TickCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: log.With(logger.String("component", "tick_collector"))}
}

func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects the feed and begins consuming in the background.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("feed error, reconnecting", logger.Error(err))
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.log.Error("feed reconnect failed", logger.Error(rerr))
				}
			}
		case t, ok := <-tCh:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, t)
			} else {
				err = c.proc.Process(ctx, t)
			}
			if err != nil {
				c.log.Debug("tick not evaluated", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline and closes the feed.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
