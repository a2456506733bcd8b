package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	domsvc "LiqSweep/internal/domain/service"
	"LiqSweep/pkg/queue"
)

// ExecutionReportMessageType tags reports on the Redis reports queue.
const ExecutionReportMessageType = "execution_report"

// ExecutionReportJob turns execution reports into decision events.
type ExecutionReportJob struct {
	events  domsvc.EventSink
	metrics drepo.Metrics
}

func NewExecutionReportJob(events domsvc.EventSink, metrics drepo.Metrics) *ExecutionReportJob {
	return &ExecutionReportJob{events: events, metrics: metrics}
}

func (j *ExecutionReportJob) Type() string { return ExecutionReportMessageType }

func (j *ExecutionReportJob) Handle(ctx context.Context, payload json.RawMessage) error {
	r, err := queue.Decode[models.ExecutionReport](payload)
	if err != nil {
		j.metrics.RecordError("report_payload")
		return err
	}
	if r.ProposalID == "" {
		j.metrics.RecordError("report_payload")
		return queue.Permanent(fmt.Errorf("execution report without proposal id"))
	}
	at := r.ReportedAt
	if at.IsZero() {
		at = time.Now()
	}
	accepted := 0.0
	if r.Accepted {
		accepted = 1
	}
	note := "proposal " + r.ProposalID
	if r.Reason != "" {
		note += ": " + r.Reason
	}
	j.events.Emit(ctx, models.Event{
		Kind:   models.EventExecutionReport,
		Level:  models.EventExecutionReport.Severity(),
		Symbol: r.Symbol,
		At:     at,
		Values: map[string]float64{"accepted": accepted, "fill_price": r.FillPrice},
		Note:   note,
	})
	return nil
}

var _ queue.Job = (*ExecutionReportJob)(nil)
