package worker

import (
	"context"
	"log/slog"
	"time"

	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/metrics"
	"qbwc-webhook-adapter/internal/models"
	"qbwc-webhook-adapter/internal/normalizer"
)

// Archiver keeps a copy of every answer.
type Archiver interface {
	Write(kind entity.Kind, rec models.RawAnswerRecord) (string, error)
}

// Dispatcher delivers one event batch. It reports failures on its own.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, records []models.NormalizedRecord)
}

// Pipeline is the Processor that archives, normalizes and dispatches one
// connector answer.
type Pipeline struct {
	registry   *entity.Registry
	archive    Archiver
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewPipeline(registry *entity.Registry, archive Archiver, dispatcher Dispatcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		registry:   registry,
		archive:    archive,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Process archives the answer before anything else, so an answer that
// cannot be classified or normalized is still kept.
func (p *Pipeline) Process(ctx context.Context, job models.Job) error {
	start := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()

	c := normalizer.Classify(p.registry, job.Answer)
	logger := p.logger.With("entity", c.Kind.Name, "classified", c.Matched)
	if len(c.Matches) > 1 {
		logger.Warn("Answer matched several entity kinds, keeping the last", "matches", c.Matches)
	}

	receivedAt := job.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	path, err := p.archive.Write(c.Kind, models.RawAnswerRecord{
		Entity:     c.Kind.Name,
		ReceivedAt: receivedAt.UTC(),
		Classified: c.Matched,
		Matches:    c.Matches,
		Answer:     job.Answer,
		Raw:        job.Raw,
	})
	if err != nil {
		metrics.AnswersReceived.WithLabelValues("archive_failed").Inc()
		return &ErrStorage{Op: "archive", Err: err}
	}
	logger.Info("Answer archived", "path", path)

	if !c.Matched {
		metrics.AnswersReceived.WithLabelValues("unclassified").Inc()
		return &ErrSkipped{Reason: "no known response element"}
	}

	if st := job.Answer.ResponseStatus(c.Kind.ResponseKey); !st.OK() {
		logger.Warn("Connector reported an error status",
			"status_code", st.Code,
			"status_severity", st.Severity,
			"status_message", st.Message,
		)
	}

	records, err := normalizer.Normalize(c.Kind, job.Answer)
	if err != nil {
		metrics.AnswersReceived.WithLabelValues("invalid").Inc()
		return &ErrSkipped{Reason: "normalize", Err: err}
	}
	if len(records) == 0 {
		metrics.AnswersReceived.WithLabelValues("empty").Inc()
		logger.Info("Answer carried no records, nothing to dispatch")
		return nil
	}

	for _, b := range normalizer.Batches(c.Kind, records) {
		p.dispatcher.Dispatch(ctx, b.EventType, b.Records)
	}
	metrics.AnswersReceived.WithLabelValues("processed").Inc()
	return nil
}
