package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/samvad-hq/valr-go/internal/logger"
	"github.com/samvad-hq/valr-go/pkg/publishers"
	"github.com/samvad-hq/valr-go/pkg/valr"
)

// Service snapshots VALR endpoints and publishes payloads that changed since
// the last poll.
type Service struct {
	fetcher   Fetcher
	publisher EventPublisher
	deduper   Deduper
	log       logger.Logger
}

// NewService wires a poller with its fetcher, publisher fanout, and digest store.
func NewService(fetcher Fetcher, pub EventPublisher, log logger.Logger, deduper Deduper) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		fetcher:   fetcher,
		publisher: pub,
		deduper:   deduper,
		log:       log,
	}
}

// Run executes a poll pass over every enabled job.
func (s *Service) Run(ctx context.Context, jobs []Job) error {
	if s == nil || s.fetcher == nil {
		return fmt.Errorf("poller service is not initialized")
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs configured for polling")
	}

	errs := s.runAll(ctx, jobs)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) runAll(ctx context.Context, jobs []Job) []error {
	errs := make([]error, 0, len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			s.log.WarnObj("poll pass interrupted", "poll_cancelled", map[string]any{
				"job_id": job.ID,
			})
			break
		}
		if !job.EnabledValue() {
			continue
		}
		if err := s.runJob(ctx, job); err != nil {
			if valr.KindOf(err) == valr.KindCancelled {
				break
			}
			errs = append(errs, err)
			s.log.ErrorObj("job poll failed", "job_error", map[string]any{
				"job_id": job.ID,
				"kind":   job.Kind,
				"error":  err.Error(),
			})
		}
	}

	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	call, err := job.Call()
	if err != nil {
		return err
	}

	payload, err := s.fetcher.Do(ctx, call)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", job.ID, err)
	}

	digest := Digest(job.ID, payload)
	if s.deduper != nil {
		seen, err := s.deduper.Seen(digest)
		if err != nil {
			s.log.WarnObj("digest lookup failed; publishing anyway", "dedupe_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		} else if seen {
			s.log.DebugObj("snapshot unchanged", "job_result", map[string]any{
				"job_id": job.ID,
			})
			return nil
		}
	}

	evt := publishers.NewEvent(job.ID, job.Kind, digest, payload)
	evt.Pair = job.Pair
	evt.SubaccountID = job.SubaccountID

	delivered := 0
	if s.publisher != nil {
		n, err := s.publisher.Publish(ctx, evt)
		if err != nil {
			return fmt.Errorf("publish job %s: %w", job.ID, err)
		}
		delivered = n
	}

	if s.deduper != nil {
		if err := s.deduper.Mark(digest); err != nil {
			return fmt.Errorf("mark job %s digest: %w", job.ID, err)
		}
	}

	s.log.InfoObj("snapshot published", "job_result", map[string]any{
		"job_id":        job.ID,
		"kind":          job.Kind,
		"event_id":      evt.ID,
		"payload_bytes": len(payload),
		"publishers":    delivered,
	})
	return nil
}

// Digest fingerprints a job payload; identical payloads from the same job
// share a digest.
func Digest(jobID string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
