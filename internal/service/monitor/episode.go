package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/metrics"
)

// runEpisode captures, classifies and then actuates and notifies concurrently.
// It returns once both effects have completed or failed and the episode is
// recorded.
func (m *Monitor) runEpisode(ctx context.Context, startedAt time.Time, thresholds presence.Thresholds) {
	episode := presence.Episode{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}

	ctx = logger.WithKV(ctx, "episode_id", episode.ID)
	logger.Info(ctx, "Visitor stayed in range, starting detection")

	defer func() {
		episode.FinishedAt = m.now()
		m.metrics.Episode(string(episode.Outcome), episode.Duration())
		m.record(ctx, episode)
	}()

	// Capture the visitor; without an image there is nothing to decide.
	image, err := m.capture(ctx)
	if err != nil {
		m.reportHealth(ComponentCamera, false)
		logger.ErrorKV(ctx, "Image capture failed, episode aborted", "error", err)
		episode.Outcome = presence.OutcomeAborted
		episode.Failed(presence.StageCapture, err)

		return
	}

	m.reportHealth(ComponentCamera, true)

	// Classify; a failure counts as an unknown visitor.
	result := presence.UnknownVisitor()

	raw, err := m.classify(ctx, image)
	if err != nil {
		logger.ErrorKV(ctx, "Classification failed, treating visitor as unknown", "error", err)
		episode.Failed(presence.StageClassify, err)
	} else {
		result = presence.Decide(raw, thresholds.Confidence)
	}

	episode.Decided(result)

	logger.InfoKV(ctx, "Visitor classified",
		"label", result.Label(),
		"confidence", result.Confidence(),
		"position", result.Position().String())

	// Move the lock and notify at the same time; wait for both.
	var (
		wg                    sync.WaitGroup
		actuateErr, notifyErr error
	)

	wg.Go(func() {
		actuateErr = guard(func() error {
			return m.lock.Set(ctx, result.Position())
		})
	})

	wg.Go(func() {
		notifyErr = guard(func() error {
			return m.notifier.Notify(ctx, presence.NewAlert(result, image, m.imageName))
		})
	})

	wg.Wait()

	m.metrics.Actuation(metrics.SourcePresence, result.Position().String(), actuateErr)
	m.metrics.Notification(notifyErr)

	if actuateErr != nil {
		logger.ErrorKV(ctx, "Lock actuation failed", "position", result.Position().String(), "error", actuateErr)
		episode.Failed(presence.StageActuate, actuateErr)
	}

	if notifyErr != nil {
		logger.ErrorKV(ctx, "Notification failed", "error", notifyErr)
		episode.Failed(presence.StageNotify, notifyErr)
	}
}

func (m *Monitor) capture(ctx context.Context) (image []byte, err error) {
	err = guard(func() error {
		var captureErr error

		image, captureErr = m.camera.Capture(ctx)

		return captureErr
	})
	if err == nil && len(image) == 0 {
		err = fmt.Errorf("%w: empty image", presence.ErrCaptureFailed)
	}

	return image, err
}

func (m *Monitor) classify(ctx context.Context, image []byte) (raw presence.Classification, err error) {
	err = guard(func() error {
		var classifyErr error

		raw, classifyErr = m.classifier.Classify(ctx, image)

		return classifyErr
	})

	return raw, err
}

func (m *Monitor) record(ctx context.Context, episode presence.Episode) {
	if m.recorder == nil {
		return
	}

	if err := m.recorder.Record(ctx, episode); err != nil {
		logger.WarnKV(ctx, "Episode not recorded", "error", err)
	}
}
