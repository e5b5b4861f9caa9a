package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/hook"
	"github.com/ayusman/facegate/internal/match"
	"github.com/ayusman/facegate/internal/store"
	"gocv.io/x/gocv"
)

// snapshotTimeout bounds the wait for a fresh camera frame.
const snapshotTimeout = 3 * time.Second

// fromCamera runs kind on a fresh frame from the grabber.
func (a *App) fromCamera(ctx context.Context, kind Kind) (Result, error) {
	if a.config.Grabber == nil {
		return a.finish(kind, OutcomeError, nil, match.NoMatch), ErrNoCamera
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	frame, err := a.config.Grabber.Snapshot(ctx)
	defer frame.Close()
	if err != nil {
		return a.finish(kind, OutcomeError, nil, match.NoMatch), fmt.Errorf("camera snapshot: %w", err)
	}

	if kind == KindEnroll {
		return a.EnrollImage(frame)
	}
	return a.RecognizeImage(frame)
}

// EnrollImage enrolls the selected face in frame unless it is already
// enrolled. Refusals such as OutcomeNoFace are results, not errors.
func (a *App) EnrollImage(frame gocv.Mat) (Result, error) {
	feature, det, res, ok := a.analyze(frame, KindEnroll)
	if !ok {
		return res, nil
	}

	a.enrollMu.Lock()
	enrolled, err := a.matcher.Enroll(feature)
	a.enrollMu.Unlock()
	if err != nil {
		return a.matchFailed(KindEnroll, det, err)
	}

	if enrolled.Duplicate {
		return a.finish(KindEnroll, OutcomeDuplicate, det, enrolled.Match), nil
	}
	log.Printf("Enrolled face %d", enrolled.ID)
	return a.finish(KindEnroll, OutcomeEnrolled, det, match.Match{ID: enrolled.ID, Similarity: enrolled.Match.Similarity}), nil
}

// RecognizeImage identifies the selected face in frame.
func (a *App) RecognizeImage(frame gocv.Mat) (Result, error) {
	feature, det, res, ok := a.analyze(frame, KindRecognize)
	if !ok {
		return res, nil
	}

	recognized, err := a.matcher.Recognize(feature)
	if err != nil {
		return a.matchFailed(KindRecognize, det, err)
	}

	if !recognized.Matched {
		nearest := match.Match{ID: -1, Similarity: recognized.Match.Similarity}
		return a.finish(KindRecognize, OutcomeUnknown, det, nearest), nil
	}
	return a.finish(KindRecognize, OutcomeRecognized, det, recognized.Match), nil
}

// analyze detects, selects, aligns and embeds the face in frame. When it
// cannot, the returned Result holds the refusal and ok is false.
func (a *App) analyze(frame gocv.Mat, kind Kind) (match.Feature, *detector.Detection, Result, bool) {
	if !a.Ready() {
		return nil, nil, a.finish(kind, OutcomeNotReady, nil, match.NoMatch), false
	}
	if frame.Empty() {
		return nil, nil, a.finish(kind, OutcomeNoFace, nil, match.NoMatch), false
	}

	dets, err := a.config.Detector.Detect(&frame)
	if err != nil {
		log.Printf("Error detecting faces: %v", err)
		return nil, nil, a.finish(kind, OutcomeError, nil, match.NoMatch), false
	}

	det, found := detector.Select(dets, a.config.Selection, frame.Cols(), frame.Rows())
	if !found {
		return nil, nil, a.finish(kind, OutcomeNoFace, nil, match.NoMatch), false
	}

	face, aligned := a.aligner.Align(frame, det.Landmarks)
	defer face.Close()
	if !aligned {
		return nil, &det, a.finish(kind, OutcomeAlignFailed, &det, match.NoMatch), false
	}

	feature, err := a.config.Extractor.Extract(face)
	if err != nil {
		log.Printf("Error extracting features: %v", err)
		return nil, &det, a.finish(kind, OutcomeExtractFailed, &det, match.NoMatch), false
	}

	return feature, &det, Result{}, true
}

// matchFailed turns a matcher error into a published result.
func (a *App) matchFailed(kind Kind, det *detector.Detection, err error) (Result, error) {
	if errors.Is(err, match.ErrNotReady) {
		return a.finish(kind, OutcomeNotReady, det, match.NoMatch), nil
	}
	log.Printf("Error matching face: %v", err)
	return a.finish(kind, OutcomeError, det, match.NoMatch), err
}

// finish builds the Result for an outcome and publishes it.
func (a *App) finish(kind Kind, o Outcome, det *detector.Detection, m match.Match) Result {
	res := Result{
		Kind:       kind,
		Outcome:    o,
		FaceID:     m.ID,
		Similarity: m.Similarity,
		Detection:  det,
		Message:    message(kind, o, m.ID),
		Time:       time.Now().UTC(),
	}
	a.publish(res)
	return res
}

// publish records res, notifies observers and dispatches hooks.
func (a *App) publish(res Result) {
	log.Printf("%s: %s (face %d, similarity %.3f)", res.Kind, res.Outcome, res.FaceID, res.Similarity)

	if a.config.Store != nil && a.config.Store.Ready() {
		ev := &store.Event{
			Kind:       string(res.Kind),
			Outcome:    res.Outcome.String(),
			FaceID:     res.FaceID,
			Similarity: res.Similarity,
			Message:    res.Message,
			CreatedAt:  res.Time,
		}
		if err := a.config.Store.Events().Create(ev); err != nil {
			log.Printf("Failed to record event: %v", err)
		}
	}

	a.mu.Lock()
	a.last = res
	observers := append([]func(Result){}, a.observers...)
	a.mu.Unlock()

	for _, fn := range observers {
		fn(res)
	}

	if a.config.Hooks != nil {
		ev := &hook.Event{
			Kind:       string(res.Kind),
			Outcome:    res.Outcome.String(),
			FaceID:     res.FaceID,
			Similarity: res.Similarity,
			Message:    res.Message,
			Time:       res.Time,
		}
		a.hooksWG.Add(1)
		go func() {
			defer a.hooksWG.Done()
			a.config.Hooks.Dispatch(context.Background(), ev)
		}()
	}
}

// runPipeline watches the grabber's frames. While auto recognition is
// enabled and someone is present, it recognizes at most once per cooldown.
// A frame without a face does not start the cooldown.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := a.config.Grabber.Camera().FPS()
	if fps <= 0 {
		fps = 5
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var (
		lastSeq uint64
		lastRun time.Time
	)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		if !a.AutoRecognize() {
			continue
		}

		frame, seq, err := a.config.Grabber.Latest()
		if err != nil || seq == lastSeq {
			frame.Close()
			continue
		}
		lastSeq = seq

		present := true
		if a.config.Presence != nil {
			present, _ = a.config.Presence.Observe(&frame)
		}

		if present && time.Since(lastRun) >= a.config.Cooldown {
			res, err := a.RecognizeImage(frame)
			if err != nil {
				log.Printf("Automatic recognition failed: %v", err)
			}
			if res.Outcome != OutcomeNoFace {
				lastRun = time.Now()
			}
		}
		frame.Close()
	}
}
