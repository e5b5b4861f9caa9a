// Package app ties capture, detection, alignment, embedding and matching
// together into the enroll and recognize operations.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/facegate/internal/align"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/embed"
	"github.com/ayusman/facegate/internal/hook"
	"github.com/ayusman/facegate/internal/match"
	"github.com/ayusman/facegate/internal/store"
)

// DefaultCooldown is the pause between automatic recognitions.
const DefaultCooldown = 3 * time.Second

// ErrNoCamera is returned by camera operations when no grabber is configured.
var ErrNoCamera = errors.New("no camera configured")

// Config holds the components the App orchestrates. Store, Faces, Grabber,
// Presence and Hooks are optional.
type Config struct {
	Detector  detector.Detector
	Extractor embed.Extractor

	// Store persists faces and events. Faces, when set, replaces the
	// store's face repository.
	Store *store.Store
	Faces match.Collection

	Grabber  *capture.Grabber
	Presence *capture.PresenceDetector
	Hooks    *hook.Manager

	Threshold float64
	Selection detector.SelectionPolicy
	Cooldown  time.Duration

	// Fingerprint identifies the embedding model the stored faces were
	// produced with.
	Fingerprint string
}

// App is the face gate: it turns frames into enroll and recognize
// decisions and publishes them.
type App struct {
	config  Config
	aligner *align.Aligner
	matcher *match.Matcher

	enrollMu sync.Mutex

	mu        sync.RWMutex
	observers []func(Result)
	last      Result
	enabled   bool
	stopCh    chan struct{}
	loopDone  chan struct{}

	hooksWG sync.WaitGroup
}

// New creates an App from config.
func New(config Config) *App {
	faces := config.Faces
	if faces == nil && config.Store != nil {
		faces = config.Store.Faces()
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}

	a := &App{
		config:  config,
		aligner: align.New(),
		matcher: match.NewMatcher(faces, config.Threshold),
	}
	a.checkFingerprint()
	return a
}

// checkFingerprint records the embedding model in the store and warns when
// the stored faces came from a different one.
func (a *App) checkFingerprint() {
	if a.config.Store == nil || a.config.Fingerprint == "" {
		return
	}

	settings := a.config.Store.Settings()
	stored, err := settings.Get(store.SettingModelFingerprint)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		log.Printf("Failed to read model fingerprint: %v", err)
		return
	case stored == a.config.Fingerprint:
		return
	default:
		if n, _ := a.Count(); n > 0 {
			log.Printf("Warning: %d stored faces were enrolled with %s, current model is %s; clear and re-enroll",
				n, stored, a.config.Fingerprint)
			return
		}
	}

	if err := settings.Set(store.SettingModelFingerprint, a.config.Fingerprint); err != nil {
		log.Printf("Failed to record model fingerprint: %v", err)
	}
}

// Matcher returns the matcher in use.
func (a *App) Matcher() *match.Matcher {
	return a.matcher
}

// Grabber returns the frame grabber, or nil.
func (a *App) Grabber() *capture.Grabber {
	return a.config.Grabber
}

// Store returns the backing store, or nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	return a.config.Detector
}

// Ready reports whether both models and the face store are available.
func (a *App) Ready() bool {
	faces := a.matcher.Collection()
	return a.config.Detector != nil && a.config.Extractor != nil && faces != nil && faces.Ready()
}

// OnResult registers fn to be called with every published Result.
func (a *App) OnResult(fn func(Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// Last returns the most recent published Result.
func (a *App) Last() Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Enroll enrolls the face currently in front of the camera.
func (a *App) Enroll(ctx context.Context) (Result, error) {
	return a.fromCamera(ctx, KindEnroll)
}

// Recognize identifies the face currently in front of the camera.
func (a *App) Recognize(ctx context.Context) (Result, error) {
	return a.fromCamera(ctx, KindRecognize)
}

// Count returns the number of enrolled faces.
func (a *App) Count() (int, error) {
	faces := a.matcher.Collection()
	if faces == nil {
		return 0, match.ErrNotReady
	}
	return faces.Count()
}

// Clear removes every enrolled face.
func (a *App) Clear() error {
	faces := a.matcher.Collection()
	if faces == nil {
		return match.ErrNotReady
	}

	a.enrollMu.Lock()
	defer a.enrollMu.Unlock()
	if err := faces.Clear(); err != nil {
		return err
	}
	log.Println("Cleared all enrolled faces")
	return nil
}

// Events returns up to limit recorded results, newest first.
func (a *App) Events(limit int) ([]*store.Event, error) {
	if a.config.Store == nil {
		return nil, nil
	}
	return a.config.Store.Events().Recent(limit)
}

// SetAutoRecognize enables or disables automatic recognition.
func (a *App) SetAutoRecognize(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// AutoRecognize reports whether automatic recognition is enabled.
func (a *App) AutoRecognize() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start begins grabbing frames and, while enabled, recognizes whoever
// steps in front of the camera.
func (a *App) Start() error {
	if a.config.Grabber == nil {
		return ErrNoCamera
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.config.Grabber.Start(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	go a.runPipeline(a.stopCh, a.loopDone)

	log.Println("Recognition pipeline started")
	return nil
}

// Stop halts the pipeline and the grabber.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.loopDone
	a.stopCh, a.loopDone = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	a.config.Grabber.Stop()
	log.Println("Recognition pipeline stopped")
}

// Close stops the pipeline, waits for running hooks and releases the
// models, the grabber and the presence detector.
func (a *App) Close() error {
	a.Stop()
	a.hooksWG.Wait()

	var errs []error
	if a.config.Grabber != nil {
		errs = append(errs, a.config.Grabber.Close())
	}
	if a.config.Presence != nil {
		a.config.Presence.Close()
	}
	if a.config.Detector != nil {
		errs = append(errs, a.config.Detector.Close())
	}
	if a.config.Extractor != nil {
		errs = append(errs, a.config.Extractor.Close())
	}
	return errors.Join(errs...)
}
