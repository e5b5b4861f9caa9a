package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/config"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/embed"
	"github.com/ayusman/facegate/internal/engine"
	"github.com/ayusman/facegate/internal/hook"
	"github.com/ayusman/facegate/internal/store"
)

// openDetector loads the face detection model.
func openDetector(c config.Config) (detector.Detector, error) {
	session, err := engine.Open(c.DetectorModelConfig())
	if err != nil {
		return nil, fmt.Errorf("load detector %s: %w", c.DetectorModel, err)
	}
	det, err := detector.NewRetinaFace(session, c.DetectorConfig())
	if err != nil {
		session.Close()
		return nil, err
	}
	return det, nil
}

// openExtractor loads the embedding model.
func openExtractor(c config.Config) (embed.Extractor, error) {
	session, err := engine.Open(c.EmbedderModelConfig())
	if err != nil {
		return nil, fmt.Errorf("load embedder %s: %w", c.EmbedderModel, err)
	}
	net, err := embed.NewNet(session, c.EmbedConfig())
	if err != nil {
		session.Close()
		return nil, err
	}
	return net, nil
}

// openStore creates the data directories and opens the database.
func openStore(c config.Config) (*store.Store, error) {
	if err := c.EnsureDirs(); err != nil {
		return nil, err
	}
	s, err := store.New(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// newGrabber returns a grabber for the configured camera, or nil when the
// camera is disabled.
func newGrabber(c config.Config) *capture.Grabber {
	if strings.EqualFold(c.Camera, "none") {
		return nil
	}
	cam := capture.NewCamera(c.Camera)
	cam.SetFPS(c.FPS)
	return capture.NewGrabber(cam)
}

// appOptions picks the optional parts of an App.
type appOptions struct {
	camera bool
	hooks  bool
	// lenient keeps going without models; the App then reports not ready.
	lenient bool
}

// buildApp wires an App from the configuration.
func buildApp(c config.Config, s *store.Store, opts appOptions) (*app.App, error) {
	ac := app.Config{
		Store:       s,
		Threshold:   c.MatchThreshold,
		Selection:   c.SelectionPolicy(),
		Cooldown:    c.Cooldown,
		Fingerprint: c.Fingerprint(),
	}

	det, err := openDetector(c)
	switch {
	case err == nil:
		ac.Detector = det
	case opts.lenient:
		log.Printf("Warning: %v", err)
	default:
		return nil, err
	}

	ext, err := openExtractor(c)
	switch {
	case err == nil:
		ac.Extractor = ext
	case opts.lenient:
		log.Printf("Warning: %v", err)
	default:
		if ac.Detector != nil {
			ac.Detector.Close()
		}
		return nil, err
	}

	if opts.camera {
		ac.Grabber = newGrabber(c)
		if ac.Grabber != nil && c.PresenceThreshold > 0 {
			ac.Presence = capture.NewPresenceDetector(c.PresenceThreshold, capture.DefaultHold)
		}
	}

	if opts.hooks {
		hooks := hook.NewManager(c.HooksDir, hook.NewExecutor(c.HookTimeout))
		if err := hooks.Discover(); err != nil {
			log.Printf("Warning: failed to discover hooks: %v", err)
		} else {
			log.Printf("Loaded %d hooks from %s", len(hooks.List()), hooks.Dir())
		}
		ac.Hooks = hooks
	}

	return app.New(ac), nil
}

// printResult writes a result the way the person at the gate sees it.
func printResult(res app.Result) {
	fmt.Println(res.Message)
	if res.Outcome == app.OutcomeRecognized || res.Outcome == app.OutcomeDuplicate || res.Outcome == app.OutcomeUnknown {
		fmt.Printf("  outcome: %s, face: %d, similarity: %.3f\n", res.Outcome, res.FaceID, res.Similarity)
	} else {
		fmt.Printf("  outcome: %s\n", res.Outcome)
	}
}
