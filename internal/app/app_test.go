package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/embed"
	"github.com/ayusman/facegate/internal/hook"
	"github.com/ayusman/facegate/internal/match"
	"github.com/ayusman/facegate/internal/store"
	"github.com/ayusman/facegate/internal/testutil"
	"gocv.io/x/gocv"
)

type fixture struct {
	app       *App
	detector  *detector.MockDetector
	extractor *embed.MockExtractor
	faces     *match.MemoryCollection
	frame     gocv.Mat
}

func newFixture(t *testing.T, features ...match.Feature) *fixture {
	t.Helper()

	f := &fixture{
		detector:  detector.NewMockDetector(),
		extractor: embed.NewMockExtractor(features...),
		faces:     match.NewMemoryCollection(),
		frame:     testutil.Frame(320, 240),
	}
	f.detector.SetFaces([]detector.Detection{detector.FrontalFace(100, 60, 1)})
	f.app = New(Config{
		Detector:  f.detector,
		Extractor: f.extractor,
		Faces:     f.faces,
		Threshold: match.DefaultThreshold,
	})
	t.Cleanup(func() {
		f.app.Close()
		f.frame.Close()
	})
	return f
}

func feature(dim int, seed int64) match.Feature {
	return match.Feature(testutil.Feature(dim, seed))
}

func TestApp_EnrollThenRecognize(t *testing.T) {
	f := newFixture(t, feature(128, 1))

	res, err := f.app.EnrollImage(f.frame)
	if err != nil {
		t.Fatalf("EnrollImage() error = %v", err)
	}
	if res.Outcome != OutcomeEnrolled || res.FaceID != 1 {
		t.Fatalf("EnrollImage() = %s face %d, want enrolled face 1", res.Outcome, res.FaceID)
	}
	if res.Message != "Enrolled as number 1" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if res.Detection == nil || res.Detection.Score != 0.99 {
		t.Errorf("result should carry the selected detection, got %+v", res.Detection)
	}

	res, err = f.app.EnrollImage(f.frame)
	if err != nil {
		t.Fatalf("second EnrollImage() error = %v", err)
	}
	if res.Outcome != OutcomeDuplicate || res.FaceID != 1 {
		t.Errorf("second EnrollImage() = %s face %d, want duplicate of 1", res.Outcome, res.FaceID)
	}
	if res.Message != "Please do not enroll twice" {
		t.Errorf("unexpected message %q", res.Message)
	}

	res, err = f.app.RecognizeImage(f.frame)
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	if res.Outcome != OutcomeRecognized || res.FaceID != 1 {
		t.Errorf("RecognizeImage() = %s face %d, want recognized 1", res.Outcome, res.FaceID)
	}
	if res.Similarity < 0.999 {
		t.Errorf("similarity = %f, want ~1", res.Similarity)
	}

	if n, _ := f.app.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestApp_RecognizeUnknown(t *testing.T) {
	f := newFixture(t, match.Feature(testutil.Axis(8, 0)), match.Feature(testutil.Axis(8, 1)))

	if res, _ := f.app.EnrollImage(f.frame); res.Outcome != OutcomeEnrolled {
		t.Fatalf("EnrollImage() = %s", res.Outcome)
	}

	res, err := f.app.RecognizeImage(f.frame)
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	if res.Outcome != OutcomeUnknown {
		t.Errorf("RecognizeImage() = %s, want unknown", res.Outcome)
	}
	if res.FaceID != -1 {
		t.Errorf("unknown face id = %d, want -1", res.FaceID)
	}
	if res.Message != "Not enrolled, please enroll first" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestApp_RecognizeEmptyCollection(t *testing.T) {
	f := newFixture(t, feature(16, 3))

	res, err := f.app.RecognizeImage(f.frame)
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	if res.Outcome != OutcomeUnknown || res.FaceID != -1 || res.Similarity != 0 {
		t.Errorf("RecognizeImage() on empty store = %+v", res)
	}
}

func TestApp_Refusals(t *testing.T) {
	t.Run("no face", func(t *testing.T) {
		f := newFixture(t, feature(16, 1))
		f.detector.SetFaces(nil)

		res, err := f.app.EnrollImage(f.frame)
		if err != nil {
			t.Fatalf("EnrollImage() error = %v", err)
		}
		if res.Outcome != OutcomeNoFace {
			t.Errorf("outcome = %s, want no_face", res.Outcome)
		}
		if f.extractor.Calls() != 0 {
			t.Error("extractor should not run without a face")
		}
		if n, _ := f.app.Count(); n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		f := newFixture(t, feature(16, 1))
		empty := gocv.NewMat()
		defer empty.Close()

		res, _ := f.app.RecognizeImage(empty)
		if res.Outcome != OutcomeNoFace {
			t.Errorf("outcome = %s, want no_face", res.Outcome)
		}
		if f.detector.Calls() != 0 {
			t.Error("detector should not run on an empty frame")
		}
	})

	t.Run("align failed", func(t *testing.T) {
		f := newFixture(t, feature(16, 1))
		det := detector.FrontalFace(100, 60, 1)
		for i := range det.Landmarks {
			det.Landmarks[i] = detector.Point{X: 100 + float32(i)*10, Y: 80}
		}
		f.detector.SetFaces([]detector.Detection{det})

		res, _ := f.app.EnrollImage(f.frame)
		if res.Outcome != OutcomeAlignFailed {
			t.Errorf("outcome = %s, want align_failed", res.Outcome)
		}
		if f.extractor.Calls() != 0 {
			t.Error("extractor should not run after a failed alignment")
		}
	})

	t.Run("extract failed", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.SetError(embed.ErrExtract)

		res, _ := f.app.RecognizeImage(f.frame)
		if res.Outcome != OutcomeExtractFailed {
			t.Errorf("outcome = %s, want extract_failed", res.Outcome)
		}
		if res.Message != "Feature extraction failed, please try again" {
			t.Errorf("unexpected message %q", res.Message)
		}
	})

	t.Run("detector error", func(t *testing.T) {
		f := newFixture(t, feature(16, 1))
		f.detector.SetError(errors.New("model crashed"))

		res, _ := f.app.RecognizeImage(f.frame)
		if res.Outcome != OutcomeError {
			t.Errorf("outcome = %s, want error", res.Outcome)
		}
	})

	t.Run("store closed", func(t *testing.T) {
		f := newFixture(t, feature(16, 1))
		f.faces.Close()

		res, err := f.app.EnrollImage(f.frame)
		if err != nil {
			t.Fatalf("EnrollImage() error = %v", err)
		}
		if res.Outcome != OutcomeNotReady {
			t.Errorf("outcome = %s, want not_ready", res.Outcome)
		}
		if f.detector.Calls() != 0 {
			t.Error("nothing should run when not ready")
		}
	})

	t.Run("no extractor", func(t *testing.T) {
		a := New(Config{Detector: detector.NewMockDetector(), Faces: match.NewMemoryCollection()})
		frame := testutil.Frame(32, 32)
		defer frame.Close()

		res, _ := a.RecognizeImage(frame)
		if res.Outcome != OutcomeNotReady {
			t.Errorf("outcome = %s, want not_ready", res.Outcome)
		}
		if a.Ready() {
			t.Error("Ready() should be false without an extractor")
		}
	})
}

func TestApp_DimensionMismatchIsError(t *testing.T) {
	f := newFixture(t, feature(8, 1), feature(16, 2))

	if res, _ := f.app.EnrollImage(f.frame); res.Outcome != OutcomeEnrolled {
		t.Fatalf("EnrollImage() = %s", res.Outcome)
	}

	res, err := f.app.RecognizeImage(f.frame)
	if !errors.Is(err, match.ErrDimensionMismatch) {
		t.Errorf("RecognizeImage() error = %v, want ErrDimensionMismatch", err)
	}
	if res.Outcome != OutcomeError {
		t.Errorf("outcome = %s, want error", res.Outcome)
	}
}

func TestApp_SelectionPolicy(t *testing.T) {
	f := newFixture(t, feature(16, 1))

	small := detector.FrontalFace(10, 10, 0.5)
	small.Score = 0.999
	large := detector.FrontalFace(150, 60, 1)
	f.detector.SetFaces([]detector.Detection{small, large})

	res, _ := f.app.EnrollImage(f.frame)
	if res.Detection == nil || res.Detection.Box != large.Box {
		t.Errorf("largest face should be selected, got %+v", res.Detection)
	}

	f.app.config.Selection = detector.SelectMostConfident
	res, _ = f.app.RecognizeImage(f.frame)
	if res.Detection == nil || res.Detection.Box != small.Box {
		t.Errorf("most confident face should be selected, got %+v", res.Detection)
	}
}

func TestApp_ObserversAndEvents(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "facegate.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	frame := testutil.Frame(320, 240)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetFaces([]detector.Detection{detector.FrontalFace(100, 60, 1)})
	a := New(Config{
		Detector:    det,
		Extractor:   embed.NewMockExtractor(feature(64, 9)),
		Store:       s,
		Fingerprint: "arcface.onnx:64",
	})
	defer a.Close()

	var (
		mu   sync.Mutex
		seen []Outcome
	)
	a.OnResult(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Outcome)
	})

	a.EnrollImage(frame)
	a.EnrollImage(frame)
	a.RecognizeImage(frame)

	mu.Lock()
	got := append([]Outcome(nil), seen...)
	mu.Unlock()
	want := []Outcome{OutcomeEnrolled, OutcomeDuplicate, OutcomeRecognized}
	if len(got) != len(want) {
		t.Fatalf("observed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observed[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if a.Last().Outcome != OutcomeRecognized {
		t.Errorf("Last() = %s, want recognized", a.Last().Outcome)
	}

	events, err := a.Events(10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Events() = %d, want 3", len(events))
	}
	if events[0].Outcome != "recognized" || events[0].Kind != "recognize" {
		t.Errorf("newest event = %+v", events[0])
	}

	fp, err := s.Settings().Get(store.SettingModelFingerprint)
	if err != nil || fp != "arcface.onnx:64" {
		t.Errorf("fingerprint = %q, %v", fp, err)
	}

	if err := a.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := a.Count(); n != 0 {
		t.Errorf("Count() after Clear = %d", n)
	}
	res, _ := a.EnrollImage(frame)
	if res.Outcome != OutcomeEnrolled || res.FaceID != 2 {
		t.Errorf("enrollment after Clear = %s face %d, want a fresh id 2", res.Outcome, res.FaceID)
	}
}

func TestApp_HooksReceiveResults(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	hooksDir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "events")
	relayDir := filepath.Join(hooksDir, "door-relay")
	os.MkdirAll(relayDir, 0755)
	script := "#!/bin/sh\ncat >> '" + marker + "'\necho >> '" + marker + "'\necho '{\"success\":true}'\n"
	os.WriteFile(filepath.Join(relayDir, "run.sh"), []byte(script), 0755)
	os.WriteFile(filepath.Join(relayDir, hook.ManifestFile),
		[]byte(`{"name":"door-relay","executable":"run.sh","events":["recognized"]}`), 0644)

	hooks := hook.NewManager(hooksDir, hook.NewExecutor(5*time.Second))
	if err := hooks.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	frame := testutil.Frame(320, 240)
	defer frame.Close()
	det := detector.NewMockDetector()
	det.SetFaces([]detector.Detection{detector.FrontalFace(100, 60, 1)})

	a := New(Config{
		Detector:  det,
		Extractor: embed.NewMockExtractor(feature(32, 4)),
		Faces:     match.NewMemoryCollection(),
		Hooks:     hooks,
	})

	a.EnrollImage(frame)
	a.RecognizeImage(frame)
	a.Close()

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("hook ran %d times, want once for the recognition", len(lines))
	}

	var ev hook.Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("hook received invalid event: %v", err)
	}
	if ev.Outcome != "recognized" || ev.FaceID != 1 {
		t.Errorf("hook received %+v", ev)
	}
}

func TestApp_CameraOperations(t *testing.T) {
	f := newFixture(t, feature(16, 5))

	if _, err := f.app.Enroll(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Errorf("Enroll() without camera error = %v, want ErrNoCamera", err)
	}
	if err := f.app.Start(); !errors.Is(err, ErrNoCamera) {
		t.Errorf("Start() without camera error = %v, want ErrNoCamera", err)
	}

	cam := capture.NewMockCamera([]gocv.Mat{f.frame}, true)
	cam.Open()
	grabber := capture.NewGrabber(cam)
	if err := grabber.Grab(); err != nil {
		t.Fatalf("Grab() error = %v", err)
	}
	f.app.config.Grabber = grabber

	res, err := f.app.Enroll(context.Background())
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if res.Outcome != OutcomeEnrolled {
		t.Errorf("Enroll() = %s, want enrolled", res.Outcome)
	}

	res, err = f.app.Recognize(context.Background())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Outcome != OutcomeRecognized {
		t.Errorf("Recognize() = %s, want recognized", res.Outcome)
	}
}

func TestApp_AutoRecognize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	f := newFixture(t, feature(16, 6))
	if res, _ := f.app.EnrollImage(f.frame); res.Outcome != OutcomeEnrolled {
		t.Fatalf("EnrollImage() = %s", res.Outcome)
	}

	cam := capture.NewMockCamera([]gocv.Mat{f.frame}, true)
	cam.SetFPS(20)
	f.app.config.Grabber = capture.NewGrabber(cam)
	f.app.config.Cooldown = time.Hour

	recognized := make(chan Result, 4)
	f.app.OnResult(func(r Result) {
		if r.Kind == KindRecognize {
			recognized <- r
		}
	})

	if err := f.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.app.Stop()

	// Nothing happens until auto recognition is enabled.
	select {
	case r := <-recognized:
		t.Fatalf("unexpected result before enabling: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}

	f.app.SetAutoRecognize(true)
	select {
	case r := <-recognized:
		if r.Outcome != OutcomeRecognized || r.FaceID != 1 {
			t.Errorf("automatic result = %s face %d", r.Outcome, r.FaceID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no automatic recognition")
	}

	// The cooldown suppresses repeats.
	select {
	case r := <-recognized:
		t.Errorf("unexpected second result within cooldown: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestOutcome_JSON(t *testing.T) {
	data, err := json.Marshal(Result{Kind: KindRecognize, Outcome: OutcomeRecognized, FaceID: 3})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"outcome":"recognized"`) {
		t.Errorf("outcome should be encoded by name: %s", data)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if r.Outcome != OutcomeRecognized {
		t.Errorf("decoded outcome = %s", r.Outcome)
	}

	if !OutcomeEnrolled.Success() || OutcomeDuplicate.Success() {
		t.Error("only enrolled and recognized are successes")
	}
	if Outcome(99).String() != "outcome(99)" {
		t.Errorf("unexpected name for unknown outcome: %s", Outcome(99))
	}
}
