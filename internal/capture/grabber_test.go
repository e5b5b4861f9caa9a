package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayusman/facegate/internal/testutil"
	"gocv.io/x/gocv"
)

func TestGrabber_GrabAndLatest(t *testing.T) {
	frame := testutil.Frame(64, 48)
	defer frame.Close()

	cam := NewMockCamera([]gocv.Mat{frame}, true)
	cam.Open()
	g := NewGrabber(cam)
	defer g.Close()

	if _, _, err := g.Latest(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Latest() before any frame error = %v, want ErrNoFrame", err)
	}

	if err := g.Grab(); err != nil {
		t.Fatalf("Grab() error = %v", err)
	}
	latest, seq, err := g.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	defer latest.Close()

	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if latest.Cols() != 64 || latest.Rows() != 48 {
		t.Errorf("latest is %dx%d", latest.Cols(), latest.Rows())
	}
}

func TestGrabber_SnapshotIsExclusive(t *testing.T) {
	frame := testutil.Frame(32, 32)
	defer frame.Close()

	cam := NewMockCamera([]gocv.Mat{frame}, true)
	cam.SetFPS(50)
	g := NewGrabber(cam)
	defer g.Close()

	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !g.Running() {
		t.Error("Running() should be true after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := g.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	defer a.Close()
	b, err := g.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	defer b.Close()

	if a.GetUCharAt3(5, 5, 0) != frame.GetUCharAt3(5, 5, 0) {
		t.Error("snapshot should copy the frame")
	}
	a.SetUCharAt3(0, 0, 0, 7)
	if b.GetUCharAt3(0, 0, 0) == 7 {
		t.Error("snapshots should not share pixels")
	}
}

func TestGrabber_SnapshotCancelled(t *testing.T) {
	cam := NewMockCamera(nil, false)
	g := NewGrabber(cam)
	defer g.Close()

	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Snapshot(ctx)
	if err == nil {
		t.Fatal("Snapshot() should fail without frames")
	}
}

func TestGrabber_StopClosesCamera(t *testing.T) {
	frame := testutil.BlankFrame(16, 16)
	defer frame.Close()

	cam := NewMockCamera([]gocv.Mat{frame}, true)
	g := NewGrabber(cam)

	if err := g.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	g.Stop()

	if cam.IsOpen() {
		t.Error("camera should be closed after Stop")
	}
	if g.Running() {
		t.Error("Running() should be false after Stop")
	}
	g.Stop()
	g.Close()
}
