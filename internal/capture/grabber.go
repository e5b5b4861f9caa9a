package capture

import (
	"context"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Grabber reads frames from a Camera in the background and keeps the most
// recent one. Consumers take exclusive clones with Snapshot.
type Grabber struct {
	cam Camera

	mu    sync.Mutex
	cond  *sync.Cond
	frame gocv.Mat
	seq   uint64
	err   error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewGrabber creates a Grabber over cam. It does not open the camera.
func NewGrabber(cam Camera) *Grabber {
	g := &Grabber{cam: cam, frame: gocv.NewMat()}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Camera returns the underlying camera.
func (g *Grabber) Camera() Camera {
	return g.cam
}

// Start opens the camera and begins reading at its FPS. Calling Start on
// a running Grabber does nothing.
func (g *Grabber) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return nil
	}
	if err := g.cam.Open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx, g.done)

	log.Println("Frame grabber started")
	return nil
}

// Stop ends the read loop and closes the camera.
func (g *Grabber) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if err := g.cam.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	g.mu.Lock()
	g.err = ErrCameraNotOpen
	g.cond.Broadcast()
	g.mu.Unlock()

	log.Println("Frame grabber stopped")
}

// Running reports whether the read loop is active.
func (g *Grabber) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

func (g *Grabber) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	fps := g.cam.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		if err := g.Grab(); err != nil {
			log.Printf("Error reading frame: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Grab reads one frame from the camera and makes it the latest.
func (g *Grabber) Grab() error {
	frame, err := g.cam.ReadFrame()

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.err = err
		g.cond.Broadcast()
		return err
	}
	g.frame.Close()
	g.frame = *frame
	g.seq++
	g.err = nil
	g.cond.Broadcast()
	return nil
}

// Seq returns the number of frames grabbed so far.
func (g *Grabber) Seq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Latest returns a clone of the most recent frame and its sequence number.
// The caller closes the clone. It fails with ErrNoFrame before the first
// frame arrives.
func (g *Grabber) Latest() (gocv.Mat, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seq == 0 || g.frame.Empty() {
		if g.err != nil {
			return gocv.NewMat(), 0, g.err
		}
		return gocv.NewMat(), 0, ErrNoFrame
	}
	return g.frame.Clone(), g.seq, nil
}

// Snapshot waits for a frame newer than any taken before the call and
// returns a clone the caller owns. It gives up when ctx is done.
func (g *Grabber) Snapshot(ctx context.Context) (gocv.Mat, error) {
	g.mu.Lock()
	after := g.seq
	g.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.seq == after {
		if err := ctx.Err(); err != nil {
			return gocv.NewMat(), err
		}
		if g.cancel == nil {
			// Nothing is reading; take what is there.
			break
		}
		g.cond.Wait()
		if g.seq == after && g.err != nil {
			return gocv.NewMat(), g.err
		}
	}

	if g.seq == 0 || g.frame.Empty() {
		if g.err != nil {
			return gocv.NewMat(), g.err
		}
		return gocv.NewMat(), ErrNoFrame
	}
	return g.frame.Clone(), nil
}

// Close stops the Grabber and releases the latest frame.
func (g *Grabber) Close() error {
	g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.frame.Close()
	g.frame = gocv.NewMat()
	return nil
}
