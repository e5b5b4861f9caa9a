package server

import (
	"fmt"
	"image"
	"image/color"
	"net/http"
	"time"

	"github.com/ayusman/facegate/internal/app"
	"gocv.io/x/gocv"
)

// overlayTTL is how long the last result stays drawn on the stream.
const overlayTTL = 2 * time.Second

var (
	colorKnown   = color.RGBA{0, 200, 0, 0}
	colorUnknown = color.RGBA{0, 0, 220, 0}
)

// StreamHandler serves MJPEG frames from the grabber with the most recent
// result drawn on top.
type StreamHandler struct {
	app      *app.App
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler sending a frame every
// interval.
func NewStreamHandler(a *app.App, interval time.Duration) *StreamHandler {
	return &StreamHandler{app: a, interval: interval}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	grabber := h.app.Grabber()
	if grabber == nil {
		http.Error(w, "No camera configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, seq, err := grabber.Latest()
		if err != nil || seq == lastSeq {
			frame.Close()
			continue
		}
		lastSeq = seq

		drawResult(&frame, h.app.Last())

		// Encode as JPEG
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
		frame.Close()
		if err != nil {
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		_, err = w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()
		if err != nil {
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// drawResult outlines the face of a recent result and writes its message
// above it.
func drawResult(frame *gocv.Mat, res app.Result) {
	if res.Detection == nil || time.Since(res.Time) > overlayTTL {
		return
	}

	c := colorUnknown
	if res.Outcome.Success() {
		c = colorKnown
	}

	rect := res.Detection.Box.Rect()
	gocv.Rectangle(frame, rect, c, 2)

	y := rect.Min.Y - 8
	if y < 16 {
		y = rect.Max.Y + 20
	}
	gocv.PutText(frame, res.Message, image.Pt(rect.Min.X, y), gocv.FontHersheySimplex, 0.5, c, 1)
}
