package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/store"
)

// MaxUploadSize bounds the size of an uploaded image.
const MaxUploadSize = 10 << 20

// FacesHandler handles enrollment, recognition and the enrolled faces.
type FacesHandler struct {
	app *app.App
}

// NewFacesHandler creates a new FacesHandler for a.
func NewFacesHandler(a *app.App) *FacesHandler {
	return &FacesHandler{app: a}
}

type faceListResponse struct {
	Count int          `json:"count"`
	Faces []store.Face `json:"faces"`
}

type countResponse struct {
	Count int `json:"count"`
}

// List handles GET /api/faces. Face metadata is only listed when the
// faces live in a store.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	count, err := h.app.Count()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Face store is not available")
		return
	}

	resp := faceListResponse{Count: count, Faces: []store.Face{}}
	if s := h.app.Store(); s != nil {
		faces, err := s.Faces().List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list faces")
			return
		}
		if faces != nil {
			resp.Faces = faces
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Count handles GET /api/faces/count.
func (h *FacesHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.app.Count()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Face store is not available")
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// Clear handles DELETE /api/faces.
func (h *FacesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Clear(); err != nil {
		log.Printf("Failed to clear faces: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear faces")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enroll handles POST /api/enroll. The face is taken from an uploaded
// image when the request carries one, otherwise from the camera.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, app.KindEnroll)
}

// Recognize handles POST /api/recognize, like Enroll.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, app.KindRecognize)
}

func (h *FacesHandler) run(w http.ResponseWriter, r *http.Request, kind app.Kind) {
	data, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var res app.Result
	if data == nil {
		if kind == app.KindEnroll {
			res, err = h.app.Enroll(r.Context())
		} else {
			res, err = h.app.Recognize(r.Context())
		}
	} else {
		frame, decodeErr := capture.DecodeImage(data, capture.MaxImageSide)
		defer frame.Close()
		if decodeErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}
		if kind == app.KindEnroll {
			res, err = h.app.EnrollImage(frame)
		} else {
			res, err = h.app.RecognizeImage(frame)
		}
	}

	switch {
	case errors.Is(err, app.ErrNoCamera):
		writeError(w, http.StatusServiceUnavailable, "No camera configured, upload an image instead")
	case err != nil:
		log.Printf("%s failed: %v", kind, err)
		writeJSON(w, http.StatusInternalServerError, res)
	case res.Outcome == app.OutcomeNotReady:
		writeJSON(w, http.StatusServiceUnavailable, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// readImage returns the image carried by r: the "image" field of a
// multipart form or a raw image/* body. It returns nil when r has none.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
			return nil, fmt.Errorf("Invalid form: %v", err)
		}
		file, _, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("Invalid image field: %v", err)
		}
		defer file.Close()
		return readAll(file)
	case strings.HasPrefix(mediaType, "image/"):
		return readAll(r.Body)
	}
	return nil, nil
}

func readAll(rd io.Reader) ([]byte, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("Failed to read image: %v", err)
	}
	if len(data) == 0 {
		return nil, errors.New("Empty image")
	}
	return data, nil
}
