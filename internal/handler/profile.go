package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/avatar"
)

type uploadResponse struct {
	URL    string   `json:"url,omitempty"`
	Alerts []string `json:"alerts"`
}

// formImageSource answers the picker from a multipart form: the
// "library_access" field carries the user's consent and the "image" file is
// the chosen picture.
type formImageSource struct {
	r        *http.Request
	maxBytes int64
}

func (s formImageSource) RequestLibraryAccess(ctx context.Context) (bool, error) {
	switch s.r.FormValue("library_access") {
	case "", "granted", "true":
		return true, nil
	default:
		return false, nil
	}
}

func (s formImageSource) ChooseImage(ctx context.Context) (avatar.Image, bool, error) {
	file, header, err := s.r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return avatar.Image{}, true, nil
	}
	if err != nil {
		return avatar.Image{}, false, err
	}
	defer file.Close()

	// Read one byte past the limit so the uploader can tell the image is
	// too large.
	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return avatar.Image{}, false, fmt.Errorf("read image: %w", err)
	}
	return avatar.Image{Name: header.Filename, Data: data}, false, nil
}

// alertCollector keeps the alerts raised during one request so they can be
// sent back in the response.
type alertCollector struct {
	mu     sync.Mutex
	alerts []string
}

func (a *alertCollector) Alert(ctx context.Context, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, message)
}

func (a *alertCollector) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.alerts...)
}

// UploadProfilePicture picks the posted image and makes it the current
// user's profile picture.
func UploadProfilePicture(log *slog.Logger, objects avatar.ObjectStore, profiles avatar.ProfileStore, opts avatar.Options) http.HandlerFunc {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = avatar.DefaultMaxBytes
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		self, err := auth.GetUserFromContext(ctx)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBytes+1<<20)
		if err := r.ParseMultipartForm(opts.MaxBytes + 1<<20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, avatar.ErrTooLarge)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer r.MultipartForm.RemoveAll() //nolint:errcheck

		alerts := &alertCollector{}
		uploader := avatar.NewUploader(log, objects, profiles, alerts, self, opts)

		err = uploader.PickImage(ctx, formImageSource{r: r, maxBytes: opts.MaxBytes})
		switch {
		case errors.Is(err, avatar.ErrConsentDenied):
			writeJSON(w, http.StatusForbidden, uploadResponse{Alerts: alerts.list()})
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err)
			return
		}

		// A canceled picker changes nothing.
		if _, ok := uploader.Selected(); !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		url, err := uploader.UploadImage(ctx)
		resp := uploadResponse{URL: url, Alerts: alerts.list()}
		switch {
		case errors.Is(err, avatar.ErrTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, resp)
		case errors.Is(err, avatar.ErrNotImage):
			writeJSON(w, http.StatusUnsupportedMediaType, resp)
		case err != nil:
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}
