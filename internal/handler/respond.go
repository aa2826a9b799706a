package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// syncTimeout bounds how long a one-shot endpoint waits for a feed's first
// snapshot.
const syncTimeout = 5 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorString(w, status, err.Error())
}

func writeErrorString(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return validate.Struct(dest)
}

func counterpartParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "counterpartID"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("invalid counterpart id")
	}
	return id, nil
}

// waitSynced reports whether synced closed before ctx ended or syncTimeout
// passed.
func waitSynced(ctx context.Context, synced <-chan struct{}) bool {
	timer := time.NewTimer(syncTimeout)
	defer timer.Stop()

	select {
	case <-synced:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
