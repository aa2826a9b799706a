// Package avatar lets the current user pick a picture from their photo
// library and publish it as their profile picture.
package avatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/objectstore"
)

var (
	ErrConsentDenied    = errors.New("photo library access denied")
	ErrNotAuthenticated = errors.New("no current user")
	ErrNoImage          = errors.New("no image selected")
	ErrNotImage         = errors.New("selected file is not an image")
	ErrTooLarge         = errors.New("selected image is too large")
)

// User facing alerts.
const (
	AlertConsentRequired = "Permission to access camera roll is required!"
	AlertUploaded        = "Profile picture updated successfully!"
	AlertUploadFailed    = "Error uploading image."
)

const DefaultMaxBytes = 5 << 20

type Options struct {
	// MaxBytes caps the image size. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Timeout bounds a whole upload. Zero means no timeout.
	Timeout time.Duration
}

// Uploader holds the image the user picked until it is uploaded.
type Uploader struct {
	log      *slog.Logger
	objects  ObjectStore
	profiles ProfileStore
	alerts   Alerter
	self     uuid.UUID
	opts     Options

	uploading sync.Mutex

	mu       sync.Mutex
	selected *Image
}

func NewUploader(log *slog.Logger, objects ObjectStore, profiles ProfileStore, alerts Alerter, self uuid.UUID, opts Options) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Uploader{
		log:      log.With("user_id", self),
		objects:  objects,
		profiles: profiles,
		alerts:   alerts,
		self:     self,
		opts:     opts,
	}
}

// ObjectKey is where a user's profile picture is stored. Uploading again
// overwrites the previous picture.
func ObjectKey(id uuid.UUID) string {
	return "profile_pictures/" + id.String() + ".jpg"
}

// PickImage asks src for library access and lets the user choose an image.
// A canceled picker leaves the current selection untouched.
func (u *Uploader) PickImage(ctx context.Context, src ImageSource) error {
	granted, err := src.RequestLibraryAccess(ctx)
	if err != nil {
		u.log.ErrorContext(ctx, "failed to request photo library access", "error", err)
		return fmt.Errorf("request library access: %w", err)
	}
	if !granted {
		u.alerts.Alert(ctx, AlertConsentRequired)
		return ErrConsentDenied
	}

	img, canceled, err := src.ChooseImage(ctx)
	if err != nil {
		u.log.ErrorContext(ctx, "failed to choose image", "error", err)
		return fmt.Errorf("choose image: %w", err)
	}
	if canceled {
		return nil
	}

	u.mu.Lock()
	u.selected = &img
	u.mu.Unlock()
	return nil
}

func (u *Uploader) Selected() (Image, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.selected == nil {
		return Image{}, false
	}
	return *u.selected, true
}

// UploadImage stores the selected image and points the user's profile at
// it. When the profile cannot be updated the previously stored picture is
// put back, so the profile never references a picture it did not choose.
func (u *Uploader) UploadImage(ctx context.Context) (string, error) {
	if u.self == uuid.Nil {
		u.log.WarnContext(ctx, "upload skipped: no current user")
		return "", ErrNotAuthenticated
	}
	img, ok := u.Selected()
	if !ok {
		u.log.WarnContext(ctx, "upload skipped: no image selected")
		return "", ErrNoImage
	}

	u.uploading.Lock()
	defer u.uploading.Unlock()

	if u.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.opts.Timeout)
		defer cancel()
	}

	url, err := u.upload(ctx, img)
	if err != nil {
		u.log.ErrorContext(ctx, "failed to upload profile picture", "image", img.Name, "error", err)
		u.alerts.Alert(ctx, AlertUploadFailed)
		return "", err
	}

	u.log.InfoContext(ctx, "profile picture updated", "url", url)
	u.alerts.Alert(ctx, AlertUploaded)
	return url, nil
}

func (u *Uploader) upload(ctx context.Context, img Image) (string, error) {
	if int64(len(img.Data)) > u.opts.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(img.Data), u.opts.MaxBytes)
	}
	mt := mimetype.Detect(img.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	if _, err := u.profiles.GetProfile(ctx, u.self); err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	key := ObjectKey(u.self)
	previous, previousType, err := u.objects.Get(ctx, key)
	hadPrevious := true
	if errors.Is(err, objectstore.ErrNotFound) {
		hadPrevious = false
	} else if err != nil {
		return "", fmt.Errorf("read previous picture: %w", err)
	}

	if err := u.objects.Put(ctx, key, img.Data, mt.String()); err != nil {
		return "", fmt.Errorf("store picture: %w", err)
	}

	url, err := u.objects.PublicURL(ctx, key)
	if err != nil {
		u.restore(ctx, key, previous, previousType, hadPrevious)
		return "", fmt.Errorf("resolve public URL: %w", err)
	}
	url += "?v=" + contentVersion(img.Data)

	if err := u.profiles.UpdateProfilePicture(ctx, u.self, url); err != nil {
		u.restore(ctx, key, previous, previousType, hadPrevious)
		return "", fmt.Errorf("update profile: %w", err)
	}
	return url, nil
}

// restore puts the object store back to what it held before the upload.
func (u *Uploader) restore(ctx context.Context, key string, previous []byte, contentType string, hadPrevious bool) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if hadPrevious {
		err = u.objects.Put(ctx, key, previous, contentType)
	} else {
		err = u.objects.Delete(ctx, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		u.log.ErrorContext(ctx, "failed to restore previous picture", "key", key, "error", err)
	}
}

// contentVersion changes whenever the picture does, so clients holding the
// old URL refetch it.
func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
