//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=mocks/mock_contract.go -package=mocks
package avatar

import (
	"context"

	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/model"
)

// Image is a picture chosen from the user's photo library.
type Image struct {
	Name string
	Data []byte
}

// ImageSource is the user's photo library.
type ImageSource interface {
	RequestLibraryAccess(ctx context.Context) (bool, error)
	// ChooseImage reports canceled when the user dismissed the picker.
	ChooseImage(ctx context.Context) (img Image, canceled bool, err error)
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(ctx context.Context, key string) (string, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (model.UserProfile, error)
	UpdateProfilePicture(ctx context.Context, id uuid.UUID, url string) error
}
