// Package objectstore keeps binary objects (profile pictures) under string
// keys and tells where each one is publicly served.
package objectstore

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrNotFound = errors.New("object not found")

// MediaPrefix is the HTTP path objects are served under.
const MediaPrefix = "/media/"

const metaContentType = "content-type"

func publicURL(baseURL, key string) (string, error) {
	u, err := url.JoinPath(baseURL, MediaPrefix, key)
	if err != nil {
		return "", fmt.Errorf("internal/objectstore: invalid public URL for [%s]: %w", key, err)
	}
	return u, nil
}
