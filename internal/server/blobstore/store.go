// Package blobstore stores avatar image bytes by key. Keys are flat file
// names such as "42.png"; the avatar service owns the pairing between a key
// and its metadata record.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// ErrNotExist is returned by Read and Delete when no object is stored under
// the key.
var ErrNotExist = errors.New("blob does not exist")

// Store is a flat key/bytes store. Implementations are safe for concurrent use.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Info describes a stored blob.
type Info struct {
	Key     string
	ModTime time.Time
}

// Lister is implemented by stores that can enumerate their blobs.
// Stat returns ErrNotExist for a missing key.
type Lister interface {
	List(ctx context.Context) ([]Info, error)
	Stat(ctx context.Context, key string) (Info, error)
}

// KeyFor returns the blob key of userID's avatar.
func KeyFor(userID int64) string {
	return fmt.Sprintf("%d.png", userID)
}

// UserIDFromKey is the inverse of KeyFor. It reports false for keys that
// KeyFor cannot produce.
func UserIDFromKey(key string) (int64, bool) {
	raw, ok := strings.CutSuffix(key, ".png")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 || KeyFor(id) != key {
		return 0, false
	}
	return id, true
}

// Digest returns the lowercase hex sha256 of data. It panics on empty input;
// callers never hash an empty image.
func Digest(data []byte) string {
	if len(data) == 0 {
		panic("blobstore: digest of empty content")
	}
	return digest.FromBytes(data).Encoded()
}
