// Package blob stores captured media and names uploads.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/blake2b"
)

// Store persists media blobs by path.
type Store interface {
	// Upload writes data at path, replacing any existing object.
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// PublicURL returns the address clients fetch the object from.
	PublicURL(path string) string
	// Remove deletes objects; missing paths are not an error.
	Remove(ctx context.Context, paths []string) error
}

// Path returns a fresh storage path for a new upload:
// {uploader}/{journey}/{unix-nanos}-{random}.{ext}. Every call yields a
// distinct path, so callers that retry must keep the first one.
func Path(uploader, journey uuid.UUID, t time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/%s/%d-%s.%s", uploader, journey, t.UnixNano(), nonce(), ext)
}

// CoverPath returns a fresh storage path for a journey cover image.
func CoverPath(owner, journey uuid.UUID, t time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/%s/cover-%d-%s.%s", owner, journey, t.UnixNano(), nonce(), ext)
}

func nonce() string {
	var b [4]byte
	_, _ = rand.Read(b[:]) // crypto/rand.Read does not fail since Go 1.24
	return hex.EncodeToString(b[:])
}

// Digest returns the hex BLAKE2b-256 checksum of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extension returns the file extension used for a MIME type, or "" if the
// type is not a supported media type.
func Extension(contentType string) string {
	ct, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	switch strings.TrimSpace(ct) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/x-m4a":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	default:
		return ""
	}
}

// ContentType guesses a MIME type from a file extension.
func ContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "webm":
		return "audio/webm"
	case "ogg", "oga":
		return "audio/ogg"
	case "m4a", "mp4":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
