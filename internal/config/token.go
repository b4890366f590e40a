package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrNoToken means no usable access token is stored.
var ErrNoToken = errors.New("no valid token (login required)")

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func tokenPath(dir string) string { return filepath.Join(dir, "token.json") }

// SaveToken stores an access token issued by the auth service.
func SaveToken(dir, token string, exp time.Time) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: token, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(dir), b, 0o600)
}

// LoadToken returns the stored token if it has not expired at now.
func LoadToken(dir string, now time.Time) (string, error) {
	b, err := os.ReadFile(tokenPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || (!tf.ExpiresAt.IsZero() && now.After(tf.ExpiresAt)) {
		return "", ErrNoToken
	}
	return tf.AccessToken, nil
}

// ClearToken removes the stored token.
func ClearToken(dir string) error {
	err := os.Remove(tokenPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
