package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"atlauth/pkg/logging"
)

// DefaultTokenStorageDir is the default directory for storing OAuth tokens,
// relative to the user's home directory.
const DefaultTokenStorageDir = ".config/atlauth/tokens"

// StoredToken is a persisted OAuth token with metadata. Secrets live only in
// the token files (0600) and the in-memory cache; they are never logged.
type StoredToken struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// RefreshToken is the OAuth refresh token.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`

	// CloudID identifies the Cloud site this token grants access to.
	CloudID string `json:"cloud_id,omitempty"`

	// CreatedAt is when the token was stored.
	CreatedAt time.Time `json:"created_at"`
}

// TokenStoreConfig configures the token store.
type TokenStoreConfig struct {
	// StorageDir is the directory for token files.
	// Defaults to ~/.config/atlauth/tokens.
	StorageDir string

	// FileMode enables file persistence. If false, tokens are in-memory only.
	FileMode bool
}

// TokenStore provides storage for OAuth tokens across process restarts.
// It backs the setup wizard and pre-provisioned-token hydration.
//
// SECURITY: token files are created 0600 in a 0700 directory; token values
// are never logged, only tenant keys and expiry timestamps.
type TokenStore struct {
	mu         sync.RWMutex
	storageDir string
	fileMode   bool
	tokens     map[string]*StoredToken // in-memory cache, keyed by hashed tenant key
}

// NewTokenStore creates a token store with the given configuration.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultTokenStorageDir)
	}

	store := &TokenStore{
		storageDir: storageDir,
		fileMode:   cfg.FileMode,
		tokens:     make(map[string]*StoredToken),
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token storage directory: %w", err)
		}
	}

	return store, nil
}

// Store persists a token under the given tenant key.
func (s *TokenStore) Store(tenantKey string, token *StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.fileKey(tenantKey)
	s.tokens[key] = token

	if s.fileMode {
		if err := s.writeTokenFile(key, token); err != nil {
			logging.Warn("OAuth", "SECURITY_AUDIT: token storage failed for tenant %s: %v", tenantKey, err)
			return fmt.Errorf("failed to persist token: %w", err)
		}
		logging.Info("OAuth", "SECURITY_AUDIT: token stored for tenant %s (expiry %s, has_refresh_token=%t)",
			tenantKey, token.Expiry.Format(time.RFC3339), token.RefreshToken != "")
	}

	return nil
}

// Get retrieves the stored token for a tenant key, loading from file when
// not cached. Returns nil when no token exists. Expired tokens are returned
// as-is: the caller owns the refresh decision and needs the refresh token.
func (s *TokenStore) Get(tenantKey string) *StoredToken {
	key := s.fileKey(tenantKey)

	s.mu.RLock()
	if token, ok := s.tokens[key]; ok {
		s.mu.RUnlock()
		return token
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check in case another goroutine populated it.
	if token, ok := s.tokens[key]; ok {
		return token
	}

	token, err := s.readTokenFile(key)
	if err != nil {
		return nil
	}
	s.tokens[key] = token
	return token
}

// Delete removes the stored token for a tenant key.
func (s *TokenStore) Delete(tenantKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.fileKey(tenantKey)
	delete(s.tokens, key)

	if s.fileMode {
		if err := s.deleteTokenFile(key); err != nil {
			logging.Warn("OAuth", "SECURITY_AUDIT: token deletion failed for tenant %s: %v", tenantKey, err)
			return err
		}
	}

	logging.Info("OAuth", "SECURITY_AUDIT: token deleted for tenant %s", tenantKey)
	return nil
}

// Clear removes all stored tokens, both in-memory and on disk.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.tokens)
	s.tokens = make(map[string]*StoredToken)

	if s.fileMode {
		entries, err := os.ReadDir(s.storageDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read token directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			if err := os.Remove(filepath.Join(s.storageDir, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove token file %s: %w", entry.Name(), err)
			}
			count++
		}
	}

	logging.Info("OAuth", "SECURITY_AUDIT: all tokens cleared (%d entries)", count)
	return nil
}

// fileKey hashes a tenant key into a filesystem-safe identifier.
func (s *TokenStore) fileKey(tenantKey string) string {
	hash := sha256.Sum256([]byte(tenantKey))
	return hex.EncodeToString(hash[:16])
}

func (s *TokenStore) writeTokenFile(key string, token *StoredToken) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return os.WriteFile(filepath.Join(s.storageDir, key+".json"), data, 0600)
}

func (s *TokenStore) readTokenFile(key string) (*StoredToken, error) {
	path := filepath.Join(s.storageDir, key+".json")

	// #nosec G304 -- path is constructed from an internal hashed key, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

func (s *TokenStore) deleteTokenFile(key string) error {
	err := os.Remove(filepath.Join(s.storageDir, key+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
