// Package apikey manages the API keys accepted by the skyrad HTTP API.
package apikey

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/skyrad/internal/config"
	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

var (
	// ErrKeyNotFound is returned when no stored key matches.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrKeyDisabled is returned when validating a disabled key.
	ErrKeyDisabled = errors.New("API key is disabled")
	// ErrKeyExpired is returned when validating a key past its expiry.
	ErrKeyExpired = errors.New("API key has expired")
)

// lastUsedPersistInterval limits how often a successful validation rewrites
// the config file. The in-memory timestamp is always updated.
const lastUsedPersistInterval = time.Minute

// Manager handles API key business logic. All state lives in config.Config,
// which does its own locking; returned keys are copies.
type Manager struct {
	cfg *config.Config
	log *slog.Logger
}

// NewManager creates a new Manager
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	logger.Info("apikey: loaded keys from config", "count", len(cfg.GetAPIKeys()))
	return &Manager{cfg: cfg, log: logger}
}

// CreateAPIKey generates a new key, stores it and saves the config.
// A zero expiresIn creates a key that never expires.
func (m *Manager) CreateAPIKey(name string, expiresIn time.Duration) (*config.APIKey, error) {
	if name == "" {
		return nil, ierrors.InvalidInputf("API key name is required")
	}
	if expiresIn < 0 {
		return nil, ierrors.InvalidInputf("expiry must not be negative")
	}
	for _, existing := range m.cfg.GetAPIKeys() {
		if existing.Name == name {
			return nil, ierrors.InvalidInputf("API key with name '%s' already exists", name)
		}
	}

	keyString, err := config.GenerateKey(config.DefaultKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key string: %w", err)
	}

	now := time.Now().UTC()
	key := config.APIKey{Key: keyString, Name: name, CreatedAt: now}
	if expiresIn > 0 {
		key.ExpiresAt = now.Add(expiresIn)
	}

	if err := m.cfg.AddAPIKey(key); err != nil {
		return nil, fmt.Errorf("failed to add API key to config: %w", err)
	}
	if err := m.cfg.Save(); err != nil {
		m.log.Error("apikey: failed to save config after create", "name", name, "error", err)
		return nil, fmt.Errorf("API key added to memory but failed to save to disk: %w", err)
	}

	m.log.Info("apikey: created", "name", name, "key_prefix", Prefix(key.Key))
	return &key, nil
}

// ListAPIKeys returns all API keys.
func (m *Manager) ListAPIKeys() []config.APIKey {
	return m.cfg.GetAPIKeys()
}

// DeleteAPIKey removes a key and saves the config.
func (m *Manager) DeleteAPIKey(key string) error {
	if !m.cfg.DeleteAPIKey(key) {
		return ierrors.NotFoundf("API key '%s' not found for deletion", Prefix(key))
	}
	if err := m.cfg.Save(); err != nil {
		m.log.Error("apikey: failed to save config after delete", "key_prefix", Prefix(key), "error", err)
		return fmt.Errorf("API key deleted from memory but failed to save to disk: %w", err)
	}
	m.log.Info("apikey: deleted", "key_prefix", Prefix(key))
	return nil
}

// ValidateAPIKey checks that key exists, is enabled and has not expired, and
// records the use.
func (m *Manager) ValidateAPIKey(key string) (*config.APIKey, error) {
	stored, found := m.cfg.FindAPIKey(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	if stored.IsDisabled() {
		return nil, ErrKeyDisabled
	}
	if stored.IsExpired() {
		return nil, ErrKeyExpired
	}

	previous := stored.LastUsedAt
	now := time.Now().UTC()
	if err := m.cfg.UpdateAPIKeyLastUsed(key, now); err != nil {
		m.log.Warn("apikey: failed to record use", "key_prefix", Prefix(key), "error", err)
		copied := *stored
		return &copied, nil
	}
	if now.Sub(previous) >= lastUsedPersistInterval {
		if err := m.cfg.Save(); err != nil {
			m.log.Warn("apikey: failed to persist last use", "key_prefix", Prefix(key), "error", err)
		}
	}

	copied := *stored
	copied.LastUsedAt = now
	return &copied, nil
}

// SetAPIKeyDisabledStatus updates the disabled flag of the key matched by value
// or name and saves the config.
func (m *Manager) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (*config.APIKey, error) {
	updated, err := m.cfg.SetAPIKeyDisabledStatus(keyOrName, disabled)
	if err != nil {
		return nil, ierrors.WithKind(ierrors.ErrNotFound, err)
	}
	if err := m.cfg.Save(); err != nil {
		m.log.Error("apikey: failed to save config after status change", "key_or_name", keyOrName, "error", err)
		return nil, fmt.Errorf("API key status updated in memory but failed to save to disk: %w", err)
	}
	m.log.Info("apikey: set disabled status", "name", updated.Name, "disabled", disabled)
	return updated, nil
}

// Prefix returns the first four characters of a key for logging.
func Prefix(key string) string {
	if len(key) >= 4 {
		return key[:4]
	}
	return key
}
