// Package storage implements the key/value adapter shared by every store.
//
// Two backends exist and one is chosen per process by Open:
//
//   - local: every read and write goes to a LocalStore (SQLite or badger).
//   - bridge: writes go to the Bridge (durable) and to the LocalStore
//     (read-through cache); reads are served from the cache, falling back
//     to the bridge on a miss.
//
// The adapter never returns storage errors to its callers. Failed reads
// yield the caller's default and failed writes report false.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// BackendKind identifies the backend resolved at startup
type BackendKind int

const (
	BackendLocal BackendKind = iota + 1
	BackendBridge
)

func (k BackendKind) String() string {
	switch k {
	case BackendLocal:
		return "local"
	case BackendBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// Service is the process-wide storage adapter
type Service struct {
	kind    BackendKind
	local   LocalStore
	bridge  Bridge
	workers int
	log     *logger.Named
}

// NewLocal creates a local-only service
func NewLocal(local LocalStore) *Service {
	return &Service{
		kind:    BackendLocal,
		local:   local,
		workers: 1,
		log:     logger.For("storage"),
	}
}

// NewBridged creates a service that mirrors writes to bridge and local
func NewBridged(local LocalStore, bridge Bridge, workers int) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		kind:    BackendBridge,
		local:   local,
		bridge:  bridge,
		workers: workers,
		log:     logger.For("storage"),
	}
}

// OpenLocalStore opens the configured local driver
func OpenLocalStore(cfg config.StorageConfig) (LocalStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverBadger:
		return NewBadgerStore(cfg.LocalPath)
	case config.DriverSQLite, "":
		return NewSQLiteStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// Open resolves the backend once. Mode bridge fails when the bridge probe
// fails; mode auto falls back to local.
func Open(cfg *config.Config) (*Service, error) {
	local, err := OpenLocalStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	log := logger.For("storage")

	mode := strings.ToLower(cfg.Storage.Mode)
	if mode == config.StorageModeLocal {
		log.Info("Using local backend (%s)", cfg.Storage.Driver)
		return NewLocal(local), nil
	}

	dir := cfg.BridgeDataDir()
	bridge, err := ProbeBridge(dir)
	if err != nil {
		if mode == config.StorageModeBridge {
			local.Close()
			return nil, fmt.Errorf("bridge backend unavailable: %w", err)
		}
		log.Warn("Bridge probe failed, using local backend: %v", err)
		return NewLocal(local), nil
	}

	log.Info("Using bridge backend at %s", dir)
	return NewBridged(local, bridge, cfg.Storage.HydrateWorkers), nil
}

// Kind returns the resolved backend
func (s *Service) Kind() BackendKind {
	return s.kind
}

// Close closes the local store
func (s *Service) Close() error {
	return s.local.Close()
}

// StoredKeys lists the keys held by the local store whose value is not null
func (s *Service) StoredKeys() []string {
	keys, err := s.local.Keys()
	if err != nil {
		s.log.Warn("%v", errs.Wrap(errs.StorageFailure, "storage.keys", "cannot list keys", err))
		return nil
	}
	kept := keys[:0]
	for _, key := range keys {
		if data, ok, err := s.local.Read(key); err == nil && ok && !isNull(data) {
			kept = append(kept, key)
		}
	}
	return kept
}

// Raw returns the stored JSON for key. ok is false when absent or unreadable.
func (s *Service) Raw(key string) (json.RawMessage, bool) {
	data, ok, err := s.local.Read(key)
	if err != nil {
		s.log.Warn("%v", errs.Wrap(errs.StorageFailure, "storage.get", "local read failed for "+key, err))
	}
	if ok && err == nil {
		return data, true
	}
	if s.kind != BackendBridge {
		return nil, false
	}

	raw, err := s.bridge.Invoke(context.Background(), ChannelGetData, key, nil)
	if err != nil {
		s.log.Warn("%v", errs.Wrap(errs.StorageFailure, "storage.get", "bridge read failed for "+key, err))
		return nil, false
	}
	if isNull(raw) {
		return nil, false
	}
	if err := s.local.Write(key, raw); err != nil {
		s.log.Warn("Failed to cache %s: %v", key, err)
	}
	return raw, true
}

// Get decodes the value stored under key, returning def when the key is
// absent, null, unreadable or does not decode into T
func Get[T any](s *Service, key string, def T) T {
	raw, ok := s.Raw(key)
	if !ok || isNull(raw) {
		return def
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Warn("%v", errs.Wrap(errs.DecodeFailure, "storage.get", "stored value for "+key+" does not decode", err))
		return def
	}
	return out
}

// Set encodes and stores value under key. It reports false when the value
// could not be made durable.
func (s *Service) Set(key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("%v", errs.Wrap(errs.StorageFailure, "storage.set", "cannot encode "+key, err))
		return false
	}
	return s.SetRaw(key, data)
}

// SetRaw stores already-encoded JSON under key
func (s *Service) SetRaw(key string, data json.RawMessage) bool {
	durable := true
	if s.kind == BackendBridge {
		durable = s.saveToBridge(key, data)
	}

	// the cache is updated even when the bridge failed so this session
	// keeps reading what it wrote
	if err := s.local.Write(key, data); err != nil {
		s.log.Error("%v", errs.Wrap(errs.StorageFailure, "storage.set", "local write failed for "+key, err))
		return false
	}
	return durable
}

func (s *Service) saveToBridge(key string, data json.RawMessage) bool {
	result, err := s.bridge.Invoke(context.Background(), ChannelSaveData, key, data)
	if err != nil {
		s.log.Error("%v", errs.Wrap(errs.StorageFailure, "storage.set", "bridge write failed for "+key, err))
		return false
	}
	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil || !ok {
		s.log.Error("Bridge rejected write for %s", key)
		return false
	}
	return true
}

// Hydrate pulls every known key from the bridge into the local cache and
// returns how many keys were copied. It is a no-op for the local backend.
func (s *Service) Hydrate(ctx context.Context) int {
	if s.kind != BackendBridge {
		return 0
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		s.log.Error("Failed to create hydration pool: %v", err)
		return 0
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		copied int
	)

	for _, key := range KnownKeys {
		key := key
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if s.hydrateKey(ctx, key) {
				mu.Lock()
				copied++
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			s.log.Error("Failed to schedule hydration of %s: %v", key, err)
		}
	}
	wg.Wait()

	s.log.Info("Hydrated %d keys from bridge", copied)
	return copied
}

func (s *Service) hydrateKey(ctx context.Context, key string) bool {
	raw, err := s.bridge.Invoke(ctx, ChannelGetData, key, nil)
	if err != nil {
		s.log.Warn("Error initializing storage for %s: %v", key, err)
		return false
	}
	if isNull(raw) {
		return false
	}
	if err := s.local.Write(key, raw); err != nil {
		s.log.Warn("Error initializing storage for %s: %v", key, err)
		return false
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
