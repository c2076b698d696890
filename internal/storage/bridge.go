package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hession/memochat/internal/logger"
)

// Bridge channel names. No other channel may be invoked.
const (
	ChannelSaveData = "saveData"
	ChannelGetData  = "getData"
)

// Bridge is the restricted channel to the durable store of the desktop shell.
//
//	saveData(key string, value any) -> bool
//	getData(key string, defaultValue any) -> value
type Bridge interface {
	Invoke(ctx context.Context, channel string, args ...any) (json.RawMessage, error)
}

// FileBridge serves the bridge channels from one JSON file per key in dir
type FileBridge struct {
	dir string
	log *logger.Named
}

// NewFileBridge creates the data directory if needed
func NewFileBridge(dir string) (*FileBridge, error) {
	if dir == "" {
		return nil, fmt.Errorf("bridge data directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bridge data directory: %w", err)
	}
	return &FileBridge{dir: dir, log: logger.For("bridge")}, nil
}

// ProbeBridge reports whether a file bridge can operate in dir by
// creating it and writing a probe file
func ProbeBridge(dir string) (*FileBridge, error) {
	b, err := NewFileBridge(dir)
	if err != nil {
		return nil, err
	}
	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return nil, fmt.Errorf("bridge data directory is not writable: %w", err)
	}
	os.Remove(probe)
	return b, nil
}

// Dir returns the data directory
func (b *FileBridge) Dir() string {
	return b.dir
}

// Invoke dispatches one of the two allowed channels
func (b *FileBridge) Invoke(ctx context.Context, channel string, args ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch channel {
	case ChannelSaveData:
		if len(args) != 2 {
			return nil, fmt.Errorf("saveData expects (key, value), got %d args", len(args))
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("saveData key must be a string")
		}
		if b.saveData(key, args[1]) {
			return json.RawMessage("true"), nil
		}
		return json.RawMessage("false"), nil

	case ChannelGetData:
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("getData expects (key, default), got %d args", len(args))
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("getData key must be a string")
		}
		var def any
		if len(args) == 2 {
			def = args[1]
		}
		return b.getData(key, def), nil

	default:
		return nil, fmt.Errorf("channel not allowed: %s", channel)
	}
}

func (b *FileBridge) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

// saveData writes the whole value to <key>.json through a temp file and rename
func (b *FileBridge) saveData(key string, value any) bool {
	path, err := b.keyPath(key)
	if err != nil {
		b.log.Error("Error saving data: %v", err)
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		b.log.Error("Error saving data for %s: %v", key, err)
		return false
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		b.log.Error("Error saving data for %s: %v", key, err)
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		b.log.Error("Error saving data for %s: %v", key, err)
		return false
	}
	return true
}

// getData returns the stored JSON, or the encoded default when the file is
// absent or does not parse
func (b *FileBridge) getData(key string, def any) json.RawMessage {
	fallback := func() json.RawMessage {
		raw, err := json.Marshal(def)
		if err != nil {
			return json.RawMessage("null")
		}
		return raw
	}

	path, err := b.keyPath(key)
	if err != nil {
		b.log.Error("Error reading data: %v", err)
		return fallback()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fallback()
	}
	if err != nil {
		b.log.Error("Error reading data for %s: %v", key, err)
		return fallback()
	}
	if !json.Valid(data) {
		b.log.Warn("Discarding unparseable data file for %s", key)
		return fallback()
	}
	return json.RawMessage(data)
}
