// Package pin is the access gate in front of the configuration surfaces.
//
// It only keeps casual users out of the settings screens. Anyone with
// access to the data directory can clear it.
package pin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/go-crypt/x/blake2b"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/storage"
)

// Length number of digits in a PIN
const Length = 6

const (
	saltSize = 16
	hashSize = 32
)

// Record is the value stored under securePin
type Record struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// Gate checks and stores the PIN
type Gate struct {
	svc  *storage.Service
	rand io.Reader
}

// New creates a gate over the storage adapter
func New(svc *storage.Service) *Gate {
	return &Gate{svc: svc, rand: rand.Reader}
}

// Validate reports whether pin is exactly six digits
func Validate(pin string) error {
	if len(pin) != Length {
		return errs.New(errs.ValidationFailure, "pin.set", fmt.Sprintf("PIN must have %d digits", Length))
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errs.New(errs.ValidationFailure, "pin.set", "PIN must contain only digits")
		}
	}
	return nil
}

func (g *Gate) record() (Record, bool) {
	rec := storage.Get(g.svc, storage.KeySecurePin, Record{})
	return rec, rec.Salt != "" && rec.Hash != ""
}

// IsSet reports whether a PIN has been stored
func (g *Gate) IsSet() bool {
	_, ok := g.record()
	return ok
}

// Set stores pin after checking it against its confirmation
func (g *Gate) Set(pin, confirm string) error {
	if err := Validate(pin); err != nil {
		return err
	}
	if pin != confirm {
		return errs.New(errs.ValidationFailure, "pin.set", "PINs do not match")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(g.rand, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	sum, err := digest(salt, pin)
	if err != nil {
		return err
	}

	rec := Record{Salt: hex.EncodeToString(salt), Hash: hex.EncodeToString(sum)}
	if !g.svc.Set(storage.KeySecurePin, rec) {
		return errs.New(errs.StorageFailure, "pin.set", "PIN not saved")
	}
	return nil
}

// Check reports whether pin matches the stored one. With no PIN stored
// every input passes.
func (g *Gate) Check(pin string) bool {
	rec, ok := g.record()
	if !ok {
		return true
	}
	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(rec.Hash)
	if err != nil {
		return false
	}
	got, err := digest(salt, pin)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Clear removes the stored PIN
func (g *Gate) Clear() bool {
	return g.svc.Set(storage.KeySecurePin, nil)
}

func digest(salt []byte, pin string) ([]byte, error) {
	h, err := blake2b.New(hashSize, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash: %w", err)
	}
	h.Write([]byte(pin))
	return h.Sum(nil), nil
}
