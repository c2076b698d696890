package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{
	AcceptedTypes: []string{".txt", ".md", ".csv", ".json"},
	MaxFileSize:   64,
	MaxFiles:      3,
}

func newTestStore(t *testing.T) (*Store, *storage.Service) {
	t.Helper()
	local, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	svc := storage.NewLocal(local)
	return New(svc, testLimits), svc
}

func TestStore_Add(t *testing.T) {
	s, svc := newTestStore(t)

	f, err := s.Add("Notas.MD", []byte("# título"))
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "Notas.MD", f.Name)
	assert.Equal(t, "md", f.Type)
	assert.Equal(t, int64(len("# título")), f.Size)
	assert.Equal(t, "# título", f.Content)
	assert.False(t, f.DateAdded.IsZero())

	stored := storage.Get(svc, storage.KeyKnowledgeFiles, []File{})
	require.Len(t, stored, 1)
	assert.Equal(t, f.ID, stored[0].ID)
}

func TestStore_ValidateRejectsBeforeWrite(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		kind errs.Kind
	}{
		{"extension", "script.exe", []byte("x"), errs.ValidationFailure},
		{"no extension", "README", []byte("x"), errs.ValidationFailure},
		{"too large", "big.txt", []byte(strings.Repeat("a", 65)), errs.ValidationFailure},
		{"invalid utf8", "bin.txt", []byte{0xff, 0xfe, 0xfd}, errs.DecodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestStore(t)
			_, err := s.Add(tt.file, tt.data)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))

			assert.Equal(t, 0, s.Len())
			_, ok := svc.Raw(storage.KeyKnowledgeFiles)
			assert.False(t, ok, "rejected upload must not write")
		})
	}
}

func TestStore_DecodeFailureMessage(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Add("bin.csv", []byte{0xc3, 0x28})
	require.Error(t, err)
	assert.Equal(t, "error reading file", errs.UserMessage(err))
}

func TestStore_MaxFiles(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Add("f.txt", []byte("x"))
		require.NoError(t, err)
	}

	_, err := s.Add("g.txt", []byte("x"))
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, 3, s.Len())
}

type downBridge struct{}

func (downBridge) Invoke(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, errors.New("bridge down")
}

func TestStore_AddReportsUnsavedWrite(t *testing.T) {
	local, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	s := New(storage.NewBridged(local, downBridge{}, 1), testLimits)

	f, err := s.Add("notas.txt", []byte("hola"))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.StorageFailure))
	assert.Equal(t, "notas.txt", f.Name)
	assert.Equal(t, 1, s.Len(), "the file stays available for this session")
}

func TestStore_Delete(t *testing.T) {
	s, svc := newTestStore(t)
	a, err := s.Add("a.txt", []byte("a"))
	require.NoError(t, err)
	b, err := s.Add("b.json", []byte("{}"))
	require.NoError(t, err)

	assert.True(t, s.Delete(a.ID))
	assert.False(t, s.Delete(a.ID))
	assert.False(t, s.Delete("missing"))

	stored := storage.Get(svc, storage.KeyKnowledgeFiles, []File{})
	require.Len(t, stored, 1)
	assert.Equal(t, b.ID, stored[0].ID)
}

func TestStore_AddFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datos.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	s, _ := newTestStore(t)
	f, err := s.AddFile(path)
	require.NoError(t, err)
	assert.Equal(t, "datos.csv", f.Name)
	assert.Equal(t, "csv", f.Type)

	_, err = s.AddFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = s.AddFile(dir)
	assert.True(t, errs.IsKind(err, errs.ValidationFailure))
}

func TestStore_Stats(t *testing.T) {
	s, _ := newTestStore(t)
	_, _ = s.Add("a.txt", []byte("aa"))
	_, _ = s.Add("b.md", []byte("bbb"))
	_, _ = s.Add("c.txt", []byte("c"))

	st := s.Stats()
	assert.Equal(t, 3, st.Files)
	assert.Equal(t, int64(6), st.TotalSize)
	assert.Equal(t, []TypeCount{{Type: "md", Count: 1}, {Type: "txt", Count: 2}}, st.ByType)
}

func TestStore_ReplaceAndReload(t *testing.T) {
	s, svc := newTestStore(t)
	require.True(t, s.Replace([]File{{ID: "x", Name: "x.txt", Type: "txt", Content: "x"}}))

	other := New(svc, testLimits)
	require.Len(t, other.Files(), 1)
	assert.Equal(t, "x", other.Files()[0].ID)

	s.Replace(nil)
	other.Reload()
	assert.Empty(t, other.Files())
}
