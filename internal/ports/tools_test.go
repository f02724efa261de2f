package ports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScratchEnforcesBudget(t *testing.T) {
	tc := NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, nil)
	tc.MaxScratchBytes = 10

	path, err := tc.WriteScratch("a.txt", []byte("12345"))
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(content))
	assert.Equal(t, int64(5), tc.ScratchUsed())

	// 5 + 6 would exceed the 10-byte budget
	_, err = tc.WriteScratch("b.txt", []byte("123456"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scratch budget exhausted")
	assert.Equal(t, int64(5), tc.ScratchUsed(), "refused writes do not consume budget")

	// a smaller write still fits
	_, err = tc.WriteScratch("c.txt", []byte("12345"))
	assert.NoError(t, err)
}

func TestWriteScratchZeroBudgetIsUnbounded(t *testing.T) {
	tc := NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, nil)

	_, err := tc.WriteScratch("big.bin", make([]byte, 1<<16))
	assert.NoError(t, err)
}

func TestWriteScratchConfinesToScratchDir(t *testing.T) {
	scratch := t.TempDir()
	tc := NewToolContext("trn_1", "u1", scratch, t.TempDir(), 1<<20, nil)

	path, err := tc.WriteScratch("../../escape.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "escape.txt"), path)
}
