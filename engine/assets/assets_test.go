package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validSPIRV = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func writeShader(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name+ShaderExtension)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadValidatesSPIRV(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "shader.vert", validSPIRV)
	writeShader(t, dir, "bad.frag", []byte{0xde, 0xad, 0xbe, 0xef})
	writeShader(t, dir, "short.frag", []byte{0x03, 0x02, 0x23})

	sl := NewShaderLibrary(dir, nil)

	code, err := sl.Load("shader.vert")
	require.NoError(t, err)
	assert.Equal(t, validSPIRV, code)

	// Either spelling resolves to the same shader.
	code, err = sl.Load("shader.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, validSPIRV, code)

	info, ok := sl.Info("shader.vert")
	require.True(t, ok)
	assert.Equal(t, len(validSPIRV), info.Size)

	_, err = sl.Load("bad.frag")
	assert.ErrorContains(t, err, "magic")
	_, err = sl.Load("short.frag")
	assert.Error(t, err)
	_, err = sl.Load("missing.vert")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadStages(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "shader.vert", validSPIRV)

	sl := NewShaderLibrary(dir, nil)
	_, _, err := sl.LoadStages("shader")
	require.Error(t, err)

	writeShader(t, dir, "shader.frag", validSPIRV)
	vert, frag, err := sl.LoadStages("shader")
	require.NoError(t, err)
	assert.Equal(t, validSPIRV, vert)
	assert.Equal(t, validSPIRV, frag)
}

func TestLoadIsCachedUntilChanged(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "shader.vert", validSPIRV)
	sl := NewShaderLibrary(dir, nil)

	_, err := sl.Load("shader.vert")
	require.NoError(t, err)

	updated := append(append([]byte(nil), validSPIRV...), 0, 0, 0, 0)
	require.NoError(t, os.WriteFile(path, updated, 0o644))
	code, err := sl.Load("shader.vert")
	require.NoError(t, err)
	assert.Equal(t, validSPIRV, code)

	sl.handleFileEvent(path)
	code, err = sl.Load("shader.vert")
	require.NoError(t, err)
	assert.Equal(t, updated, code)
}

func TestWatchPostsReloadEvents(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "shader.frag", validSPIRV)

	events := core.NewEventBus(16)
	var reloaded []string
	events.Register(core.EVENT_CODE_SHADER_RELOADED, func(ctx core.EventContext) bool {
		reloaded = append(reloaded, ctx.Data.(*core.AssetEvent).Name)
		return true
	})

	sl := NewShaderLibrary(dir, events)
	require.NoError(t, sl.Watch())
	defer sl.Close()

	// Non-shader files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	writeShader(t, dir, "shader.frag", validSPIRV)

	require.Eventually(t, func() bool {
		events.ProcessPending()
		return len(reloaded) > 0
	}, 5*time.Second, 10*time.Millisecond)
	for _, name := range reloaded {
		assert.Equal(t, "shader.frag", name)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sl := NewShaderLibrary(t.TempDir(), nil)
	require.NoError(t, sl.Watch())
	require.NoError(t, sl.Close())
	require.NoError(t, sl.Close())
	assert.Error(t, sl.Watch())
}
