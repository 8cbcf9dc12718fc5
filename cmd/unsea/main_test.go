package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unsea/unsea/seablob"
)

// buildExecutable wraps an encoded blob into a minimal PE image: an MZ stub,
// a COFF header without optional header and a single NODE_SEA section whose
// raw data is the payload.
func buildExecutable(t *testing.T, blob *seablob.Blob) []byte {
	t.Helper()
	payload := seablob.Encode(blob)

	img := make([]byte, 0x80, 0x80+len(payload))
	img[0], img[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(img[0x3c:], 0x40)
	copy(img[0x40:], "PE\x00\x00")
	binary.LittleEndian.PutUint16(img[0x44:], 0x8664) // machine
	binary.LittleEndian.PutUint16(img[0x44+2:], 1)    // section count
	binary.LittleEndian.PutUint16(img[0x44+16:], 0)   // optional header size
	copy(img[0x58:], "NODE_SEA")                      // section name
	binary.LittleEndian.PutUint32(img[0x58+16:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(img[0x58+20:], 0x80)
	return append(img, payload...)
}

func writeExecutable(t *testing.T, dir, name string, blob *seablob.Blob) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buildExecutable(t, blob), 0o755))
	return path
}

func TestExtractConfig_Defaults(t *testing.T) {
	assert.Equal(t, ".", extractCfg.OutDir)
	assert.False(t, extractCfg.Force)
	assert.Equal(t, "sea_assets", extractCfg.AssetsDir)
	assert.Equal(t, 4, extractCfg.Workers)
}

func TestRunExtract(t *testing.T) {
	exe := writeExecutable(t, t.TempDir(), "app.exe", &seablob.Blob{
		CodePath: "/src/app/main.js",
		Source:   "console.log('hi')",
	})

	out := t.TempDir()
	cfg := &extractConfig{OutDir: out, AssetsDir: "sea_assets"}
	require.NoError(t, runExtract(cfg, []string{exe}, zap.NewNop()))

	source, err := os.ReadFile(filepath.Join(out, "sea.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(source))
	assert.FileExists(t, filepath.Join(out, "sea-config.json"))
}

func TestRunExtract_MultipleInputs(t *testing.T) {
	dir := t.TempDir()
	one := writeExecutable(t, dir, "one.exe", &seablob.Blob{Source: "1"})
	two := writeExecutable(t, dir, "two.exe", &seablob.Blob{Source: "2"})

	out := t.TempDir()
	cfg := &extractConfig{OutDir: out, AssetsDir: "sea_assets", Workers: 2}
	require.NoError(t, runExtract(cfg, []string{one, two}, zap.NewNop()))

	source, err := os.ReadFile(filepath.Join(out, "one", "sea.js"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(source))
	source, err = os.ReadFile(filepath.Join(out, "two", "sea.js"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(source))
}

func TestRunExtract_CollectsErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeExecutable(t, dir, "good.exe", &seablob.Blob{Source: "ok"})
	missing := filepath.Join(dir, "missing.exe")

	out := t.TempDir()
	cfg := &extractConfig{OutDir: out, AssetsDir: "sea_assets", Workers: 2}
	err := runExtract(cfg, []string{good, missing}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing.exe")

	// The healthy input is still extracted into its subdirectory.
	assert.FileExists(t, filepath.Join(out, "good", "sea.js"))
}

func TestRunInspect(t *testing.T) {
	exe := writeExecutable(t, t.TempDir(), "app.exe", &seablob.Blob{
		Flags:    seablob.FlagDisableExperimentalSEAWarning,
		CodePath: "/src/app/main.js",
		Source:   "console.log('hi')",
		Assets:   []seablob.Asset{{Name: "logo.png", Data: []byte{1, 2, 3}}},
	})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, runInspect(cmd, exe))

	out := buf.String()
	assert.Contains(t, out, "format:    PE")
	assert.Contains(t, out, "code path: /src/app/main.js")
	assert.Contains(t, out, "sea.js")
	assert.Contains(t, out, "logo.png")
	assert.Contains(t, out, "sha256:")
}

func TestRunInspect_NotAnExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.Error(t, runInspect(cmd, path))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "app", stem("dist/app.exe"))
	assert.Equal(t, "server", stem("/opt/bin/server"))
	assert.Equal(t, "tool", stem("tool.bin"))
}
