package seablob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlags_Has(t *testing.T) {
	f := FlagUseCodeCache | FlagIncludeAssets
	assert.True(t, f.Has(FlagUseCodeCache))
	assert.True(t, f.Has(FlagIncludeAssets))
	assert.True(t, f.Has(FlagUseCodeCache|FlagIncludeAssets))
	assert.False(t, f.Has(FlagUseSnapshot))
	assert.False(t, f.Has(FlagUseCodeCache|FlagUseSnapshot))
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "none", Flags(0).String())
	assert.Equal(t, "useCodeCache", FlagUseCodeCache.String())
	assert.Equal(t, "disableExperimentalSEAWarning,includeAssets",
		(FlagDisableExperimentalSEAWarning | FlagIncludeAssets).String())
	assert.Equal(t, "useCodeCache,0x10", (FlagUseCodeCache | 1<<4).String())
}

func TestBlob_Config(t *testing.T) {
	blob := &Blob{
		Flags:     FlagDisableExperimentalSEAWarning | FlagUseCodeCache,
		Source:    "console.log(1)",
		CodeCache: []byte{0xca, 0xfe},
		Assets: []Asset{
			{Name: "config.json", Data: []byte("{}")},
			{Name: "images/logo.png", Data: []byte("png")},
		},
	}

	cfg := blob.Config()
	assert.Equal(t, "sea.js", cfg.Main)
	assert.Equal(t, "sea.blob", cfg.Output)
	assert.True(t, cfg.DisableExperimentalSEAWarning)
	assert.False(t, cfg.UseSnapshot)
	assert.True(t, cfg.UseCodeCache)
	assert.Equal(t, map[string]string{
		"config.json":     "sea_assets/config.json",
		"images/logo.png": "sea_assets/images/logo.png",
	}, cfg.Assets)
}

func TestBlob_Config_NoAssets(t *testing.T) {
	cfg := (&Blob{Source: "x"}).Config()
	assert.Nil(t, cfg.Assets)
}

func TestBlob_Config_CodeCachePresence(t *testing.T) {
	// Presence follows the populated field, not the flag bit, so a
	// hand-assembled blob reconstructs the config matching its
	// serialization.
	withCache := &Blob{Source: "x", CodeCache: []byte{1}}
	assert.True(t, withCache.Config().UseCodeCache)

	staleFlag := &Blob{Flags: FlagUseCodeCache, Source: "x"}
	assert.False(t, staleFlag.Config().UseCodeCache)
}
