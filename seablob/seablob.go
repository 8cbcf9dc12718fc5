// Package seablob implements the binary format of Node.js single executable
// application (SEA) preparation blobs: the payload that `node
// --experimental-sea-config` produces and postject injects into a node
// binary.
//
// The format is a strict sequential grammar with little-endian integers and
// 64-bit length prefixes. Decode parses it, Encode is the exact inverse.
// Locating the blob inside an executable is the job of the parent unsea
// package; this package only deals with the blob bytes themselves.
package seablob

import (
	"fmt"
	"path"
	"strings"
)

// Magic is the sentinel value at the start of every SEA blob.
// It matches kMagic in node's src/node_sea.cc.
const Magic uint32 = 0x143da20

// Flags is the bitfield following the magic. The bits mirror node's SeaFlags.
type Flags uint32

const (
	// FlagDisableExperimentalSEAWarning suppresses the startup warning.
	FlagDisableExperimentalSEAWarning Flags = 1 << iota

	// FlagUseSnapshot marks the source section as a V8 startup snapshot.
	// It does not change how the blob is laid out, so decoding ignores it.
	FlagUseSnapshot

	// FlagUseCodeCache marks the presence of the code-cache section.
	FlagUseCodeCache

	// FlagIncludeAssets marks the presence of the asset section.
	FlagIncludeAssets
)

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// String returns a comma-separated list of the set flag names.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	if f.Has(FlagDisableExperimentalSEAWarning) {
		names = append(names, "disableExperimentalSEAWarning")
	}
	if f.Has(FlagUseSnapshot) {
		names = append(names, "useSnapshot")
	}
	if f.Has(FlagUseCodeCache) {
		names = append(names, "useCodeCache")
	}
	if f.Has(FlagIncludeAssets) {
		names = append(names, "includeAssets")
	}
	known := FlagDisableExperimentalSEAWarning | FlagUseSnapshot | FlagUseCodeCache | FlagIncludeAssets
	if rest := f &^ known; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, ",")
}

// Asset is a single named resource bundled into the blob.
//
// Names are not guaranteed to be unique and their order is meaningful, which
// is why a Blob carries assets as a slice of pairs instead of a map. Collision
// policy is up to whoever persists them (see the restore package).
type Asset struct {
	Name string
	Data []byte
}

// Blob is a fully decoded SEA resource.
//
// CodeCache is nil exactly when the blob's code-cache flag is unset. Assets is
// nil exactly when the asset flag is unset; a blob whose asset flag is set but
// which contains zero entries decodes to a non-nil empty slice. Callers that
// care about "no asset section" vs "empty asset section" must check for nil.
type Blob struct {
	Flags     Flags
	CodePath  string
	Source    string
	CodeCache []byte
	Assets    []Asset
}

// SeaConfig mirrors the sea-config.json schema that node's blob generation
// step consumes. Config reconstructs it from a decoded blob so that the
// extracted files can be packed again with stock node tooling.
type SeaConfig struct {
	Main                          string            `json:"main"`
	Output                        string            `json:"output"`
	DisableExperimentalSEAWarning bool              `json:"disableExperimentalSEAWarning,omitempty"`
	UseSnapshot                   bool              `json:"useSnapshot,omitempty"`
	UseCodeCache                  bool              `json:"useCodeCache,omitempty"`
	Assets                        map[string]string `json:"assets,omitempty"`
}

// Config returns the sea-config.json reconstruction for the blob, pointing at
// the file names the restore package writes (sea.js, sea.blob, sea_assets/).
// Code-cache and asset presence follow the populated fields rather than the
// flag bits, the same way Encode derives the serialized flags, so the config
// always matches what the blob would serialize to.
func (b *Blob) Config() SeaConfig {
	cfg := SeaConfig{
		Main:                          "sea.js",
		Output:                        "sea.blob",
		DisableExperimentalSEAWarning: b.Flags.Has(FlagDisableExperimentalSEAWarning),
		UseSnapshot:                   b.Flags.Has(FlagUseSnapshot),
		UseCodeCache:                  b.CodeCache != nil,
	}
	if b.Assets != nil {
		cfg.Assets = make(map[string]string, len(b.Assets))
		for _, a := range b.Assets {
			cfg.Assets[a.Name] = path.Join("sea_assets", a.Name)
		}
	}
	return cfg
}
