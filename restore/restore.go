// Package restore persists a decoded SEA blob to disk in the layout node's
// SEA tooling consumes: the script source as sea.js, the code cache as
// sea.jsc, assets under an asset directory, and a sea-config.json that would
// regenerate the blob.
package restore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/unsea/unsea/seablob"
)

// ErrUnsafeAssetName indicates an asset whose name would escape the assets directory
var ErrUnsafeAssetName = errors.New("unsafe asset name")

// File names within the output directory.
const (
	SourceFile       = "sea.js"
	CodeCacheFile    = "sea.jsc"
	ConfigFile       = "sea-config.json"
	DefaultAssetsDir = "sea_assets"
)

type config struct {
	logger    *zap.Logger
	force     bool
	assetsDir string
}

// Option configures Write.
type Option func(*config)

// WithLogger sets the logger that reports restore progress and asset name
// collisions. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithForce allows overwriting files that already exist in the output
// directory. By default an existing file fails the restore.
func WithForce(force bool) Option {
	return func(c *config) { c.force = force }
}

// WithAssetsDir changes the directory assets are restored into, relative to
// the output directory.
func WithAssetsDir(dir string) Option {
	return func(c *config) { c.assetsDir = dir }
}

// Write materializes blob under dir, creating the directory if needed.
//
// The source is written even when empty; the code cache only when the blob
// carries one. The assets directory is created whenever the blob has an
// asset section, so an executable packed with an empty asset list restores
// to an empty directory rather than none.
//
// Asset names are slash-separated paths; nested names create
// subdirectories. A name that is not local to the assets directory fails
// with ErrUnsafeAssetName before anything is written. Duplicate names
// overwrite in blob order, so the last entry wins; each collision is logged
// at Warn.
func Write(blob *seablob.Blob, dir string, opts ...Option) error {
	cfg := config{logger: zap.NewNop(), assetsDir: DefaultAssetsDir}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger

	for _, a := range blob.Assets {
		if !filepath.IsLocal(filepath.FromSlash(a.Name)) {
			return fmt.Errorf("%w: %q", ErrUnsafeAssetName, a.Name)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var errs error

	log.Info("writing source", zap.String("file", SourceFile), zap.Int("bytes", len(blob.Source)))
	if err := writeFile(filepath.Join(dir, SourceFile), []byte(blob.Source), cfg.force); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("write source: %w", err))
	}

	if blob.CodeCache != nil {
		log.Info("writing code cache", zap.String("file", CodeCacheFile), zap.Int("bytes", len(blob.CodeCache)))
		if err := writeFile(filepath.Join(dir, CodeCacheFile), blob.CodeCache, cfg.force); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write code cache: %w", err))
		}
	}

	if blob.Assets != nil {
		errs = multierr.Append(errs, cfg.writeAssets(blob.Assets, dir))
	}

	cfgJSON, err := json.MarshalIndent(blob.Config(), "", "    ")
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("marshal config: %w", err))
	} else {
		log.Info("writing config", zap.String("file", ConfigFile))
		if err := writeFile(filepath.Join(dir, ConfigFile), append(cfgJSON, '\n'), cfg.force); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write config: %w", err))
		}
	}

	return errs
}

// writeAssets restores every asset under its own path. Write failures are
// collected so one broken asset does not abandon the rest.
func (c *config) writeAssets(assets []seablob.Asset, dir string) error {
	root := filepath.Join(dir, c.assetsDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create assets directory: %w", err)
	}

	var errs error
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		dup := seen[a.Name]
		if dup {
			c.logger.Warn("duplicate asset name, overwriting earlier entry", zap.String("name", a.Name))
		}
		seen[a.Name] = true

		path := filepath.Join(root, filepath.FromSlash(a.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("asset %q: %w", a.Name, err))
			continue
		}
		c.logger.Info("writing asset", zap.String("name", a.Name), zap.Int("bytes", len(a.Data)))
		if err := writeFile(path, a.Data, c.force || dup); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("asset %q: %w", a.Name, err))
		}
	}
	return errs
}

// writeFile writes data to path. Unless overwrite is set, an existing file
// is an error instead of being silently replaced.
func writeFile(path string, data []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	return multierr.Append(werr, f.Close())
}
