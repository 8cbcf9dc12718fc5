package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unsea/unsea"
	"github.com/unsea/unsea/restore"
)

// extractConfig holds the flags of the extract subcommand.
type extractConfig struct {
	OutDir    string
	Force     bool
	AssetsDir string
	Workers   int
}

// Flags registers the flags for the extract subcommand
func (c *extractConfig) Flags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.OutDir, "out", "o", ".", "directory the artifacts are restored into")
	fs.BoolVarP(&c.Force, "force", "f", false, "overwrite files that already exist")
	fs.StringVar(&c.AssetsDir, "assets-dir", restore.DefaultAssetsDir, "name of the directory assets are restored into")
	fs.IntVar(&c.Workers, "workers", 4, "number of executables unpacked in parallel")
}

var extractCfg = new(extractConfig)

var extractCmd = &cobra.Command{
	Use:   "extract <executable>...",
	Short: "Restore the script, code cache and assets bundled in an executable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return runExtract(extractCfg, args, logger)
	},
}

func init() {
	extractCfg.Flags(extractCmd.Flags())
}

// runExtract unpacks every given executable. A single input is restored into
// the output directory itself; several inputs each get a subdirectory named
// after the executable.
func runExtract(cfg *extractConfig, paths []string, logger *zap.Logger) error {
	var g errgroup.Group
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	errs := make([]error, len(paths))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			errs[i] = extractOne(cfg, path, len(paths) > 1, logger)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func extractOne(cfg *extractConfig, path string, subdir bool, logger *zap.Logger) error {
	log := logger.With(zap.String("exe", path))

	blob, err := unsea.ExtractFile(path)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return fmt.Errorf("%s: %w", path, err)
	}

	dir := cfg.OutDir
	if subdir {
		dir = filepath.Join(dir, stem(path))
	}
	log.Info("restoring",
		zap.String("dir", dir),
		zap.String("codePath", blob.CodePath),
		zap.Stringer("flags", blob.Flags))

	err = restore.Write(blob, dir,
		restore.WithLogger(log),
		restore.WithForce(cfg.Force),
		restore.WithAssetsDir(cfg.AssetsDir))
	if err != nil {
		log.Error("restore failed", zap.Error(err))
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// stem returns the executable name without directory or extension, used as
// the per-input subdirectory when extracting several executables at once.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
