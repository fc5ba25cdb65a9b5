package analysis

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/imageinput"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// DirectoryOptions configures a directory analysis.
type DirectoryOptions struct {
	Recursive bool // descend into subdirectories
	Workers   int  // number of classifiers running in parallel, at least 1
}

// Summary totals a directory analysis.
type Summary struct {
	Files      int
	Classified int
	Failed     int
	Elapsed    time.Duration
}

// FindImages lists the supported image files under root in lexical order.
func FindImages(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if imageinput.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "scan_directory").
			Build()
	}
	sort.Strings(files)
	return files, nil
}

// Directory classifies every image under root with opts.Workers classifiers
// created by factory. sink receives each result; calls to sink are
// serialized. A failing file is reported to sink and counted, it does not
// stop the run. Cancelling ctx stops scheduling new files and returns
// ErrAnalysisCanceled.
func Directory(ctx context.Context, factory Factory, root string, opts DirectoryOptions, sink func(Result) error) (Summary, error) {
	start := time.Now()
	log := GetLogger()

	files, err := FindImages(root, opts.Recursive)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Files: len(files)}
	if len(files) == 0 {
		log.Info("no images found", logger.String("directory", root))
		return summary, nil
	}

	workers := min(max(opts.Workers, 1), len(files))
	log.Info("starting directory analysis",
		logger.String("directory", root),
		logger.Int("files", len(files)),
		logger.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)
	paths := make(chan string)

	g.Go(func() error {
		defer close(paths)
		for _, path := range files {
			select {
			case paths <- path:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var mu sync.Mutex
	for i := range workers {
		g.Go(func() error {
			c, err := factory()
			if err != nil {
				return errors.New(err).
					Category(errors.CategoryWorker).
					Context("worker", i).
					Build()
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("failed to close classifier", logger.Int("worker", i), logger.Error(err))
				}
			}()

			for path := range paths {
				result := ClassifyFile(c, path)

				mu.Lock()
				if result.Err != nil {
					summary.Failed++
					log.Warn("failed to classify image",
						logger.String("path", path),
						logger.Error(result.Err))
				} else {
					summary.Classified++
				}
				sinkErr := sink(result)
				mu.Unlock()

				if sinkErr != nil {
					return sinkErr
				}
			}
			return nil
		})
	}

	err = g.Wait()
	summary.Elapsed = time.Since(start)

	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, ErrAnalysisCanceled
	}

	log.Info("directory analysis completed",
		logger.Int("classified", summary.Classified),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", summary.Elapsed))
	return summary, nil
}
