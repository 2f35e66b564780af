package converter

import (
	"FashionDetKit/imgprobe"
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options configures one conversion run.
type Options struct {
	Source  string
	Output  string
	Workers int
	// Prober reads image sizes; imgprobe.Default when nil.
	Prober iface.SizeProber
}

type split struct {
	source string
	target string
}

var splits = []split{
	{source: "train", target: "train"},
	{source: "validation", target: "val"},
}

// Convert turns a DeepFashion2 tree into the YOLO layout under opts.Output
// and writes data.yaml. Per-file data problems are logged and counted; only
// filesystem failures on the output side and cancellation return an error.
func Convert(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats
	if opts.Prober == nil {
		opts.Prober = imgprobe.Default
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := logger.Log().With(zap.String("source", opts.Source), zap.String("output", opts.Output))
	log.Info("converting dataset", zap.Int("workers", opts.Workers))
	start := time.Now()

	for _, kind := range []string{"images", "labels"} {
		for _, s := range splits {
			dir := filepath.Join(opts.Output, kind, s.target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return stats, fmt.Errorf("create output directory %s: %w", dir, err)
			}
		}
	}

	for _, s := range splits {
		ss, drops, err := convertSplit(ctx, opts, s)
		if err != nil {
			return stats, err
		}
		stats.Splits = append(stats.Splits, ss)
		stats.Images += ss.Images
		stats.Annotations += ss.Annotations
		stats.Drops.merge(drops)
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Images == 0 {
		log.Warn("no images retained, writing empty manifest")
	}
	abs, err := filepath.Abs(opts.Output)
	if err != nil {
		return stats, fmt.Errorf("resolve output path %s: %w", opts.Output, err)
	}
	stats.ManifestPath, err = writeManifest(opts.Output, newManifest(abs, stats.Images, stats.Annotations))
	if err != nil {
		return stats, err
	}
	log.Info("conversion complete",
		zap.Int("images", stats.Images),
		zap.Int("annotations", stats.Annotations),
		zap.String("manifest", stats.ManifestPath),
		zap.Duration("elapsed", time.Since(start)))
	return stats, nil
}

type splitDirs struct {
	annos     string
	images    string
	outImages string
	outLabels string
}

func convertSplit(ctx context.Context, opts Options, s split) (SplitStats, Drops, error) {
	ss := SplitStats{Name: s.target}
	var drops Drops
	dirs := splitDirs{
		annos:     filepath.Join(opts.Source, s.source, "annos"),
		images:    filepath.Join(opts.Source, s.source, "image"),
		outImages: filepath.Join(opts.Output, "images", s.target),
		outLabels: filepath.Join(opts.Output, "labels", s.target),
	}
	files, err := listAnnotations(dirs.annos)
	if err != nil {
		logger.Log().Warn("skipping split", zap.String("split", s.source), zap.String("dir", dirs.annos), zap.Error(err))
		ss.Skipped = true
		return ss, drops, nil
	}
	ss.Files = len(files)
	logger.Log().Info("processing split", zap.String("split", s.source), zap.Int("files", len(files)))
	monitor.SetStage("convert/" + s.target)

	results, err := runJobs(ctx, opts.Workers, dirs, opts.Prober, files)
	if err != nil {
		return ss, drops, err
	}
	// Fold in annotation order; the outcome never depends on scheduling.
	for _, r := range results {
		if r.err != nil {
			return ss, drops, r.err
		}
		drops.merge(r.drops)
		if r.lines > 0 {
			ss.Images++
			ss.Annotations += r.lines
		}
	}
	monitor.ObserveSplit(s.target, ss.Images, ss.Annotations, drops.ByReason())
	return ss, drops, nil
}

func listAnnotations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSplit, dir)
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

type imageJob struct {
	index int
	name  string
}

type imageResult struct {
	index int
	lines int
	drops Drops
	err   error
}

// runJobs fans the annotation files out to a fixed set of workers and
// returns the results indexed like files.
func runJobs(ctx context.Context, workers int, dirs splitDirs, prober iface.SizeProber, files []string) ([]imageResult, error) {
	jobQueue := make(chan imageJob, workers)
	resultQueue := make(chan imageResult, workers)
	for i := 0; i < workers; i++ {
		go runWorker(ctx, i, dirs, prober, jobQueue, resultQueue)
	}

	go func() {
		defer close(jobQueue)
		for i, name := range files {
			select {
			case <-ctx.Done():
				return
			case jobQueue <- imageJob{index: i, name: name}:
			}
		}
	}()

	results := make([]imageResult, len(files))
	for received := 0; received < len(files); received++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-resultQueue:
			results[r.index] = r
		}
	}
	return results, nil
}

func runWorker(ctx context.Context, workerID int, dirs splitDirs, prober iface.SizeProber, jobs <-chan imageJob, results chan<- imageResult) {
	logger.Log().Debug("converter worker started", zap.Int("worker", workerID), zap.String("dir", dirs.annos))
	for job := range jobs {
		select {
		case results <- convertImage(job, dirs, prober):
		case <-ctx.Done():
			return
		}
	}
}

func convertImage(job imageJob, dirs splitDirs, prober iface.SizeProber) (res imageResult) {
	res.index = job.index
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("converting %s: panic: %v", job.name, r)
		}
	}()

	stem := strings.TrimSuffix(job.name, ".json")
	annoPath := filepath.Join(dirs.annos, job.name)
	imageName := stem + ".jpg"
	imagePath := filepath.Join(dirs.images, imageName)

	if _, err := os.Stat(imagePath); err != nil {
		logger.Log().Debug("no image for annotation", zap.String("annotation", annoPath), zap.String("image", imagePath))
		res.drops.add(ErrMissingImage)
		return
	}
	w, h, err := prober.Size(imagePath)
	if err != nil {
		logger.Log().Warn("cannot read image", zap.String("image", imagePath), zap.Error(err))
		res.drops.add(ErrUnreadableImage)
		return
	}
	data, err := os.ReadFile(annoPath)
	if err != nil {
		logger.Log().Warn("cannot read annotation", zap.String("annotation", annoPath), zap.Error(err))
		res.drops.add(ErrUnreadableAnnotation)
		return
	}
	lines, drops, err := AnnotationLines(data, w, h)
	res.drops = drops
	if err != nil {
		logger.Log().Warn("cannot parse annotation", zap.String("annotation", annoPath), zap.Error(err))
		res.drops.add(err)
		return
	}
	if len(lines) == 0 {
		return
	}

	if err := copyFile(filepath.Join(dirs.outImages, imageName), imagePath); err != nil {
		res.err = err
		return
	}
	labelPath := filepath.Join(dirs.outLabels, stem+".txt")
	if err := os.WriteFile(labelPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		res.err = fmt.Errorf("write label %s: %w", labelPath, err)
		return
	}
	res.lines = len(lines)
	return
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
