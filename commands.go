package main

import (
	"FashionDetKit/config"
	"FashionDetKit/converter"
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/pipeline"
	"FashionDetKit/preview"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"
)

type commands struct {
	convert *argparse.Command
	source  *string
	output  *string
	workers *int

	train      *argparse.Command
	trainData  *string
	epochs     *int
	batch      *int
	trainImgSz *int
	device     *string
	project    *string
	runName    *string

	evaluate  *argparse.Command
	evalModel *string
	evalData  *string
	conf      *float64
	noSave    *bool

	export        *argparse.Command
	exportModel   *string
	exportData    *string
	exportImgSz   *int
	mobileProject *string

	preview        *argparse.Command
	previewDataset *string
	previewSplit   *string
	previewLimit   *int
	previewOut     *string
}

func newCommands(parser *argparse.Parser) *commands {
	c := &commands{}

	c.convert = parser.NewCommand("convert", "Convert DeepFashion2 annotations to YOLO format")
	c.source = c.convert.String("s", "source", &argparse.Options{Help: "Path to DeepFashion2 dataset"})
	c.output = c.convert.String("o", "output", &argparse.Options{Help: "Output directory"})
	c.workers = c.convert.Int("w", "workers", &argparse.Options{Help: "Parallel image workers"})

	c.train = parser.NewCommand("train", "Train the garment detector")
	c.trainData = c.train.String("", "data", &argparse.Options{Help: "Path to data.yaml"})
	c.epochs = c.train.Int("", "epochs", &argparse.Options{Help: "Number of epochs"})
	c.batch = c.train.Int("", "batch", &argparse.Options{Help: "Batch size"})
	c.trainImgSz = c.train.Int("", "img-size", &argparse.Options{Help: "Input image size"})
	c.device = c.train.String("", "device", &argparse.Options{Help: "Device (cpu, 0, 0,1, etc.)"})
	c.project = c.train.String("", "project", &argparse.Options{Help: "Project directory"})
	c.runName = c.train.String("", "name", &argparse.Options{Help: "Run name"})

	c.evaluate = parser.NewCommand("evaluate", "Evaluate a trained model against the production thresholds")
	c.evalModel = c.evaluate.String("", "model", &argparse.Options{Help: "Path to trained model"})
	c.evalData = c.evaluate.String("", "data", &argparse.Options{Help: "Path to data.yaml"})
	c.conf = c.evaluate.Float("", "conf", &argparse.Options{Help: "Confidence threshold"})
	c.noSave = c.evaluate.Flag("", "no-save", &argparse.Options{Help: "Do not save prediction visualizations"})

	c.export = parser.NewCommand("export", "Export a trained model to CoreML and TFLite")
	c.exportModel = c.export.String("", "model", &argparse.Options{Help: "Path to trained model"})
	c.exportData = c.export.String("", "data", &argparse.Options{Help: "Path to data.yaml"})
	c.exportImgSz = c.export.Int("", "img-size", &argparse.Options{Help: "Input image size"})
	c.mobileProject = c.export.String("", "mobile-project", &argparse.Options{Help: "Mobile project root to copy models into"})

	c.preview = parser.NewCommand("preview", "Draw converted labels onto their images")
	c.previewDataset = c.preview.String("d", "dataset", &argparse.Options{Help: "Converted dataset root"})
	c.previewSplit = c.preview.Selector("", "split", []string{"train", "val"}, &argparse.Options{Help: "Split to render", Default: "val"})
	c.previewLimit = c.preview.Int("n", "limit", &argparse.Options{Help: "Number of images", Default: 20})
	c.previewOut = c.preview.String("o", "output", &argparse.Options{Help: "Output directory", Default: "preview"})
	return c
}

func (c *commands) selected() string {
	switch {
	case c.convert.Happened():
		return "convert"
	case c.train.Happened():
		return "train"
	case c.evaluate.Happened():
		return "evaluate"
	case c.export.Happened():
		return "export"
	case c.preview.Happened():
		return "preview"
	}
	return ""
}

// applyFlags copies explicitly given flags over the file configuration.
func (c *commands) applyFlags(cfg *config.Config) {
	setString := func(dst *string, v *string) {
		if *v != "" {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if *v > 0 {
			*dst = *v
		}
	}
	setString(&cfg.Convert.Source, c.source)
	setString(&cfg.Convert.Output, c.output)
	setInt(&cfg.Convert.Workers, c.workers)

	setString(&cfg.Train.Data, c.trainData)
	setInt(&cfg.Train.Epochs, c.epochs)
	setInt(&cfg.Train.Batch, c.batch)
	setInt(&cfg.Train.ImgSize, c.trainImgSz)
	setString(&cfg.Train.Device, c.device)
	setString(&cfg.Train.Project, c.project)
	setString(&cfg.Train.Name, c.runName)

	setString(&cfg.Evaluate.Model, c.evalModel)
	setString(&cfg.Evaluate.Data, c.evalData)
	if *c.conf > 0 {
		cfg.Evaluate.Conf = *c.conf
	}
	if *c.noSave {
		cfg.Evaluate.Predictions = false
	}

	setString(&cfg.Export.Model, c.exportModel)
	setString(&cfg.Export.Data, c.exportData)
	setInt(&cfg.Export.ImgSize, c.exportImgSz)
	setString(&cfg.Export.MobileProject, c.mobileProject)
}

func banner(title string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 60))
}

func (c *commands) dispatch(ctx context.Context, cfg *config.Config, backend iface.Backend) (any, error) {
	c.applyFlags(cfg)
	switch c.selected() {
	case "convert":
		return runConvert(ctx, cfg.Convert)
	case "train":
		return runTrain(ctx, backend, cfg.Train)
	case "evaluate":
		return runEvaluate(ctx, backend, cfg.Evaluate)
	case "export":
		return runExport(ctx, backend, cfg.Export)
	case "preview":
		return runPreview(*c.previewDataset, cfg.Convert.Output, *c.previewSplit, *c.previewLimit, *c.previewOut)
	}
	return nil, fmt.Errorf("no command given")
}

func runConvert(ctx context.Context, cfg config.Convert) (converter.Stats, error) {
	fmt.Printf("Converting DeepFashion2 from %s to YOLO format...\n", cfg.Source)
	stats, err := converter.Convert(ctx, converter.Options{
		Source:  cfg.Source,
		Output:  cfg.Output,
		Workers: cfg.Workers,
	})
	if err != nil {
		return stats, err
	}
	banner("Conversion complete")
	fmt.Printf("Total images:      %d\n", stats.Images)
	fmt.Printf("Total annotations: %d\n", stats.Annotations)
	fmt.Printf("Output directory:  %s\n", cfg.Output)
	fmt.Printf("Manifest:          %s\n", stats.ManifestPath)
	return stats, nil
}

func runTrain(ctx context.Context, backend iface.Backend, cfg config.Train) (iface.TrainResult, error) {
	banner("YOLOv8n Fashion Detector Training")
	fmt.Printf("Dataset: %s\nEpochs: %d\nBatch size: %d\nImage size: %dx%d\n", cfg.Data, cfg.Epochs, cfg.Batch, cfg.ImgSize, cfg.ImgSize)
	res, err := pipeline.Train(ctx, backend, cfg)
	if err != nil {
		return res, err
	}
	banner("Training complete")
	fmt.Printf("Best model: %s\nLast model: %s\nResults directory: %s\n", res.BestPath, res.LastPath, res.RunDir)
	return res, nil
}

func runEvaluate(ctx context.Context, backend iface.Backend, cfg config.Evaluate) (pipeline.Report, error) {
	banner("YOLOv8n Fashion Detector Evaluation")
	report, err := pipeline.Evaluate(ctx, backend, cfg)
	if err != nil {
		return report, err
	}
	m := report.Metrics
	banner("Validation Metrics")
	fmt.Printf("mAP@0.5:      %.4f\n", m.MAP50)
	fmt.Printf("mAP@0.5:0.95: %.4f\n", m.MAP50_95)
	fmt.Printf("Precision:    %.4f\n", m.Precision)
	fmt.Printf("Recall:       %.4f\n", m.Recall)
	fmt.Println("\nProduction Readiness Check:")
	for _, check := range report.Checks {
		status := "PASS"
		if !check.Passed {
			status = "WARN"
		}
		fmt.Printf("[%s] %s: %.4f\n", status, check.Name, check.Value)
	}
	if report.AllPassed {
		fmt.Println("\nModel meets all production requirements!")
	} else {
		fmt.Println("\nModel may need more training to meet production requirements")
	}
	return report, nil
}

func runExport(ctx context.Context, backend iface.Backend, cfg config.Export) (pipeline.ExportResult, error) {
	if cfg.MobileProject == "" {
		if wd, err := os.Getwd(); err == nil {
			if p := pipeline.DetectMobileProject(wd); p != "" {
				logger.Log().Info("auto-detected mobile project", zap.String("path", p))
				cfg.MobileProject = p
			}
		}
	}
	banner("YOLOv8n Fashion Detector Model Export")
	res, err := pipeline.Export(ctx, backend, cfg)
	if err != nil {
		return res, err
	}
	banner("Export Summary")
	if res.CoreML != "" {
		fmt.Printf("iOS CoreML model:\n   %s\n", res.CoreML)
	}
	if res.TFLite != "" {
		fmt.Printf("Android TFLite model:\n   %s\n", res.TFLite)
	}
	if res.IOSModel != "" {
		fmt.Printf("Copied CoreML model to: %s\n", res.IOSModel)
	}
	if res.AndroidModel != "" {
		fmt.Printf("Copied TFLite model to: %s\n", res.AndroidModel)
	}
	return res, nil
}

func runPreview(dataset, fallback, split string, limit int, out string) (int, error) {
	if dataset == "" {
		dataset = fallback
	}
	n, err := preview.Render(preview.Options{Dataset: dataset, Split: split, Limit: limit, Output: out})
	if err != nil {
		return n, err
	}
	fmt.Printf("Rendered %d previews into %s\n", n, out)
	return n, nil
}
