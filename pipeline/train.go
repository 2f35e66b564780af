package pipeline

import (
	"FashionDetKit/config"
	"FashionDetKit/converter"
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Train runs the framework's training on a converted dataset.
func Train(ctx context.Context, backend iface.Backend, cfg config.Train) (iface.TrainResult, error) {
	if _, err := os.Stat(cfg.Data); err != nil {
		return iface.TrainResult{}, fmt.Errorf("dataset file not found: %s (run convert first): %w", cfg.Data, err)
	}
	manifest, err := converter.ReadManifest(cfg.Data)
	if err != nil {
		return iface.TrainResult{}, err
	}
	if manifest.NC != len(manifest.Names) {
		return iface.TrainResult{}, fmt.Errorf("dataset %s: nc is %d but %d names are listed", cfg.Data, manifest.NC, len(manifest.Names))
	}
	monitor.SetStage("train")
	defer monitor.SetStage("idle")

	device := cfg.Device
	if device == "" {
		device = "auto"
	}
	logger.Log().Info("training garment detector",
		zap.String("data", cfg.Data),
		zap.Int("classes", manifest.NC),
		zap.Int("images", manifest.TotalImages),
		zap.String("pretrained", cfg.Pretrained),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch", cfg.Batch),
		zap.Int("imgsz", cfg.ImgSize),
		zap.String("device", device))
	start := time.Now()

	res, err := backend.Train(ctx, iface.TrainParams{
		Data:       cfg.Data,
		Pretrained: cfg.Pretrained,
		Epochs:     cfg.Epochs,
		Batch:      cfg.Batch,
		ImgSize:    cfg.ImgSize,
		Device:     cfg.Device,
		Patience:   cfg.Patience,
		SavePeriod: cfg.SavePeriod,
		Augment:    cfg.Augment,
		Optimizer:  cfg.Optimizer,
		AMP:        cfg.AMP,
		Project:    cfg.Project,
		Name:       cfg.Name,
	})
	if err != nil {
		return res, fmt.Errorf("training failed: %w", err)
	}
	logger.Log().Info("training complete",
		zap.String("best", res.BestPath),
		zap.String("last", res.LastPath),
		zap.String("run", res.RunDir),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
