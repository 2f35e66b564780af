package pipeline

import (
	"FashionDetKit/config"
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type Check struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

type Report struct {
	Metrics   iface.Metrics `json:"metrics"`
	Checks    []Check       `json:"checks"`
	AllPassed bool          `json:"all_passed"`
	Predicted int           `json:"predicted"`
}

// Readiness compares metrics against the thresholds. Each metric must be
// strictly greater than its threshold.
func Readiness(m iface.Metrics, t config.Thresholds) ([]Check, bool) {
	checks := []Check{
		{Name: fmt.Sprintf("mAP@0.5 > %.2f", t.MAP50), Value: m.MAP50, Threshold: t.MAP50},
		{Name: fmt.Sprintf("mAP@0.5:0.95 > %.2f", t.MAP50_95), Value: m.MAP50_95, Threshold: t.MAP50_95},
		{Name: fmt.Sprintf("Precision > %.2f", t.Precision), Value: m.Precision, Threshold: t.Precision},
		{Name: fmt.Sprintf("Recall > %.2f", t.Recall), Value: m.Recall, Threshold: t.Recall},
	}
	all := true
	for i := range checks {
		checks[i].Passed = checks[i].Value > checks[i].Threshold
		all = all && checks[i].Passed
	}
	return checks, all
}

// ValImageDir is the val image folder next to a data.yaml.
func ValImageDir(data string) string {
	return filepath.Join(filepath.Dir(data), "images", "val")
}

// Evaluate validates a trained model and optionally saves prediction
// visualisations for the validation images.
func Evaluate(ctx context.Context, backend iface.Backend, cfg config.Evaluate) (Report, error) {
	var report Report
	if _, err := os.Stat(cfg.Model); err != nil {
		return report, fmt.Errorf("model not found: %s (train the model first): %w", cfg.Model, err)
	}
	monitor.SetStage("evaluate")
	defer monitor.SetStage("idle")
	log := logger.Log().With(zap.String("model", cfg.Model), zap.String("data", cfg.Data))

	metrics, err := backend.Validate(ctx, iface.ValParams{Model: cfg.Model, Data: cfg.Data})
	if err != nil {
		return report, fmt.Errorf("validation failed: %w", err)
	}
	report.Metrics = metrics
	log.Info("validation metrics",
		zap.Float64("map50", metrics.MAP50),
		zap.Float64("map50_95", metrics.MAP50_95),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall))

	report.Checks, report.AllPassed = Readiness(metrics, cfg.Thresholds)
	for _, c := range report.Checks {
		if c.Passed {
			log.Info("readiness check passed", zap.String("check", c.Name), zap.Float64("value", c.Value))
		} else {
			log.Warn("readiness check failed", zap.String("check", c.Name), zap.Float64("value", c.Value))
		}
	}
	if report.AllPassed {
		log.Info("model meets all production requirements")
	} else {
		log.Warn("model may need more training to meet production requirements")
	}

	if !cfg.Predictions {
		return report, nil
	}
	valDir := ValImageDir(cfg.Data)
	if info, err := os.Stat(valDir); err != nil || !info.IsDir() {
		log.Warn("validation directory not found, skipping predictions", zap.String("dir", valDir))
		return report, nil
	}
	n, err := backend.Predict(ctx, iface.PredictParams{
		Model:   cfg.Model,
		Source:  valDir,
		Conf:    cfg.Conf,
		MaxDet:  cfg.MaxDet,
		Project: cfg.Project,
		Name:    cfg.Name,
	})
	if err != nil {
		return report, fmt.Errorf("prediction failed: %w", err)
	}
	report.Predicted = n
	log.Info("predictions saved", zap.String("dir", filepath.Join(cfg.Project, cfg.Name)), zap.Int("images", n))
	return report, nil
}
