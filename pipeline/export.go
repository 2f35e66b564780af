package pipeline

import (
	"FashionDetKit/config"
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Asset folders inside the mobile application.
const (
	IOSModelDir     = "template/ios/Models"
	AndroidAssetDir = "template/android/app/src/main/assets"
)

type ExportResult struct {
	CoreML       string `json:"coreml,omitempty"`
	TFLite       string `json:"tflite,omitempty"`
	IOSModel     string `json:"ios_model,omitempty"`
	AndroidModel string `json:"android_model,omitempty"`
}

// DetectMobileProject returns the parent of dir when it holds the mobile
// application's template folder, or "".
func DetectMobileProject(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	parent := filepath.Dir(abs)
	if info, err := os.Stat(filepath.Join(parent, "template")); err == nil && info.IsDir() {
		return parent
	}
	return ""
}

// TFLiteFloat16Path is where the framework leaves the float16 TFLite model
// for a given weights file.
func TFLiteFloat16Path(model string) string {
	base := strings.TrimSuffix(filepath.Base(model), ".pt")
	return filepath.Join(filepath.Dir(model), base+"_saved_model", "best_float16.tflite")
}

// Export converts trained weights to CoreML and TFLite and, when a mobile
// project is given, copies both into its asset folders. A failed format is
// logged and skipped; only a missing model is an error.
func Export(ctx context.Context, backend iface.Backend, cfg config.Export) (ExportResult, error) {
	var res ExportResult
	if _, err := os.Stat(cfg.Model); err != nil {
		return res, fmt.Errorf("model not found: %s (train the model first): %w", cfg.Model, err)
	}
	monitor.SetStage("export")
	defer monitor.SetStage("idle")
	log := logger.Log().With(zap.String("model", cfg.Model), zap.Int("imgsz", cfg.ImgSize))

	coreml, err := backend.Export(ctx, iface.ExportParams{
		Model:   cfg.Model,
		Format:  "coreml",
		ImgSize: cfg.ImgSize,
		NMS:     true,
	})
	if err != nil {
		log.Warn("CoreML export failed (requires coremltools, macOS only)", zap.Error(err))
	} else {
		res.CoreML = coreml
		log.Info("CoreML export successful", zap.String("path", coreml))
	}

	tflite, err := backend.Export(ctx, iface.ExportParams{
		Model:   cfg.Model,
		Format:  "tflite",
		ImgSize: cfg.ImgSize,
		Data:    cfg.Data,
	})
	if err != nil {
		log.Error("TFLite export failed", zap.Error(err))
	} else {
		res.TFLite = tflite
		if p := TFLiteFloat16Path(cfg.Model); fileExists(p) {
			res.TFLite = p
		}
		log.Info("TFLite export successful", zap.String("path", res.TFLite))
	}

	if cfg.MobileProject == "" || (res.CoreML == "" && res.TFLite == "") {
		return res, nil
	}
	name := cfg.ArtifactName
	if name == "" {
		name = "yolov8n_fashion"
	}
	if res.CoreML != "" {
		src := res.CoreML
		if strings.HasSuffix(src, ".mlpackage") {
			src = filepath.Join(src, "Data", "com.apple.CoreML", "model.mlmodel")
		}
		dst := filepath.Join(cfg.MobileProject, IOSModelDir, name+".mlmodel")
		if !fileExists(src) {
			log.Warn("CoreML model not found in package", zap.String("path", src))
		} else if err := copyInto(dst, src); err != nil {
			return res, err
		} else {
			res.IOSModel = dst
			log.Info("copied CoreML model", zap.String("dest", dst))
		}
	}
	// Only the float16 model ships with the app; other TFLite outputs are
	// left where the framework wrote them.
	if res.TFLite != "" {
		src := TFLiteFloat16Path(cfg.Model)
		dst := filepath.Join(cfg.MobileProject, AndroidAssetDir, name+".tflite")
		if !fileExists(src) {
			log.Warn("TFLite model not found", zap.String("path", src))
		} else if err := copyInto(dst, src); err != nil {
			return res, err
		} else {
			res.AndroidModel = dst
			log.Info("copied TFLite model", zap.String("dest", dst))
		}
	}
	return res, nil
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func copyInto(dst, src string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
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
	return out.Close()
}
