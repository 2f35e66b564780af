package config

import (
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Convert struct {
	Source  string `yaml:"source"`
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`
}

type Train struct {
	Data       string          `yaml:"data"`
	Pretrained string          `yaml:"pretrained"`
	Epochs     int             `yaml:"epochs"`
	Batch      int             `yaml:"batch"`
	ImgSize    int             `yaml:"imgSize"`
	Device     string          `yaml:"device"`
	Patience   int             `yaml:"patience"`
	SavePeriod int             `yaml:"savePeriod"`
	AMP        bool            `yaml:"amp"`
	Project    string          `yaml:"project"`
	Name       string          `yaml:"name"`
	Augment    iface.Augment   `yaml:"augment"`
	Optimizer  iface.Optimizer `yaml:"optimizer"`
}

// Thresholds are the production readiness minimums; a metric must exceed
// its threshold to pass.
type Thresholds struct {
	MAP50     float64 `yaml:"map50"`
	MAP50_95  float64 `yaml:"map50_95"`
	Precision float64 `yaml:"precision"`
	Recall    float64 `yaml:"recall"`
}

type Evaluate struct {
	Model       string     `yaml:"model"`
	Data        string     `yaml:"data"`
	Conf        float64    `yaml:"conf"`
	MaxDet      int        `yaml:"maxDet"`
	Predictions bool       `yaml:"predictions"`
	Project     string     `yaml:"project"`
	Name        string     `yaml:"name"`
	Thresholds  Thresholds `yaml:"thresholds"`
}

type Export struct {
	Model         string `yaml:"model"`
	Data          string `yaml:"data"`
	ImgSize       int    `yaml:"imgSize"`
	MobileProject string `yaml:"mobileProject"`
	ArtifactName  string `yaml:"artifactName"`
}

type Monitor struct {
	Port int `yaml:"port"`
}

type Notify struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type Framework struct {
	Binary string `yaml:"binary"`
	Dir    string `yaml:"dir"`
}

type Config struct {
	Debug     bool      `yaml:"debug"`
	Convert   Convert   `yaml:"convert"`
	Train     Train     `yaml:"train"`
	Evaluate  Evaluate  `yaml:"evaluate"`
	Export    Export    `yaml:"export"`
	Monitor   Monitor   `yaml:"monitor"`
	Notify    Notify    `yaml:"notify"`
	Framework Framework `yaml:"framework"`
}

const (
	defaultData  = "deepfashion2_yolo/data.yaml"
	defaultModel = "runs/detect/yolov8n_fashion/weights/best.pt"
)

func Default() Config {
	return Config{
		Convert: Convert{
			Source:  "./deepfashion2",
			Output:  "./deepfashion2_yolo",
			Workers: 1,
		},
		Train: Train{
			Data:       defaultData,
			Pretrained: "yolov8n.pt",
			Epochs:     100,
			Batch:      32,
			ImgSize:    320,
			Patience:   20,
			SavePeriod: 10,
			AMP:        true,
			Project:    "runs/detect",
			Name:       "yolov8n_fashion",
			Augment: iface.Augment{
				HsvH:      0.015,
				HsvS:      0.7,
				HsvV:      0.4,
				Degrees:   10,
				Translate: 0.1,
				Scale:     0.5,
				FlipUD:    0.0,
				FlipLR:    0.5,
				Mosaic:    1.0,
				Mixup:     0.1,
			},
			Optimizer: iface.Optimizer{
				Name:         "AdamW",
				LR0:          0.001,
				LRF:          0.01,
				Momentum:     0.937,
				WeightDecay:  0.0005,
				WarmupEpochs: 3,
			},
		},
		Evaluate: Evaluate{
			Model:       defaultModel,
			Data:        defaultData,
			Conf:        0.7,
			MaxDet:      10,
			Predictions: true,
			Project:     "runs/detect",
			Name:        "validation_results",
			Thresholds: Thresholds{
				MAP50:     0.75,
				MAP50_95:  0.50,
				Precision: 0.80,
				Recall:    0.70,
			},
		},
		Export: Export{
			Model:        defaultModel,
			Data:         defaultData,
			ImgSize:      320,
			ArtifactName: "yolov8n_fashion",
		},
		Notify: Notify{
			TimeoutSeconds: 5,
		},
		Framework: Framework{
			Binary: "yolo",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log().Debug("no config file, using defaults", zap.String("path", path))
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) sanitize() {
	log := logger.Log()
	cpuNum := runtime.NumCPU()
	if c.Convert.Workers <= 0 {
		log.Warn("invalid convert.workers, defaulting to 1", zap.Int("workers", c.Convert.Workers))
		c.Convert.Workers = 1
	} else if c.Convert.Workers > cpuNum {
		log.Warn("convert.workers exceeds CPU cores", zap.Int("workers", c.Convert.Workers), zap.Int("cpus", cpuNum))
	}
	if c.Train.Epochs <= 0 {
		log.Warn("invalid train.epochs, defaulting to 100", zap.Int("epochs", c.Train.Epochs))
		c.Train.Epochs = 100
	}
	if c.Train.Batch == 0 {
		c.Train.Batch = 32
	}
	if c.Train.ImgSize <= 0 {
		c.Train.ImgSize = 320
	}
	if c.Export.ImgSize <= 0 {
		c.Export.ImgSize = c.Train.ImgSize
	}
	if c.Evaluate.Conf < 0 || c.Evaluate.Conf > 1 {
		log.Warn("evaluate.conf must be between 0 and 1, defaulting to 0.7", zap.Float64("conf", c.Evaluate.Conf))
		c.Evaluate.Conf = 0.7
	}
	if c.Framework.Binary == "" {
		c.Framework.Binary = "yolo"
	}
	if c.Notify.TimeoutSeconds <= 0 {
		c.Notify.TimeoutSeconds = 5
	}
}
