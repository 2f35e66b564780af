package iface

// Metrics is the box-detection summary returned by a validation run.
type Metrics struct {
	MAP50     float64 `json:"map50"`
	MAP50_95  float64 `json:"map50_95"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Augment holds the framework's built-in augmentation knobs.
type Augment struct {
	HsvH      float64 `yaml:"hsv_h"`
	HsvS      float64 `yaml:"hsv_s"`
	HsvV      float64 `yaml:"hsv_v"`
	Degrees   float64 `yaml:"degrees"`
	Translate float64 `yaml:"translate"`
	Scale     float64 `yaml:"scale"`
	FlipUD    float64 `yaml:"flipud"`
	FlipLR    float64 `yaml:"fliplr"`
	Mosaic    float64 `yaml:"mosaic"`
	Mixup     float64 `yaml:"mixup"`
}

// Optimizer holds learning-rate schedule and optimizer settings.
type Optimizer struct {
	Name         string  `yaml:"name"`
	LR0          float64 `yaml:"lr0"`
	LRF          float64 `yaml:"lrf"`
	Momentum     float64 `yaml:"momentum"`
	WeightDecay  float64 `yaml:"weight_decay"`
	WarmupEpochs float64 `yaml:"warmup_epochs"`
}

type TrainParams struct {
	Data       string
	Pretrained string
	Epochs     int
	Batch      int
	ImgSize    int
	Device     string
	Patience   int
	SavePeriod int
	Augment    Augment
	Optimizer  Optimizer
	AMP        bool
	Project    string
	Name       string
}

type TrainResult struct {
	RunDir   string
	BestPath string
	LastPath string
}

type ValParams struct {
	Model string
	Data  string
}

type PredictParams struct {
	Model   string
	Source  string
	Conf    float64
	MaxDet  int
	Project string
	Name    string
}

type ExportParams struct {
	Model   string
	Format  string
	ImgSize int
	NMS     bool
	Half    bool
	Int8    bool
	Data    string
}
