package iface

import "context"

// Backend is the external detection framework. Every call blocks until the
// framework process finishes.
type Backend interface {
	Train(ctx context.Context, p TrainParams) (TrainResult, error)
	Validate(ctx context.Context, p ValParams) (Metrics, error)
	Predict(ctx context.Context, p PredictParams) (int, error)
	Export(ctx context.Context, p ExportParams) (string, error)
}

// SizeProber returns the pixel dimensions of an image file.
type SizeProber interface {
	Size(path string) (width, height int, err error)
}
