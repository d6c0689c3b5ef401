package port

import "context"

// Enhancer runs super-resolution inference on a single still frame stored
// on disk and writes the enlarged frame to outputPath.
type Enhancer interface {
	Scale() int
	Enhance(ctx context.Context, inputPath, outputPath string) error
}

// AcceleratorDetector reports whether hardware inference is usable. The
// returned detail names the device found.
type AcceleratorDetector interface {
	Detect(ctx context.Context) (string, error)
}
