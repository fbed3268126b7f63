package port

import "context"

// AudioConverter normalizes input audio to the 16 kHz mono PCM WAV encoding
// the engine requires. Availability is optional; callers must fail fast on
// non-WAV input when the converter is absent.
type AudioConverter interface {
	Available() bool
	IsWav(path string) bool
	ToWav(ctx context.Context, inputPath string) (outputPath string, err error)
	// Duration probes the audio length in seconds. It returns 0 with no
	// error when the length cannot be determined; duration is informational.
	Duration(ctx context.Context, path string) (float64, error)
}
