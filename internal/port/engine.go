package port

import (
	"context"

	"github.com/bnema/scribe/internal/domain"
)

// Engine wraps the external speech-to-text process. Implementations never
// touch Job records; they receive a file path plus options and report
// progress through the callback as whole percents (0-100).
type Engine interface {
	Models() ([]domain.Model, error)
	DownloadModel(ctx context.Context, name string, onProgress func(fraction float64)) error
	Transcribe(ctx context.Context, audioPath string, opts domain.Options, onProgress func(percent int)) (*domain.Result, error)
}
