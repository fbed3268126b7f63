package domain

import "errors"

var (
	ErrNotFound             = errors.New("job not found")
	ErrModelNotFound        = errors.New("model not found, download it first")
	ErrUnknownModel         = errors.New("unknown model")
	ErrEngineMissing        = errors.New("whisper binary not found")
	ErrConverterUnavailable = errors.New("ffmpeg not available, only WAV input is supported")
)
