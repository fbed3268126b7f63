package domain

// Model is a catalog entry for one whisper model, augmented at query time
// with its on-disk installed status.
type Model struct {
	Name        string `json:"name"`
	Size        string `json:"size"`
	Description string `json:"description"`
	Installed   bool   `json:"installed"`
	Path        string `json:"path,omitempty"`
}
