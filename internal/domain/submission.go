package domain

// AudioSubmission is a validated request to transcribe an audio payload.
// The payload itself is spooled to a temp file by the transport layer;
// only its location and byte count travel through the engine.
type AudioSubmission struct {
	UserID    string
	AudioPath string
	SizeBytes int64
}

// TaskSubmission is a validated request to analyze a free-form task.
type TaskSubmission struct {
	UserID      string
	Description string
	Geo         *GeoLocation
	Name        string
	Group       string
	Data        string
}
