package domain

// TrainingRequest is what the training provider needs to start a job.
type TrainingRequest struct {
	JobID       string
	SourceURL   string
	Epochs      int
	Cleaning    bool
	ModelName   string
	CallbackURL string
}

// SpeechRequest drives text-to-speech or speech-to-speech synthesis.
type SpeechRequest struct {
	VoiceID string
	ModelID string
	Text    string
	Audio   []byte
	// AudioName is the file name sent with Audio.
	AudioName string
}

// Voice is a speech-provider voice.
type Voice struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels,omitempty"`
}
