package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vocalizz/internal/domain"
)

func TestTextToSpeech(t *testing.T) {
	var gotKey, gotPath string
	var gotBody ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "xi", BaseURL: srv.URL})
	audio, err := client.TextToSpeech(context.Background(), domain.SpeechRequest{VoiceID: "voice-1", Text: "Bonjour"})
	if err != nil {
		t.Fatalf("TextToSpeech: %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Fatalf("audio = %q", audio)
	}
	if gotKey != "xi" || gotPath != "/text-to-speech/voice-1" {
		t.Fatalf("key=%q path=%q", gotKey, gotPath)
	}
	if gotBody.ModelID != DefaultModel || gotBody.VoiceSettings.SimilarityBoost != 0.75 {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestSpeechToSpeechMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		_, _ = w.Write(append([]byte("converted:"), data...))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "xi", BaseURL: srv.URL})
	audio, err := client.SpeechToSpeech(context.Background(), domain.SpeechRequest{VoiceID: "v", Audio: []byte("src")})
	if err != nil {
		t.Fatalf("SpeechToSpeech: %v", err)
	}
	if string(audio) != "converted:src" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestProviderErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "bad", BaseURL: srv.URL}).ListVoices(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Invalid API key") {
		t.Fatalf("expected detail in error, got %v", err)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"}}]}`))
	}))
	defer srv.Close()

	voices, err := NewClient(Options{APIKey: "xi", BaseURL: srv.URL}).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" || voices[0].Labels["accent"] != "american" {
		t.Fatalf("unexpected voices %+v", voices)
	}
}
