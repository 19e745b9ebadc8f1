package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"vocalizz/internal/billing"
	"vocalizz/internal/cache"
	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/storage"
)

// SynthesisCache maps a cache.Key to the storage key of generated audio.
// *cache.Synthesis implements it; misses are cache.ErrMiss.
type SynthesisCache interface {
	Lookup(ctx context.Context, key string) (string, error)
	Store(ctx context.Context, key, storagePath string) error
}

// TextRequest asks for text-to-speech with an existing voice.
type TextRequest struct {
	AccountID string
	Text      string
	VoiceID   string
	ModelID   string
}

// ConvertRequest re-voices an uploaded recording with a trained model.
type ConvertRequest struct {
	AccountID  string
	ModelJobID string
	SourcePath string
	OutputName string
}

// SynthesisResult points at the generated audio.
type SynthesisResult struct {
	URL         string      `json:"url"`
	StoragePath string      `json:"storage_path"`
	Cached      bool        `json:"cached"`
	Job         *domain.Job `json:"-"`
}

// Synthesizer runs the synchronous job kinds. They go through the same
// reservation and compensation as training, inside one request.
type Synthesizer struct {
	guard        *billing.Guard
	jobs         domain.JobRepository
	ledger       domain.LedgerRepository
	compensator  *Compensator
	speech       SpeechProvider
	store        storage.Store
	cache        SynthesisCache
	logger       infra.Logger
	defaultModel string
	urlTTL       time.Duration
}

func NewSynthesizer(guard *billing.Guard, jobs domain.JobRepository, ledger domain.LedgerRepository, compensator *Compensator, speech SpeechProvider, store storage.Store, c SynthesisCache, logger infra.Logger, defaultModel string, urlTTL time.Duration) *Synthesizer {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Synthesizer{
		guard:        guard,
		jobs:         jobs,
		ledger:       ledger,
		compensator:  compensator,
		speech:       speech,
		store:        store,
		cache:        c,
		logger:       logger,
		defaultModel: defaultModel,
		urlTTL:       urlTTL,
	}
}

// TextToSpeech serves cached audio for free, otherwise reserves
// ceil(chars/1000) credits, renders, stores and completes the job.
func (s *Synthesizer) TextToSpeech(ctx context.Context, req TextRequest, policy domain.PricingPolicy) (*SynthesisResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || req.VoiceID == "" {
		return nil, fmt.Errorf("text and voice are required: %w", domain.ErrInvalidInput)
	}
	model := req.ModelID
	if model == "" {
		model = s.defaultModel
	}
	key := cache.Key(text, req.VoiceID, model)

	if s.cache != nil {
		path, err := s.cache.Lookup(ctx, key)
		switch {
		case err == nil:
			u, err := s.store.SignedURL(ctx, path, s.urlTTL)
			if err == nil {
				s.logger.Debug().Ctx(ctx).Str("account_id", req.AccountID).Str("cache_key", key).Msg("synthesis cache hit")
				return &SynthesisResult{URL: u, StoragePath: path, Cached: true}, nil
			}
			s.logger.Warn().Ctx(ctx).Err(err).Str("path", path).Msg("sign cached audio failed")
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn().Ctx(ctx).Err(err).Str("cache_key", key).Msg("synthesis cache lookup failed")
		}
	}

	job, err := s.guard.Reserve(ctx, billing.ReserveRequest{
		AccountID:  req.AccountID,
		Kind:       domain.JobKindSynthesis,
		Name:       req.VoiceID,
		TextLength: utf8.RuneCountInString(text),
	}, policy)
	if err != nil {
		return nil, err
	}

	audio, err := s.speech.TextToSpeech(ctx, domain.SpeechRequest{VoiceID: req.VoiceID, ModelID: model, Text: text})
	if err != nil {
		return nil, s.fail(ctx, job.ID, err)
	}
	path, err := s.store.Upload(ctx, storage.SynthesisKey(req.AccountID, key+".mp3"), audio, "audio/mpeg")
	if err != nil {
		return nil, s.fail(ctx, job.ID, err)
	}
	res, err := s.finish(ctx, job, path)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, key, path); err != nil {
			s.logger.Warn().Ctx(ctx).Err(err).Str("cache_key", key).Msg("synthesis cache store failed")
		}
	}
	return res, nil
}

// Convert re-voices an uploaded recording with the voice of a completed
// training job owned by the caller. The source recording is deleted once the
// job reaches a terminal state.
func (s *Synthesizer) Convert(ctx context.Context, req ConvertRequest, policy domain.PricingPolicy) (*SynthesisResult, error) {
	if req.ModelJobID == "" || req.SourcePath == "" {
		return nil, fmt.Errorf("model and source are required: %w", domain.ErrInvalidInput)
	}
	sourcePath, ok := storage.OwnedKey(req.AccountID, req.SourcePath)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if strings.HasSuffix(sourcePath, "/") {
		return nil, fmt.Errorf("source %q is a folder: %w", sourcePath, domain.ErrInvalidInput)
	}
	req.SourcePath = sourcePath
	model, err := s.jobs.GetByID(ctx, req.ModelJobID)
	if err != nil {
		return nil, err
	}
	if model.OwnerID != req.AccountID {
		return nil, domain.ErrUnauthorized
	}
	if model.Kind != domain.JobKindTraining || model.Status != domain.JobStatusCompleted || model.VoiceID() == "" {
		return nil, fmt.Errorf("voice model %s is not ready: %w", model.ID, domain.ErrInvalidInput)
	}

	job, err := s.guard.Reserve(ctx, billing.ReserveRequest{
		AccountID:  req.AccountID,
		Kind:       domain.JobKindConversion,
		Name:       model.Name,
		SourcePath: req.SourcePath,
	}, policy)
	if err != nil {
		return nil, err
	}

	source, err := s.store.Download(ctx, req.SourcePath)
	if err != nil {
		return nil, s.fail(ctx, job.ID, err)
	}
	audio, err := s.speech.SpeechToSpeech(ctx, domain.SpeechRequest{
		VoiceID:   model.VoiceID(),
		Audio:     source,
		AudioName: req.SourcePath[strings.LastIndex(req.SourcePath, "/")+1:],
	})
	if err != nil {
		return nil, s.fail(ctx, job.ID, err)
	}
	name := req.OutputName
	if name == "" {
		name = job.ID + ".mp3"
	}
	outKey := req.AccountID + "/v2v-outputs/" + model.ID + "_" + storage.SanitizeName(name)
	path, err := s.store.Upload(ctx, outKey, audio, "audio/mpeg")
	if err != nil {
		return nil, s.fail(ctx, job.ID, err)
	}
	return s.finish(ctx, job, path)
}

func (s *Synthesizer) finish(ctx context.Context, job *domain.Job, path string) (*SynthesisResult, error) {
	done, changed, err := s.ledger.Complete(ctx, job.ID, map[string]string{"audio_path": path})
	if err != nil {
		return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if !changed {
		// Cancelled and refunded while the provider was rendering: no link.
		return nil, fmt.Errorf("job %s ended as %s: %w", done.ID, done.Status, domain.ErrJobTerminal)
	}
	s.compensator.CleanupArtifacts(ctx, *done)
	u, err := s.store.SignedURL(ctx, path, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("sign output: %w", err)
	}
	s.logger.Info().Ctx(ctx).Str("job_id", done.ID).Str("kind", string(done.Kind)).Int("cost", done.CostInCredits).Msg("synthesis completed")
	return &SynthesisResult{URL: u, StoragePath: path, Job: done}, nil
}

func (s *Synthesizer) fail(ctx context.Context, jobID string, cause error) error {
	if _, _, err := s.compensator.Compensate(ctx, jobID, cause.Error(), true); err != nil {
		return fmt.Errorf("compensate job %s: %w", jobID, err)
	}
	return &domain.SubmissionFailedError{JobID: jobID, Reason: cause.Error()}
}
