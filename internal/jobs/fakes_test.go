package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vocalizz/internal/adapter/memory"
	"vocalizz/internal/billing"
	"vocalizz/internal/cache"
	"vocalizz/internal/domain"
	"vocalizz/internal/storage"
)

type fakeProvider struct {
	mu        sync.Mutex
	handle    string
	createErr error
	onCreate  func()
	created   []domain.TrainingRequest
	cancelled []string
}

func (f *fakeProvider) CreateJob(_ context.Context, req domain.TrainingRequest) (string, error) {
	f.mu.Lock()
	f.created = append(f.created, req)
	hook := f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.handle, nil
}

func (f *fakeProvider) CancelJob(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
	return errors.New("prediction already finished")
}

type fakeSpeech struct {
	calls  int
	err    error
	onCall func()
}

func (f *fakeSpeech) TextToSpeech(_ context.Context, req domain.SpeechRequest) ([]byte, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte("tts:" + req.Text), nil
}

func (f *fakeSpeech) SpeechToSpeech(_ context.Context, req domain.SpeechRequest) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("sts:"+req.VoiceID+":"), req.Audio...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Job
}

func (p *recordingPublisher) PublishJob(_ context.Context, job domain.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, job)
	return nil
}

func (p *recordingPublisher) statuses() []domain.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.JobStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type harness struct {
	ctx         context.Context
	store       *memory.Store
	files       *storage.FileStore
	provider    *fakeProvider
	speech      *fakeSpeech
	events      *recordingPublisher
	guard       *billing.Guard
	compensator *Compensator
	submitter   *Submitter
	reconciler  *Reconciler
	canceller   *Canceller
	synth       *Synthesizer
}

const testAccount = "acct-1"

func newHarness(t *testing.T, accounts ...domain.Account) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := memory.New()
	for _, a := range accounts {
		store.PutAccount(a)
	}
	files, err := storage.NewFileStore(t.TempDir(), []byte("k"), "http://api.test")
	require.NoError(t, err)

	h := &harness{
		ctx:      context.Background(),
		store:    store,
		files:    files,
		provider: &fakeProvider{handle: "pred-1"},
		speech:   &fakeSpeech{},
		events:   &recordingPublisher{},
	}
	h.guard = billing.NewGuard(store, nil, logger)
	h.compensator = NewCompensator(store, files, h.events, nil, logger)
	h.submitter = NewSubmitter(store, h.compensator, h.provider, files, h.events, nil, logger, SubmitterConfig{CallbackURL: "http://api.test/v1/webhooks/provider"})
	h.reconciler = NewReconciler(store, store, h.compensator, h.events, nil, logger)
	h.canceller = NewCanceller(store, h.compensator, h.provider, nil, logger)
	h.synth = NewSynthesizer(h.guard, store, store, h.compensator, h.speech, files, cache.NewSynthesis(nil, store, logger), logger, "eleven_multilingual_v2", time.Hour)
	return h
}

func basicAccount(credits int) domain.Account {
	return domain.Account{ID: testAccount, Tier: domain.TierBasic, CreditBalance: credits}
}

// reserveTraining uploads one source file and reserves a standard training
// job with cleaning, which costs 3 credits.
func (h *harness) reserveTraining(t *testing.T) *domain.Job {
	t.Helper()
	prefix := storage.SourcePrefix(testAccount, "Ma Voix")
	_, err := h.files.Upload(h.ctx, prefix+"take1.wav", []byte("RIFF"), "audio/wav")
	require.NoError(t, err)
	job, err := h.guard.Reserve(h.ctx, billing.ReserveRequest{
		AccountID:   testAccount,
		Kind:        domain.JobKindTraining,
		QualityTier: domain.QualityStandard,
		Cleaning:    true,
		Name:        "Ma Voix",
		SourcePath:  prefix,
	}, domain.DefaultPricingPolicy())
	require.NoError(t, err)
	return job
}

func (h *harness) artifacts(t *testing.T, prefix string) []string {
	t.Helper()
	keys, err := storage.ListArtifacts(h.ctx, h.files, prefix)
	require.NoError(t, err)
	return keys
}
