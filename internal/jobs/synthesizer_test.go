package jobs

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalizz/internal/domain"
)

func TestTextToSpeechChargesPerThousandCharacters(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	text := strings.Repeat("a", 1500)

	res, err := h.synth.TextToSpeech(h.ctx, TextRequest{AccountID: testAccount, Text: text, VoiceID: "voice-1"}, domain.DefaultPricingPolicy())
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Contains(t, res.URL, "/v1/files/acct-1/generated/")
	require.NotNil(t, res.Job)
	assert.Equal(t, domain.JobStatusCompleted, res.Job.Status)
	assert.Equal(t, 2, res.Job.CostInCredits)

	acct := h.store.Account(testAccount)
	assert.Equal(t, 3, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)

	data, err := h.files.Download(h.ctx, res.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "tts:"+text, string(data))
}

func TestTextToSpeechCacheHitIsFree(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	req := TextRequest{AccountID: testAccount, Text: "Bonjour tout le monde", VoiceID: "voice-1"}

	_, err := h.synth.TextToSpeech(h.ctx, req, domain.DefaultPricingPolicy())
	require.NoError(t, err)
	req.Text = "  BONJOUR tout le monde "
	res, err := h.synth.TextToSpeech(h.ctx, req, domain.DefaultPricingPolicy())
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, 1, h.speech.calls)
	assert.Equal(t, 4, h.store.Account(testAccount).CreditBalance)
}

func TestTextToSpeechProviderFailureRefunds(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	h.speech.err = errors.New("elevenlabs: status 500")

	_, err := h.synth.TextToSpeech(h.ctx, TextRequest{AccountID: testAccount, Text: "hi", VoiceID: "v"}, domain.DefaultPricingPolicy())
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	acct := h.store.Account(testAccount)
	assert.Equal(t, 5, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)
}

func TestConvertUsesTrainedVoiceAndDeletesSource(t *testing.T) {
	h := newHarness(t, domain.Account{ID: testAccount, Tier: domain.TierPremium, CreditBalance: 5})
	model := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, model.ID)
	require.NoError(t, err)
	_, err = h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "succeeded", OutputRefs: map[string]string{"voice_id": "voice-77"}})
	require.NoError(t, err)

	source := testAccount + "/v2v-source/input.wav"
	_, err = h.files.Upload(h.ctx, source, []byte("raw"), "audio/wav")
	require.NoError(t, err)

	res, err := h.synth.Convert(h.ctx, ConvertRequest{AccountID: testAccount, ModelJobID: model.ID, SourcePath: source, OutputName: "Résultat.mp3"}, domain.DefaultPricingPolicy())
	require.NoError(t, err)
	assert.Equal(t, testAccount+"/v2v-outputs/"+model.ID+"_resultat.mp3", res.StoragePath)

	out, err := h.files.Download(h.ctx, res.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "sts:voice-77:raw", string(out))

	_, err = h.files.Download(h.ctx, source)
	assert.Error(t, err, "source recording is removed after conversion")
	assert.Equal(t, 1, h.store.Account(testAccount).CreditBalance)
}

func TestConvertRejectsUnreadyOrForeignModel(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	model := h.reserveTraining(t)

	_, err := h.synth.Convert(h.ctx, ConvertRequest{AccountID: testAccount, ModelJobID: model.ID, SourcePath: testAccount + "/x.wav"}, domain.DefaultPricingPolicy())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.synth.Convert(h.ctx, ConvertRequest{AccountID: "intruder", ModelJobID: model.ID, SourcePath: "intruder/x.wav"}, domain.DefaultPricingPolicy())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, 2, h.store.Account(testAccount).CreditBalance)
}

func TestTextToSpeechCancelledMidRenderServesNothing(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	h.speech.onCall = func() {
		list, err := h.store.ListByOwner(h.ctx, testAccount, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		_, err = h.canceller.Cancel(h.ctx, CancelRequest{JobID: list[0].ID, RequestedBy: Principal{AccountID: testAccount}, Reason: CancelManual})
		require.NoError(t, err)
	}
	req := TextRequest{AccountID: testAccount, Text: "Bonjour", VoiceID: "voice-1"}

	res, err := h.synth.TextToSpeech(h.ctx, req, domain.DefaultPricingPolicy())
	assert.ErrorIs(t, err, domain.ErrJobTerminal)
	assert.Nil(t, res)
	assert.Equal(t, 5, h.store.Account(testAccount).CreditBalance, "refunded by the cancel")

	h.speech.onCall = nil
	res, err = h.synth.TextToSpeech(h.ctx, req, domain.DefaultPricingPolicy())
	require.NoError(t, err)
	assert.False(t, res.Cached, "a cancelled render never seeds the cache")
	assert.Equal(t, 4, h.store.Account(testAccount).CreditBalance)
}

func TestConvertRejectsPathEscapingAccount(t *testing.T) {
	h := newHarness(t, basicAccount(5), domain.Account{ID: "victim", Tier: domain.TierBasic, CreditBalance: 5})
	victimFile := "victim/v2v-source/input.wav"
	_, err := h.files.Upload(h.ctx, victimFile, []byte("private"), "audio/wav")
	require.NoError(t, err)

	for _, source := range []string{
		testAccount + "/../victim/v2v-source/input.wav",
		testAccount + "/v2v-source/../../victim/v2v-source/input.wav",
		"victim/v2v-source/input.wav",
	} {
		_, err := h.synth.Convert(h.ctx, ConvertRequest{AccountID: testAccount, ModelJobID: "any", SourcePath: source}, domain.DefaultPricingPolicy())
		assert.ErrorIs(t, err, domain.ErrUnauthorized, source)
	}

	data, err := h.files.Download(h.ctx, victimFile)
	require.NoError(t, err)
	assert.Equal(t, "private", string(data))
	assert.Equal(t, 5, h.store.Account(testAccount).CreditBalance)
}
