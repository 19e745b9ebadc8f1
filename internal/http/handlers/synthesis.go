package handlers

import (
	"net/http"

	"vocalizz/internal/jobs"
)

type textSynthesisRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`
}

type voiceConversionRequest struct {
	ModelJobID string `json:"model_job_id"`
	SourcePath string `json:"source_path"`
	OutputName string `json:"output_name"`
}

type synthesisResponse struct {
	URL           string `json:"url"`
	StoragePath   string `json:"storage_path"`
	Cached        bool   `json:"cached"`
	JobID         string `json:"job_id,omitempty"`
	CostInCredits int    `json:"cost_in_credits"`
}

func newSynthesisResponse(res *jobs.SynthesisResult) synthesisResponse {
	out := synthesisResponse{URL: res.URL, StoragePath: res.StoragePath, Cached: res.Cached}
	if res.Job != nil {
		out.JobID = res.Job.ID
		out.CostInCredits = res.Job.CostInCredits
	}
	return out
}

func (a *App) SynthesizeText(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	var req textSynthesisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "invalid payload"})
		return
	}
	res, err := a.Synthesizer.TextToSpeech(r.Context(), jobs.TextRequest{
		AccountID: acct.ID,
		Text:      req.Text,
		VoiceID:   req.VoiceID,
		ModelID:   req.ModelID,
	}, a.policy())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newSynthesisResponse(res))
}

func (a *App) ConvertVoice(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	var req voiceConversionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "invalid payload"})
		return
	}
	res, err := a.Synthesizer.Convert(r.Context(), jobs.ConvertRequest{
		AccountID:  acct.ID,
		ModelJobID: req.ModelJobID,
		SourcePath: req.SourcePath,
		OutputName: req.OutputName,
	}, a.policy())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newSynthesisResponse(res))
}

func (a *App) ListVoices(w http.ResponseWriter, r *http.Request) {
	if a.Voices == nil {
		a.error(w, r, http.StatusServiceUnavailable, codeUnavailable, nil)
		return
	}
	voices, err := a.Voices.ListVoices(r.Context())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("list voices failed")
		a.error(w, r, http.StatusBadGateway, codeUnavailable, nil)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": voices})
}
