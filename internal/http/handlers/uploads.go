package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"vocalizz/internal/storage"
)

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aac":  "audio/aac",
}

func contentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

type uploadResponse struct {
	SourcePath string   `json:"source_path"`
	Files      []string `json:"files"`
}

// Upload stores multipart audio files. With purpose=conversion the files go
// to the conversion source folder, otherwise to the training folder of the
// model named by the "name" field.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	acct := a.account(w, r)
	if acct == nil {
		return
	}
	maxBytes := int64(50 << 20)
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		maxBytes = a.Config.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, codeBadRequest, map[string]any{"reason": "upload too large"})
			return
		}
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var prefix string
	switch strings.TrimSpace(r.FormValue("purpose")) {
	case "conversion":
		prefix = acct.ID + "/v2v-source/"
	case "", "training":
		name := strings.TrimSpace(r.FormValue("name"))
		if name == "" {
			a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "name is required"})
			return
		}
		prefix = storage.SourcePrefix(acct.ID, name)
	default:
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "unknown purpose"})
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, map[string]any{"reason": "no files"})
		return
	}
	resp := uploadResponse{SourcePath: prefix, Files: make([]string, 0, len(headers))}
	for _, fh := range headers {
		name := storage.SanitizeName(path.Base(fh.Filename))
		ext := strings.ToLower(path.Ext(name))
		if _, ok := audioTypes[ext]; !ok {
			a.error(w, r, http.StatusUnsupportedMediaType, codeBadRequest, map[string]any{"reason": "unsupported file type", "file": fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		key, err := a.Storage.Upload(r.Context(), prefix+name, data, contentTypeFor(name))
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		resp.Files = append(resp.Files, key)
	}
	a.Logger.Info().Str("account_id", acct.ID).Str("prefix", prefix).Int("files", len(resp.Files)).Msg("audio uploaded")
	a.json(w, http.StatusCreated, resp)
}
