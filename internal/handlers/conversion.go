package handlers

import (
	"Narrator/internal/config"
	"Narrator/internal/links"
	"Narrator/internal/model"
	"Narrator/internal/service"
	"Narrator/internal/tts"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	headerConversionID = "X-Conversion-ID"
	headerAudioURL     = "X-Audio-URL"

	defaultListLimit = 20
	maxListLimit     = 100
)

// ConversionService — то, что хендлеру нужно от сервиса преобразований.
type ConversionService interface {
	Convert(ctx context.Context, u service.Upload) (*service.Result, error)
	Get(ctx context.Context, id string) (*model.Conversion, error)
	Audio(ctx context.Context, id string) (*model.Conversion, []byte, error)
	List(ctx context.Context, limit int) ([]model.Conversion, error)
}

// ConversionHandler обрабатывает загрузку файлов и выдачу результатов.
type ConversionHandler struct {
	Service ConversionService
	Signer  *links.Signer
	Logger  *zap.SugaredLogger
	Config  *config.Config
}

// NewConversionHandler создаёт хендлер преобразований
func NewConversionHandler(svc ConversionService, signer *links.Signer, logger *zap.SugaredLogger, cfg *config.Config) *ConversionHandler {
	return &ConversionHandler{Service: svc, Signer: signer, Logger: logger, Config: cfg}
}

// conversionDTO — запись преобразования со ссылкой на скачивание аудио.
type conversionDTO struct {
	model.Conversion
	AudioURL string `json:"audio_url,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// TextToSpeech принимает файл (.pdf или .txt) в поле "file" и отдаёт аудио mp3.
func (h *ConversionHandler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	maxUpload := h.Config.UploadMaxBytes()
	// Лимит общего тела запроса: файл + служебные части формы
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isTooLarge(err) {
			h.Logger.Warnw("TextToSpeech: request too large", "error", err)
			writeDetail(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		h.Logger.Warnw("TextToSpeech: invalid multipart form", "error", err)
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Logger.Warnw("TextToSpeech: missing file", "error", err)
		writeDetail(w, http.StatusBadRequest, "Field 'file' is required")
		return
	}
	defer file.Close()

	if header.Size > maxUpload {
		h.Logger.Warnw("TextToSpeech: file too large", "file", header.Filename, "size", header.Size, "limit", maxUpload)
		writeDetail(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		h.Logger.Warnw("TextToSpeech: failed to read file", "error", err)
		writeDetail(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	res, err := h.Service.Convert(r.Context(), service.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeConvertError(w, header.Filename, err)
		return
	}

	id := res.Conversion.ID
	if link, err := h.Signer.AudioPath(id); err == nil {
		w.Header().Set(headerAudioURL, link)
	} else {
		h.Logger.Errorw("TextToSpeech: sign link", "id", id, "error", err)
	}
	w.Header().Set(headerConversionID, id)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".mp3"))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

func (h *ConversionHandler) writeConvertError(w http.ResponseWriter, fileName string, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedType):
		writeDetail(w, http.StatusBadRequest, "Only .pdf and .txt files are allowed")
	case errors.Is(err, service.ErrExtract):
		writeDetail(w, http.StatusBadRequest, "Failed to process file: "+err.Error())
	case errors.Is(err, service.ErrEmptyText):
		writeDetail(w, http.StatusBadRequest, "The file is empty or contains no text.")
	case errors.Is(err, tts.ErrBadRequest):
		writeDetail(w, http.StatusBadRequest, "OpenAI API error: "+err.Error())
	case errors.Is(err, tts.ErrUpstream):
		h.Logger.Errorw("TextToSpeech: provider error", "file", fileName, "error", err)
		writeDetail(w, http.StatusBadGateway, "Text-to-speech provider error")
	default:
		h.Logger.Errorw("TextToSpeech: service error", "file", fileName, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// List последние преобразования
func (h *ConversionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDetail(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.Service.List(r.Context(), limit)
	if err != nil {
		h.Logger.Errorw("List: service error", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]conversionDTO, 0, len(list))
	for _, c := range list {
		out = append(out, h.toDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get метаданные одного преобразования
func (h *ConversionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Service.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "conversion not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("Get: service error", "id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toDTO(*c))
}

// Audio отдаёт сохранённое аудио по подписанной ссылке
func (h *ConversionHandler) Audio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, err := h.Signer.Verify(r.URL.Query().Get("token"))
	if err != nil || subject != id {
		h.Logger.Warnw("Audio: rejected token", "id", id, "error", err)
		writeDetail(w, http.StatusForbidden, "invalid or expired link")
		return
	}

	c, data, err := h.Service.Audio(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrNoAudio) {
		writeDetail(w, http.StatusNotFound, "audio not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("Audio: service error", "id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", id+".mp3"))
	http.ServeContent(w, r, id+".mp3", c.UpdatedAt, bytes.NewReader(data))
}

func (h *ConversionHandler) toDTO(c model.Conversion) conversionDTO {
	dto := conversionDTO{Conversion: c}
	if c.Status == model.StatusCompleted && c.BlobID != nil {
		if link, err := h.Signer.AudioPath(c.ID); err == nil {
			dto.AudioURL = link
		}
	}
	return dto
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
