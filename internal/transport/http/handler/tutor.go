package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gopherai-tutor/internal/app"
	"gopherai-tutor/internal/document"
	"gopherai-tutor/internal/prompt"
	"gopherai-tutor/internal/transport/http/response"
)

type TutorHandler struct {
	tutor          *app.TutorService
	maxUploadBytes int64
	logger         *zap.Logger
}

type ChatRequest struct {
	Message        string `json:"message"`
	Subject        string `json:"subject"`
	OutputLanguage string `json:"output_language"`
}

func NewTutorHandler(tutor *app.TutorService, maxUploadBytes int64, logger *zap.Logger) *TutorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorHandler{tutor: tutor, maxUploadBytes: maxUploadBytes, logger: logger}
}

func (h *TutorHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "No message provided")
		return
	}

	answer, err := h.tutor.Chat(c.Request.Context(), app.ChatInput{
		Message:        req.Message,
		Subject:        req.Subject,
		OutputLanguage: req.OutputLanguage,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.OK(c, response.ChatResponse{Response: answer})
}

func (h *TutorHandler) StreamChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		response.Error(c, http.StatusBadRequest, "No message provided")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	full, err := h.tutor.StreamChat(c.Request.Context(), app.ChatInput{
		Message:        req.Message,
		Subject:        req.Subject,
		OutputLanguage: req.OutputLanguage,
	}, func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		msg, status := h.classify(err)
		if status == http.StatusInternalServerError {
			h.logger.Warn("stream chat failed", zap.Error(err))
		}
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(msg)))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func (h *TutorHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
		case hasFormValue(c, "file"):
			// a file part sent with an empty filename is parsed as a plain value
			h.writeError(c, app.ErrEmptyFilename)
		default:
			response.Error(c, http.StatusBadRequest, "No file part")
		}
		return
	}
	if header.Filename == "" {
		h.writeError(c, app.ErrEmptyFilename)
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "read upload failed")
		return
	}
	defer file.Close()

	result, err := h.tutor.Analyze(c.Request.Context(), app.AnalyzeInput{
		FileName:       header.Filename,
		File:           file,
		Task:           c.PostForm("task"),
		TargetLang:     c.PostForm("target_lang"),
		Subject:        c.PostForm("subject"),
		OutputLanguage: c.PostForm("output_language"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *TutorHandler) Tasks(c *gin.Context) {
	response.OK(c, gin.H{"tasks": prompt.Tasks()})
}

func (h *TutorHandler) Snippets(c *gin.Context) {
	subject := c.Param("subject")
	snippets, err := h.tutor.ListSnippets(c.Request.Context(), subject)
	if err != nil {
		h.logger.Error("list snippets failed", zap.String("subject", subject), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "list snippets failed")
		return
	}

	response.OK(c, gin.H{"subject": subject, "snippets": snippets})
}

func (h *TutorHandler) Analyses(c *gin.Context) {
	subject := c.Param("subject")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	records, err := h.tutor.ListAnalyses(subject, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrAuditDisabled):
			response.Error(c, http.StatusServiceUnavailable, err.Error())
		default:
			h.logger.Error("list analyses failed", zap.String("subject", subject), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "list analyses failed")
		}
		return
	}

	response.OK(c, gin.H{"subject": subject, "analyses": records})
}

func (h *TutorHandler) writeError(c *gin.Context, err error) {
	msg, status := h.classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, status, msg)
}

// classify maps a service error to the message and status shown to clients.
func (h *TutorHandler) classify(err error) (string, int) {
	var upstream *app.UpstreamError
	var extraction *document.ExtractionError
	switch {
	case errors.Is(err, app.ErrMissingMessage):
		return "No message provided", http.StatusBadRequest
	case errors.Is(err, app.ErrMissingFile):
		return "No file part", http.StatusBadRequest
	case errors.Is(err, app.ErrEmptyFilename):
		return "No selected file", http.StatusBadRequest
	case errors.Is(err, app.ErrMissingInput):
		return err.Error(), http.StatusBadRequest
	case errors.Is(err, app.ErrLLMConfig):
		return err.Error(), http.StatusInternalServerError
	case errors.As(err, &upstream):
		return upstream.Error(), http.StatusInternalServerError
	case errors.As(err, &extraction):
		return "failed to extract document text", http.StatusInternalServerError
	default:
		return err.Error(), http.StatusInternalServerError
	}
}

func hasFormValue(c *gin.Context, key string) bool {
	if c.Request.MultipartForm == nil {
		return false
	}
	_, ok := c.Request.MultipartForm.Value[key]
	return ok
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
