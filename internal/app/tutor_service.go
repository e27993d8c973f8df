package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"gopherai-tutor/internal/ai"
	"gopherai-tutor/internal/contextstore"
	"gopherai-tutor/internal/document"
	"gopherai-tutor/internal/metrics"
	"gopherai-tutor/internal/model"
	"gopherai-tutor/internal/pkg/safename"
	"gopherai-tutor/internal/prompt"
)

const (
	DefaultTask       = prompt.TaskSummary
	DefaultTargetLang = "C++"

	// transient upload names stay well below filesystem name limits
	maxUploadNameLen = 96

	opChat    = "chat"
	opStream  = "chat_stream"
	opAnalyze = "analyze"
)

// Completer is the boundary to the language model.
type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type TextExtractor interface {
	Extract(path, name string) (string, error)
}

type AuditPublisher interface {
	Publish(ctx context.Context, record model.AnalysisRecord) error
}

type AnalysisLister interface {
	ListBySubject(subject string, limit int) ([]model.AnalysisRecord, error)
}

// TutorDeps wires a TutorService. Publisher, Analyses and Metrics are optional.
type TutorDeps struct {
	Store     *contextstore.Store
	Selector  *contextstore.Selector
	Extractor TextExtractor
	LLM       Completer
	LLMConfig ai.ChatConfig
	UploadDir string
	Window    int
	Publisher AuditPublisher
	Analyses  AnalysisLister
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type TutorService struct {
	store     *contextstore.Store
	selector  *contextstore.Selector
	extractor TextExtractor
	llm       Completer
	llmConfig ai.ChatConfig
	uploadDir string
	window    int
	publisher AuditPublisher
	analyses  AnalysisLister
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewTutorService(deps TutorDeps) *TutorService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.Window
	if window <= 0 {
		window = contextstore.DefaultWindowSize
	}
	return &TutorService{
		store:     deps.Store,
		selector:  deps.Selector,
		extractor: deps.Extractor,
		llm:       deps.LLM,
		llmConfig: deps.LLMConfig,
		uploadDir: deps.UploadDir,
		window:    window,
		publisher: deps.Publisher,
		analyses:  deps.Analyses,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

type ChatInput struct {
	Message        string
	Subject        string
	OutputLanguage string
}

type AnalyzeInput struct {
	FileName       string
	File           io.Reader
	Task           string
	TargetLang     string
	Subject        string
	OutputLanguage string
}

type AnalyzeResult struct {
	Content     string `json:"content"`
	SnippetName string `json:"snippet_name"`
	Subject     string `json:"subject"`
	Task        string `json:"task"`
}

type SnippetInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// Chat answers message using the subject's current context window.
func (s *TutorService) Chat(ctx context.Context, input ChatInput) (string, error) {
	messages, err := s.chatMessages(ctx, input)
	if err != nil {
		s.metrics.ObserveRequest(opChat, "", outcomeOf(err))
		return "", err
	}

	started := time.Now()
	answer, err := s.llm.Complete(ctx, s.llmConfig, messages)
	s.metrics.ObserveCompletion(opChat, started)
	if err != nil {
		err = s.upstreamError(opChat, err)
		s.metrics.ObserveRequest(opChat, "", outcomeOf(err))
		return "", err
	}
	s.metrics.ObserveRequest(opChat, "", "ok")
	return answer, nil
}

// StreamChat is Chat with the answer delivered chunk by chunk.
func (s *TutorService) StreamChat(ctx context.Context, input ChatInput, onChunk func(string) error) (string, error) {
	messages, err := s.chatMessages(ctx, input)
	if err != nil {
		s.metrics.ObserveRequest(opStream, "", outcomeOf(err))
		return "", err
	}

	started := time.Now()
	full, err := s.llm.StreamComplete(ctx, s.llmConfig, messages, onChunk)
	s.metrics.ObserveCompletion(opStream, started)
	if err != nil {
		err = s.upstreamError(opStream, err)
		s.metrics.ObserveRequest(opStream, "", outcomeOf(err))
		return "", err
	}
	s.metrics.ObserveRequest(opStream, "", "ok")
	return full, nil
}

func (s *TutorService) chatMessages(ctx context.Context, input ChatInput) ([]ai.ChatMessage, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, ErrMissingMessage
	}
	if !s.llmConfig.Valid() {
		return nil, ErrLLMConfig
	}

	contextBlock, err := s.selector.Select(ctx, input.Subject, s.window)
	if err != nil {
		return nil, fmt.Errorf("select context failed: %w", err)
	}
	return prompt.Conversation(
		displaySubject(input.Subject),
		contextBlock,
		NormalizeLanguage(input.OutputLanguage),
		input.Message,
	), nil
}

// Analyze runs one uploaded document through extraction, context storage and
// the selected task template. The upload is kept in a transient file that is
// removed before Analyze returns, whatever the outcome.
func (s *TutorService) Analyze(ctx context.Context, input AnalyzeInput) (result *AnalyzeResult, err error) {
	if input.File == nil {
		return nil, ErrMissingFile
	}
	if strings.TrimSpace(input.FileName) == "" {
		return nil, ErrEmptyFilename
	}
	if !s.llmConfig.Valid() {
		return nil, ErrLLMConfig
	}

	task := prompt.Task(strings.TrimSpace(input.Task))
	if task == "" {
		task = DefaultTask
	}
	targetLang := strings.TrimSpace(input.TargetLang)
	if targetLang == "" {
		targetLang = DefaultTargetLang
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = contextstore.DefaultSubject
	}
	outputLanguage := NormalizeLanguage(input.OutputLanguage)

	record := model.AnalysisRecord{
		Subject:        contextstore.Namespace(subject),
		Task:           string(task),
		FileName:       input.FileName,
		OutputLanguage: outputLanguage,
	}
	defer func() {
		s.metrics.ObserveRequest(opAnalyze, metricTask(task), outcomeOf(err))
		s.audit(ctx, record, err)
	}()

	path, err := s.saveUpload(input.FileName, input.File)
	if err != nil {
		return nil, err
	}
	defer s.removeUpload(path)

	started := time.Now()
	text, err := s.extractor.Extract(path, input.FileName)
	s.metrics.ObserveExtract(extractKind(input.FileName), started)
	if err != nil {
		return nil, err
	}

	snippetName, err := s.store.Write(ctx, subject, input.FileName, text)
	if err != nil {
		return nil, fmt.Errorf("store context failed: %w", err)
	}
	record.SnippetName = snippetName
	s.metrics.ObserveSnippetWritten()
	s.logger.Info("snippet stored",
		zap.String("subject", record.Subject),
		zap.String("snippet", snippetName),
		zap.Int("chars", len([]rune(text))))

	contextBlock, err := s.selector.Select(ctx, subject, s.window)
	if err != nil {
		return nil, fmt.Errorf("select context failed: %w", err)
	}

	content := prompt.Build(task, prompt.TaskInput{
		Context:        contextBlock,
		Text:           text,
		OutputLanguage: outputLanguage,
		TargetLang:     targetLang,
	})

	started = time.Now()
	answer, err := s.llm.Complete(ctx, s.llmConfig, []ai.ChatMessage{{Role: ai.RoleUser, Content: content}})
	s.metrics.ObserveCompletion(opAnalyze, started)
	if err != nil {
		return nil, s.upstreamError(opAnalyze, err)
	}

	return &AnalyzeResult{
		Content:     answer,
		SnippetName: snippetName,
		Subject:     record.Subject,
		Task:        string(task),
	}, nil
}

// ListSnippets returns the stored snippets of subject, newest first.
func (s *TutorService) ListSnippets(ctx context.Context, subject string) ([]SnippetInfo, error) {
	entries, err := s.selector.Recent(ctx, subject, 0)
	if err != nil {
		return nil, err
	}
	out := make([]SnippetInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, SnippetInfo{Name: e.Name, ModifiedAt: e.ModTime, Size: e.Size})
	}
	return out, nil
}

func (s *TutorService) ListAnalyses(subject string, limit int) ([]model.AnalysisRecord, error) {
	if s.analyses == nil {
		return nil, ErrAuditDisabled
	}
	return s.analyses.ListBySubject(contextstore.Namespace(subject), limit)
}

func (s *TutorService) saveUpload(fileName string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	name := safename.Clean(fileName)
	if name == "" {
		name = "file"
	}
	if len(name) > maxUploadNameLen {
		ext := filepath.Ext(name)
		if len(ext) > maxUploadNameLen/4 {
			ext = ""
		}
		name = name[:maxUploadNameLen-len(ext)] + ext
	}
	dst, err := os.CreateTemp(s.uploadDir, "upload-*-"+name)
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}
	path := dst.Name()

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		s.removeUpload(path)
		return "", fmt.Errorf("save upload failed: %w", errors.Join(copyErr, closeErr))
	}
	return path, nil
}

func (s *TutorService) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove upload failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *TutorService) upstreamError(op string, err error) error {
	s.metrics.ObserveUpstreamFailure(op)
	s.logger.Warn("completion failed", zap.String("operation", op), zap.Error(err))
	return &UpstreamError{Op: op, Err: err}
}

func (s *TutorService) audit(ctx context.Context, record model.AnalysisRecord, err error) {
	if s.publisher == nil || errors.Is(err, ErrMissingInput) || errors.Is(err, ErrLLMConfig) {
		return
	}
	record.Status = model.AnalysisStatusOK
	if err != nil {
		record.Status = model.AnalysisStatusFailed
		record.Error = err.Error()
	}
	record.FileName = document.Truncate(record.FileName, model.MaxFileNameLen)
	record.CreatedAt = time.Now()
	if pubErr := s.publisher.Publish(context.WithoutCancel(ctx), record); pubErr != nil {
		s.logger.Warn("publish analysis record failed", zap.Error(pubErr))
	}
}

func displaySubject(subject string) string {
	if subject = strings.TrimSpace(subject); subject == "" {
		return contextstore.DefaultSubject
	}
	return subject
}

func extractKind(fileName string) string {
	if document.IsPDF(fileName) {
		return "pdf"
	}
	return "text"
}

// metricTask keeps label cardinality bounded for arbitrary task ids.
func metricTask(task prompt.Task) string {
	if prompt.IsKnownTask(task) {
		return string(task)
	}
	return "other"
}

func outcomeOf(err error) string {
	var upstream *UpstreamError
	var extraction *document.ExtractionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.As(err, &extraction):
		return "extraction_error"
	default:
		return "internal_error"
	}
}
