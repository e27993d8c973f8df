package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopherai-tutor/internal/ai"
	"gopherai-tutor/internal/contextstore"
	"gopherai-tutor/internal/document"
	"gopherai-tutor/internal/metrics"
	"gopherai-tutor/internal/model"
	"gopherai-tutor/internal/pkg/pdfextract/pdftest"
)

type fakeCompleter struct {
	calls  [][]ai.ChatMessage
	answer string
	chunks []string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) StreamComplete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return "", err
		}
	}
	return strings.Join(f.chunks, ""), nil
}

func (f *fakeCompleter) lastPrompt(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.calls)
	last := f.calls[len(f.calls)-1]
	require.Len(t, last, 1)
	assert.Equal(t, ai.RoleUser, last[0].Role)
	return last[0].Content
}

type fakePublisher struct {
	records []model.AnalysisRecord
}

func (p *fakePublisher) Publish(_ context.Context, record model.AnalysisRecord) error {
	p.records = append(p.records, record)
	return nil
}

// explodingExtractor fails after confirming the transient upload exists.
type explodingExtractor struct {
	t        *testing.T
	seenPath string
}

func (e *explodingExtractor) Extract(path, name string) (string, error) {
	_, err := os.Stat(path)
	require.NoError(e.t, err, "upload must exist while extracting")
	e.seenPath = path
	return "", &document.ExtractionError{Name: name, Err: errors.New("boom")}
}

type fixture struct {
	svc        *TutorService
	llm        *fakeCompleter
	publisher  *fakePublisher
	contextDir string
	uploadDir  string
}

func newFixture(t *testing.T, extractor TextExtractor) *fixture {
	t.Helper()
	root := t.TempDir()
	contextDir := filepath.Join(root, "contexts")
	uploadDir := filepath.Join(root, "uploads")
	storage := contextstore.NewFSStorage(contextDir)
	if extractor == nil {
		extractor = document.NewExtractor(document.MaxTextChars)
	}
	llm := &fakeCompleter{answer: "model says hi"}
	publisher := &fakePublisher{}
	svc := NewTutorService(TutorDeps{
		Store:     contextstore.NewStore(storage),
		Selector:  contextstore.NewSelector(storage, zap.NewNop()),
		Extractor: extractor,
		LLM:       llm,
		LLMConfig: ai.ChatConfig{BaseURL: "http://llm.invalid", APIKey: "k", Model: "gpt-4o"},
		UploadDir: uploadDir,
		Publisher: publisher,
		Metrics:   metrics.New(),
		Logger:    zap.NewNop(),
	})
	return &fixture{svc: svc, llm: llm, publisher: publisher, contextDir: contextDir, uploadDir: uploadDir}
}

func (f *fixture) uploads(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.uploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestAnalyzeSummaryInEnglish(t *testing.T) {
	f := newFixture(t, nil)
	text := "Photosynthesis converts light to energy."

	res, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName:       "plants.txt",
		File:           strings.NewReader(text),
		Task:           "summary",
		Subject:        "math",
		OutputLanguage: "English",
	})
	require.NoError(t, err)
	assert.Equal(t, "model says hi", res.Content)
	assert.Equal(t, "math", res.Subject)
	assert.True(t, strings.HasPrefix(res.SnippetName, "plants_"))

	p := f.llm.lastPrompt(t)
	assert.Contains(t, p, "Analyze and summarize.\n\nText:\n"+text+"\n\n")
	assert.NotContains(t, p, "IMPORTANT")
	assert.NotContains(t, p, "English")

	stored, err := os.ReadFile(filepath.Join(f.contextDir, "math", res.SnippetName))
	require.NoError(t, err)
	assert.Equal(t, text, string(stored))
	assert.Empty(t, f.uploads(t))
}

func TestAnalyzeCodeTranslate(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName:       "hello.py",
		File:           strings.NewReader(`print("hi")`),
		Task:           "code_translate",
		TargetLang:     "Rust",
		OutputLanguage: "English",
	})
	require.NoError(t, err)

	p := f.llm.lastPrompt(t)
	assert.Contains(t, p, "Translate the following code ENTIRELY into Rust.")
	assert.Contains(t, p, "Then provide a brief explanation in English.")
	assert.True(t, strings.HasSuffix(p, "Code:\n"+`print("hi")`))
	assert.NotContains(t, p, "Context from previous documents")
}

func TestAnalyzeDefaults(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: "algo.cpp",
		File:     strings.NewReader("int main() {}"),
	})
	require.NoError(t, err)
	assert.Equal(t, "summary", res.Task)
	assert.Equal(t, contextstore.DefaultSubject, res.Subject)
	assert.Contains(t, f.llm.lastPrompt(t), "Analyze and summarize.")

	_, err = os.Stat(filepath.Join(f.contextDir, contextstore.DefaultSubject, res.SnippetName))
	require.NoError(t, err)
}

func TestAnalyzeSequentialCallsShareContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Analyze(ctx, AnalyzeInput{
		FileName: "cells.txt",
		File:     strings.NewReader("Mitochondria are the powerhouse."),
		Subject:  "biology",
	})
	require.NoError(t, err)

	_, err = f.svc.Analyze(ctx, AnalyzeInput{
		FileName: "dna.txt",
		File:     strings.NewReader("DNA stores genetic information."),
		Task:     "keypoints",
		Subject:  "biology",
	})
	require.NoError(t, err)

	p := f.llm.lastPrompt(t)
	assert.Contains(t, p, "\n--- "+first.SnippetName+" ---\nMitochondria are the powerhouse.\n")
	assert.Contains(t, p, "Extract key points from the following text:\n\nDNA stores genetic information.")
}

func TestAnalyzeSubjectsAreIsolated(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, AnalyzeInput{FileName: "a.txt", File: strings.NewReader("secret history"), Subject: "history"})
	require.NoError(t, err)
	_, err = f.svc.Analyze(ctx, AnalyzeInput{FileName: "b.txt", File: strings.NewReader("algebra"), Subject: "math"})
	require.NoError(t, err)

	assert.NotContains(t, f.llm.lastPrompt(t), "secret history")
}

func TestAnalyzeRemovesUploadWhenExtractionFails(t *testing.T) {
	extractor := &explodingExtractor{t: t}
	f := newFixture(t, extractor)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: "paper.pdf",
		File:     strings.NewReader("%PDF-broken"),
		Subject:  "physics",
	})
	var extractErr *document.ExtractionError
	require.True(t, errors.As(err, &extractErr))

	require.NotEmpty(t, extractor.seenPath)
	_, statErr := os.Stat(extractor.seenPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.Empty(t, f.uploads(t))
	assert.Empty(t, f.llm.calls)

	_, statErr = os.Stat(filepath.Join(f.contextDir, "physics"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "failed extraction must not create context")

	require.Len(t, f.publisher.records, 1)
	assert.Equal(t, model.AnalysisStatusFailed, f.publisher.records[0].Status)
}

func TestAnalyzeRemovesUploadWhenUpstreamFails(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.err = errors.New("insufficient_quota: You exceeded your current quota")

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: "notes.txt",
		File:     strings.NewReader("content"),
	})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "insufficient_quota: You exceeded your current quota", err.Error())
	assert.Empty(t, f.uploads(t))
}

func TestAnalyzePDFUpload(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: "Lecture 3.pdf",
		File:     bytes.NewReader(pdftest.Build("Entropy always increases")),
		Task:     "feynman",
		Subject:  "thermo",
	})
	require.NoError(t, err)
	assert.Contains(t, f.llm.lastPrompt(t), "Entropy always increases")
	assert.Empty(t, f.uploads(t))
}

func TestAnalyzeTruncatesStoredSnippet(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: "long.txt",
		File:     strings.NewReader(strings.Repeat("a", 9000)),
	})
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(f.contextDir, contextstore.DefaultSubject, res.SnippetName))
	require.NoError(t, err)
	assert.Len(t, stored, document.MaxTextChars)
}

func TestAnalyzeMissingInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{FileName: "x.txt"})
	require.ErrorIs(t, err, ErrMissingFile)
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = f.svc.Analyze(context.Background(), AnalyzeInput{FileName: "  ", File: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrEmptyFilename)
	assert.Empty(t, f.publisher.records)
}

func TestAnalyzeAuditRecord(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName:       "quiz.txt",
		File:           strings.NewReader("capitals"),
		Task:           "quiz_generator",
		Subject:        "Geo Graphy",
		OutputLanguage: " German ",
	})
	require.NoError(t, err)
	require.Len(t, f.publisher.records, 1)
	rec := f.publisher.records[0]
	assert.Equal(t, "Geo_Graphy", rec.Subject)
	assert.Equal(t, "quiz_generator", rec.Task)
	assert.Equal(t, res.SnippetName, rec.SnippetName)
	assert.Equal(t, "German", rec.OutputLanguage)
	assert.Equal(t, model.AnalysisStatusOK, rec.Status)
	assert.Contains(t, f.llm.lastPrompt(t), "IMPORTANT: You MUST provide the ENTIRE response in German language.")
}

func TestAnalyzeRequiresLLMConfig(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.llmConfig.APIKey = ""

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{FileName: "a.txt", File: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrLLMConfig)
	assert.Empty(t, f.uploads(t))
}

func TestChatUsesContextAndLanguage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, AnalyzeInput{FileName: "rome.txt", File: strings.NewReader("Rome was founded in 753 BC."), Subject: "history"})
	require.NoError(t, err)

	answer, err := f.svc.Chat(ctx, ChatInput{Message: "When was Rome founded?", Subject: "history", OutputLanguage: "Italian"})
	require.NoError(t, err)
	assert.Equal(t, "model says hi", answer)

	msgs := f.llm.calls[len(f.llm.calls)-1]
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are a helpful AI tutor for the subject: history.")
	assert.Contains(t, msgs[0].Content, "--- "+res.SnippetName+" ---\nRome was founded in 753 BC.")
	assert.Contains(t, msgs[0].Content, "Answer strictly in the Italian language.")
	assert.Equal(t, ai.ChatMessage{Role: ai.RoleUser, Content: "When was Rome founded?"}, msgs[1])
}

func TestChatWithoutPriorContext(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Chat(context.Background(), ChatInput{Message: "hello"})
	require.NoError(t, err)
	msgs := f.llm.calls[0]
	assert.Contains(t, msgs[0].Content, "subject: default.")
	assert.Contains(t, msgs[0].Content, "answer questions: .")
	assert.Contains(t, msgs[0].Content, "in the English language.")
}

func TestChatErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Chat(context.Background(), ChatInput{Message: "   "})
	require.ErrorIs(t, err, ErrMissingMessage)

	f.llm.err = errors.New("connection reset by peer")
	_, err = f.svc.Chat(context.Background(), ChatInput{Message: "hi"})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "chat", upstream.Op)
	assert.Equal(t, "connection reset by peer", err.Error())
}

func TestStreamChat(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.chunks = []string{"Bon", "jour"}

	var got []string
	full, err := f.svc.StreamChat(context.Background(), ChatInput{Message: "hi", OutputLanguage: "French"}, func(c string) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", full)
	assert.Equal(t, []string{"Bon", "jour"}, got)
	assert.Contains(t, f.llm.calls[0][0].Content, "in the French language.")
}

func TestListSnippets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	empty, err := f.svc.ListSnippets(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, empty)

	res, err := f.svc.Analyze(ctx, AnalyzeInput{FileName: "a.txt", File: strings.NewReader("abc"), Subject: "s"})
	require.NoError(t, err)
	list, err := f.svc.ListSnippets(ctx, "s")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.SnippetName, list[0].Name)
	assert.Equal(t, int64(3), list[0].Size)
}

func TestListAnalysesDisabled(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.ListAnalyses("math", 10)
	require.ErrorIs(t, err, ErrAuditDisabled)
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":        "English",
		"  ":      "English",
		"English": "English",
		"Spanish": "Spanish",
		"Ga":      "Ga",
		"Yi":      "Yi",
		"Twi":     "Twi",
		"de":      "de",
		"fr":      "fr",
		"zz-ZZ":   "zz-ZZ",
		"Klingon": "Klingon",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLanguage(in), "NormalizeLanguage(%q)", in)
	}

	assert.Contains(t, NormalizeLanguage("pt-BR"), "Portuguese")
	assert.Contains(t, NormalizeLanguage("pt_BR"), "Portuguese")
}

func TestShortLanguageNamesReachPromptLiterally(t *testing.T) {
	for _, lang := range []string{"Ga", "Twi"} {
		f := newFixture(t, nil)

		_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
			FileName:       "notes.txt",
			File:           strings.NewReader("proverbs"),
			OutputLanguage: lang,
		})
		require.NoError(t, err)
		assert.Contains(t, f.llm.lastPrompt(t), "IMPORTANT: You MUST provide the ENTIRE response in "+lang+" language.")

		_, err = f.svc.Chat(context.Background(), ChatInput{Message: "hi", OutputLanguage: lang})
		require.NoError(t, err)
		last := f.llm.calls[len(f.llm.calls)-1]
		assert.Contains(t, last[0].Content, "Answer strictly in the "+lang+" language.")
	}
}

func TestAnalyzeAuditTruncatesLongFileName(t *testing.T) {
	f := newFixture(t, nil)
	long := strings.Repeat("ä", 300) + ".txt"

	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		FileName: long,
		File:     strings.NewReader("x"),
	})
	require.NoError(t, err)
	require.Len(t, f.publisher.records, 1)
	name := f.publisher.records[0].FileName
	assert.Equal(t, model.MaxFileNameLen, len([]rune(name)))
	assert.True(t, strings.HasPrefix(long, name))
}
