// Package prompt turns task ids, stored context and extracted text into the
// exact strings sent to the model. Every function is pure.
package prompt

import (
	"fmt"

	"gopherai-tutor/internal/ai"
)

const DefaultOutputLanguage = "English"

type Task string

const (
	TaskSummary       Task = "summary"
	TaskKeypoints     Task = "keypoints"
	TaskQuizGenerator Task = "quiz_generator"
	TaskRapSong       Task = "rap_song"
	TaskFeynman       Task = "feynman"
	TaskMindMap       Task = "mind_map"
	TaskCornell       Task = "cornell"
	TaskCodeTranslate Task = "code_translate"
	TaskPseudocode    Task = "pseudocode"
	TaskOptimization  Task = "optimization"
	TaskFlashcards    Task = "flashcards"
)

var knownTasks = []Task{
	TaskSummary,
	TaskKeypoints,
	TaskQuizGenerator,
	TaskRapSong,
	TaskFeynman,
	TaskMindMap,
	TaskCornell,
	TaskCodeTranslate,
	TaskPseudocode,
	TaskOptimization,
	TaskFlashcards,
}

// Tasks lists the task ids with a dedicated template.
func Tasks() []Task {
	out := make([]Task, len(knownTasks))
	copy(out, knownTasks)
	return out
}

func IsKnownTask(task Task) bool {
	for _, known := range knownTasks {
		if known == task {
			return true
		}
	}
	return false
}

// TaskInput carries everything a task template may interpolate.
type TaskInput struct {
	Context        string
	Text           string
	OutputLanguage string
	TargetLang     string
}

// Conversation returns the system and user turns for a tutoring chat.
func Conversation(subject, contextBlock, outputLanguage, message string) []ai.ChatMessage {
	system := fmt.Sprintf("You are a helpful AI tutor for the subject: %s. "+
		"Use the following document context to answer questions: %s. "+
		"IMPORTANT: Answer strictly in the %s language.", subject, contextBlock, outputLanguage)
	return []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: message},
	}
}

// Build returns the single user turn for an analysis task. Unknown task ids
// use the generic analysis template.
func Build(task Task, in TaskInput) string {
	base := contextPreamble(in.Context)
	lang := languageDirective(in.OutputLanguage)

	switch task {
	case TaskSummary:
		return fmt.Sprintf("%sAnalyze and summarize.\n\nText:\n%s\n\n%s", base, in.Text, lang)
	case TaskKeypoints:
		return fmt.Sprintf("%sExtract key points from the following text:\n\n%s\n\n%s", base, in.Text, lang)
	case TaskQuizGenerator:
		return fmt.Sprintf("%sGenerate 3 quiz questions based on the following text:\n\n%s\n\n%s", base, in.Text, lang)
	case TaskRapSong:
		return fmt.Sprintf("%sWrite a rap song.\n\nText:\n%s\n\n%s", base, in.Text, lang)
	case TaskFeynman:
		return fmt.Sprintf("%sExplain like I'm 5.\n\nText:\n%s\n\n%s", base, in.Text, lang)
	case TaskMindMap:
		return fmt.Sprintf("Generate a Mermaid.js graph. Return ONLY the Mermaid code (starting with 'graph TD'). "+
			"Do NOT translate the Mermaid keywords (graph, TD, -->), but translate the node labels to %s.\n\nText:\n%s",
			in.OutputLanguage, in.Text)
	case TaskCornell:
		return fmt.Sprintf("%sFormat into Cornell Notes (HTML). Translate content to %s.\n\nText:\n%s",
			base, in.OutputLanguage, in.Text)
	case TaskCodeTranslate:
		return fmt.Sprintf("Translate the following code ENTIRELY into %s. "+
			"Return the FULL TRANSLATED CODE inside a markdown code block first. "+
			"Then provide a brief explanation in %s.\n\nCode:\n%s",
			in.TargetLang, in.OutputLanguage, in.Text)
	case TaskPseudocode:
		return fmt.Sprintf("Convert to Pseudocode. Comments in %s.\n\n%s", in.OutputLanguage, in.Text)
	case TaskOptimization:
		return fmt.Sprintf("Optimize the following code for better performance (Time/Space Complexity). "+
			"Return the FULL OPTIMIZED CODE inside a markdown code block first. "+
			"Then explain the optimizations in %s.\n\nCode:\n%s",
			in.OutputLanguage, in.Text)
	case TaskFlashcards:
		return fmt.Sprintf("Generate 5 flashcards. Return JSON array with 'question' and 'answer'. "+
			"Translate content to %s.\n\nText:\n%s", in.OutputLanguage, in.Text)
	default:
		return fmt.Sprintf("%sAnalyze.\n\nText:\n%s\n\n%s", base, in.Text, lang)
	}
}

func contextPreamble(contextBlock string) string {
	return fmt.Sprintf("Context from previous documents:\n%s\n\nCurrent Document:\n", contextBlock)
}

// languageDirective is empty for the default language. Only the templates
// that start from the context preamble use it; the others name the language
// inline regardless.
func languageDirective(outputLanguage string) string {
	if outputLanguage == DefaultOutputLanguage {
		return ""
	}
	return fmt.Sprintf("IMPORTANT: You MUST provide the ENTIRE response in %s language.", outputLanguage)
}
