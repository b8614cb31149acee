// Package translate converts transcribed text between languages behind
// two backends: AWS Translate and an LLM chat-completion prompt, selected
// by TRANSLATION_BACKEND.
package translate

import "context"

// Translator is implemented by each concrete translation backend.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Name() string
}
