package translate

import (
	"context"
	"testing"
)

type fakeTranslator struct {
	result string
}

func (f fakeTranslator) Name() string { return "fake" }
func (f fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f.result, nil
}

func TestTranslatorInterfaceSatisfiedByFake(t *testing.T) {
	var tr Translator = fakeTranslator{result: "hola"}
	got, err := tr.Translate(context.Background(), "hello", "en", "es")
	if err != nil || got != "hola" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}
