package engine

import (
	"context"
	"errors"
	"testing"
)

type stubBackend struct {
	name string
	text string
	err  error
}

func (s *stubBackend) Name() string { return s.name }
func (s *stubBackend) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Text: s.text}, nil
}

func TestRouterRoutesLanguageSpecificModel(t *testing.T) {
	r := NewRouter()
	r.Register("whisper-ko", &stubBackend{name: "whisper-ko", text: "안녕하세요"})
	r.Register("whisper-en", &stubBackend{name: "whisper-en", text: "hello"})
	r.RouteLanguage("ko", "whisper-ko")
	r.RouteLanguage("en", "whisper-en")

	res, err := r.Transcribe(context.Background(), nil, "ko")
	if err != nil || res.Text != "안녕하세요" {
		t.Fatalf("expected ko routed to whisper-ko, got %+v err=%v", res, err)
	}
}

func TestRouterFallsBackWhenNoLanguageRoute(t *testing.T) {
	r := NewRouter()
	r.Register("fallback", &stubBackend{name: "fallback", text: "fallback text"})
	r.SetFallback("fallback")

	res, err := r.Transcribe(context.Background(), nil, "xx")
	if err != nil || res.Text != "fallback text" {
		t.Fatalf("expected fallback route, got %+v err=%v", res, err)
	}
}

func TestRouterErrorsWithNoRouteAndNoFallback(t *testing.T) {
	r := NewRouter()
	_, err := r.Transcribe(context.Background(), nil, "xx")
	if err == nil {
		t.Fatalf("expected error with no route and no fallback")
	}
}

func TestRouterDedupesSharedModelByName(t *testing.T) {
	r := NewRouter()
	shared := &stubBackend{name: "shared", text: "shared text"}
	r.Register("shared", shared)
	r.Register("shared", &stubBackend{name: "shared", text: "should not replace"})
	r.RouteLanguage("ko", "shared")
	r.RouteLanguage("ja", "shared")

	resKo, _ := r.Transcribe(context.Background(), nil, "ko")
	resJa, _ := r.Transcribe(context.Background(), nil, "ja")
	if resKo.Text != "shared text" || resJa.Text != "shared text" {
		t.Fatalf("expected both languages to share the first-registered instance, got ko=%+v ja=%+v", resKo, resJa)
	}
}

func TestRouterPropagatesBackendError(t *testing.T) {
	r := NewRouter()
	wantErr := errors.New("backend down")
	r.Register("bad", &stubBackend{name: "bad", err: wantErr})
	r.RouteLanguage("en", "bad")

	_, err := r.Transcribe(context.Background(), nil, "en")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected propagated backend error, got %v", err)
	}
}
