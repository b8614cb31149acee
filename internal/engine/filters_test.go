package engine

import "testing"

func TestPassesPreflightDropsShortOrSilent(t *testing.T) {
	cfg := PreflightConfig{MinAudioDurationMs: 300}

	shortSamples := make([]float32, 16000/10) // 100ms @16kHz
	if PassesPreflight(shortSamples, 16000, cfg) {
		t.Fatalf("expected short segment to fail preflight")
	}

	longSilent := make([]float32, 16000) // 1s of zeros
	if PassesPreflight(longSilent, 16000, cfg) {
		t.Fatalf("expected silent segment to fail preflight")
	}

	longLoud := make([]float32, 16000)
	for i := range longLoud {
		longLoud[i] = 0.5
	}
	if !PassesPreflight(longLoud, 16000, cfg) {
		t.Fatalf("expected loud 1s segment to pass preflight")
	}
}

func TestIsArtifact(t *testing.T) {
	patterns := []string{"[music]", "[applause]"}
	if !IsArtifact(" [music] ", patterns) {
		t.Fatalf("expected artifact match with surrounding whitespace")
	}
	if IsArtifact("hello", patterns) {
		t.Fatalf("expected non-artifact text to pass")
	}
}

func TestIsHallucinationFiveIdenticalTokens(t *testing.T) {
	if !IsHallucination("감사합니다 감사합니다 감사합니다 감사합니다 감사합니다") {
		t.Fatalf("expected 5 identical tokens to be flagged")
	}
	if IsHallucination("감사합니다 감사합니다 감사합니다 감사합니다") {
		t.Fatalf("expected 4 identical tokens to NOT be flagged by rule (i)")
	}
}

func TestIsHallucinationSixTokensFewUnique(t *testing.T) {
	if !IsHallucination("a b a b a b") {
		t.Fatalf("expected 6 tokens with 2 unique to be flagged")
	}
}

func TestIsHallucinationDotSuffixed(t *testing.T) {
	if !IsHallucination("word.. word.. word..") {
		t.Fatalf("expected 3 identical dot-suffixed tokens to be flagged")
	}
}

func TestIsHallucinationDominantCharacter(t *testing.T) {
	if !IsHallucination("aaaaaaaaaa") {
		t.Fatalf("expected dominant-character text length>=10 to be flagged")
	}
	if IsHallucination("aaaaaaaaa") { // length 9, below the >=10 threshold
		t.Fatalf("expected length-9 text to not trigger rule (iv)")
	}
}

func TestIsHallucinationLongLowVariety(t *testing.T) {
	text := ""
	for i := 0; i < 60; i++ {
		text += "ab"
	}
	if !IsHallucination(text) {
		t.Fatalf("expected length>=50 text with <=3 unique chars to be flagged")
	}
}

func TestIsLowEnergyHallucination(t *testing.T) {
	if !IsLowEnergyHallucination(0.001, 0, 10, 0.005) {
		t.Fatalf("expected low RMS with long text to be flagged")
	}
	if IsLowEnergyHallucination(0.001, 0, 2, 0.005) {
		t.Fatalf("expected short text to survive low-RMS check")
	}
	if !IsLowEnergyHallucination(1, 0.8, 10, 0.005) {
		t.Fatalf("expected high no-speech-prob with text len>5 to be flagged")
	}
}

func TestIsFillerCaseInsensitive(t *testing.T) {
	fillers := []string{"uh", "um"}
	if !IsFiller("  UM  ", fillers) {
		t.Fatalf("expected case-insensitive filler match")
	}
	if IsFiller("hello", fillers) {
		t.Fatalf("expected non-filler text to pass")
	}
}
