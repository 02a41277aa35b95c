package words

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedLists(t *testing.T) {
	l, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded() error = %v", err)
	}
	for _, w := range []string{"caper", "apple", "crane", "hello"} {
		if !l.IsValidWord(w) {
			t.Errorf("IsValidWord(%q) = false, want true", w)
		}
	}
	if l.IsValidWord("zzzzz") {
		t.Errorf("IsValidWord(%q) = true, want false", "zzzzz")
	}
	if !l.IsAnswer("caper") {
		t.Errorf("IsAnswer(%q) = false, want true", "caper")
	}
	a, g := l.Stats()
	if a == 0 || g < a {
		t.Errorf("Stats() = (%d, %d), want answers > 0 and allowed >= answers", a, g)
	}
}

func TestNewDropsMalformed(t *testing.T) {
	l := New([]string{"Crane", "toolong", "ab1de", " slate "}, []string{"xylyl", "1234"})
	a, g := l.Stats()
	if a != 2 {
		t.Errorf("answers = %d, want 2", a)
	}
	if g != 3 {
		t.Errorf("allowed = %d, want 3", g)
	}
	if !l.IsValidWord("CRANE") {
		t.Errorf("IsValidWord is expected to be case-insensitive")
	}
}

func TestLoadOnlyAllowedFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "allowed.txt")
	if err := os.WriteFile(p, []byte("# comment\ncrane\nslate\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load("", p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !l.IsAnswer("slate") {
		t.Errorf("IsAnswer(slate) = false, want true")
	}
}

func TestDailyWordDeterministic(t *testing.T) {
	l := New([]string{"crane", "slate", "caper", "apple"}, nil)
	first := l.DailyWord("2024-01-01", "salt")
	for i := 0; i < 5; i++ {
		if got := l.DailyWord("2024-01-01", "salt"); got != first {
			t.Fatalf("DailyWord() = %v, want %v", got, first)
		}
	}
	if idx := DailyIndex("2024-01-01", "salt", 0); idx != 0 {
		t.Errorf("DailyIndex(n=0) = %d, want 0", idx)
	}
}

func TestGenerateRandomWordsDistinct(t *testing.T) {
	l := New([]string{"crane", "slate", "caper", "apple"}, nil)
	got, err := l.GenerateRandomWords(4)
	if err != nil {
		t.Fatalf("GenerateRandomWords() error = %v", err)
	}
	seen := map[string]bool{}
	for _, w := range got {
		if seen[w] {
			t.Fatalf("GenerateRandomWords() returned duplicate %q in %v", w, got)
		}
		seen[w] = true
	}

	more, err := l.GenerateRandomWords(6)
	if err != nil {
		t.Fatalf("GenerateRandomWords(6) error = %v", err)
	}
	if len(more) != 6 {
		t.Errorf("len = %d, want 6", len(more))
	}
}
