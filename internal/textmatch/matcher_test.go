package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello   World  ", "hello world"},
		{"UPPER", "upper"},
		{"a\t\nb", "a b"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatch_Boundaries(t *testing.T) {
	m := NewMatcher([]string{"fuck", "hell", "ass"})

	tests := []struct {
		name  string
		body  string
		term  string
		match bool
	}{
		{"exact word", "hell", "hell", true},
		{"word in sentence", "what the hell is this", "hell", true},
		{"suffix form matches via boundary", "I say fucking hell", "hell", true},
		{"substring inside word no match", "classic", "", false},
		{"substring prefix no match", "hello everyone", "", false},
		{"punctuation boundary", "go to hell!", "hell", true},
		{"case insensitive", "HELL no", "hell", true},
		{"extra whitespace", "  hell   yes ", "hell", true},
		{"clean text", "have a nice day", "", false},
		{"empty body", "", "", false},
		{"unicode neighbour is letter", "héllass", "", false},
		{"unicode boundary respected", "ass… really", "ass", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, ok := m.Match(tt.body)
			if ok != tt.match {
				t.Fatalf("Match(%q) matched=%v, want %v", tt.body, ok, tt.match)
			}
			if ok && term != tt.term {
				t.Errorf("Match(%q) term=%q, want %q", tt.body, term, tt.term)
			}
		})
	}
}

func TestMatch_FirstTermWinsDeterministically(t *testing.T) {
	m := NewMatcher([]string{"fuck", "hell"})

	first, ok := m.Match("I say fucking hell")
	if !ok {
		t.Fatal("expected a match")
	}
	// "fucking" does not match "fuck" at a boundary, so "hell" wins here.
	if first != "hell" {
		t.Fatalf("expected term %q, got %q", "hell", first)
	}
	for i := 0; i < 50; i++ {
		term, ok := m.Match("I say fucking hell")
		if !ok || term != first {
			t.Fatalf("iteration %d: got (%q, %v), want (%q, true)", i, term, ok, first)
		}
	}
}

func TestMatch_ConfiguredOrder(t *testing.T) {
	a := NewMatcher([]string{"hell", "damn"})
	b := NewMatcher([]string{"damn", "hell"})

	body := "damn hell"
	if term, _ := a.Match(body); term != "hell" {
		t.Errorf("matcher a: got %q, want %q", term, "hell")
	}
	if term, _ := b.Match(body); term != "damn" {
		t.Errorf("matcher b: got %q, want %q", term, "damn")
	}
}

func TestMatch_Phrases(t *testing.T) {
	m := NewMatcher([]string{"kill yourself"})

	if _, ok := m.Match("please kill yourself now"); !ok {
		t.Error("phrase in sentence should match")
	}
	if _, ok := m.Match("kill  YOURSELF"); !ok {
		t.Error("phrase should match after whitespace collapse and lowering")
	}
	if _, ok := m.Match("kill yourselves"); ok {
		t.Error("phrase must not match inside a longer word")
	}
}
