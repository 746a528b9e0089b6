package token

import "testing"

func TestLexIdentifiersAndKeywords(t *testing.T) {
	toks := Lex("micro Counter state count")
	want := []struct {
		kind Kind
		text string
	}{
		{Keyword, "micro"},
		{Identifier, "Counter"},
		{Keyword, "state"},
		{Identifier, "count"},
	}
	if len(toks) != len(want) {
		t.Fatalf("len(toks) = %d, want %d (%v)", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Errorf("toks[%d] = %v, want {%v %q}", i, toks[i], w.kind, w.text)
		}
	}
}

func TestLexNumbers(t *testing.T) {
	toks := Lex("0 2.5 100")
	if toks[0].Kind != IntLiteral || toks[0].Text != "0" {
		t.Errorf("toks[0] = %v", toks[0])
	}
	if toks[1].Kind != FloatLiteral || toks[1].Text != "2.5" {
		t.Errorf("toks[1] = %v", toks[1])
	}
	if toks[2].Kind != IntLiteral || toks[2].Text != "100" {
		t.Errorf("toks[2] = %v", toks[2])
	}
}

func TestLexString(t *testing.T) {
	toks := Lex(`"hello world"`)
	if len(toks) != 1 || toks[0].Kind != StringLiteral || toks[0].Text != "hello world" {
		t.Fatalf("toks = %v", toks)
	}
}

func TestLexOperatorsAndDelimiters(t *testing.T) {
	toks := Lex("count = count + 1;")
	wantTexts := []string{"count", "=", "count", "+", "1", ";"}
	if len(toks) != len(wantTexts) {
		t.Fatalf("len(toks) = %d, want %d (%v)", len(toks), len(wantTexts), toks)
	}
	for i, w := range wantTexts {
		if toks[i].Text != w {
			t.Errorf("toks[%d].Text = %q, want %q", i, toks[i].Text, w)
		}
	}
}

func TestLexMultiCharOperator(t *testing.T) {
	toks := Lex("-> == != <= >=")
	want := []string{"->", "==", "!=", "<=", ">="}
	for i, w := range want {
		if toks[i].Text != w {
			t.Errorf("toks[%d].Text = %q, want %q", i, toks[i].Text, w)
		}
	}
}

func TestLexSkipsComments(t *testing.T) {
	toks := Lex("count // this is a comment\n+ 1")
	want := []string{"count", "+", "1"}
	if len(toks) != len(want) {
		t.Fatalf("len(toks) = %d, want %d (%v)", len(toks), len(want), toks)
	}
}

func TestLexTracksLineAndColumn(t *testing.T) {
	toks := Lex("a\nb")
	if toks[0].Line != 1 || toks[1].Line != 2 {
		t.Errorf("lines = %d, %d, want 1, 2", toks[0].Line, toks[1].Line)
	}
}
