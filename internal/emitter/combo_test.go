package emitter

import "testing"

func TestParseComboBareKeys(t *testing.T) {
	steps, err := ParseCombo("a b")
	if err != nil {
		t.Fatalf("ParseCombo: %v", err)
	}
	want := []ComboStep{
		{"a", true}, {"a", false},
		{"b", true}, {"b", false},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d: got %v, want %v", i, steps[i], want[i])
		}
	}
}

func TestParseComboNesting(t *testing.T) {
	steps, err := ParseCombo("ctrl_l(shift(u))")
	if err != nil {
		t.Fatalf("ParseCombo: %v", err)
	}
	want := []ComboStep{
		{"ctrl_l", true},
		{"shift", true},
		{"u", true}, {"u", false},
		{"shift", false},
		{"ctrl_l", false},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d: got %v, want %v", i, steps[i], want[i])
		}
	}
}

func TestParseComboNormalizesCase(t *testing.T) {
	steps, err := ParseCombo("Ctrl_L(C)")
	if err != nil {
		t.Fatalf("ParseCombo: %v", err)
	}
	if steps[0].Key != "ctrl_l" || steps[1].Key != "c" {
		t.Fatalf("key names should be lowercased, got %v", steps)
	}
}

func TestParseComboErrors(t *testing.T) {
	for _, combo := range []string{")", "(x)", "a(b", "ctrl_l(c"} {
		if _, err := ParseCombo(combo); err == nil {
			t.Errorf("ParseCombo(%q) should fail", combo)
		}
	}
}
