package convert

import (
	"context"
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	conv := New()

	args := conv.Args("dslim/bert-base-NER", "token-classification", "/tmp/out")
	want := []string{"-m", "optimum.exporters.onnx", "--model", "dslim/bert-base-NER", "--task", "token-classification", "/tmp/out"}
	if len(args) != len(want) {
		t.Fatalf("Expected %v, got %v", want, args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("Arg %d: expected %s, got %s", i, want[i], args[i])
		}
	}
}

func TestArgsNoTask(t *testing.T) {
	conv := New()

	args := conv.Args("some/repo", "", "/tmp/out")
	for _, a := range args {
		if a == "--task" {
			t.Error("Expected no --task flag when task is empty")
		}
	}
	if args[len(args)-1] != "/tmp/out" {
		t.Errorf("Expected output dir last, got %s", args[len(args)-1])
	}
}

func TestCheckMissingInterpreter(t *testing.T) {
	conv := New()
	conv.Python = "definitely-not-a-real-python-binary"

	err := conv.Check(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing interpreter")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected a not-found error, got: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"one\ntwo\nthree", 2, "two | three"},
		{"only", 5, "only"},
		{"  \na\n  ", 3, "a"},
	}

	for _, tt := range tests {
		if got := lastLines(tt.in, tt.n); got != tt.want {
			t.Errorf("lastLines(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("alpha\nbeta"); got != "alpha" {
		t.Errorf("Expected 'alpha', got %q", got)
	}
	if got := firstLine("  single  "); got != "single" {
		t.Errorf("Expected 'single', got %q", got)
	}
}
