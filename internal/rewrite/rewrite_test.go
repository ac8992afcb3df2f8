package rewrite

import "testing"

func TestBuffer_SingleInsertion(t *testing.T) {
	b := NewBuffer([]byte("abcdef"))
	b.InsertBefore(3, "XYZ")
	if got := string(b.Apply()); got != "abcXYZdef" {
		t.Errorf("Apply = %q", got)
	}
}

func TestBuffer_SameOffsetKeepsInsertionOrder(t *testing.T) {
	// Insertions at one statement start must come out in call order; this
	// is what keeps nested-access recorders in AST-visit order.
	b := NewBuffer([]byte("stmt;"))
	b.InsertBefore(0, "first;")
	b.InsertBefore(0, "second;")
	if got := string(b.Apply()); got != "first;second;stmt;" {
		t.Errorf("Apply = %q", got)
	}
}

func TestBuffer_UnsortedOffsets(t *testing.T) {
	b := NewBuffer([]byte("0123456789"))
	b.InsertBefore(8, "<h>")
	b.InsertBefore(2, "<l>")
	b.Append("<end>")
	b.InsertBefore(5, "<m>")
	if got := string(b.Apply()); got != "01<l>234<m>567<h>89<end>" {
		t.Errorf("Apply = %q", got)
	}
}

func TestBuffer_ClampsOutOfRange(t *testing.T) {
	b := NewBuffer([]byte("ab"))
	b.InsertBefore(-5, "X")
	b.InsertBefore(99, "Y")
	if got := string(b.Apply()); got != "XabY" {
		t.Errorf("Apply = %q", got)
	}
}

func TestBuffer_EmptyTextIgnored(t *testing.T) {
	b := NewBuffer([]byte("ab"))
	b.InsertBefore(1, "")
	if b.Count() != 0 {
		t.Errorf("empty insertion recorded")
	}
	if got := string(b.Apply()); got != "ab" {
		t.Errorf("Apply = %q", got)
	}
}

func TestBuffer_SourceUntouchedWithoutInsertions(t *testing.T) {
	src := "int main() { return 0; }\n"
	b := NewBuffer([]byte(src))
	if got := string(b.Apply()); got != src {
		t.Errorf("Apply without insertions changed the source")
	}
}
