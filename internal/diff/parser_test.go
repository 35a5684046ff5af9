package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"busrisk/internal/errors"
)

func TestParse_Empty(t *testing.T) {
	events, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestParse_RenameOnly(t *testing.T) {
	diff := `diff --git a/old.go b/new.go
similarity index 100%
rename from old.go
rename to new.go
`
	events, err := Parse(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events for a pure rename, got %v", events)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want []Event
	}{
		{
			name: "new file",
			diff: `diff --git a/new.go b/new.go
new file mode 100644
index 0000000..1234567
--- /dev/null
+++ b/new.go
@@ -0,0 +1,3 @@
+package main
+
+func hello() {}
`,
			want: []Event{
				NewAdd(1, "package main"),
				NewAdd(2, ""),
				NewAdd(3, "func hello() {}"),
			},
		},
		{
			name: "change between context lines",
			diff: `@@ -1,3 +1,3 @@
 a
-b
+B
 c
`,
			want: []Event{NewChange(2, "B")},
		},
		{
			name: "more old than new lines removes at the same slot",
			diff: `@@ -4,5 +4,3 @@
 ctx
-one
-two
-three
+ONE
 tail
`,
			want: []Event{
				NewChange(5, "ONE"),
				NewRemove(6),
				NewRemove(6),
			},
		},
		{
			name: "more new than old lines appends adds",
			diff: `@@ -1,2 +1,4 @@
 first
-second
+second!
+third
+fourth
`,
			want: []Event{
				NewChange(2, "second!"),
				NewAdd(3, "third"),
				NewAdd(4, "fourth"),
			},
		},
		{
			name: "two groups in one hunk",
			diff: `@@ -1,5 +1,5 @@
-a
+A
 b
 c
+new
 d
-e
`,
			want: []Event{
				NewChange(1, "A"),
				NewAdd(4, "new"),
				NewRemove(6),
			},
		},
		{
			name: "multiple hunks use their own offsets",
			diff: `@@ -1,2 +1,2 @@
-x
+X
 y
@@ -20,2 +20,3 @@ func tail() {
 p
+q
 r
`,
			want: []Event{
				NewChange(1, "X"),
				NewAdd(21, "q"),
			},
		},
		{
			name: "file emptied",
			diff: `@@ -1,2 +0,0 @@
-a
-b
`,
			want: []Event{NewRemove(1), NewRemove(1)},
		},
		{
			name: "header without counts",
			diff: `@@ -3 +3 @@
-old
+new
`,
			want: []Event{NewChange(3, "new")},
		},
		{
			name: "no newline marker is skipped",
			diff: `@@ -1,2 +1,2 @@
 keep
-last
\ No newline at end of file
+last
`,
			want: []Event{NewChange(2, "last")},
		},
		{
			name: "git patch with two hunks",
			diff: `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,3 @@
 package main
-var x = 1
+var x = 2

@@ -10,2 +10,3 @@ func main() {
 run()
-}
\ No newline at end of file
+stop()
+}
\ No newline at end of file
`,
			want: []Event{
				NewChange(2, "var x = 2"),
				NewChange(11, "stop()"),
				NewAdd(12, "}"),
			},
		},
		{
			name: "following file header does not leak into the hunk",
			diff: `@@ -1 +1 @@
-a
+b
diff --git a/other.go b/other.go
--- a/other.go
+++ b/other.go
`,
			want: []Event{NewChange(1, "b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.diff)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_BadHeader(t *testing.T) {
	tests := []struct {
		name string
		diff string
	}{
		{"non-numeric offset", "@@ -a,1 +b,2 @@\n+x\n"},
		{"missing closing marker", "@@ -1,1 +1,1\n+x\n"},
		{"combined diff header", "@@@ -1,2 -1,2 +1,3 @@@\n+x\n"},
		{"new-file offset below one", "@@ -1,1 +0,1 @@\n-a\n+b\n"},
		{"bad header inside a patch", "diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -z +1 @@\n+x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.diff)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, errors.ParseError) {
				t.Errorf("expected PARSE_ERROR, got %v", err)
			}
		})
	}
}

func TestEventKind_String(t *testing.T) {
	if Add.String() != "add" || Change.String() != "change" || Remove.String() != "remove" {
		t.Error("unexpected kind names")
	}
	if got := NewRemove(3).String(); got != "remove(3)" {
		t.Errorf("String() = %q", got)
	}
	if got := NewAdd(1, "x").LineText(); got != "x" {
		t.Errorf("LineText() = %q", got)
	}
}
