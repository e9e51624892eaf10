package vault

import (
	"os"
	"path/filepath"
	"testing"
)

// TestReplaceLine_PreservesOtherLines tests that only the target line
// changes, byte for byte.
func TestReplaceLine_PreservesOtherLines(t *testing.T) {
	vault := t.TempDir()
	path := writeVaultFile(t, vault, "daily.md",
		"# Daily\n\nSome prose.\n- [ ] old task\nMore prose.\n")

	if err := ReplaceLine(path, 4, "- [x] new task", DefaultFileTimeout); err != nil {
		t.Fatalf("ReplaceLine() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	want := "# Daily\n\nSome prose.\n- [x] new task\nMore prose.\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

// TestReplaceLine_KeepsIndentation tests that a nested task keeps its
// original indent.
func TestReplaceLine_KeepsIndentation(t *testing.T) {
	vault := t.TempDir()
	path := writeVaultFile(t, vault, "nested.md", "- parent\n    - [ ] child\n")

	if err := ReplaceLine(path, 2, "- [x] child", DefaultFileTimeout); err != nil {
		t.Fatalf("ReplaceLine() failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	want := "- parent\n    - [x] child\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

// TestReplaceLine_OutOfRange tests that a stale line number is an error
// and leaves the file untouched.
func TestReplaceLine_OutOfRange(t *testing.T) {
	vault := t.TempDir()
	content := "- [ ] only line\n"
	path := writeVaultFile(t, vault, "short.md", content)

	if err := ReplaceLine(path, 99, "- [x] gone", DefaultFileTimeout); err == nil {
		t.Error("ReplaceLine() succeeded for an out-of-range line")
	}

	data, _ := os.ReadFile(path)
	if string(data) != content {
		t.Errorf("file changed: %q", data)
	}
}

// TestAppendLines_CreatesFile tests creation including the parent dir.
func TestAppendLines_CreatesFile(t *testing.T) {
	vault := t.TempDir()
	path := filepath.Join(vault, "00_Inbox", "Exported Tasks.md")

	lines := []string{"## Inbox", "", "- [ ] exported"}
	if err := AppendLines(path, lines, DefaultFileTimeout); err != nil {
		t.Fatalf("AppendLines() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	want := "## Inbox\n\n- [ ] exported\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

// TestAppendLines_AppendsToExisting tests the newline seam between old
// and new content.
func TestAppendLines_AppendsToExisting(t *testing.T) {
	vault := t.TempDir()
	path := writeVaultFile(t, vault, "export.md", "existing text")

	if err := AppendLines(path, []string{"- [ ] new"}, DefaultFileTimeout); err != nil {
		t.Fatalf("AppendLines() failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	want := "existing text\n- [ ] new\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}
