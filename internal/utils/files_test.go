package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := utils.SafeWriteFile(path, []byte("provider: groq\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "provider: groq\n" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"total": 3})
	if err != nil {
		t.Fatalf("PrettyJSON: %v", err)
	}
	if string(b) != "{\n  \"total\": 3\n}" {
		t.Fatalf("unexpected output %q", b)
	}
}
