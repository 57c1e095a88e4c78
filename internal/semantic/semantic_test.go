package semantic

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewClientEmptyCommand(t *testing.T) {
	if c := NewClient("", time.Second, testLogger()); c != nil {
		t.Error("empty command should disable the client")
	}
}

func TestMissingBinaryIsUnavailable(t *testing.T) {
	c := NewClient("/nonexistent/mb-semantic", time.Second, testLogger())
	_, err := c.Search(context.Background(), "jailbreak", "hello", 0.5)
	if err == nil {
		t.Fatal("expected error")
	}
	if !isUnavailable(err) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestTimeoutKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sleep")
	}
	c := NewClient("sleep", 50*time.Millisecond, testLogger())
	start := time.Now()
	_, err := c.run(context.Background(), "", "5")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !isUnavailable(err) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("process was not killed at the timeout")
	}
}

func TestSearchParsesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on shell script collaborator")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-semantic")
	body := "#!/bin/sh\necho '[{\"score\":0.9,\"document_id\":\"owner-email\",\"snippet\":\"operator@example.com\"},{\"score\":0.2,\"document_id\":\"weak\",\"snippet\":\"x\"}]'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	c := NewClient(script, time.Second, testLogger())
	results, err := c.Search(context.Background(), "sensitive-tom", "reach me at operator@example.com", 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (below-floor hit dropped)", len(results))
	}
	if results[0].DocumentID != "owner-email" || results[0].Score != 0.9 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestUnparseableOutputIsUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on shell script collaborator")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-semantic")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'not json'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := NewClient(script, time.Second, testLogger())
	_, err := c.Search(context.Background(), "jailbreak", "hello", 0.5)
	if !isUnavailable(err) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestWriteCollectionDocsSync(t *testing.T) {
	dir := t.TempDir()
	docs := map[string]string{
		"owner-email": "operator@example.com",
		"home/addr":   "12 Example Lane", // slash must not escape the dir
	}
	if err := WriteCollectionDocs(dir, docs); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "owner-email.txt")); err != nil {
		t.Error("owner-email.txt missing")
	}
	if _, err := os.Stat(filepath.Join(dir, "home_addr.txt")); err != nil {
		t.Error("sanitized doc name missing")
	}

	// Removing an entry removes its document.
	delete(docs, "owner-email")
	if err := WriteCollectionDocs(dir, docs); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "owner-email.txt")); !os.IsNotExist(err) {
		t.Error("stale doc should be removed")
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
