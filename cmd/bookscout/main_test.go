package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookscout/internal/book"
	"bookscout/internal/discovery"
	"bookscout/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	google     *testsupport.CatalogServer
	library    *testsupport.CatalogServer
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	testsupport.ClearEnv(t)

	google := testsupport.NewCatalogServer(t, map[string]string{
		"/volumes":    testsupport.GoogleVolumes,
		"/volumes/g1": `{"id":"g1","volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"publisher":"Chilton","description":"<p>Spice <b>must</b> flow.</p>"}}`,
	})
	library := testsupport.NewCatalogServer(t, map[string]string{
		"/search.json": testsupport.OpenLibrarySearch,
	})

	cfg := testsupport.NewConfig(t,
		testsupport.WithGoogleBooks(google.URL),
		testsupport.WithOpenLibrary(library.URL),
	)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	testsupport.WriteConfig(t, configPath, cfg)

	return &cliTestEnv{configPath: configPath, google: google, library: library}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	fullArgs := args
	if configPath != "" {
		fullArgs = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(fullArgs)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestSearchCommandMergesCatalogs(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"search", "dune"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "Dune")
	requireContains(t, out, "Frank Herbert")
	requireContains(t, out, "combined")
	if env.google.Calls("") != 1 || env.library.Calls("") != 1 {
		t.Fatalf("expected one call per catalog, got google=%d openlibrary=%d", env.google.Calls(""), env.library.Calls(""))
	}
}

func TestSearchCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "search", "dune", "--max", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var results book.SearchResults
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(results.Books) != 1 {
		t.Fatalf("expected the shared ISBN to collapse into one book, got %d", len(results.Books))
	}
	if results.Books[0].Source != book.SourceGoogle {
		t.Fatalf("expected the richer Google record to win, got %s", results.Books[0].Source)
	}
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"search"}, env.configPath); err == nil {
		t.Fatal("expected an error without a query")
	}
	if _, _, err := runCLI(t, []string{"search", "   "}, env.configPath); err == nil {
		t.Fatal("expected an error for a blank query")
	}
}

func TestShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"show", "google-g1"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Title:       Dune")
	requireContains(t, out, "Publisher:   Chilton")
	requireContains(t, out, "Spice must flow.")

	if _, _, err := runCLI(t, []string{"show", "g1", "--source", "amazon"}, env.configPath); err == nil {
		t.Fatal("expected unknown source error")
	}
	if _, _, err := runCLI(t, []string{"show", "google-missing"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestDiscoverWithoutModelFallsBackToSearch(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "discover", "desert", "planet", "epics"}, env.configPath)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	var result discovery.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if result.Mode != discovery.ModeSearch || result.FallbackReason != "recommendations unavailable" {
		t.Fatalf("unexpected mode %q reason %q", result.Mode, result.FallbackReason)
	}
	if len(result.Books) == 0 {
		t.Fatal("expected plain search results")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Search strategy: merged")
	requireContains(t, out, "google")
	requireContains(t, out, "openlibrary")
	requireContains(t, out, "Discovery:       no")
}

func TestStatusCheckReportsFailingCatalog(t *testing.T) {
	env := setupCLITestEnv(t)
	env.library.FailWith("/search.json", http.StatusServiceUnavailable)

	out, _, err := runCLI(t, []string{"status", "--check"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 readiness check(s) failed") {
		t.Fatalf("expected one failed check, got %v", err)
	}
	requireContains(t, out, "Readiness:")
	requireContains(t, out, "FAIL Open Library")
	requireContains(t, out, "service_unavailable")
}

func TestCacheClearCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 0 cache entries from memory")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Recommendations: disabled")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[search]\nprimary = \"amazon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"status"}, path)
	if err == nil || !strings.Contains(err.Error(), "search.primary") {
		t.Fatalf("expected search.primary validation error, got %v", err)
	}
}
