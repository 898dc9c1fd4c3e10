package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/engine"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/extract/extracttest"
	"github.com/courtcopilot/courtcopilot/internal/output"
)

// isolate points config discovery at empty directories, keeps state in
// memory and swaps in gw as the model gateway.
func isolate(t *testing.T, gw *extracttest.Gateway) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(config.EnvPrefix+"DB_DRIVER", "memory")

	original := newGateway
	newGateway = func(ailink.Config, *logging.Logger) (extract.Gateway, func(), error) {
		return gw, func() {}, nil
	}
	t.Cleanup(func() { newGateway = original })
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func searchGateway() *extracttest.Gateway {
	gw := extracttest.New().
		Reply(extract.SlugFollowUps, `{"questions":["Was notice posted?"]}`).
		Reply(extract.SlugIdentifiedJudges, `{"judges":[{"name":"Ana Ruiz"}]}`)
	gw.Chunks = []ailink.Chunk{{Text: "Tenants have "}, {Text: "seven days."}}
	return gw
}

func TestSearchCommand(t *testing.T) {
	t.Run("JSONReport", func(t *testing.T) {
		gw := searchGateway()
		isolate(t, gw)

		stdout, stderr, err := run(t, "search", "-q", "-o", "json", "--jurisdiction", "Denver_District", "eviction", "notice")
		require.NoError(t, err)
		assert.Empty(t, stderr)

		var report output.SearchReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, "eviction notice", report.Request.Query)
		assert.Equal(t, core.JurisdictionDenverDistrict, report.Request.Jurisdiction)
		assert.Equal(t, core.SearchTypeSearch, report.Request.SearchType)
		assert.Equal(t, "Tenants have seven days.", report.Result.Summary)
		assert.Equal(t, []string{"Was notice posted?"}, report.Result.FollowUpQuestions)
		assert.False(t, report.Cached)
	})

	t.Run("StreamsProgress", func(t *testing.T) {
		isolate(t, searchGateway())

		stdout, stderr, err := run(t, "search", "eviction")
		require.NoError(t, err)
		assert.Contains(t, stderr, "Searching...")
		assert.Contains(t, stderr, "Tenants have seven days.")
		assert.Contains(t, stdout, "Tenants have seven days.")
	})

	t.Run("InvalidRequestSkipsGateway", func(t *testing.T) {
		gw := searchGateway()
		isolate(t, gw)

		_, _, err := run(t, "search", "-q", "--list-count", "99", "eviction")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "listCount", verr.Field)
		assert.Zero(t, gw.TotalCalls())
		assert.Equal(t, foundry.ExitFailure, ExitCodeFor(err))
	})

	t.Run("BadFormatSkipsGateway", func(t *testing.T) {
		gw := searchGateway()
		isolate(t, gw)

		_, _, err := run(t, "search", "-o", "yaml", "eviction")
		require.Error(t, err)
		assert.Zero(t, gw.TotalCalls())
	})

	t.Run("GatewayFailure", func(t *testing.T) {
		gw := searchGateway()
		gw.StreamErr = &driver.ProviderError{StatusCode: 503, Message: "overloaded"}
		isolate(t, gw)

		_, _, err := run(t, "search", "-q", "eviction")
		require.Error(t, err)
		assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(err))
	})

	t.Run("OutDir", func(t *testing.T) {
		isolate(t, searchGateway())
		dir := t.TempDir()

		_, stderr, err := run(t, "search", "-q", "-o", "markdown", "--out-dir", dir, "Eviction Notice?")
		require.NoError(t, err)

		path := filepath.Join(dir, "eviction-notice.md")
		assert.Contains(t, stderr, path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Tenants have seven days.")
	})
}

func TestStreamProgress(t *testing.T) {
	var buf bytes.Buffer
	var cached bool
	fn := streamProgress(&buf, &cached)

	fn(engine.Update{State: engine.StateCacheCheck})
	fn(engine.Update{State: engine.StateStreaming, Result: core.SearchResult{Summary: "Ten"}})
	fn(engine.Update{State: engine.StateStreaming, Result: core.SearchResult{Summary: "Tenants"}})
	fn(engine.Update{State: engine.StateAggregating, Stage: "timeline"})
	fn(engine.Update{State: engine.StateDone})

	assert.Equal(t, "Searching...\nTenants\n  ✓ timeline\n", buf.String())
	assert.False(t, cached)

	buf.Reset()
	fn = streamProgress(&buf, &cached)
	fn(engine.Update{State: engine.StateDone, Cached: true})
	assert.True(t, cached)
	assert.Equal(t, "(cached result)\n", buf.String())
}

func TestDocumentCommands(t *testing.T) {
	dir := t.TempDir()
	notice := filepath.Join(dir, "notice.pdf")
	lease := filepath.Join(dir, "lease.txt")
	require.NoError(t, os.WriteFile(notice, []byte("%PDF-1.4 notice"), 0o600))
	require.NoError(t, os.WriteFile(lease, []byte("term: 12 months"), 0o600))

	t.Run("Analyze", func(t *testing.T) {
		gw := extracttest.New().
			Reply(extract.SlugDocumentAnalysis, `{"strategicSummary":"Weak notice.","keyArguments":["Service defect"]}`).
			Reply(extract.SlugDocumentQuestion, "  Yes, on March 1.  ")
		isolate(t, gw)

		stdout, _, err := run(t, "analyze", "-o", "json", "--ask", "Was notice posted?", notice)
		require.NoError(t, err)

		var result core.DocumentAnalysisResult
		require.NoError(t, json.NewDecoder(bytes.NewReader([]byte(stdout))).Decode(&result))
		assert.Equal(t, "notice.pdf", result.FileName)
		assert.Equal(t, "Weak notice.", result.StrategicSummary)
		assert.Contains(t, stdout, "A: Yes, on March 1.")
		require.Len(t, gw.Requests(extract.SlugDocumentAnalysis), 1)
	})

	t.Run("MissingFile", func(t *testing.T) {
		gw := extracttest.New()
		isolate(t, gw)

		_, _, err := run(t, "analyze", filepath.Join(dir, "absent.pdf"))
		require.Error(t, err)
		assert.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(err))
		assert.Zero(t, gw.TotalCalls())
	})

	t.Run("CrossReference", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugCrossReference, `{"contradictions":[{"topic":"Rent","severity":"high"}]}`)
		isolate(t, gw)

		stdout, _, err := run(t, "xref", "-o", "json", notice, lease)
		require.NoError(t, err)

		var result core.CrossReferenceResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.Equal(t, "notice.pdf", result.FileAName)
		assert.Equal(t, "lease.txt", result.FileBName)
	})

	t.Run("NarrativeFallback", func(t *testing.T) {
		gw := extracttest.New().Fail(extract.SlugNarrativeMap, &driver.ProviderError{StatusCode: 500, Message: "boom"})
		isolate(t, gw)

		stdout, _, err := run(t, "narrative", "-o", "json", notice)
		require.NoError(t, err)

		var result core.NarrativeMapResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.Equal(t, core.NarrativeFailureAssessment, result.StrategicAssessment)
		assert.Empty(t, result.Nodes)
	})

	t.Run("Judge", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugJudgeDetails, `{"name":"Ana Ruiz","tendencies":"Strict on notice."}`)
		isolate(t, gw)

		stdout, _, err := run(t, "judge", "-o", "json", "Ana", "Ruiz")
		require.NoError(t, err)

		var detail core.JudgeDetail
		require.NoError(t, json.Unmarshal([]byte(stdout), &detail))
		assert.Equal(t, "Ana Ruiz", detail.Name)
		assert.Equal(t, "Strict on notice.", detail.Tendencies)
	})
}

func TestLibraryCommands(t *testing.T) {
	isolate(t, searchGateway())

	stdout, _, err := run(t, "history", "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", stdout)

	stdout, _, err = run(t, "bookmarks", "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", stdout)

	stdout, _, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 0 cached results\n", stdout)

	_, _, err = run(t, "bookmarks", "remove", "missing")
	require.NoError(t, err)
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"brief.PDF":   "application/pdf",
		"exhibit.png": "image/png",
		"notes.txt":   "text/plain",
		"scan":        defaultDocumentMIME,
	}
	for name, want := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

		doc, err := readDocument(path)
		require.NoError(t, err)
		assert.Equal(t, name, doc.Name)
		assert.Equal(t, want, doc.MIMEType, name)
		assert.Equal(t, []byte("x"), doc.Data)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitCode(0), ExitCodeFor(nil))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(&configError{err: fmt.Errorf("bad yaml")}))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("read: %w", os.ErrNotExist)))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&core.GatewayError{Stage: "search", Err: context.DeadlineExceeded}))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(context.DeadlineExceeded))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(fmt.Errorf("boom")))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "judge-ana-ruiz", sanitizeFilename("Judge Ana Ruiz"))
	assert.Equal(t, "notice.pdf-analysis", sanitizeFilename("notice.pdf-analysis"))
	assert.Equal(t, "output", sanitizeFilename(" ?! "))
}

func TestBuildInitConfig(t *testing.T) {
	var doc struct {
		AILink struct {
			DefaultProvider string `yaml:"default_provider"`
			Providers       map[string]struct {
				Models      map[string]string `yaml:"models"`
				Credentials []struct {
					APIKey string `yaml:"api_key"`
				} `yaml:"credentials"`
			} `yaml:"providers"`
		} `yaml:"ailink"`
	}

	require.NoError(t, yaml.Unmarshal([]byte(buildInitConfig(`k"ey`)), &doc))
	assert.Equal(t, "gemini", doc.AILink.DefaultProvider)
	gemini := doc.AILink.Providers["gemini"]
	assert.Equal(t, "gemini-3-pro-preview", gemini.Models["pro"])
	require.Len(t, gemini.Credentials, 1)
	assert.Equal(t, `k"ey`, gemini.Credentials[0].APIKey)

	require.NoError(t, yaml.Unmarshal([]byte(buildInitConfig("")), &doc))
	assert.Contains(t, buildInitConfig(""), apiKeyEnv)
}

func TestAILinkResolutionHelpers(t *testing.T) {
	cfg := &config.Config{AILink: ailink.Config{
		Routing: map[string]string{"judge-details": "backup"},
		Providers: map[string]ailink.ProviderInstanceConfig{
			"gemini": {Enabled: true},
			"backup": {Enabled: false, Credentials: []ailink.CredentialConfig{{APIKey: "x"}}},
		},
	}}

	source, target := describeAILinkResolution(cfg, "judge-details")
	assert.Equal(t, "routing", source)
	assert.Equal(t, "backup", target)

	source, _ = describeAILinkResolution(cfg, "legal-search")
	assert.Equal(t, "only_enabled_provider", source)

	assert.False(t, isAIBackendConfigured(cfg.AILink))
	cfg.AILink.Providers["gemini"] = ailink.ProviderInstanceConfig{Enabled: true, Credentials: []ailink.CredentialConfig{{APIKey: "k"}}}
	assert.True(t, isAIBackendConfigured(cfg.AILink))
}
