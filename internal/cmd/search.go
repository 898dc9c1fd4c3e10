package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/engine"
	"github.com/courtcopilot/courtcopilot/internal/observability"
	"github.com/courtcopilot/courtcopilot/internal/output"
)

var searchFlags struct {
	searchType   string
	jurisdiction string
	caseType     string
	caseStatus   string
	dateRange    string
	party        string
	caseNumber   string
	site         string
	fileType     string
	listCount    int
	bookmark     bool
	quiet        bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Research a legal question",
	Long: `Run a grounded research query and enrich it with follow-up questions,
related queries, a docket timeline, identified judges, an adversarial
strategy and case telemetry.

The narrative streams to stderr while it is generated; the final report is
written to stdout (or --out / --out-dir). Identical searches within the
cache TTL are answered from the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate output flags before spending a model call.
		if _, err := resolveOutputFormat(cmd); err != nil {
			return err
		}
		if _, _, err := resolveOutputTargets(cmd); err != nil {
			return err
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		req := searchRequestFromFlags(strings.Join(args, " "))
		progress := io.Discard
		if !searchFlags.quiet {
			progress = cmd.ErrOrStderr()
		}

		var cached bool
		result, err := sess.svc.ExecuteSearch(cmd.Context(), req, streamProgress(progress, &cached))
		if err != nil {
			return err
		}

		normalized := req.Normalize()
		if searchFlags.bookmark {
			if err := sess.svc.SaveSearchBookmark(cmd.Context(), normalized, result); err != nil {
				return fmt.Errorf("save bookmark: %w", err)
			}
			observability.CLILogger.Info("Bookmarked search", zap.String("query", normalized.Query))
		}

		return writeArtifact(cmd, normalized.Query, output.SearchReport{
			Request: normalized,
			Result:  result,
			Cached:  cached,
		})
	},
}

func searchRequestFromFlags(query string) core.SearchRequest {
	return core.SearchRequest{
		Query:        query,
		SearchType:   core.SearchType(strings.ToLower(strings.TrimSpace(searchFlags.searchType))),
		ListCount:    searchFlags.listCount,
		DateRange:    core.DateRange(strings.ToLower(strings.TrimSpace(searchFlags.dateRange))),
		SiteRestrict: searchFlags.site,
		FileType:     searchFlags.fileType,
		PartyName:    searchFlags.party,
		CaseStatus:   core.CaseStatus(strings.ToLower(strings.TrimSpace(searchFlags.caseStatus))),
		CaseType:     core.CaseType(strings.ToLower(strings.TrimSpace(searchFlags.caseType))),
		Jurisdiction: core.Jurisdiction(strings.ToLower(strings.TrimSpace(searchFlags.jurisdiction))),
		CaseNumber:   searchFlags.caseNumber,
	}
}

// streamProgress writes summary deltas and settled stages to w as snapshots
// arrive. cached is set when the result came from the cache.
func streamProgress(w io.Writer, cached *bool) func(engine.Update) {
	printed := 0
	return func(u engine.Update) {
		switch u.State {
		case engine.StateCacheCheck:
			fmt.Fprintln(w, "Searching...")
		case engine.StateStreaming:
			if summary := u.Result.Summary; len(summary) > printed {
				fmt.Fprint(w, summary[printed:])
				printed = len(summary)
			}
		case engine.StateAggregating:
			if u.Stage != "" {
				if printed > 0 {
					fmt.Fprintln(w)
					printed = -1
				}
				fmt.Fprintf(w, "  ✓ %s\n", u.Stage)
			}
		case engine.StateDone:
			if u.Cached {
				*cached = true
				fmt.Fprintln(w, "(cached result)")
			} else if printed > 0 {
				fmt.Fprintln(w)
			}
		case engine.StateFailed:
			if printed > 0 {
				fmt.Fprintln(w)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringVarP(&searchFlags.searchType, "type", "t", string(core.SearchTypeSearch), "search type: search, news, academic")
	f.StringVarP(&searchFlags.jurisdiction, "jurisdiction", "j", "", "court: all, denver_district, denver_county, colorado_supreme, colorado_appeals")
	f.StringVar(&searchFlags.caseType, "case-type", "", "case type: all, civil, criminal, family, probate, traffic")
	f.StringVar(&searchFlags.caseStatus, "case-status", "", "case status: all, open, closed")
	f.StringVar(&searchFlags.dateRange, "date-range", "", "source recency: any, day, week, month, year")
	f.StringVar(&searchFlags.party, "party", "", "party name to focus on")
	f.StringVar(&searchFlags.caseNumber, "case-number", "", "docket number to focus on")
	f.StringVar(&searchFlags.site, "site", "", "restrict sources to a site")
	f.StringVar(&searchFlags.fileType, "file-type", "", "restrict sources to a file type")
	f.IntVar(&searchFlags.listCount, "list-count", 0, fmt.Sprintf("number of items to list (%d-%d)", core.MinListCount, core.MaxListCount))
	f.BoolVar(&searchFlags.bookmark, "bookmark", false, "bookmark the result")
	f.BoolVarP(&searchFlags.quiet, "quiet", "q", false, "do not stream progress to stderr")
	addOutputFlags(searchCmd)
}
