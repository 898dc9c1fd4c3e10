package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/observability"
)

const defaultDocumentMIME = "application/pdf"

var (
	analyzeAsk      string
	analyzeBookmark bool
	xrefBookmark    bool
)

// readDocument loads path as an inline document. The MIME type follows the
// extension and falls back to PDF.
func readDocument(path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("read document: %w", err)
	}
	mimeType := defaultDocumentMIME
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mimeType, _, _ = strings.Cut(byExt, ";")
	}
	return core.Document{Name: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Audit a case document",
	Long: `Analyze a case document for its summary, key entities, risks and
recommended actions. --ask follows up with a question about the analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		analysis, err := sess.svc.AnalyzeDocument(cmd.Context(), doc)
		if err != nil {
			return err
		}

		if analyzeBookmark {
			if err := sess.svc.SaveDocumentBookmark(cmd.Context(), analysis); err != nil {
				return fmt.Errorf("save bookmark: %w", err)
			}
			observability.CLILogger.Info("Bookmarked analysis", zap.String("file", analysis.FileName))
		}

		if err := writeArtifact(cmd, doc.Name+"-analysis", analysis); err != nil {
			return err
		}

		if question := strings.TrimSpace(analyzeAsk); question != "" {
			answer, err := sess.svc.AskFollowUp(cmd.Context(), analysis, question)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nQ: %s\nA: %s\n", question, answer)
		}
		return nil
	},
}

var xrefCmd = &cobra.Command{
	Use:   "xref <document-a> <document-b>",
	Short: "Cross-reference two documents for contradictions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := readDocument(args[0])
		if err != nil {
			return err
		}
		b, err := readDocument(args[1])
		if err != nil {
			return err
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		result, err := sess.svc.CrossReference(cmd.Context(), a, b)
		if err != nil {
			return err
		}

		if xrefBookmark {
			if err := sess.svc.SaveCrossReferenceBookmark(cmd.Context(), result); err != nil {
				return fmt.Errorf("save bookmark: %w", err)
			}
			observability.CLILogger.Info("Bookmarked cross-reference",
				zap.String("file_a", result.FileAName),
				zap.String("file_b", result.FileBName))
		}

		return writeArtifact(cmd, a.Name+"-vs-"+b.Name, result)
	},
}

var narrativeCmd = &cobra.Command{
	Use:   "narrative <file>",
	Short: "Map the people, events and evidence in a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		result, err := sess.svc.GenerateNarrativeMap(cmd.Context(), doc)
		if err != nil {
			return err
		}
		if dangling := result.DanglingLinks(); len(dangling) > 0 {
			observability.CLILogger.Warn("Narrative map links to unknown entities", zap.Int("links", len(dangling)))
		}
		return writeArtifact(cmd, doc.Name+"-narrative", result)
	},
}

var judgeCmd = &cobra.Command{
	Use:   "judge <name...>",
	Short: "Retrieve a judicial dossier",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		detail, err := sess.svc.JudgeDetails(cmd.Context(), name)
		if err != nil {
			return err
		}
		return writeArtifact(cmd, "judge-"+name, detail)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, xrefCmd, narrativeCmd, judgeCmd)

	analyzeCmd.Flags().StringVar(&analyzeAsk, "ask", "", "ask a follow-up question about the analysis")
	analyzeCmd.Flags().BoolVar(&analyzeBookmark, "bookmark", false, "bookmark the analysis")
	xrefCmd.Flags().BoolVar(&xrefBookmark, "bookmark", false, "bookmark the cross-reference")

	for _, c := range []*cobra.Command{analyzeCmd, xrefCmd, narrativeCmd, judgeCmd} {
		addOutputFlags(c)
	}
}
