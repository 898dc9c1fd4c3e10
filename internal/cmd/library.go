package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached search results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached search result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		removed := sess.svc.ClearCache(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results\n", removed)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear recent searches",
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent searches, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		return writeArtifact(cmd, "history", sess.svc.History(cmd.Context()))
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget recent searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		sess.svc.ClearHistory(cmd.Context())
		observability.CLILogger.Info("History cleared")
		return nil
	},
}

var bookmarksCmd = &cobra.Command{
	Use:     "bookmarks",
	Aliases: []string{"bm"},
	Short:   "Manage saved searches and document results",
}

var bookmarksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bookmarks, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		return writeArtifact(cmd, "bookmarks", sess.svc.ListBookmarks(cmd.Context()))
	},
}

var bookmarksRemoveCmd = &cobra.Command{
	Use:     "remove <key>",
	Aliases: []string{"rm"},
	Short:   "Remove a bookmark by key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.svc.RemoveBookmark(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove bookmark: %w", err)
		}
		observability.CLILogger.Info("Bookmark removed", zap.String("key", args[0]))
		return nil
	},
}

var bookmarksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every bookmark",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.svc.ClearBookmarks(cmd.Context()); err != nil {
			return fmt.Errorf("clear bookmarks: %w", err)
		}
		observability.CLILogger.Info("Bookmarks cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd, historyCmd, bookmarksCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	bookmarksCmd.AddCommand(bookmarksListCmd, bookmarksRemoveCmd, bookmarksClearCmd)

	addOutputFlags(historyListCmd)
	addOutputFlags(bookmarksListCmd)
}
