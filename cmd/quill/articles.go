package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	quill "github.com/awalters/quill"
)

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List and mutate stored articles",
	}
	cmd.AddCommand(articlesListCmd())
	cmd.AddCommand(articlesReadCmd())
	cmd.AddCommand(articlesStarCmd())
	cmd.AddCommand(articlesDeleteCmd())
	return cmd
}

func articlesListCmd() *cobra.Command {
	var (
		accountID   int64
		feedID      string
		unreadOnly  bool
		starredOnly bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			filter := quill.ArticleFilter{FeedID: feedID, Limit: limit}
			if unreadOnly {
				v := true
				filter.Unread = &v
			}
			if starredOnly {
				v := true
				filter.Starred = &v
			}

			articles, err := engine.Articles(accountID, filter)
			if err != nil {
				return fmt.Errorf("failed to list articles: %w", err)
			}
			return formatter().OutputArticleList(articles)
		},
	}

	cmd.Flags().Int64VarP(&accountID, "account", "a", 1, "account id")
	cmd.Flags().StringVar(&feedID, "feed", "", "only articles from this feed id")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread articles")
	cmd.Flags().BoolVar(&starredOnly, "starred", false, "only starred articles")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of articles")
	return cmd
}

// mutateCmd builds the shared shape of read/unread/star/unstar/delete:
// an account flag plus article ids as args.
func mutateCmd(use, short string, run func(engine *quill.Engine, accountID int64, ids []string) error) *cobra.Command {
	var accountID int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()
			return run(engine, accountID, args)
		},
	}
	cmd.Flags().Int64VarP(&accountID, "account", "a", 1, "account id")
	return cmd
}

func articlesReadCmd() *cobra.Command {
	var unread bool
	cmd := mutateCmd("read <article-id>...", "Mark articles read (or unread with --undo)",
		func(engine *quill.Engine, accountID int64, ids []string) error {
			if err := engine.MarkRead(context.Background(), accountID, ids, !unread); err != nil {
				return fmt.Errorf("failed to mark read: %w", err)
			}
			fmt.Printf("Marked %d article(s)\n", len(ids))
			return nil
		})
	cmd.Flags().BoolVar(&unread, "undo", false, "mark unread instead")
	return cmd
}

func articlesStarCmd() *cobra.Command {
	var unstar bool
	cmd := mutateCmd("star <article-id>...", "Star articles (or unstar with --undo)",
		func(engine *quill.Engine, accountID int64, ids []string) error {
			if err := engine.Star(context.Background(), accountID, ids, !unstar); err != nil {
				return fmt.Errorf("failed to star: %w", err)
			}
			fmt.Printf("Starred %d article(s)\n", len(ids))
			return nil
		})
	cmd.Flags().BoolVar(&unstar, "undo", false, "unstar instead")
	return cmd
}

func articlesDeleteCmd() *cobra.Command {
	return mutateCmd("delete <article-id>...", "Delete articles (read ones leave a tombstone)",
		func(engine *quill.Engine, accountID int64, ids []string) error {
			if err := engine.DeleteArticles(accountID, ids); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Printf("Deleted %d article(s)\n", len(ids))
			return nil
		})
}
