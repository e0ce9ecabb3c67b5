package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-companion/internal/backend"
	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/notionsync"
	"github.com/dvloznov/budget-companion/internal/store"
)

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.newContext()
			defer cancel()

			repo, err := backend.OpenRepository(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			cats, err := repo.ListCategories(ctx, a.cfg.UserID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tBUDGET")
			for _, c := range cats {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", c.ID, c.Name, c.Color, c.BudgetLimit)
			}
			return tw.Flush()
		},
	}
}

func newReviewCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List transactions that need manual review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.newContext()
			defer cancel()

			repo, err := backend.OpenRepository(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			needsReview := true
			records, err := repo.ListTransactions(ctx, store.TransactionFilter{
				UserID:      a.cfg.UserID,
				NeedsReview: &needsReview,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tCONFIDENCE\tDESCRIPTION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f\t%s\n", domain.FormatDate(r.Date), r.Amount, r.CategoryLabel(), r.ConfidenceScore, r.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\n%d transaction(s) need review\n", len(records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", store.ReviewQueueLimit, "maximum number of transactions to list")
	return cmd
}

func newSyncNotionCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror the review queue into a Notion database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireNotion(); err != nil {
				return err
			}

			ctx, cancel := a.newContext()
			defer cancel()

			repo, err := backend.OpenRepository(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := notionsync.SyncReviewQueue(ctx, repo, notionsync.NewNotionClient(a.cfg.NotionToken), a.cfg.NotionDBID, a.cfg.UserID, dryRun)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "created=%d skipped=%d archived=%d failed=%d\n", res.Created, res.Skipped, res.Archived, res.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without writing to Notion")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema and seed the default categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.newContext()
			defer cancel()

			repo, err := backend.OpenRepository(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			fmt.Fprintf(a.out, "%s schema is up to date\n", a.cfg.DataBackend)
			return nil
		},
	}
}
