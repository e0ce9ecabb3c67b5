// Package notionsync mirrors the review queue into a Notion database so
// low-confidence transactions can be triaged there.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/store"
)

const queryPageSize = 100

// Result counts what a sync did or, in dry-run mode, would do.
type Result struct {
	Created  int
	Skipped  int
	Archived int
	Failed   int
}

// SyncReviewQueue creates a Notion page for every review-queue transaction of
// userID not yet present in the database and archives pages whose
// transaction left the queue. Failures on single pages are logged and
// counted; only store and query errors abort the sync.
func SyncReviewQueue(ctx context.Context, repo TransactionLister, notionClient NotionService, notionDBID, userID string, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	needsReview := true
	transactions, err := repo.ListTransactions(ctx, store.TransactionFilter{
		UserID:      userID,
		NeedsReview: &needsReview,
		Limit:       store.ReviewQueueLimit,
	})
	if err != nil {
		return res, fmt.Errorf("SyncReviewQueue: query transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(transactions)).Bool("dry_run", dryRun).Msg("Retrieved review queue")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncReviewQueue: query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	inQueue := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		inQueue[tx.ID] = true
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		if txID != "" && inQueue[txID] {
			existing[txID] = true
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, tx := range transactions {
		if existing[tx.ID] {
			res.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, TransactionToNotionProperties(tx))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Review queue sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database with pagination.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
