package accounts

import (
	"context"
	"fmt"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// DefaultDeleteBatchSize is the number of documents removed per store batch
const DefaultDeleteBatchSize = 500

// Purger removes documents from the store in bounded batches
type Purger interface {
	// CollectionIDs lists every top-level collection
	CollectionIDs(ctx context.Context) ([]string, error)

	// DeleteBatch deletes up to limit documents and returns how many were deleted
	DeleteBatch(ctx context.Context, collection string, limit int) (int, error)
}

// WipeReport summarizes a wipe
type WipeReport struct {
	AuthUsersDeleted int            `json:"authUsersDeleted"`
	Documents        map[string]int `json:"documents"`
}

// WiperConfig configures a Wiper
type WiperConfig struct {
	Directory Directory
	Purger    Purger
	Logger    storefront.Logger

	// PageSize defaults to DefaultPageSize
	PageSize int

	// BatchSize defaults to DefaultDeleteBatchSize
	BatchSize int
}

// Wiper deletes every auth account and then every document in every collection.
// It is irreversible.
type Wiper struct {
	directory Directory
	purger    Purger
	logger    storefront.Logger
	pageSize  int
	batchSize int
}

// NewWiper creates a Wiper
func NewWiper(config WiperConfig) (*Wiper, error) {
	if config.Directory == nil {
		return nil, ErrDirectoryRequired
	}
	if config.Purger == nil {
		return nil, fmt.Errorf("purger is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = &storefront.NoopLogger{}
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultDeleteBatchSize
	}
	return &Wiper{
		directory: config.Directory,
		purger:    config.Purger,
		logger:    logger,
		pageSize:  pageSize,
		batchSize: batchSize,
	}, nil
}

// Run deletes auth users page by page, then drains each collection batch by batch.
// It stops at the first error; the report holds what was deleted until then.
func (w *Wiper) Run(ctx context.Context) (*WipeReport, error) {
	report := &WipeReport{Documents: map[string]int{}}

	if err := w.deleteAuthUsers(ctx, report); err != nil {
		return report, err
	}

	collections, err := w.purger.CollectionIDs(ctx)
	if err != nil {
		return report, err
	}
	for _, collection := range collections {
		w.logger.Info("deleting collection", storefront.Field{Key: "collection", Value: collection})
		if err := w.drain(ctx, collection, report); err != nil {
			return report, err
		}
	}

	w.logger.Info("wipe complete",
		storefront.Field{Key: "auth_users", Value: report.AuthUsersDeleted},
		storefront.Field{Key: "collections", Value: len(report.Documents)})
	return report, nil
}

func (w *Wiper) deleteAuthUsers(ctx context.Context, report *WipeReport) error {
	pageToken := ""
	for {
		users, next, err := w.directory.ListUsers(ctx, w.pageSize, pageToken)
		if err != nil {
			return err
		}
		if len(users) > 0 {
			uids := make([]string, len(users))
			for i, u := range users {
				uids[i] = u.UID
			}
			deleted, err := w.directory.DeleteUsers(ctx, uids)
			report.AuthUsersDeleted += deleted
			if err != nil {
				return err
			}
			w.logger.Info("deleted auth users", storefront.Field{Key: "count", Value: deleted})
		}
		if next == "" {
			return nil
		}
		pageToken = next
	}
}

func (w *Wiper) drain(ctx context.Context, collection string, report *WipeReport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.purger.DeleteBatch(ctx, collection, w.batchSize)
		report.Documents[collection] += n
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
