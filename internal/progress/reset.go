// SPDX-License-Identifier: MIT
package progress

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openestate/resosync/internal/log"
)

// Truncator empties every relational table, sync state included.
type Truncator interface {
	TruncateAll(ctx context.Context) error
}

// BlobWiper purges the environment's whole object-store prefix.
type BlobWiper interface {
	RootPrefix() string
	PurgePrefix(ctx context.Context, prefix string) (int, error)
}

// SearchWiper drops every document from the search index.
type SearchWiper interface {
	DeleteAll() error
}

// Reset wipes all three systems of record in parallel. Each wipe is
// independent and best-effort: a failure in one does not stop the others,
// and the first error is returned so the caller can decide whether to
// proceed. A reset never touches upstream.
func Reset(ctx context.Context, db Truncator, blob BlobWiper, search SearchWiper) error {
	logger := log.WithComponent("reset")
	logger.Warn().Str("event", "reset.start").Msg("full local reset requested")

	var g errgroup.Group
	g.Go(func() error {
		if err := db.TruncateAll(ctx); err != nil {
			logger.Error().Err(err).Msg("relational wipe failed")
			return err
		}
		logger.Info().Msg("relational store truncated")
		return nil
	})
	g.Go(func() error {
		n, err := blob.PurgePrefix(ctx, blob.RootPrefix())
		if err != nil {
			logger.Error().Err(err).Msg("object store wipe failed")
			return err
		}
		logger.Info().Int("objects_deleted", n).Msg("object store purged")
		return nil
	})
	g.Go(func() error {
		if err := search.DeleteAll(); err != nil {
			logger.Error().Err(err).Msg("search index wipe failed")
			return err
		}
		logger.Info().Msg("search index emptied")
		return nil
	})

	err := g.Wait()
	if err == nil {
		logger.Info().Str("event", "reset.done").Msg("full local reset complete")
	}
	return err
}
