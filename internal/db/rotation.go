package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/clinicdex/adcore/internal/models"
)

// SelectAndFeature atomically picks up to size eligible listings, replaces
// the current featured set with them, and records the batch with its members.
// The whole select-then-write sequence runs in one transaction with
// FOR UPDATE SKIP LOCKED on the candidate rows, so concurrent rotation
// triggers can never pull the same listing into two batches.
//
// Fairness: candidates are ordered least-recently-featured first (never
// featured sorts ahead of everything), with a random shuffle among ties.
func (p *Postgres) SelectAndFeature(ctx context.Context, batch models.RotationBatch, size int) ([]int64, error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rotation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM listings
         WHERE active
         ORDER BY last_featured_at ASC NULLS FIRST, random()
         LIMIT $1
         FOR UPDATE SKIP LOCKED`, size)
	if err != nil {
		return nil, fmt.Errorf("select rotation candidates: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close candidates: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidates rows error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE listings SET featured = FALSE WHERE featured`); err != nil {
		return nil, fmt.Errorf("clear featured set: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET featured = TRUE, last_featured_at = $1 WHERE id = ANY($2)`,
		batch.FeaturedAt, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("mark featured: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rotation_batches (id, featured_at, batch_size, notification_campaign_id) VALUES ($1,$2,$3,$4)`,
		batch.ID, batch.FeaturedAt, len(ids), batch.NotificationCampaignID); err != nil {
		return nil, fmt.Errorf("insert rotation batch: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rotation_batch_members (batch_id, listing_id) VALUES ($1,$2)`,
			batch.ID, id); err != nil {
			return nil, fmt.Errorf("insert batch member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rotation tx: %w", err)
	}
	return ids, nil
}
