package orm

import (
	"context"
	"time"

	"miniorm/internal/logging"
	"miniorm/internal/relation"
)

// SaveChanges writes every pending insert, update and delete in a single
// transaction, set by set in declaration order. Invalid entities abort the save
// with a *ValidationError before any statement is issued. Any store error rolls
// the whole transaction back and is returned as is; keys generated during the
// failed attempt and foreign keys copied from navigation references are
// restored to their previous values.
func (c *Context) SaveChanges(ctx context.Context) (err error) {
	start := time.Now()
	log := logging.WithOperation(c.logger, "save")
	defer func() { c.metrics.Observe(ctx, "save", err == nil, time.Since(start)) }()

	var undo relation.Undo
	defer func() {
		if err != nil {
			undo.Revert()
		}
	}()

	for _, s := range c.sets {
		if err := relation.SyncForeignKeys(s.source(), c.resolve, &undo); err != nil {
			return err
		}
	}
	if verr := c.validate(); verr != nil {
		log.WarnContext(ctx, "validation failed", "set", verr.Set, "count", verr.Count)
		return verr
	}

	sess, err := c.db.Session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	tx, err := sess.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.ErrorContext(ctx, "rollback failed", "error", rbErr)
			}
		}
	}()

	var total writeCounts
	for _, s := range c.sets {
		if err := relation.SyncForeignKeys(s.source(), c.resolve, &undo); err != nil {
			return err
		}
		setLog := logging.WithSet(log, s.Name(), s.Table())
		n, err := s.persist(ctx, tx, &undo, setLog)
		if err != nil {
			setLog.ErrorContext(ctx, "persist failed", "error", err)
			return err
		}
		c.metrics.Rows(s.Table(), "insert", n.inserted)
		c.metrics.Rows(s.Table(), "update", n.updated)
		c.metrics.Rows(s.Table(), "delete", n.deleted)
		total.inserted += n.inserted
		total.updated += n.updated
		total.deleted += n.deleted
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	undo.Discard()
	for _, s := range c.sets {
		s.accept()
	}
	log.InfoContext(ctx, "saved",
		"inserted", total.inserted,
		"updated", total.updated,
		"deleted", total.deleted,
		"elapsed", time.Since(start))
	return nil
}

// validate runs the predicate over every entity of every set.
func (c *Context) validate() *ValidationError {
	var verr *ValidationError
	for _, s := range c.sets {
		bad := s.invalid(c.validator)
		if len(bad) == 0 {
			continue
		}
		if verr == nil {
			verr = &ValidationError{Set: s.Name()}
		}
		verr.Count += len(bad)
		verr.Entities = append(verr.Entities, bad...)
	}
	return verr
}
