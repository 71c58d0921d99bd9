// Package syncqueue persists offline mutations in the agent's local database
// until they can be replayed against the server.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
)

// Store is the durable action queue. Rows are appended on enqueue and only
// removed after a confirmed replay, so a crash mid-sync never loses an action.
type Store struct {
	db *gorm.DB
}

// NewStore builds a queue store bound to the provided DB.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Enqueue appends an action to the queue and mints its client_ref, the key
// the server uses to deduplicate replays. A storage failure surfaces to the
// caller so the UI can tell the user the action was not saved.
func (s *Store) Enqueue(ctx context.Context, actionType enums.ActionType, payload json.RawMessage) (*models.QueuedAction, error) {
	if !actionType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown action type %q", actionType))
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload must be valid JSON")
	}

	action := models.QueuedAction{
		ClientRef:  uuid.NewString(),
		ActionType: actionType,
		Payload:    payload,
	}
	if err := s.db.WithContext(ctx).Create(&action).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "enqueue action")
	}
	return &action, nil
}

// ListPending returns queued actions in insertion order. A limit of zero or
// less returns the whole queue.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.QueuedAction, error) {
	query := s.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.QueuedAction
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list queued actions")
	}
	return rows, nil
}

// Remove deletes an action by ID. Removing an already-removed action is a
// no-op, so a replay confirmed twice cannot fail the drain.
func (s *Store) Remove(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.QueuedAction{}, id)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, res.Error, "remove queued action")
	}
	return nil
}

// Count reports how many actions are waiting for replay.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.QueuedAction{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count queued actions")
	}
	return count, nil
}
