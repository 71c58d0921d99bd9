// Package syncengine drains the offline action queue when connectivity
// returns, replaying each action against the server in insertion order.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/internal/connectivity"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/metrics"
)

// Handler replays one queued action against the server.
type Handler func(ctx context.Context, action models.QueuedAction) error

type queueStore interface {
	ListPending(ctx context.Context, limit int) ([]models.QueuedAction, error)
	Remove(ctx context.Context, id uint64) error
}

// Result summarizes one drain pass.
type Result struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// EngineParams configure the sync engine.
type EngineParams struct {
	Logger  *logger.Logger
	Store   queueStore
	Monitor *connectivity.Monitor
	Metrics *metrics.SyncMetrics
}

// Engine dispatches queued actions to registered handlers. One action's
// failure never blocks the rest of the queue; failed actions stay queued
// for the next pass.
type Engine struct {
	logg    *logger.Logger
	store   queueStore
	monitor *connectivity.Monitor
	metrics *metrics.SyncMetrics

	mtx      sync.RWMutex
	handlers map[enums.ActionType]Handler
}

// NewEngine builds a sync engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("queue store required")
	}
	if params.Monitor == nil {
		return nil, fmt.Errorf("connectivity monitor required")
	}
	return &Engine{
		logg:     params.Logger,
		store:    params.Store,
		monitor:  params.Monitor,
		metrics:  params.Metrics,
		handlers: make(map[enums.ActionType]Handler),
	}, nil
}

// Register binds a handler to an action type, replacing any previous one.
func (e *Engine) Register(actionType enums.ActionType, handler Handler) {
	if handler == nil {
		return
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.handlers[actionType] = handler
}

// RegisterRemote wires the standard replay handlers for a remote client.
func (e *Engine) RegisterRemote(remote *RemoteClient) {
	e.Register(enums.ActionCreateProduct, remote.CreateProduct)
	e.Register(enums.ActionUpdateProduct, remote.UpdateProduct)
	e.Register(enums.ActionCreateTransaction, remote.CreateTransaction)
}

// Sync drains the queue once. It snapshots the pending actions first, so
// anything enqueued while the drain runs waits for the next pass. When the
// device is offline or a drain is already in flight the call returns
// immediately with a zero result.
func (e *Engine) Sync(ctx context.Context, trigger string) (Result, error) {
	if !e.monitor.Online() {
		e.logg.Info(e.logg.WithField(ctx, "trigger", trigger), "device offline; skipping sync")
		return Result{}, nil
	}
	if !e.monitor.TryBeginSync() {
		e.logg.Info(ctx, "sync already in progress; skipping")
		return Result{}, nil
	}
	defer e.monitor.EndSync()

	start := time.Now()
	ctx = e.logg.WithField(ctx, "trigger", trigger)

	snapshot, err := e.store.ListPending(ctx, 0)
	if err != nil {
		return Result{}, err
	}
	if len(snapshot) == 0 {
		return Result{}, nil
	}

	ctx = e.logg.WithField(ctx, "pending", len(snapshot))
	e.logg.Info(ctx, "sync pass starting")

	var result Result
	for _, action := range snapshot {
		if err := e.replay(ctx, action); err != nil {
			result.Failed++
			e.recordFailed(action.ActionType)
			continue
		}
		result.Synced++
		e.recordSynced(action.ActionType)
	}

	e.observeDrain(trigger, time.Since(start))
	ctx = e.logg.WithFields(ctx, map[string]any{
		"synced": result.Synced,
		"failed": result.Failed,
	})
	e.logg.Info(ctx, "sync pass complete")
	return result, nil
}

func (e *Engine) replay(ctx context.Context, action models.QueuedAction) error {
	ctx = e.logg.WithActionID(ctx, action.ID)
	ctx = e.logg.WithField(ctx, "action_type", action.ActionType.String())

	e.mtx.RLock()
	handler, ok := e.handlers[action.ActionType]
	e.mtx.RUnlock()
	if !ok {
		err := fmt.Errorf("no handler for action type %q", action.ActionType)
		e.logg.Warn(ctx, "skipping action with no registered handler")
		return err
	}

	if err := handler(ctx, action); err != nil {
		e.logg.Error(ctx, "action replay failed", err)
		return err
	}

	// Removal after a confirmed replay; a crash between the two leaves the
	// action queued and the server-side idempotency key absorbs the rerun.
	if err := e.store.Remove(ctx, action.ID); err != nil {
		e.logg.Error(ctx, "failed to remove replayed action", err)
		return err
	}

	e.logg.Info(ctx, "action replayed")
	return nil
}

func (e *Engine) recordSynced(actionType enums.ActionType) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncSynced(actionType.String())
}

func (e *Engine) recordFailed(actionType enums.ActionType) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncFailed(actionType.String())
}

func (e *Engine) observeDrain(trigger string, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveDrain(trigger, duration)
}
