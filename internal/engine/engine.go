// Package engine orchestrates the synchronization pipeline: it long-polls
// the change-notification queue, applies the download-or-delete protocol per
// event, republishes a downstream notification after each completed update,
// and offers an on-demand full-bucket reconciliation.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/modelsync/internal/artifact"
	"github.com/dmitrijs2005/modelsync/internal/health"
	"github.com/dmitrijs2005/modelsync/internal/logging"
	"github.com/dmitrijs2005/modelsync/internal/notify"
	"github.com/dmitrijs2005/modelsync/internal/queue"
	"github.com/dmitrijs2005/modelsync/internal/store"
)

// ObjectStore is the remote-store surface the engine drives.
type ObjectStore interface {
	NeedsUpdate(ctx context.Context, key, localPath string) bool
	Download(ctx context.Context, key, finalPath string) store.DownloadResult
	ListQualifyingObjects(ctx context.Context) ([]string, error)
}

// QueueConsumer receives and acknowledges change-notification messages.
type QueueConsumer interface {
	Receive(ctx context.Context) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Notifier publishes downstream notifications for completed updates.
type Notifier interface {
	PublishSynced(ctx context.Context, n notify.SyncedNotification) error
}

type Engine struct {
	store     ObjectStore
	queue     QueueConsumer
	notifier  Notifier // nil disables downstream notifications
	validator *artifact.Validator
	tracker   *health.Tracker
	logger    logging.Logger

	baseDir      string
	idlePause    time.Duration
	errorBackoff time.Duration
}

func New(store ObjectStore, queue QueueConsumer, notifier Notifier, validator *artifact.Validator,
	tracker *health.Tracker, logger logging.Logger, baseDir string, idlePause, errorBackoff time.Duration) *Engine {
	return &Engine{
		store:        store,
		queue:        queue,
		notifier:     notifier,
		validator:    validator,
		tracker:      tracker,
		logger:       logger,
		baseDir:      baseDir,
		idlePause:    idlePause,
		errorBackoff: errorBackoff,
	}
}

// localPath maps an object key onto the mirrored path under the base
// directory, preserving the key's category/subtype structure.
func (e *Engine) localPath(key string) string {
	return filepath.Join(e.baseDir, filepath.FromSlash(key))
}

// Run drives the poll–process–pause loop until ctx is cancelled. The
// cancellation point is checked once per cycle; a message in flight finishes
// before the loop returns. Receive failures back off for the longer error
// pause instead of crashing the process.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info(ctx, "sync engine started", "base_dir", e.baseDir)

	for {
		if ctx.Err() != nil {
			e.logger.Info(ctx, "sync engine stopped")
			return
		}

		messages, err := e.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.logger.Info(ctx, "sync engine stopped")
				return
			}
			e.logger.Warn(ctx, "receive failed, backing off", "error", err.Error())
			e.pause(ctx, e.errorBackoff)
			continue
		}

		// messages are processed one at a time, in receive order
		for _, msg := range messages {
			if err := e.processMessage(ctx, msg); err != nil {
				// not deleted: the visibility timeout redelivers it
				e.logger.Error(ctx, "message processing failed, leaving for redelivery", "error", err.Error())
				continue
			}
			if err := e.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
				e.logger.Warn(ctx, "message delete failed, expect redelivery", "error", err.Error())
			}
			e.tracker.MarkProcessed()
		}

		e.pause(ctx, e.idlePause)
	}
}

func (e *Engine) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// processMessage handles one queue message. A body that cannot be parsed at
// all is logged and skipped without error: it can never parse differently on
// redelivery, so failing the message would only poison the queue. Any event
// error fails the whole message so it is retried via redelivery.
func (e *Engine) processMessage(ctx context.Context, msg queue.Message) error {
	events, dropped, err := parseEvents(msg.Body)
	if err != nil {
		e.logger.Warn(ctx, "invalid message body, skipping", "error", err.Error())
		return nil
	}
	if dropped > 0 {
		e.logger.Warn(ctx, "dropped malformed event records", "count", dropped)
	}

	for _, ev := range events {
		if err := e.handleEvent(ctx, ev); err != nil {
			return fmt.Errorf("event %s %s: %w", ev.Kind, ev.Key, err)
		}
	}
	return nil
}

// handleEvent applies the download-or-delete protocol for one change event.
func (e *Engine) handleEvent(ctx context.Context, ev ChangeEvent) error {
	if !e.validator.Qualifies(ev.Key) {
		e.logger.Debug(ctx, "skipping non-qualifying key", "key", ev.Key)
		return nil
	}

	localPath := e.localPath(ev.Key)

	switch {
	case ev.IsCreated():
		return e.applyUpdate(ctx, ev.Key, localPath)

	case ev.IsRemoved():
		// local absence is the desired end state either way, so removal
		// failures are logged inside Cleanup and never fail the message
		e.validator.Cleanup(ctx, localPath)
		e.logger.Info(ctx, "artifact removed", "key", ev.Key, "path", localPath)
		return nil

	default:
		e.logger.Debug(ctx, "ignoring event kind", "kind", ev.Kind, "key", ev.Key)
		return nil
	}
}

// applyUpdate downloads the object unless the local copy is already current,
// then publishes the downstream notification.
func (e *Engine) applyUpdate(ctx context.Context, key, localPath string) error {
	if !e.store.NeedsUpdate(ctx, key, localPath) {
		e.logger.Info(ctx, "artifact up to date", "key", key)
		return nil
	}

	res := e.store.Download(ctx, key, localPath)
	if res.Err != nil {
		return res.Err
	}

	e.logger.Info(ctx, "artifact updated",
		"key", key, "path", localPath, "bytes", res.Bytes, "duration", res.Duration.String())

	if e.notifier == nil {
		return nil
	}

	n := notify.SyncedNotification{
		Key:         key,
		LocalPath:   localPath,
		Size:        res.Bytes,
		CompletedAt: time.Now().UTC(),
		DownloadMS:  res.Duration.Milliseconds(),
	}
	if err := e.notifier.PublishSynced(ctx, n); err != nil {
		e.logger.Error(ctx, "downstream notification failed", "key", key, "error", err.Error())
		return err
	}
	return nil
}
