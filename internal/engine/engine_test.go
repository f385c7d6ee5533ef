package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/modelsync/internal/artifact"
	"github.com/dmitrijs2005/modelsync/internal/health"
	"github.com/dmitrijs2005/modelsync/internal/logging"
	"github.com/dmitrijs2005/modelsync/internal/notify"
	"github.com/dmitrijs2005/modelsync/internal/queue"
	"github.com/dmitrijs2005/modelsync/internal/store"
)

type fakeStore struct {
	mu            sync.Mutex
	upToDate      map[string]bool
	failKeys      map[string]error
	listKeys      []string
	listErr       error
	downloads     []string
	downloadBytes int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{upToDate: map[string]bool{}, failKeys: map[string]error{}}
}

func (f *fakeStore) NeedsUpdate(ctx context.Context, key, localPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.upToDate[key]
}

func (f *fakeStore) Download(ctx context.Context, key, finalPath string) store.DownloadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKeys[key]; err != nil {
		return store.DownloadResult{Err: err, Duration: time.Millisecond}
	}
	f.downloads = append(f.downloads, key)
	return store.DownloadResult{Bytes: f.downloadBytes, Duration: time.Millisecond}
}

func (f *fakeStore) ListQualifyingObjects(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listKeys, nil
}

type receiveStep struct {
	messages []queue.Message
	err      error
}

type fakeQueue struct {
	mu      sync.Mutex
	steps   []receiveStep
	deleted []string
	// onDrained is invoked when the script is exhausted, typically to
	// cancel the loop's context.
	onDrained func()
}

func (f *fakeQueue) Receive(ctx context.Context) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		if f.onDrained != nil {
			f.onDrained()
		}
		return nil, nil
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.messages, step.err
}

func (f *fakeQueue) Delete(ctx context.Context, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	published  []notify.SyncedNotification
	publishErr error
}

func (f *fakeNotifier) PublishSynced(ctx context.Context, n notify.SyncedNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, n)
	return nil
}

func newTestEngine(t *testing.T, fs *fakeStore, fq *fakeQueue, fn *fakeNotifier) *Engine {
	t.Helper()
	log := logging.Discard()
	var notifier Notifier
	if fn != nil {
		notifier = fn
	}
	return New(fs, fq, notifier, artifact.NewValidator(log),
		health.NewTracker(10*time.Minute), log, t.TempDir(), time.Millisecond, time.Millisecond)
}

func creationBody(key string, size int64) string {
	return fmt.Sprintf(`{"Records":[{"eventName":"ObjectCreated:Put","eventTime":"2026-03-01T12:00:00Z","s3":{"bucket":{"name":"models"},"object":{"key":%q,"size":%d}}}]}`, key, size)
}

func removalBody(key string) string {
	return fmt.Sprintf(`{"Records":[{"eventName":"ObjectRemoved:Delete","eventTime":"2026-03-01T12:00:00Z","s3":{"bucket":{"name":"models"},"object":{"key":%q}}}]}`, key)
}

func TestProcessMessage_CreationDownloadsAndNotifies(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.downloadBytes = 1000
	fn := &fakeNotifier{}
	e := newTestEngine(t, fs, &fakeQueue{}, fn)

	err := e.processMessage(ctx, queue.Message{Body: creationBody("essential/voice/model.bin", 1000)})
	require.NoError(t, err)

	require.Equal(t, []string{"essential/voice/model.bin"}, fs.downloads)
	require.Len(t, fn.published, 1)
	assert.Equal(t, int64(1000), fn.published[0].Size)
	assert.Equal(t, "essential/voice/model.bin", fn.published[0].Key)
	assert.Equal(t, e.localPath("essential/voice/model.bin"), fn.published[0].LocalPath)
}

func TestProcessMessage_UpToDateIsNoop(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.upToDate["essential/voice/model.bin"] = true
	fn := &fakeNotifier{}
	e := newTestEngine(t, fs, &fakeQueue{}, fn)

	err := e.processMessage(ctx, queue.Message{Body: creationBody("essential/voice/model.bin", 1000)})
	require.NoError(t, err)
	assert.Empty(t, fs.downloads)
	assert.Empty(t, fn.published)
}

func TestProcessMessage_NonQualifyingKeySkipped(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	e := newTestEngine(t, fs, &fakeQueue{}, nil)

	err := e.processMessage(ctx, queue.Message{Body: creationBody("essential/voice/archive.zip", 10)})
	require.NoError(t, err)
	assert.Empty(t, fs.downloads)
}

func TestProcessMessage_MalformedSiblingDoesNotFailMessage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	e := newTestEngine(t, fs, &fakeQueue{}, nil)

	body := `{"Records":[
		{"eventName":"ObjectCreated:Put","s3":{"object":{"key":"essential/voice/model.bin","size":10}}},
		{"bogus":true}
	]}`

	err := e.processMessage(ctx, queue.Message{Body: body})
	require.NoError(t, err)
	assert.Equal(t, []string{"essential/voice/model.bin"}, fs.downloads)
}

func TestProcessMessage_InvalidBodySkippedWithoutError(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newFakeStore(), &fakeQueue{}, nil)

	err := e.processMessage(ctx, queue.Message{Body: "not structured data at all"})
	require.NoError(t, err, "an unparseable body can never parse on redelivery, so it must not fail")
}

func TestProcessMessage_DownloadFailureFailsMessage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.failKeys["essential/voice/model.bin"] = errors.New("transfer aborted")
	e := newTestEngine(t, fs, &fakeQueue{}, nil)

	err := e.processMessage(ctx, queue.Message{Body: creationBody("essential/voice/model.bin", 10)})
	require.Error(t, err)
}

func TestProcessMessage_NotifyFailureFailsMessage(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fn := &fakeNotifier{publishErr: errors.New("topic gone")}
	e := newTestEngine(t, fs, &fakeQueue{}, fn)

	err := e.processMessage(ctx, queue.Message{Body: creationBody("essential/voice/model.bin", 10)})
	require.Error(t, err)
}

func TestProcessMessage_RemovalDeletesLocalArtifact(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	e := newTestEngine(t, fs, &fakeQueue{}, nil)

	localPath := e.localPath("essential/voice/model.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0o755))
	require.NoError(t, os.WriteFile(localPath, []byte("old"), 0o644))

	err := e.processMessage(ctx, queue.Message{Body: removalBody("essential/voice/model.bin")})
	require.NoError(t, err)

	_, statErr := os.Stat(localPath)
	assert.True(t, os.IsNotExist(statErr))

	// deleting an already-absent artifact succeeds as well
	err = e.processMessage(ctx, queue.Message{Body: removalBody("essential/voice/model.bin")})
	require.NoError(t, err)
}

func TestProcessMessage_UnknownKindIgnored(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	e := newTestEngine(t, fs, &fakeQueue{}, nil)

	body := `{"Records":[{"eventName":"ObjectRestore:Post","s3":{"object":{"key":"essential/voice/model.bin","size":1}}}]}`

	require.NoError(t, e.processMessage(ctx, queue.Message{Body: body}))
	assert.Empty(t, fs.downloads)
}

func TestRun_ProcessesAndAcknowledges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFakeStore()
	fs.downloadBytes = 5
	fq := &fakeQueue{
		steps: []receiveStep{
			{messages: []queue.Message{
				{Body: creationBody("essential/voice/model.bin", 5), ReceiptHandle: "rh-1"},
				{Body: "garbage", ReceiptHandle: "rh-2"},
			}},
		},
		onDrained: cancel,
	}
	e := newTestEngine(t, fs, fq, nil)

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}

	assert.Equal(t, []string{"essential/voice/model.bin"}, fs.downloads)
	// both messages are acknowledged: the garbage one is skipped, not retried
	assert.ElementsMatch(t, []string{"rh-1", "rh-2"}, fq.deleted)
	assert.True(t, e.tracker.Check())
}

func TestRun_FailedMessageNotAcknowledged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFakeStore()
	fs.failKeys["essential/voice/model.bin"] = errors.New("boom")
	fq := &fakeQueue{
		steps: []receiveStep{
			{messages: []queue.Message{
				{Body: creationBody("essential/voice/model.bin", 5), ReceiptHandle: "rh-1"},
			}},
		},
		onDrained: cancel,
	}
	e := newTestEngine(t, fs, fq, nil)

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}

	assert.Empty(t, fq.deleted, "a failed message is left for visibility-timeout redelivery")
}

func TestRun_ReceiveErrorBacksOffAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFakeStore()
	fs.downloadBytes = 5
	fq := &fakeQueue{
		steps: []receiveStep{
			{err: errors.New("network down")},
			{messages: []queue.Message{
				{Body: creationBody("essential/voice/model.bin", 5), ReceiptHandle: "rh-1"},
			}},
		},
		onDrained: cancel,
	}
	e := newTestEngine(t, fs, fq, nil)

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}

	assert.Equal(t, []string{"essential/voice/model.bin"}, fs.downloads,
		"the loop survives a receive failure and processes the next cycle")
}
