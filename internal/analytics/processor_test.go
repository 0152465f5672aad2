package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snipr/internal/domain"
	"snipr/internal/repository/memory"
	"snipr/internal/service"
	"snipr/pkg/useragent"
)

func newTestProcessor(t *testing.T, cfg Config) (*Processor, *memory.MemStorage) {
	t.Helper()
	log := zap.NewNop()
	storage := memory.New()

	parser, err := useragent.NewParser("", log)
	require.NoError(t, err)

	clicks := service.NewClickService(storage, parser, log)
	return NewProcessor(clicks, log, cfg), storage
}

func seedLink(t *testing.T, storage *memory.MemStorage, code string) *domain.Link {
	t.Helper()
	link := &domain.Link{
		Code:     code,
		Target:   "https://example.com/t",
		IsActive: true,
	}
	require.NoError(t, storage.CreateLink(context.Background(), link))
	return link
}

func waitForClicks(t *testing.T, storage *memory.MemStorage, code string, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		link, err := storage.GetLink(context.Background(), code)
		require.NoError(t, err)
		if link.ClickCount >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d clicks on %q", want, code)
}

func TestProcessor_RecordsSubmittedClicks(t *testing.T) {
	proc, storage := newTestProcessor(t, DefaultConfig())
	seedLink(t, storage, "abc123")

	require.NoError(t, proc.Start())
	defer proc.Stop()

	for i := 0; i < 20; i++ {
		err := proc.Submit(&Job{
			Code:    "abc123",
			Request: service.RequestContext{ClickedAt: time.Now().UTC()},
		})
		require.NoError(t, err)
	}

	waitForClicks(t, storage, "abc123", 20)
}

func TestProcessor_SubmitBeforeStart(t *testing.T) {
	proc, _ := newTestProcessor(t, DefaultConfig())

	err := proc.Submit(&Job{Code: "abc123"})
	assert.Error(t, err)
}

func TestProcessor_DoubleStart(t *testing.T) {
	proc, _ := newTestProcessor(t, DefaultConfig())

	require.NoError(t, proc.Start())
	assert.Error(t, proc.Start())
	require.NoError(t, proc.Stop())
	assert.Error(t, proc.Stop())
}

func TestProcessor_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 0 // nothing drains the queue
	cfg.BufferSize = 2
	proc, storage := newTestProcessor(t, cfg)
	seedLink(t, storage, "abc123")

	require.NoError(t, proc.Start())

	job := &Job{Code: "abc123", Request: service.RequestContext{ClickedAt: time.Now().UTC()}}
	require.NoError(t, proc.Submit(job))
	require.NoError(t, proc.Submit(job))

	// Third submission must fail immediately rather than block.
	done := make(chan error, 1)
	go func() { done <- proc.Submit(job) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	require.NoError(t, proc.Stop())
}

func TestProcessor_StatsShape(t *testing.T) {
	proc, _ := newTestProcessor(t, DefaultConfig())

	stats := proc.Stats()
	assert.Equal(t, false, stats["started"])
	assert.Equal(t, 1000, stats["queue_capacity"])
}
