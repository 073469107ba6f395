package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/jobs"
	"github.com/mkuznetsov/finbot/internal/jobs/inmemory"
	"github.com/mkuznetsov/finbot/internal/logger"
)

type capturingPublisher struct {
	jobs []*jobs.ParseStatementJob
}

func (p *capturingPublisher) PublishParseStatement(ctx context.Context, job *jobs.ParseStatementJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestScanSpoolMovesFileBeforePublishing(t *testing.T) {
	dir := t.TempDir()
	doneDir := filepath.Join(dir, "done")
	require.NoError(t, os.MkdirAll(doneDir, 0o755))

	content := []byte("Дата,Сумма,Описание\n2024-11-01,-500,Такси\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "statement.csv"), content, 0o600))

	pub := &capturingPublisher{}
	log := logger.NewWithWriter(os.Stderr)
	scanSpool(context.Background(), log, pub, dir, doneDir, 1)

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]

	// The job must reference the moved path, and that path must hold
	// the file's bytes by the time any worker reads it.
	assert.Equal(t, filepath.Join(doneDir, "statement.csv"), job.Filename)
	got, err := os.ReadFile(job.Filename)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = os.Stat(filepath.Join(dir, "statement.csv"))
	assert.True(t, os.IsNotExist(err))

	// A second pass finds nothing new.
	scanSpool(context.Background(), log, pub, dir, doneDir, 1)
	assert.Len(t, pub.jobs, 1)
}

func TestSpooledJobIsReadableByHandler(t *testing.T) {
	dir := t.TempDir()
	doneDir := filepath.Join(dir, "done")
	require.NoError(t, os.MkdirAll(doneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "statement.csv"), []byte("data"), 0o600))

	queue := inmemory.NewQueue(4, 1, inmemory.NewStore())
	defer queue.Close()

	var handled atomic.Int32
	var readErr atomic.Value
	handler := func(ctx context.Context, job *jobs.ParseStatementJob) error {
		if _, err := os.ReadFile(job.Filename); err != nil {
			readErr.Store(err)
			return err
		}
		handled.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Start(ctx, handler))

	log := logger.NewWithWriter(os.Stderr)
	scanSpool(ctx, log, queue, dir, doneDir, 1)

	deadline := time.Now().Add(5 * time.Second)
	for handled.Load() == 0 && readErr.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	require.Nil(t, readErr.Load())
	assert.Equal(t, int32(1), handled.Load())
}
