package httpexec_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/executor/httpexec"
)

func TestSubmitExecutesAndReportsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := httpexec.New(httpexec.Config{Workers: 2}, nil)
	results := make(chan core.RunResult, 4)
	require.NoError(t, exec.Start(context.Background(), results))
	defer exec.Shutdown(context.Background(), true)

	job := &core.Job{
		ID:           "job-1",
		CallableRef:  httpexec.Target{Method: http.MethodGet, URL: srv.URL},
		MaxInstances: 1,
	}
	runTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, exec.Submit(core.Run{Job: job, RunTimes: []time.Time{runTime}}))

	select {
	case res := <-results:
		assert.NoError(t, res.Err)
		assert.True(t, res.Done)
		assert.Equal(t, runTime, res.RunTime)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSubmitRejectsWhenMaxInstancesReached(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	exec := httpexec.New(httpexec.Config{Workers: 4}, nil)
	results := make(chan core.RunResult, 4)
	require.NoError(t, exec.Start(context.Background(), results))
	defer exec.Shutdown(context.Background(), false)

	job := &core.Job{
		ID:           "job-1",
		CallableRef:  httpexec.Target{Method: http.MethodGet, URL: srv.URL},
		MaxInstances: 1,
	}
	runTime := time.Now()

	require.NoError(t, exec.Submit(core.Run{Job: job, RunTimes: []time.Time{runTime}}))
	// Give the worker a moment to pick the task up and occupy the slot.
	time.Sleep(50 * time.Millisecond)

	err := exec.Submit(core.Run{Job: job, RunTimes: []time.Time{runTime}})
	assert.ErrorIs(t, err, core.ErrMaxInstancesReached)
}

func TestBatchEmitsOneResultPerRunTimeAndDoneOnLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := httpexec.New(httpexec.Config{Workers: 1}, nil)
	results := make(chan core.RunResult, 4)
	require.NoError(t, exec.Start(context.Background(), results))
	defer exec.Shutdown(context.Background(), true)

	job := &core.Job{
		ID:           "job-1",
		CallableRef:  httpexec.Target{Method: http.MethodGet, URL: srv.URL},
		MaxInstances: 1,
	}
	t1 := time.Now()
	t2 := t1.Add(time.Minute)

	require.NoError(t, exec.Submit(core.Run{Job: job, RunTimes: []time.Time{t1, t2}}))

	first := <-results
	assert.False(t, first.Done)
	second := <-results
	assert.True(t, second.Done)
}
