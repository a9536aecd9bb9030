//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/executor/httpexec"
	"github.com/minisource/jobscheduler/internal/handler"
	"github.com/minisource/jobscheduler/internal/jobstore/memstore"
	"github.com/minisource/jobscheduler/internal/models"
	"github.com/minisource/jobscheduler/internal/router"
	"github.com/minisource/jobscheduler/internal/service"
)

// newTestApp wires the real router/handler/service stack against a
// running scheduler (memstore + httpexec), exactly what cmd/main.go
// assembles in production, minus the GORM-backed execution/history
// handlers (those need Postgres and are not exercised here).
func newTestApp(t *testing.T) (*fiber.App, *core.Scheduler, func()) {
	t.Helper()

	sched := core.NewScheduler()
	require.NoError(t, sched.AddJobStore(core.DefaultAlias, memstore.New()))
	require.NoError(t, sched.AddExecutor(core.DefaultAlias, httpexec.New(httpexec.Config{}, nil)))
	require.NoError(t, sched.Start(context.Background()))

	jobService := service.NewJobService(sched, core.DefaultAlias)

	app := fiber.New()
	router.SetupRouter(app, &router.Handlers{
		Job:    handler.NewJobHandler(jobService),
		Health: handler.NewHealthHandler(nil, sched),
	})

	cleanup := func() {
		_ = sched.Shutdown(context.Background(), true)
	}
	return app, sched, cleanup
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, out any) handler.Response {
	t.Helper()
	var envelope handler.Response
	envelope.Data = out
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func TestHealthEndpoint(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetJob(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	var callbackHit = make(chan struct{}, 1)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		select {
		case callbackHit <- struct{}{}:
		default:
		}
	}))
	defer target.Close()

	createReq := models.CreateJobRequest{
		Name:     "daily-report",
		Type:     models.JobTypeOneTime,
		Schedule: time.Now().Add(time.Second).Format(time.RFC3339),
		Endpoint: target.URL,
	}

	resp := doJSON(t, app, http.MethodPost, "/api/v1/jobs", createReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Job
	env := decodeResponse(t, resp, &created)
	require.True(t, env.Success)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.JobTypeOneTime, created.Type)

	getResp := doJSON(t, app, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	select {
	case <-callbackHit:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot job never fired its HTTP callback")
	}
}

func TestListJobsFiltersByType(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	for _, jobType := range []models.JobType{models.JobTypeInterval, models.JobTypeInterval, models.JobTypeCron} {
		schedule := "60"
		if jobType == models.JobTypeCron {
			schedule = "0 9 * * *"
		}
		resp := doJSON(t, app, http.MethodPost, "/api/v1/jobs", models.CreateJobRequest{
			Name:     "job-" + string(jobType),
			Type:     jobType,
			Schedule: schedule,
			Endpoint: "http://example.invalid/webhook",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, app, http.MethodGet, "/api/v1/jobs?type=interval", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jobs []models.Job
	env := decodeResponse(t, resp, &jobs)
	require.True(t, env.Success)
	assert.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, models.JobTypeInterval, j.Type)
	}
}

func TestPauseAndResumeJob(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/jobs", models.CreateJobRequest{
		Name:     "heartbeat",
		Type:     models.JobTypeInterval,
		Schedule: "60",
		Endpoint: "http://example.invalid/webhook",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Job
	decodeResponse(t, resp, &created)

	pauseResp := doJSON(t, app, http.MethodPost, "/api/v1/jobs/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, pauseResp.StatusCode)
	var paused models.Job
	env := decodeResponse(t, pauseResp, &paused)
	require.True(t, env.Success)
	assert.Equal(t, models.JobStatusPaused, paused.Status)

	resumeResp := doJSON(t, app, http.MethodPost, "/api/v1/jobs/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, resumeResp.StatusCode)
	var resumed models.Job
	env = decodeResponse(t, resumeResp, &resumed)
	require.True(t, env.Success)
	assert.Equal(t, models.JobStatusActive, resumed.Status)
}

func TestDeleteJobIsGoneAfter(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/jobs", models.CreateJobRequest{
		Name:     "one-off",
		Type:     models.JobTypeInterval,
		Schedule: "60",
		Endpoint: "http://example.invalid/webhook",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Job
	decodeResponse(t, resp, &created)

	delResp := doJSON(t, app, http.MethodDelete, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp := doJSON(t, app, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestInvalidScheduleRejected(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/jobs", models.CreateJobRequest{
		Name:     "bad-cron",
		Type:     models.JobTypeCron,
		Schedule: "not a cron expression",
		Endpoint: "http://example.invalid/webhook",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
