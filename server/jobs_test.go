package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/queue"
)

func TestJobs(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	defer q.Close()
	srv := httptest.NewServer(JobsHandler(q))
	defer srv.Close()

	resp := post(t, srv.URL+"/jobs", `{"latitude":38.6568,"longitude":-8.8935}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created struct {
		ID     string `json:"id"`
		Status int    `json:"status"`
		State  string `json:"state"`
	}
	decode(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "pending", created.State)
	assert.Equal(t, 1, q.Len())

	// a worker picks it up and completes it
	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	job.Status = queue.StatusCompleted
	job.Report = &detect.Report{Band: 1, Results: []detect.Result{{Inside: true, Code: "1212"}}}
	require.NoError(t, q.Update(context.Background(), job))

	res, err := http.Get(srv.URL + "/jobs/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got struct {
		State  string         `json:"state"`
		Lat    float64        `json:"latitude"`
		Report *detect.Report `json:"report"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	res.Body.Close()
	assert.Equal(t, "completed", got.State)
	assert.Equal(t, 38.6568, got.Lat)
	require.NotNil(t, got.Report)
	assert.Equal(t, []string{"1212"}, got.Report.Matches())
}

func TestJobsErrors(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	srv := httptest.NewServer(JobsHandler(q))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/jobs/unknown")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	resp := post(t, srv.URL+"/jobs", `{"longitude":-8.9}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, q.Close())
	resp, err = http.Post(srv.URL+"/jobs", "application/json", strings.NewReader(`{"latitude":38,"longitude":-8}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
