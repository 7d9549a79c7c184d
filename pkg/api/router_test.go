package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/pkg/api/handlers"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
	"github.com/marmos91/dittoblk/pkg/store/extent/memory"
)

const testSectorSize = 512

// newTestServer registers a removable floppy (fd0) and a fixed disk (hd0)
// of 64 sectors each and serves the router over httptest.
func newTestServer(t *testing.T) (*httptest.Server, *disk.Registry) {
	t.Helper()

	reg := disk.NewRegistry(disk.RegistryConfig{Verify: true})
	for _, o := range []ramdisk.Options{
		{Class: driver.ClassFloppy, Removable: true, SectorSize: testSectorSize, Sectors: 64},
		{Class: driver.ClassHard, SectorSize: testSectorSize, Sectors: 64},
	} {
		rd, err := ramdisk.New(o)
		require.NoError(t, err)
		_, err = reg.Register(context.Background(), rd, disk.Options{})
		require.NoError(t, err)
	}

	stores := []handlers.NamedStore{{Name: "mem", Type: "memory", Store: memory.New()}}
	srv := httptest.NewServer(NewRouter(reg, stores))
	t.Cleanup(srv.Close)
	return srv, reg
}

func doRequest(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	return doRequest(t, method, url, "application/json", r)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[handlers.Response](t, resp).Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/health/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[handlers.Response](t, resp)
	data := ready.Data.(map[string]any)
	assert.EqualValues(t, 2, data["disks"])
	assert.EqualValues(t, 1, data["stores"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/health/stores", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Metrics are off unless the registry was initialized.
	resp = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReadinessWithoutRegistry(t *testing.T) {
	srv := httptest.NewServer(NewRouter(nil, nil))
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAndDescribe(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	infos := decode[[]disk.Info](t, resp)
	require.Len(t, infos, 2)
	assert.Equal(t, "fd0", infos[0].Name)
	assert.Equal(t, driver.ClassFloppy, infos[0].Class)
	assert.True(t, infos[0].Removable)
	assert.Equal(t, "hd0", infos[1].Name)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/hd0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[disk.Info](t, resp)
	assert.Equal(t, uint64(64), info.Sectors)
	assert.Equal(t, uint32(testSectorSize), info.SectorSize)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/zz9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, handlers.ContentTypeProblemJSON, resp.Header.Get("Content-Type"))
}

func TestSectorRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	data := bytes.Repeat([]byte{0xA5}, 2*testSectorSize)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/sectors?start=2",
		"application/octet-stream", bytes.NewReader(data))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/disks/hd0/sectors?start=2&count=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/hd0/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[disk.Stats](t, resp)
	assert.Equal(t, uint64(1), stats.Reads)
	assert.Equal(t, uint64(1), stats.Writes)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1), decode[disk.Stats](t, resp).Writes)
}

func TestSectorRequestValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
		status int
	}{
		{"zero count", http.MethodGet, "/api/v1/disks/hd0/sectors?count=0", nil, http.StatusBadRequest},
		{"huge count", http.MethodGet, "/api/v1/disks/hd0/sectors?count=100000", nil, http.StatusBadRequest},
		{"bad start", http.MethodGet, "/api/v1/disks/hd0/sectors?start=x", nil, http.StatusBadRequest},
		{"past end", http.MethodGet, "/api/v1/disks/hd0/sectors?start=63&count=2", nil, http.StatusBadRequest},
		{"partial sector", http.MethodPut, "/api/v1/disks/hd0/sectors", make([]byte, 100), http.StatusBadRequest},
		{"empty body", http.MethodPut, "/api/v1/disks/hd0/sectors", nil, http.StatusBadRequest},
		{"unknown disk", http.MethodGet, "/api/v1/disks/sd7/sectors", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, tt.method, srv.URL+tt.path, "application/octet-stream", bytes.NewReader(tt.body))
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestFlags(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/flags",
		map[string]any{"flags": "readonly", "on": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fr := decode[handlers.FlagsResponse](t, resp)
	assert.Equal(t, disk.FlagReadOnly, fr.Flags)

	resp = doRequest(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/sectors",
		"application/octet-stream", bytes.NewReader(make([]byte, testSectorSize)))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/flags",
		map[string]any{"flags": "readonly", "on": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/hd0/flags", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, disk.Flags(0), decode[handlers.FlagsResponse](t, resp).Flags)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/flags",
		map[string]any{"flags": "motoron", "on": true})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/flags",
		map[string]any{"flags": "turbo", "on": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncInvalidateErase(t *testing.T) {
	srv, reg := newTestServer(t)
	require.NoError(t, reg.WriteSectors(context.Background(), "hd0", 0, 4,
		bytes.Repeat([]byte{0xFF}, 4*testSectorSize)))

	for _, path := range []string{"/api/v1/disks/hd0/sync", "/api/v1/sync", "/api/v1/disks/hd0/invalidate"} {
		resp := doJSON(t, http.MethodPost, srv.URL+path, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/disks/hd0/erase",
		handlers.EraseRequest{Start: 0, Count: 4, Passes: 2})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := reg.ReadSectors(context.Background(), "hd0", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4*testSectorSize), got)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/disks/hd0/erase",
		handlers.EraseRequest{Start: 60, Count: 8})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, passes := range []int{-1, disk.MaxErasePasses + 1} {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/disks/hd0/erase",
			handlers.EraseRequest{Start: 0, Count: 4, Passes: passes})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "passes %d", passes)
	}
}

func TestDoorAndMedia(t *testing.T) {
	srv, _ := newTestServer(t)
	open, closed, locked := true, false, true

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/door", handlers.DoorRequest{Open: &open})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/fd0/door", handlers.DoorRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/fd0/door", handlers.DoorRequest{Locked: &locked})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/fd0/door", handlers.DoorRequest{Open: &open})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/disks/fd0/door",
		handlers.DoorRequest{Open: &open, Locked: &closed})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/fd0/media", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	media := decode[handlers.MediaResponse](t, resp)
	assert.False(t, media.Present)
	assert.True(t, media.Changed)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/hd0/media", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	media = decode[handlers.MediaResponse](t, resp)
	assert.True(t, media.Present)
	assert.False(t, media.Changed)
}

func TestVolumesAndRemove(t *testing.T) {
	srv, _ := newTestServer(t)

	req := handlers.VolumeRequest{Name: "boot", Parent: "hd0", Start: 8, Count: 8}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/volumes", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/volumes", req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/volumes",
		handlers.VolumeRequest{Name: "big", Parent: "hd0", Start: 60, Count: 8})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/volumes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vols := decode[[]disk.Volume](t, resp)
	require.Len(t, vols, 1)
	assert.Equal(t, "hd0", vols[0].Parent)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/disks/boot/sectors?start=8", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/disks/hd0", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/disks/boot", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/disks/hd0/flags", "application/json",
		strings.NewReader("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
