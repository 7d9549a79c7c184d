package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
	"github.com/marmos91/dittoblk/pkg/store/extent/memory"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "dittoblk" {
		t.Errorf("Expected service 'dittoblk', got '%v'", data["service"])
	}
	if _, ok := data["uptime"]; !ok {
		t.Error("Expected uptime in response data")
	}
}

func TestReadiness_NoRegistry_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", resp.Status)
	}
	if resp.Error != "registry not initialized" {
		t.Errorf("Expected error 'registry not initialized', got '%s'", resp.Error)
	}
}

func TestReadiness_WithDisks_ReturnsCounts(t *testing.T) {
	reg := disk.NewRegistry(disk.RegistryConfig{})
	rd, err := ramdisk.New(ramdisk.Options{Class: driver.ClassHard, SectorSize: 512, Sectors: 64})
	if err != nil {
		t.Fatalf("Failed to create ramdisk: %v", err)
	}
	if _, err := reg.Register(context.Background(), rd, disk.Options{}); err != nil {
		t.Fatalf("Failed to register disk: %v", err)
	}
	if _, err := reg.AddVolume("boot", "hd0", 0, 8); err != nil {
		t.Fatalf("Failed to add volume: %v", err)
	}

	handler := NewHealthHandler(reg, nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	data, ok := decodeResponse(t, w).Data.(map[string]any)
	if !ok {
		t.Fatal("Expected Data to be a map")
	}
	if data["disks"] != float64(1) {
		t.Errorf("Expected 1 disk, got %v", data["disks"])
	}
	if data["volumes"] != float64(1) {
		t.Errorf("Expected 1 volume, got %v", data["volumes"])
	}
}

func TestStores_AllHealthy_ReturnsOK(t *testing.T) {
	stores := []NamedStore{
		{Name: "a", Type: "memory", Store: memory.New()},
		{Name: "b", Type: "memory", Store: memory.New()},
	}
	handler := NewHealthHandler(nil, stores)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	results, ok := decodeResponse(t, w).Data.([]any)
	if !ok {
		t.Fatal("Expected Data to be a list")
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 store results, got %d", len(results))
	}
}

func TestStores_ClosedStore_Returns503(t *testing.T) {
	closed := memory.New()
	_ = closed.Close()

	stores := []NamedStore{
		{Name: "ok", Type: "memory", Store: memory.New()},
		{Name: "closed", Type: "memory", Store: closed},
	}
	handler := NewHealthHandler(nil, stores)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", resp.Status)
	}

	results, _ := resp.Data.([]any)
	if len(results) != 2 {
		t.Fatalf("Expected 2 store results, got %d", len(results))
	}
	second, _ := results[1].(map[string]any)
	if second["status"] != "unhealthy" || second["error"] == "" {
		t.Errorf("Expected closed store to be unhealthy with an error, got %v", second)
	}
}
