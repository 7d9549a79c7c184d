package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/disk"
)

// MaxTransferSectors bounds a single sector read or write through the API.
const MaxTransferSectors = 4096

// DiskHandler serves the disk endpoints on top of a disk.Registry.
type DiskHandler struct {
	registry *disk.Registry
}

// NewDiskHandler creates a new disk handler.
func NewDiskHandler(registry *disk.Registry) *DiskHandler {
	return &DiskHandler{registry: registry}
}

// FlagsRequest sets or clears user-settable flags.
type FlagsRequest struct {
	Flags disk.Flags `json:"flags"`
	On    bool       `json:"on"`
}

// FlagsResponse reports the flags of a disk.
type FlagsResponse struct {
	Name  string     `json:"name"`
	Flags disk.Flags `json:"flags"`
}

// EraseRequest describes a sector range to overwrite.
type EraseRequest struct {
	Start  uint64 `json:"start"`
	Count  uint64 `json:"count"`
	Passes int    `json:"passes"`
}

// DoorRequest opens, closes, locks or unlocks the media door. Unset fields
// are left alone.
type DoorRequest struct {
	Open   *bool `json:"open,omitempty"`
	Locked *bool `json:"locked,omitempty"`
}

// MediaResponse reports the media state of a drive.
type MediaResponse struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Changed bool   `json:"changed"`
}

// VolumeRequest defines a logical volume.
type VolumeRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
	Start  uint64 `json:"start"`
	Count  uint64 `json:"count"`
}

// List handles GET /api/v1/disks.
func (h *DiskHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.registry.List())
}

// Get handles GET /api/v1/disks/{name}.
func (h *DiskHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.registry.Describe(chi.URLParam(r, "name"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, info)
}

// Remove handles DELETE /api/v1/disks/{name}.
func (h *DiskHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// Stats handles GET /api/v1/disks/{name}/stats.
func (h *DiskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(chi.URLParam(r, "name"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, stats)
}

// TotalStats handles GET /api/v1/stats, the sum over every disk.
func (h *DiskHandler) TotalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats("")
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, stats)
}

// Sync handles POST /api/v1/disks/{name}/sync.
func (h *DiskHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Sync(r.Context(), chi.URLParam(r, "name")); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// SyncAll handles POST /api/v1/sync.
func (h *DiskHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.SyncAll(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// Invalidate handles POST /api/v1/disks/{name}/invalidate.
func (h *DiskHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.InvalidateCache(r.Context(), chi.URLParam(r, "name")); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// GetFlags handles GET /api/v1/disks/{name}/flags.
func (h *DiskHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	flags, err := h.registry.Flags(name)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, FlagsResponse{Name: name, Flags: flags})
}

// SetFlags handles PUT /api/v1/disks/{name}/flags. Only readonly and nocache
// may be changed.
func (h *DiskHandler) SetFlags(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req FlagsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Flags&^disk.UserSettable != 0 {
		UnprocessableEntity(w, fmt.Sprintf("flags %s cannot be set", req.Flags&^disk.UserSettable))
		return
	}

	if err := h.registry.SetFlags(r.Context(), name, req.Flags, req.On); err != nil {
		WriteError(w, err)
		return
	}
	flags, err := h.registry.Flags(name)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, FlagsResponse{Name: name, Flags: flags})
}

// Erase handles POST /api/v1/disks/{name}/erase.
func (h *DiskHandler) Erase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req EraseRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Passes == 0 {
		req.Passes = 1
	}
	if req.Passes < 1 || req.Passes > disk.MaxErasePasses {
		BadRequest(w, fmt.Sprintf("passes must be between 1 and %d", disk.MaxErasePasses))
		return
	}

	if err := h.registry.Erase(r.Context(), name, req.Start, req.Count, req.Passes); err != nil {
		WriteError(w, err)
		return
	}
	logger.InfoCtx(r.Context(), "Disk erased via API", logger.Disk(name),
		logger.Sector(req.Start), logger.Count(req.Count), "passes", req.Passes)
	WriteNoContent(w)
}

// ReadSectors handles GET /api/v1/disks/{name}/sectors?start=&count= and
// returns the raw sector data.
func (h *DiskHandler) ReadSectors(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start, ok := queryUint(w, r, "start", 0)
	if !ok {
		return
	}
	count, ok := queryUint(w, r, "count", 1)
	if !ok {
		return
	}
	if count == 0 || count > MaxTransferSectors {
		BadRequest(w, fmt.Sprintf("count must be between 1 and %d", MaxTransferSectors))
		return
	}

	data, err := h.registry.ReadSectors(r.Context(), name, start, count)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WriteSectors handles PUT /api/v1/disks/{name}/sectors?start=. The body is
// raw sector data and must be a whole number of sectors.
func (h *DiskHandler) WriteSectors(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start, ok := queryUint(w, r, "start", 0)
	if !ok {
		return
	}
	info, err := h.registry.Describe(name)
	if err != nil {
		WriteError(w, err)
		return
	}
	sectorSize := int64(info.SectorSize)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxTransferSectors*sectorSize))
	if err != nil {
		BadRequest(w, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(data) == 0 || int64(len(data))%sectorSize != 0 {
		BadRequest(w, fmt.Sprintf("body must be a non-empty multiple of %d bytes", sectorSize))
		return
	}

	count := uint64(int64(len(data)) / sectorSize)
	if err := h.registry.WriteSectors(r.Context(), name, start, count, data); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// Door handles PUT /api/v1/disks/{name}/door.
func (h *DiskHandler) Door(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req DoorRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Open == nil && req.Locked == nil {
		BadRequest(w, "one of open or locked is required")
		return
	}

	if req.Locked != nil && !*req.Locked {
		if err := h.registry.SetDoorLock(r.Context(), name, false); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Open != nil {
		if err := h.registry.SetDoor(r.Context(), name, *req.Open); err != nil {
			WriteError(w, err)
			return
		}
	}
	if req.Locked != nil && *req.Locked {
		if err := h.registry.SetDoorLock(r.Context(), name, true); err != nil {
			WriteError(w, err)
			return
		}
	}
	WriteNoContent(w)
}

// Media handles GET /api/v1/disks/{name}/media.
func (h *DiskHandler) Media(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	changed, err := h.registry.Changed(r.Context(), name)
	if err != nil {
		WriteError(w, err)
		return
	}
	present, err := h.registry.MediaPresent(r.Context(), name)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, MediaResponse{Name: name, Present: present, Changed: changed})
}

// ListVolumes handles GET /api/v1/volumes.
func (h *DiskHandler) ListVolumes(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.registry.Volumes())
}

// CreateVolume handles POST /api/v1/volumes.
func (h *DiskHandler) CreateVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	v, err := h.registry.AddVolume(req.Name, req.Parent, req.Start, req.Count)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONCreated(w, v)
}

// queryUint parses an unsigned query parameter, writing a 400 response on
// failure.
func queryUint(w http.ResponseWriter, r *http.Request, key string, def uint64) (uint64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		BadRequest(w, fmt.Sprintf("invalid %s: %q", key, raw))
		return 0, false
	}
	return v, true
}
