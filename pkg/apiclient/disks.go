package apiclient

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// Capabilities lists the primitives a disk's driver implements.
type Capabilities struct {
	Read     bool `json:"read"`
	Write    bool `json:"write"`
	Flush    bool `json:"flush"`
	Motor    bool `json:"motor"`
	Door     bool `json:"door"`
	DoorLock bool `json:"door_lock"`
	Change   bool `json:"change"`
}

// CacheStats describes the sector cache of a disk.
type CacheStats struct {
	Buffers int    `json:"buffers"`
	Dirty   int    `json:"dirty"`
	Size    uint64 `json:"size"`
	MaxSize uint64 `json:"max_size"`
}

// Disk represents a registered physical disk.
type Disk struct {
	Name         string       `json:"name"`
	ID           string       `json:"id"`
	Driver       string       `json:"driver"`
	Class        string       `json:"class"`
	Removable    bool         `json:"removable"`
	SectorSize   uint32       `json:"sector_size"`
	Sectors      uint64       `json:"sectors"`
	Flags        string       `json:"flags"`
	Capabilities Capabilities `json:"capabilities"`
	Cache        CacheStats   `json:"cache"`
	LastAccess   time.Time    `json:"last_access"`
}

// Bytes returns the capacity of the disk.
func (d Disk) Bytes() uint64 {
	return d.Sectors * uint64(d.SectorSize)
}

// DiskStats holds accumulated I/O statistics.
type DiskStats struct {
	Reads     uint64        `json:"reads"`
	ReadTime  time.Duration `json:"read_time_ns"`
	ReadKB    uint64        `json:"read_kb"`
	Writes    uint64        `json:"writes"`
	WriteTime time.Duration `json:"write_time_ns"`
	WriteKB   uint64        `json:"write_kb"`
}

// DiskFlags reports the flags of a disk as a comma separated list.
type DiskFlags struct {
	Name  string `json:"name"`
	Flags string `json:"flags"`
}

// SetFlagsRequest sets (On) or clears user-settable flags.
type SetFlagsRequest struct {
	Flags string `json:"flags"`
	On    bool   `json:"on"`
}

// EraseRequest is the request to overwrite a sector range.
type EraseRequest struct {
	Start  uint64 `json:"start"`
	Count  uint64 `json:"count"`
	Passes int    `json:"passes"`
}

// DoorRequest changes the door state. Nil fields are left alone.
type DoorRequest struct {
	Open   *bool `json:"open,omitempty"`
	Locked *bool `json:"locked,omitempty"`
}

// Media reports the media state of a drive.
type Media struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Changed bool   `json:"changed"`
}

// Volume is a logical volume on a physical disk.
type Volume struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
	Start  uint64 `json:"start"`
	Count  uint64 `json:"count"`
}

// ListDisks returns all registered disks.
func (c *Client) ListDisks() ([]Disk, error) {
	return listResources[Disk](c, "/api/v1/disks")
}

// GetDisk returns a disk by name. Volume names resolve to their parent.
func (c *Client) GetDisk(name string) (*Disk, error) {
	return getResource[Disk](c, resourcePath("/api/v1/disks/%s", name))
}

// RemoveDisk syncs and unregisters a disk.
func (c *Client) RemoveDisk(name string) error {
	return deleteResource(c, resourcePath("/api/v1/disks/%s", name))
}

// DiskStats returns the I/O statistics of one disk, or of all disks together
// when name is empty.
func (c *Client) DiskStats(name string) (*DiskStats, error) {
	if name == "" {
		return getResource[DiskStats](c, "/api/v1/stats")
	}
	return getResource[DiskStats](c, resourcePath("/api/v1/disks/%s/stats", name))
}

// Sync writes back the cache of a disk, or of every disk when name is empty.
func (c *Client) Sync(name string) error {
	if name == "" {
		return c.post("/api/v1/sync", nil, nil)
	}
	return c.post(resourcePath("/api/v1/disks/%s/sync", name), nil, nil)
}

// Invalidate writes back and drops the cache of a disk.
func (c *Client) Invalidate(name string) error {
	return c.post(resourcePath("/api/v1/disks/%s/invalidate", name), nil, nil)
}

// GetFlags returns the flags of a disk.
func (c *Client) GetFlags(name string) (*DiskFlags, error) {
	return getResource[DiskFlags](c, resourcePath("/api/v1/disks/%s/flags", name))
}

// SetFlags sets or clears flags and returns the resulting set.
func (c *Client) SetFlags(name string, req SetFlagsRequest) (*DiskFlags, error) {
	return updateResource[DiskFlags](c, resourcePath("/api/v1/disks/%s/flags", name), req)
}

// Erase overwrites a sector range.
func (c *Client) Erase(name string, req EraseRequest) error {
	return c.post(resourcePath("/api/v1/disks/%s/erase", name), req, nil)
}

// SetDoor opens, closes, locks or unlocks the door of a removable drive.
func (c *Client) SetDoor(name string, req DoorRequest) error {
	return c.put(resourcePath("/api/v1/disks/%s/door", name), req, nil)
}

// Media reports whether a drive holds media and whether it changed.
func (c *Client) Media(name string) (*Media, error) {
	return getResource[Media](c, resourcePath("/api/v1/disks/%s/media", name))
}

// ReadSectors returns count sectors starting at start.
func (c *Client) ReadSectors(name string, start, count uint64) ([]byte, error) {
	path := resourcePath("/api/v1/disks/%s/sectors?start=%d&count=%d", name, start, count)
	return c.send(http.MethodGet, path, "application/octet-stream", "application/octet-stream", nil)
}

// WriteSectors writes data, a whole number of sectors, starting at start.
func (c *Client) WriteSectors(name string, start uint64, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no data to write")
	}
	path := resourcePath("/api/v1/disks/%s/sectors?start=%d", name, start)
	_, err := c.send(http.MethodPut, path, "application/octet-stream", "application/json", bytes.NewReader(data))
	return err
}

// ListVolumes returns all logical volumes.
func (c *Client) ListVolumes() ([]Volume, error) {
	return listResources[Volume](c, "/api/v1/volumes")
}

// CreateVolume defines a logical volume.
func (c *Client) CreateVolume(v Volume) (*Volume, error) {
	return createResource[Volume](c, "/api/v1/volumes", v)
}
