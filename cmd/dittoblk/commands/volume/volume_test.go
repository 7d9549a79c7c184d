package volume

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/pkg/api"
	"github.com/marmos91/dittoblk/pkg/apiclient"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	createDisk, createStart, createCount = "", 0, 0

	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&out)
	Cmd.SetArgs(args)
	err := Cmd.Execute()
	return out.String(), err
}

func TestCreateAndList(t *testing.T) {
	reg := disk.NewRegistry(disk.RegistryConfig{})
	rd, err := ramdisk.New(ramdisk.Options{Class: driver.ClassHard, SectorSize: 512, Sectors: 100})
	require.NoError(t, err)
	_, err = reg.Register(context.Background(), rd, disk.Options{})
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(reg, nil))
	t.Cleanup(srv.Close)
	cmdutil.Flags = &cmdutil.GlobalFlags{ServerURL: srv.URL, Output: "json"}

	out, err := run(t, "create", "boot", "--disk", "hd0", "--start", "10", "--count", "20")
	require.NoError(t, err)
	var v apiclient.Volume
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, apiclient.Volume{Name: "boot", Parent: "hd0", Start: 10, Count: 20}, v)

	_, err = run(t, "create", "big", "--disk", "hd0", "--start", "90", "--count", "20")
	assert.Error(t, err)

	_, err = run(t, "create", "boot", "--disk", "hd0", "--count", "1")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsConflict())

	_, err = run(t, "create", "bad name", "--disk", "hd0", "--count", "1")
	assert.ErrorContains(t, err, "invalid volume name")

	out, err = run(t, "list")
	require.NoError(t, err)
	var vols []apiclient.Volume
	require.NoError(t, json.Unmarshal([]byte(out), &vols))
	assert.Len(t, vols, 1)
}
