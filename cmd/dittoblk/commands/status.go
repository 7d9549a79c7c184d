package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/output"
)

var statusPidFile string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the dittoblk server.

The PID file is checked first, then the health endpoints of the API server
are queried for uptime, registered disks and extent store health.

Examples:
  # Check status (uses default settings)
  dittoblk status

  # Check a remote server
  dittoblk status --server http://blk01:8080

  # Output as JSON
  dittoblk status -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/dittoblk/dittoblk.pid)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Server    string        `json:"server" yaml:"server"`
	Running   bool          `json:"running" yaml:"running"`
	PID       int           `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy   bool          `json:"healthy" yaml:"healthy"`
	Message   string        `json:"message" yaml:"message"`
	StartedAt string        `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string        `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Disks     int           `json:"disks" yaml:"disks"`
	Volumes   int           `json:"volumes" yaml:"volumes"`
	Stores    []StoreStatus `json:"stores,omitempty" yaml:"stores,omitempty"`
}

// StoreStatus is the health of one extent store.
type StoreStatus struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Status  string `json:"status" yaml:"status"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Latency string `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// Fields renders the status as a FIELD/VALUE table.
func (s ServerStatus) Fields() output.Fields {
	f := output.Fields{}.Add("Server", s.Server).Add("Status", s.Message)
	if s.PID > 0 {
		f = f.Add("PID", strconv.Itoa(s.PID))
	}
	if s.StartedAt != "" {
		f = f.Add("Started", s.StartedAt).Add("Uptime", s.Uptime)
	}
	if s.Healthy {
		f = f.Add("Disks", strconv.Itoa(s.Disks)).Add("Volumes", strconv.Itoa(s.Volumes))
	}
	for _, st := range s.Stores {
		value := fmt.Sprintf("%s (%s, %s)", st.Status, st.Type, st.Latency)
		if st.Error != "" {
			value = fmt.Sprintf("%s (%s): %s", st.Status, st.Type, st.Error)
		}
		f = f.Add("Store "+st.Name, value)
	}
	return f
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := ServerStatus{
		Server:  cmdutil.ServerURL(),
		Message: "Server is not running",
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
		status.Message = "Server process is running but the API is not reachable"
	}

	client := cmdutil.GetClient()

	// Liveness works for both daemon and foreground mode.
	if health, err := client.Health(); err == nil {
		status.Running = true
		status.StartedAt = stringField(health.Data, "started_at")
		status.Uptime = stringField(health.Data, "uptime")
		status.Message = "Server is running"

		if ready, err := client.Ready(); err == nil {
			status.Healthy = true
			status.Message = "Server is running and ready"
			status.Disks = intField(ready.Data, "disks")
			status.Volumes = intField(ready.Data, "volumes")
		} else {
			status.Message = fmt.Sprintf("Server is running but not ready: %v", err)
		}

		stores, err := client.StoreHealth()
		if err != nil {
			status.Healthy = false
			status.Message = fmt.Sprintf("Server is running but a store is unhealthy: %v", err)
		}
		for _, st := range stores {
			status.Stores = append(status.Stores, StoreStatus(st))
		}
	}

	if err := cmdutil.PrintResource(cmd.OutOrStdout(), status, status.Fields()); err != nil {
		return err
	}

	format, _ := cmdutil.GetOutputFormatParsed()
	if format == output.FormatTable && !status.Running {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nStart the server with: dittoblk start")
	}
	return nil
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// intField reads a JSON number, which decodes as float64.
func intField(data map[string]any, key string) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return 0
}
