package resources

import (
	"context"
	"encoding/json"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/termfx/pforge/core"
)

// NewToolListResource exposes the live tool listing of a registry.
func NewToolListResource(registry *core.Registry) Resource {
	return Resource{
		Name:         "Registered Tools",
		URITemplate:  "pforge://tools",
		Description:  "Live listing of registered tools and their schemas",
		MimeType:     "application/json",
		Capabilities: []Capability{CapRead, CapList},
		Content: func(_ context.Context, _ map[string]string) (string, error) {
			data, err := json.MarshalIndent(registry.Definitions(), "", "  ")
			if err != nil {
				return "", core.FromSerialization(err)
			}
			return string(data), nil
		},
	}
}

// NewSystemStatusResource reports host and process statistics.
func NewSystemStatusResource() Resource {
	return Resource{
		Name:         "System Status",
		URITemplate:  "system://status",
		Description:  "Host CPU, memory, and runtime statistics",
		MimeType:     "application/json",
		Capabilities: []Capability{CapRead},
		Content: func(ctx context.Context, _ map[string]string) (string, error) {
			status := map[string]any{
				"goroutines": runtime.NumGoroutine(),
				"go_version": runtime.Version(),
				"num_cpu":    runtime.NumCPU(),
			}
			if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
				status["memory_used_percent"] = vm.UsedPercent
				status["memory_total_bytes"] = vm.Total
			}
			if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
				status["logical_cpus"] = counts
			}

			data, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return "", core.FromSerialization(err)
			}
			return string(data), nil
		},
	}
}

// NewReadmeResource serves the project README when present.
func NewReadmeResource() Resource {
	return Resource{
		Name:         "README",
		URITemplate:  "docs://readme",
		Description:  "pforge documentation and usage guide",
		MimeType:     "text/markdown",
		Capabilities: []Capability{CapRead},
		Content: func(_ context.Context, _ map[string]string) (string, error) {
			content, err := os.ReadFile("README.md")
			if err != nil {
				return "# pforge\n\nDeclarative MCP servers from configuration.", nil
			}
			return string(content), nil
		},
	}
}
