package tools

import (
	"context"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgrid/pkg/provider"
	"github.com/NERVsystems/osmgrid/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version      string                `json:"version"`
	Commit       string                `json:"commit,omitempty"`
	BuildDate    string                `json:"build_date,omitempty"`
	GoVersion    string                `json:"go_version,omitempty"`
	VCSRevision  string                `json:"vcs_revision,omitempty"`
	Provider     string                `json:"provider,omitempty"`
	Capabilities provider.Capabilities `json:"capabilities"`
	Providers    []string              `json:"available_providers"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version, build information and active data provider of the osmgrid service"),
	)
}

// HandleGetVersion implements version information retrieval
func (r *Registry) HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := version.Info()
	versionInfo := VersionInfo{
		Version:   info["version"],
		Commit:    info["commit"],
		BuildDate: info["build_date"],
		GoVersion: info["go_version"],
		Providers: provider.Available(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			if setting.Key == "vcs.revision" {
				versionInfo.VCSRevision = setting.Value
			}
		}
	}

	if r.loader != nil {
		p := r.loader.Provider()
		versionInfo.Provider = p.Name()
		versionInfo.Capabilities = p.Capabilities()
	}

	return jsonResult(r.logger, versionInfo), nil
}
