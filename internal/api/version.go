package api

import (
	"runtime"

	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// VersionInfo is build metadata, usually set through ldflags.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// WithDefaults fills unset fields.
func (v VersionInfo) WithDefaults() VersionInfo {
	if v.Version == "" {
		v.Version = "dev"
	}
	if v.GitCommit == "" {
		v.GitCommit = "unknown"
	}
	if v.BuildDate == "" {
		v.BuildDate = "unknown"
	}
	v.GoVersion = runtime.Version()
	return v
}

// VersionHandler serves the build metadata on GET.
func VersionHandler(info VersionInfo) handler.Handler {
	return endpoint.Get(endpoint.Reply(output.JSON(info.WithDefaults())))
}
