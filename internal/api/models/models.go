// Package models holds the request and response shapes of the HTTP API.
package models

import "github.com/smazurov/rtsp2web/internal/logging"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Stream models
type StreamInfo struct {
	Index int    `json:"index" example:"0" doc:"Stream index, stable for the life of the process"`
	Name  string `json:"name" example:"Front door" doc:"Display name from the streams file"`
}

type StreamListData struct {
	Streams []StreamInfo `json:"streams" doc:"Configured streams in index order"`
	FPS     int          `json:"fps" example:"5" doc:"Capture rate, the suggested client poll rate"`
}

type StreamListResponse struct {
	Body StreamListData
}

// StreamStatusData describes the connection state of one stream.
// LastFrameAge is null until the stream decodes its first frame.
type StreamStatusData struct {
	Status       string   `json:"status" example:"connected" doc:"Connection state: connecting, connected, reconnecting, error, cooldown, or idle"`
	Errors       int      `json:"errors" example:"0" doc:"Consecutive decode failures"`
	LastFrameAge *float64 `json:"last_frame_age" example:"0.2" doc:"Seconds since the newest frame, null if none yet"`
}

type StatusResponse struct {
	Body map[string]StreamStatusData
}

// FrameData carries one JPEG frame. Frame is omitted when the stream has
// not produced a frame yet; Status says why.
type FrameData struct {
	Frame  string `json:"frame,omitempty" doc:"Base64-encoded JPEG frame"`
	Status string `json:"status" example:"connected" doc:"Connection state of the stream"`
}

type FrameResponse struct {
	Body FrameData
}

// Log models
type LogsData struct {
	Logs  []logging.LogEntry `json:"logs" doc:"Buffered log entries, oldest first"`
	Count int                `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-08-01T12:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}
