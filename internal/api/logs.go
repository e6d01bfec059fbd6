package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/rtsp2web/internal/api/models"
	"github.com/smazurov/rtsp2web/internal/logging"
)

// registerLogRoutes registers the log history endpoint backed by the
// in-memory ring buffer.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Get recent log entries from the in-memory buffer",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"100" minimum:"0" maximum:"1000" doc:"Maximum number of entries, newest kept"`
	}) (*models.LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = buffer.Last(input.Limit)
		}

		return &models.LogsResponse{
			Body: models.LogsData{
				Logs:  entries,
				Count: len(entries),
			},
		}, nil
	})
}
