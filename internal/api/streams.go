package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/rtsp2web/internal/api/models"
	"github.com/smazurov/rtsp2web/internal/stream"
)

// registerStreamRoutes registers the stream listing, status, and frame
// endpoints.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "Get the configured streams and the suggested poll rate",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		infos := s.service.ListStreams()

		apiStreams := make([]models.StreamInfo, len(infos))
		for i, info := range infos {
			apiStreams[i] = models.StreamInfo{Index: info.Index, Name: info.Name}
		}

		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams: apiStreams,
				FPS:     s.options.FPS,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Stream Status",
		Description: "Get the connection state of every stream, keyed by index",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		snaps := s.service.Statuses()
		now := time.Now()

		body := make(map[string]models.StreamStatusData, len(snaps))
		for _, snap := range snaps {
			body[strconv.Itoa(snap.Index)] = snapshotToStatus(snap, now)
		}

		return &models.StatusResponse{Body: body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-frame",
		Method:      http.MethodGet,
		Path:        "/api/frame/{index}",
		Summary:     "Get Frame",
		Description: "Get the freshest cached frame for one stream. The frame field is absent until the stream decodes its first frame. Fetching a frame counts as a read and wakes the stream if it was idled.",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Index int `path:"index" example:"0" doc:"Stream index"`
	}) (*models.FrameResponse, error) {
		frame, snap, err := s.service.GetFrame(input.Index)
		if err != nil {
			if errors.Is(err, stream.ErrInvalidIndex) {
				return nil, huma.Error404NotFound("no such stream", err)
			}
			return nil, huma.Error500InternalServerError("internal server error", err)
		}

		resp := &models.FrameResponse{}
		resp.Body.Status = string(snap.Status)
		if frame != nil {
			resp.Body.Frame = base64.StdEncoding.EncodeToString(frame.Bytes)
		}
		return resp, nil
	})
}

// snapshotToStatus flattens a worker snapshot into the wire shape.
func snapshotToStatus(snap stream.Snapshot, now time.Time) models.StreamStatusData {
	data := models.StreamStatusData{
		Status: string(snap.Status),
		Errors: snap.ConsecutiveErrors,
	}
	if age, ok := snap.LastFrameAge(now); ok {
		seconds := age.Seconds()
		data.LastFrameAge = &seconds
	}
	return data
}
