package api

import (
	"time"

	"hlspress/internal/runs"
)

type runView struct {
	ID             string    `json:"id"`
	SourceFilename string    `json:"source_filename"`
	BaseName       string    `json:"base_name"`
	Status         string    `json:"status"`
	ManifestPath   string    `json:"manifest_path,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Jobs           []jobView `json:"jobs,omitempty"`
}

type jobView struct {
	Variant         string  `json:"variant"`
	Resolution      string  `json:"resolution"`
	VideoKbps       int     `json:"video_kbps"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

func newRunView(record *runs.Run, jobs []*runs.Job) runView {
	view := runView{
		ID:             record.ID,
		SourceFilename: record.SourceFilename,
		BaseName:       record.BaseName,
		Status:         string(record.Status),
		ManifestPath:   record.ManifestPath,
		ErrorMessage:   record.ErrorMessage,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	for _, job := range jobs {
		view.Jobs = append(view.Jobs, jobView{
			Variant:         job.Variant,
			Resolution:      job.Resolution,
			VideoKbps:       job.VideoKbps,
			Status:          string(job.Status),
			ProgressPercent: job.ProgressPercent,
			ErrorMessage:    job.ErrorMessage,
		})
	}
	return view
}
