package usecase

import "errors"

var (
	errActorMissing    = errors.New("actor is required")
	errExporterMissing = errors.New("journal exporter is not configured")
)
