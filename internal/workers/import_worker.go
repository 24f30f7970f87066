package workers

import (
	"context"
	"time"

	"skyhook/flightline/internal/logging"
	"skyhook/flightline/internal/services"
)

// ImportRequest asks the worker to run the auto-import pipeline for one
// flight whose post-flight checklist just committed as signed.
type ImportRequest struct {
	FlightID string
}

var ImportQueue = make(chan ImportRequest, 100)

// QueueDispatcher is the production ImportDispatcher: it hands flights to
// the import worker without ever blocking the signing request. A full queue
// drops the dispatch; the flight can still be imported via manual search.
type QueueDispatcher struct{}

// Ensure QueueDispatcher satisfies the dispatch hook
var _ services.ImportDispatcher = (*QueueDispatcher)(nil)

func (QueueDispatcher) Dispatch(flightID string) {
	select {
	case ImportQueue <- ImportRequest{FlightID: flightID}:
	default:
		logging.Warn("import queue full, dropping dispatch", "flight_id", flightID)
	}
}

// ImportWorker drains the queue and runs the orchestrator with its own
// context: the signing transaction is long committed by the time a request
// arrives here, so import failures can never roll it back.
func ImportWorker(importSvc *services.AutoImportService) {
	for req := range ImportQueue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		importSvc.Run(ctx, req.FlightID)
		cancel()
	}
}
