package workers

import (
	"skyhook/flightline/internal/services"
)

// InitWorkers starts the background workers. Currently just the import
// worker; it runs for the life of the process.
func InitWorkers(importSvc *services.AutoImportService) {
	go ImportWorker(importSvc)
}
