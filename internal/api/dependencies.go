package api

import (
	"time"

	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/db"
	"skyhook/flightline/internal/db/repositories"
	"skyhook/flightline/internal/metrics"
	"skyhook/flightline/internal/providers"
	"skyhook/flightline/internal/services"
	"skyhook/flightline/internal/workers"
)

type Repositories struct {
	Flight   *repositories.FlightRepository
	Template *repositories.ChecklistTemplateRepository
}

type Services struct {
	Cache     *common.CacheService
	User      *services.UserService
	Template  *services.ChecklistTemplateService
	Run       *services.ChecklistRunService
	Flight    *services.FlightService
	Import    *services.AutoImportService
	Provider  providers.TrackDataProvider
	SignLimit common.AttemptLimiter
}

type Dependencies struct {
	Repo     *Repositories
	Services *Services
	Metrics  *metrics.MetricsRegistry
}

func InitDependencies(metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {

	repos := &Repositories{
		Flight:   repositories.NewFlightRepository(db.PgDB),
		Template: repositories.NewChecklistTemplateRepository(db.PgDB),
	}

	cacheSvc := common.NewCacheService(1800, 600)

	// Failed signature attempts lock out after 5 tries in 15 minutes.
	// Redis-backed when available so the counter survives restarts.
	var signLimiter common.AttemptLimiter
	if redisClient, err := common.NewRedisClient(); err == nil {
		signLimiter = common.NewRedisAttemptLimiter(redisClient, "SIGN_ATTEMPTS_", 5, 15*time.Minute)
	} else {
		signLimiter = common.NewMemoryAttemptLimiter(5, 15*time.Minute)
	}

	provider := providers.NewADSBProvider()

	userSvc := services.NewUserService(db.PgDB)
	templateSvc := services.NewChecklistTemplateService(db.PgDB)
	flightSvc := services.NewFlightService(db.PgDB)

	importSvc := services.NewAutoImportService(
		db.PgDB,
		provider,
		cacheSvc,
		metricsReg,
		services.NewAutoImportConfigFromEnv(),
	)

	runSvc := services.NewChecklistRunService(
		db.PgDB,
		userSvc,
		templateSvc,
		signLimiter,
		workers.QueueDispatcher{},
	)

	svcs := &Services{
		Cache:     cacheSvc,
		User:      userSvc,
		Template:  templateSvc,
		Run:       runSvc,
		Flight:    flightSvc,
		Import:    importSvc,
		Provider:  provider,
		SignLimit: signLimiter,
	}

	return &Dependencies{
		Repo:     repos,
		Services: svcs,
		Metrics:  metricsReg,
	}, nil
}
