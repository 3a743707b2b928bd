package report

import (
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/repository"
	"github.com/smallbiznis/tunedesk/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report.service",
	fx.Provide(ingest.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewInsights),
)
