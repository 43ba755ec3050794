package cmds

import (
	"context"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/coordinator"
	"github.com/nens/brostar-sync/internal/lizard"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/cmd/brostar-sync")

var rootCmd = &cobra.Command{
	Use:   "brostar-sync",
	Short: "Deliver groundwater registrations to BROSTAR and sync the assigned ids back",
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func registryClient(conf *config.Config) (*brostar.Client, error) {
	opts := []brostar.Option{}
	if conf.Poll.Interval > 0 && conf.Poll.Ceiling > 0 {
		opts = append(opts, brostar.WithPollTiming(conf.Poll.Interval, conf.Poll.Ceiling))
	}

	client, err := brostar.NewClient(conf.Brostar.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	client.UseProduction(conf.Brostar.Production)
	return client, nil
}

func assetClient(conf *config.Config) (*lizard.Client, error) {
	return lizard.NewClient(conf.Lizard.APIKey, conf.Lizard.URL)
}

func auditContext(conf *config.Config) audit.Context {
	return audit.Context{
		Organisation:  conf.Delivery.Organisation,
		ProjectNumber: conf.Delivery.ProjectNumber,
	}
}

func newCoordinator(conf *config.Config, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	registry, err := registryClient(conf)
	if err != nil {
		return nil, err
	}
	opts = append([]coordinator.Option{coordinator.WithAuditContext(auditContext(conf))}, opts...)
	return coordinator.New(registry, opts...), nil
}
