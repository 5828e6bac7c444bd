package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var healthTarget string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the health of registered instances",
	Long: `Ask every instance registered in etcd, or a single --target, for its
gRPC health status.

Examples:
  storefront health                        # Every registered instance
  storefront health --target localhost:50051`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context())
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthTarget, "target", "", "host:port of a single instance")
}

func runHealth(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	targets := []string{healthTarget}
	if healthTarget == "" {
		if !cfg.Etcd.Enabled() {
			return fmt.Errorf("no --target given and etcd is not configured")
		}
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			return err
		}
		defer sd.Close()

		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		instances, err := sd.Discover(dctx, cfg.Server.Name)
		cancel()
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			return fmt.Errorf("no %s instances registered", cfg.Server.Name)
		}
		targets = targets[:0]
		for _, inst := range instances {
			targets = append(targets, inst.Addr())
		}
	}

	unhealthy := 0
	for _, target := range targets {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		status, err := grpc.CheckHealth(cctx, target, cfg.Server.Name)
		cancel()
		if err != nil {
			unhealthy++
			fmt.Printf("%s\tERROR\t%v\n", target, err)
			continue
		}
		if status != healthpb.HealthCheckResponse_SERVING {
			unhealthy++
		}
		fmt.Printf("%s\t%s\n", target, status)
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d instances unhealthy", unhealthy, len(targets))
	}
	return nil
}
