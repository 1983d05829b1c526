// health.go implements "ctdeploy health", a check of the service's
// readiness endpoint from the host.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/health"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

type healthFlags struct {
	wait    bool
	timeout time.Duration
	port    int
}

// NewHealthCommand creates the "health" cobra command.
func NewHealthCommand() *cobra.Command {
	flags := &healthFlags{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the service's health endpoint",
		Long: `Send a request to http://localhost:<port><health path> and report whether
the service answers. With --wait the endpoint is polled until it answers or
the timeout passes.

Examples:
  ctdeploy health
  ctdeploy health --wait --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.wait, "wait", "w", false, "Poll until healthy")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "How long to wait (default from config)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Host port (default from config)")

	return cmd
}

// healthResult is the output of the health command.
type healthResult struct {
	URL      string `json:"url"`
	Healthy  bool   `json:"healthy"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func runHealth(ctx context.Context, flags *healthFlags) error {
	s, err := newSession(func(c *config.Config) {
		if flags.port != 0 {
			c.Port = flags.port
		}
		if flags.timeout > 0 {
			c.HealthTimeout = flags.timeout
		}
	}, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	checker := health.NewChecker(s.cfg.ServiceURL(), s.cfg.HealthPath)
	defer func() { _ = checker.Close() }()

	res := healthResult{URL: checker.URL(), Attempts: 1}
	if flags.wait {
		var wr *health.Result
		wr, err = checker.Wait(ctx, s.cfg.HealthTimeout, s.cfg.HealthInterval)
		if wr != nil {
			res.Attempts = wr.Attempts
		}
	} else if cerr := checker.Check(ctx); cerr != nil {
		err = model.WrapCLIError(model.ExitHealthCheckFailed, "service is not healthy", cerr)
	}
	res.Healthy = err == nil
	if err != nil {
		res.Error = err.Error()
	}
	s.log.Debug().Str("url", res.URL).Bool("healthy", res.Healthy).Int("attempts", res.Attempts).Msg("health check")

	if IsJSONOutput() {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	} else if res.Healthy {
		fmt.Fprintf(stdout, "%s %s is healthy\n", color.GreenString("✓"), res.URL)
	}
	return err
}
