// compose.go implements "ctdeploy compose", which writes the Compose file
// for the analysis service from the current configuration.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/compose"
	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

type composeFlags struct {
	force   bool
	print   bool
	port    int
	noBuild bool
}

// NewComposeCommand creates the "compose" cobra command.
func NewComposeCommand() *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Generate the Compose file for the service",
		Long: `Generate docker-compose.yml for the analysis service: published port,
STREAMLIT_* environment, bind mounts for output/ and logs/, health check and
run labels.

An existing file is kept unless --force is given.

Examples:
  ctdeploy compose
  ctdeploy compose --force --port 8600
  ctdeploy compose --print`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&flags.print, "print", false, "Print the file instead of writing it")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Host port (default from config)")
	cmd.Flags().BoolVar(&flags.noBuild, "no-build", false, "Omit the build section and use the image only")

	return cmd
}

func runCompose(flags *composeFlags) error {
	s, err := newSession(func(c *config.Config) {
		if flags.port != 0 {
			c.Port = flags.port
		}
	}, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	spec := compose.SpecFromConfig(s.cfg)
	spec.Build = !flags.noBuild

	data, err := compose.Generate(spec)
	if err != nil {
		return err
	}

	if flags.print {
		_, err := stdout.Write(data)
		return err
	}

	path := s.cfg.ComposePath()
	if err := compose.Write(path, data, flags.force); err != nil {
		if errors.Is(err, compose.ErrExists) {
			return model.WrapCLIError(model.ExitInvalidInput,
				fmt.Sprintf("%s already exists; use --force to overwrite", path), nil)
		}
		return err
	}
	s.log.Info().Str("path", path).Msg("compose file written")

	if IsJSONOutput() {
		return printJSON(map[string]string{"path": path, "project": spec.Project, "service": spec.Service})
	}
	fmt.Fprintf(stdout, "%s Wrote %s\n", color.GreenString("✓"), path)
	return nil
}

// ensureComposeFile writes the Compose file when none exists yet, so that
// "up" works on a fresh checkout.
func ensureComposeFile(s *session) error {
	path := s.cfg.ComposePath()
	data, err := compose.Generate(compose.SpecFromConfig(s.cfg))
	if err != nil {
		return err
	}
	err = compose.Write(path, data, false)
	if errors.Is(err, compose.ErrExists) {
		return checkComposePort(s, path)
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("path", path).Msg("compose file generated")
	return nil
}

// checkComposePort validates an existing file against the configuration.
// A file without the configured service is rejected, since "up" would start
// something other than the analysis service. A file that publishes a
// different port only warns: the port check and health URL follow the
// configuration, so the operator should regenerate it.
func checkComposePort(s *session, path string) error {
	f, err := compose.Load(path)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid compose file", err)
	}

	if _, ok := f.Services[s.cfg.Service]; !ok {
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("%s has no service %q (services: %s); regenerate it with ctdeploy compose --force",
				path, s.cfg.Service, strings.Join(f.ServiceNames(), ", ")))
	}

	ports := f.HostPorts(s.cfg.Service)
	for _, p := range ports {
		if p == s.cfg.Port {
			return nil
		}
	}
	s.log.Warn().Ints("compose_ports", ports).Int("port", s.cfg.Port).Str("service", s.cfg.Service).
		Msg("compose file does not publish the configured port; regenerate with ctdeploy compose --force")
	return nil
}
