// bootstrap.go implements "ctdeploy bootstrap".
//
// Bootstrap turns the project directory into a Git repository with all files
// committed. It is idempotent: a second run on an unchanged tree succeeds
// without creating a commit.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/preflight"
	"github.com/mmr-tortoise/ctdeploy/internal/repo"
)

type bootstrapFlags struct {
	message string
}

// NewBootstrapCommand creates the "bootstrap" cobra command.
func NewBootstrapCommand() *cobra.Command {
	flags := &bootstrapFlags{}

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Initialize the Git repository and commit the project",
		Long: `Initialize a Git repository in the project directory if there is none,
stage every file, and commit when anything is staged.

Examples:
  ctdeploy bootstrap
  ctdeploy bootstrap -m "Import CT analysis service"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Commit message (default from config)")

	return cmd
}

func runBootstrap(ctx context.Context, flags *bootstrapFlags) error {
	s, err := newSession(func(c *config.Config) {
		if flags.message != "" {
			c.CommitMessage = flags.message
		}
	}, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if _, err := requireTools(ctx, s.log, preflight.KindBootstrap); err != nil {
		return err
	}

	res, err := repo.NewManager().Bootstrap(s.cfg.ProjectDir, s.cfg.CommitMessage)
	if err != nil {
		return err
	}
	s.log.Info().Bool("initialized", res.Initialized).Bool("committed", res.Committed).Str("commit", res.Commit).Msg("bootstrap finished")

	if IsJSONOutput() {
		return printJSON(res)
	}

	switch {
	case res.Initialized:
		fmt.Fprintf(stdout, "%s Initialized Git repository in %s\n", color.GreenString("✓"), s.cfg.ProjectDir)
	default:
		fmt.Fprintf(stdout, "%s Git repository already present\n", color.GreenString("✓"))
	}
	if res.Committed {
		fmt.Fprintf(stdout, "%s Committed %s\n", color.GreenString("✓"), shortSHA(res.Commit))
	} else {
		fmt.Fprintln(stdout, "Nothing to commit, working tree clean")
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
