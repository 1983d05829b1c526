// configure.go implements "ctdeploy configure".
//
// Configure asks for the GitHub username, writes it into the landing page in
// place of the placeholder, commits the change, points the remote at the
// user's repository, and optionally pushes with a single fallback branch.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/page"
	"github.com/mmr-tortoise/ctdeploy/internal/preflight"
	"github.com/mmr-tortoise/ctdeploy/internal/prompt"
	"github.com/mmr-tortoise/ctdeploy/internal/repo"
)

type configureFlags struct {
	username string
	push     bool
	noPush   bool
	yes      bool
}

// NewConfigureCommand creates the "configure" cobra command.
func NewConfigureCommand() *cobra.Command {
	flags := &configureFlags{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the GitHub username in the landing page and remote",
		Long: `Substitute the GitHub username into the landing page, commit, and point
the Git remote at https://github.com/<username>/<repo>.git.

The username is taken from --username, then CTDEPLOY_USERNAME or the config
file, and is asked for interactively when none is set. An interactive run
also asks for the repository name.

Examples:
  ctdeploy configure
  ctdeploy configure --username octocat --push
  ctdeploy configure --username octocat --yes --no-push`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.username, "username", "u", "", "GitHub username")
	cmd.Flags().BoolVar(&flags.push, "push", false, "Push without asking")
	cmd.Flags().BoolVar(&flags.noPush, "no-push", false, "Do not push")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("push", "no-push")

	return cmd
}

// configureResult is the JSON output of configure.
type configureResult struct {
	Username      string   `json:"username"`
	Page          string   `json:"page"`
	Replacements  int      `json:"replacements"`
	Committed     bool     `json:"committed"`
	Remote        string   `json:"remote"`
	RemoteURL     string   `json:"remoteUrl"`
	PushedBranch  string   `json:"pushedBranch,omitempty"`
	CandidateURLs []string `json:"candidateUrls"`
}

func runConfigure(ctx context.Context, flags *configureFlags) error {
	s, err := newSession(func(c *config.Config) {
		if flags.username != "" {
			c.Username = flags.username
		}
	}, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if _, err := requireTools(ctx, s.log, preflight.KindConfigure); err != nil {
		return err
	}

	// Questions go to stderr so that --json output on stdout stays parseable.
	p := prompt.New(stdin, promptOut())
	cfg := s.cfg

	if cfg.Username == "" {
		name, err := p.Required("GitHub username")
		if err != nil {
			return err
		}
		if err := model.ValidateUsername(name); err != nil {
			return model.WrapCLIError(model.ExitInvalidInput, "invalid GitHub username", err)
		}
		cfg.Username = name

		// Interactive runs may also pick a fork with a different name.
		repoName, err := p.Ask("Repository name", cfg.Repo)
		if err != nil {
			return err
		}
		if strings.ContainsAny(repoName, "/ \t") {
			return model.NewCLIError(model.ExitInvalidInput,
				fmt.Sprintf("invalid repository name %q", repoName))
		}
		cfg.Repo = repoName
	}

	if !flags.yes {
		ok, err := p.Confirm(fmt.Sprintf("Configure the project for GitHub user %q?", cfg.Username), true)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewCLIError(model.ExitUserCancelled, "configuration cancelled")
		}
	}

	res, err := applyConfiguration(cfg, s.log)
	if err != nil {
		return err
	}

	push := flags.push
	if !flags.push && !flags.noPush && !flags.yes {
		if push, err = p.Confirm(fmt.Sprintf("Push to %s now?", res.RemoteURL), false); err != nil {
			return err
		}
	}
	if push {
		branch, err := pushConfiguration(ctx, cfg, s.log)
		if err != nil {
			// The local changes are done; show them before the push error.
			if perr := printConfigureResult(res); perr != nil {
				s.log.Warn().Err(perr).Msg("failed to print result")
			}
			return err
		}
		res.PushedBranch = branch
	}

	return printConfigureResult(res)
}

// pushConfiguration names the local branch after the primary branch, then
// pushes with a single fallback.
func pushConfiguration(ctx context.Context, cfg *config.Config, log zerolog.Logger) (string, error) {
	git := repo.NewManager()

	current, err := git.CurrentBranch(cfg.ProjectDir)
	if err != nil {
		return "", err
	}
	if current != cfg.PrimaryBranch {
		if err := git.RenameBranch(cfg.ProjectDir, cfg.PrimaryBranch); err != nil {
			return "", err
		}
		log.Info().Str("from", current).Str("to", cfg.PrimaryBranch).Msg("branch renamed")
	}

	branch, err := git.PushWithFallback(ctx, cfg.ProjectDir, cfg.Remote, cfg.PrimaryBranch, cfg.FallbackBranch)
	if err != nil {
		return "", err
	}
	log.Info().Str("branch", branch).Msg("pushed")
	return branch, nil
}

func printConfigureResult(res *configureResult) error {
	if IsJSONOutput() {
		return printJSON(res)
	}
	printConfigureText(res)
	return nil
}

// applyConfiguration performs the non-interactive part of configure: page
// substitution, commit, and remote setup.
func applyConfiguration(cfg *config.Config, log zerolog.Logger) (*configureResult, error) {
	res := &configureResult{
		Username:      cfg.Username,
		Page:          cfg.PageFile(),
		Remote:        cfg.Remote,
		RemoteURL:     cfg.RemoteURL(),
		CandidateURLs: page.CandidateURLs(cfg.Username, cfg.Repo),
	}

	pr, err := page.ApplyFile(cfg.PageFile(), cfg.Placeholder, cfg.Username)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to update landing page", err)
	}
	res.Replacements = pr.Replacements
	if pr.Changed() {
		log.Info().Str("page", pr.Path).Int("replacements", pr.Replacements).Msg("landing page updated")
	} else {
		log.Info().Str("page", pr.Path).Msg("landing page already configured")
	}

	git := repo.NewManager()
	boot, err := git.Bootstrap(cfg.ProjectDir, fmt.Sprintf("Configure for GitHub user %s", cfg.Username))
	if err != nil {
		return nil, err
	}
	res.Committed = boot.Committed

	if err := git.SetRemote(cfg.ProjectDir, cfg.Remote, res.RemoteURL); err != nil {
		return nil, err
	}
	log.Info().Str("remote", cfg.Remote).Str("url", res.RemoteURL).Msg("remote configured")

	return res, nil
}

func printConfigureText(res *configureResult) {
	ok := color.GreenString("✓")
	if res.Replacements > 0 {
		fmt.Fprintf(stdout, "%s Replaced %d occurrence(s) in %s\n", ok, res.Replacements, res.Page)
	} else {
		fmt.Fprintf(stdout, "%s %s already configured\n", ok, res.Page)
	}
	if res.Committed {
		fmt.Fprintf(stdout, "%s Committed changes\n", ok)
	}
	fmt.Fprintf(stdout, "%s Remote %s → %s\n", ok, res.Remote, res.RemoteURL)
	if res.PushedBranch != "" {
		fmt.Fprintf(stdout, "%s Pushed to %s\n", ok, res.PushedBranch)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "The service can be published at:")
	for _, u := range res.CandidateURLs {
		fmt.Fprintf(stdout, "  %s\n", color.CyanString(u))
	}
}
