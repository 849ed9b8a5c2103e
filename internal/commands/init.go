package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/config"
	"github.com/settleloop/settleloop/internal/gitops"
	"github.com/settleloop/settleloop/internal/store"
)

func newInitCommand() *cobra.Command {
	var name string
	var currentUser string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, currentUser, useGit)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "household name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&currentUser, "user", "", "name of the member running this ledger")
	cmd.Flags().BoolVar(&useGit, "git", false, "track the ledger in a git repository")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, currentUser string, useGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	cfg := config.Default(name)
	cfg.Ledger.CurrentUser = currentUser

	for _, d := range []string{cfg.Paths.ImportDir, filepath.Join(cfg.Paths.ImportDir, "processed"), cfg.Paths.LogDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := accounts.NewService(accounts.DefaultAccounts()).Save(filepath.Join(dir, cfg.Paths.Accounts)); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	if err := store.Save(filepath.Join(dir, cfg.Paths.State), store.State{}); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(".env\n"+cfg.Paths.ImportDir+"/processed/\n"), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Paths.ImportDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	out := cmd.OutOrStdout()
	if !useGit {
		fmt.Fprintf(out, "Initialized ledger %q at %s\n", name, dir)
		return nil
	}

	if err := gitops.Init(dir); err != nil {
		return err
	}
	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	hash, err := gitops.CommitAll(dir, gitops.Message("init", "Initialize %s", name), author)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	fmt.Fprintf(out, "Initialized ledger %q at %s (%s)\n", name, dir, hash)
	return nil
}
