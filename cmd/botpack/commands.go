package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smarty-pants-inc/botpack/pkg/assets"
	"github.com/smarty-pants-inc/botpack/pkg/catalog"
	"github.com/smarty-pants-inc/botpack/pkg/install"
	"github.com/smarty-pants-inc/botpack/pkg/issues"
	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/sync"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve dependencies and write the lockfile",
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")
		root := paths.WorkRoot()

		lockPath, err := install.Install(install.Options{Root: root, Offline: offline})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", lockPath)

		cfg, err := manifest.Parse(paths.ManifestPath(root))
		if err != nil {
			return err
		}
		if cfg.Sync.OnInstall {
			return runSyncAll(cmd, root, false, false)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [target]",
	Short: "Project assets into target directories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clean, _ := cmd.Flags().GetBool("clean")
		force, _ := cmd.Flags().GetBool("force")
		root := paths.WorkRoot()

		if len(args) == 1 {
			return runSyncTarget(cmd, root, args[0], clean, force)
		}
		return runSyncAll(cmd, root, clean, force)
	},
}

func runSyncAll(cmd *cobra.Command, root string, clean, force bool) error {
	var conflicted bool
	for _, target := range sync.Targets() {
		if err := runSyncTarget(cmd, root, target, clean, force); err != nil {
			if err == errConflicts {
				conflicted = true
				continue
			}
			return err
		}
	}

	cfg, err := manifest.Parse(paths.ManifestPath(root))
	if err != nil {
		return err
	}
	if cfg.Sync.Catalog {
		assetsDir := cfg.Assets.Dir
		if !filepath.IsAbs(assetsDir) {
			assetsDir = filepath.Join(root, assetsDir)
		}
		if err := catalog.Write(paths.CatalogPath(root), assetsDir, assets.Scan(assetsDir)); err != nil {
			return err
		}
	}

	if conflicted {
		return errConflicts
	}
	return nil
}

func runSyncTarget(cmd *cobra.Command, root, target string, clean, force bool) error {
	res, err := sync.Run(target, sync.Options{Root: root, Clean: clean, Force: force})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d created, %d updated, %d removed\n",
		target, len(res.Created), len(res.Updated), len(res.Removed))
	for _, reason := range res.Blocked {
		fmt.Fprintf(out, "  blocked [%s]: %s\n", issues.BlockedID(reason), reason)
	}
	for _, rec := range res.ConflictRecords {
		fmt.Fprintf(out, "  conflict [%s]: %s (%s)\n",
			issues.ConflictID(target, rec.Path), rec.Path, rec.Reason)
	}
	if len(res.Conflicts) > 0 {
		return errConflicts
	}
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <name@spec> | --path <dir> <name> | --git <url> <name>",
	Short: "Add a dependency to the manifest",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pathDep, _ := cmd.Flags().GetString("path")
		gitDep, _ := cmd.Flags().GetString("git")
		rev, _ := cmd.Flags().GetString("rev")
		root := paths.WorkRoot()
		manifestPath := paths.ManifestPath(root)

		switch {
		case pathDep != "":
			if err := manifest.AddPathDependency(manifestPath, args[0], pathDep); err != nil {
				return err
			}
		case gitDep != "":
			if err := manifest.AddGitDependency(manifestPath, args[0], gitDep, rev); err != nil {
				return err
			}
		default:
			name, spec, err := manifest.ParseAddSpec(args[0])
			if err != nil {
				return err
			}
			if err := manifest.AddSemverDependency(manifestPath, name, spec); err != nil {
				return err
			}
		}

		cfg, err := manifest.Parse(manifestPath)
		if err != nil {
			return err
		}
		if cfg.Sync.OnAdd {
			offline, _ := cmd.Flags().GetBool("offline")
			if _, err := install.Install(install.Options{Root: root, Offline: offline}); err != nil {
				return err
			}
			return runSyncAll(cmd, root, false, false)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a dependency from the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := paths.WorkRoot()
		existed, err := manifest.RemoveDependency(paths.ManifestPath(root), args[0])
		if err != nil {
			return err
		}
		if !existed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not a dependency\n", args[0])
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project health (no network)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := issues.Collect(paths.WorkRoot())
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "root: %s\n", st.Root)
		fmt.Fprintf(out, "manifest: %s (present=%v)\n", st.ManifestPath, st.ManifestExists)
		fmt.Fprintf(out, "lock: %s (present=%v, packages=%d)\n", st.LockPath, st.LockExists, st.PackagesCount)
		for _, target := range sync.Targets() {
			ts := st.Targets[target]
			fmt.Fprintf(out, "target %s: synced=%v paths=%d conflicts=%d\n",
				target, ts.Exists, ts.PathsCount, len(ts.Conflicts))
		}
		for _, c := range st.Conflicts {
			fmt.Fprintf(out, "conflict [%s] %s: %s\n", c.ID, c.Target, c.Record.Path)
		}
		for _, g := range st.TrustGates {
			fmt.Fprintf(out, "trust gate [%s] %s (exec=%v mcp=%v)\n", g.ID, g.PkgKey, g.NeedsExec, g.NeedsMcp)
		}
		for _, e := range st.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <issue-id>",
	Short: "Explain an issue id from status output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := issues.Collect(paths.WorkRoot())
		msg, ok := st.Explain(args[0])
		if !ok {
			return fmt.Errorf("unknown issue id: %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Write the asset catalog (.botpack/catalog.json)",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := paths.WorkRoot()
		cfg, err := manifest.Parse(paths.ManifestPath(root))
		if err != nil {
			return err
		}
		assetsDir := cfg.Assets.Dir
		if !filepath.IsAbs(assetsDir) {
			assetsDir = filepath.Join(root, assetsDir)
		}
		idx := assets.Scan(assetsDir)
		out := paths.CatalogPath(root)
		if err := catalog.Write(out, assetsDir, idx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage trust grants",
}

var trustAllowCmd = &cobra.Command{
	Use:   "allow <pkg-key>",
	Short: "Grant exec/mcp trust to a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		allowExec, _ := cmd.Flags().GetBool("exec")
		allowMcp, _ := cmd.Flags().GetBool("mcp")
		pin, _ := cmd.Flags().GetString("pin")

		opts := trust.AllowOptions{Integrity: pin}
		if allowExec {
			opts.AllowExec = &allowExec
		}
		if allowMcp {
			opts.AllowMcp = &allowMcp
		}
		return trust.Allow(paths.TrustPath(paths.WorkRoot()), args[0], opts)
	},
}

var trustRevokeCmd = &cobra.Command{
	Use:   "revoke <pkg-key>",
	Short: "Revoke a package's trust entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		existed, err := trust.Revoke(paths.TrustPath(paths.WorkRoot()), args[0])
		if err != nil {
			return err
		}
		if !existed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s had no trust entry\n", args[0])
		}
		return nil
	},
}

func init() {
	installCmd.Flags().Bool("offline", false, "Fail instead of fetching from the network")

	syncCmd.Flags().Bool("clean", false, "Remove stale outputs no longer in the source")
	syncCmd.Flags().Bool("force", false, "Overwrite drifted files instead of reporting conflicts")

	addCmd.Flags().String("path", "", "Add a local path dependency")
	addCmd.Flags().String("git", "", "Add a git dependency")
	addCmd.Flags().String("rev", "", "Git rev for --git")
	addCmd.Flags().Bool("offline", false, "Fail instead of fetching from the network")

	trustCmd.AddCommand(trustAllowCmd)
	trustCmd.AddCommand(trustRevokeCmd)
	trustAllowCmd.Flags().Bool("exec", false, "Allow exec capability")
	trustAllowCmd.Flags().Bool("mcp", false, "Allow mcp capability")
	trustAllowCmd.Flags().String("pin", "", "Pin the grant to a store integrity digest")
}
