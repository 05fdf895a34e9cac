// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rocforge/internal/config"
	"rocforge/internal/issue"
	"rocforge/pkg/archspec"
	"rocforge/pkg/types"
)

// configCmd is the `rocforge config` command tree.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage rocforge configuration",
	Long: `Manage rocforge configuration.

Configuration is stored in:
  - Linux: ~/.config/rocforge/rocforge.cue
  - macOS: ~/Library/Application Support/rocforge/rocforge.cue
  - Windows: %APPDATA%\rocforge\rocforge.cue

The user-level file is used when present; otherwise a rocforge.cue in
the current directory is loaded. Flags override both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), args[0], args[1])
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Check a configuration file against the schema",
		Long: `Check that a configuration file parses and satisfies the schema.

Without arguments, checks the user-level configuration file. The file
is not resolved: defaults are not applied and flag overrides are
ignored, so a partial file that only sets some fields still passes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfigFile(args)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Resolve(cmd.Context(), loadOptions(nil))
			if err != nil {
				return err
			}

			fmt.Print(config.GenerateCUE(cfg))
			return nil
		},
	})
}

func showConfig(ctx context.Context) error {
	cfg, cfgPath, err := config.Resolve(ctx, loadOptions(nil))
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return err
	}

	// Style definitions using shared color palette
	headerStyle := TitleStyle
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Println(headerStyle.Render("Current Configuration"))
	fmt.Println()

	if cfgPath != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), cfgPath)
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	// Show values
	fmt.Printf("%s: %s\n", keyStyle.Render("base_variant"), valueStyle.Render(cfg.BaseVariant.String()))
	fmt.Printf("%s: %s\n", keyStyle.Render("gfx_archs"), valueStyle.Render(cfg.GfxArchs.Join()))
	fmt.Printf("%s: %s\n", keyStyle.Render("mount_path"), valueStyle.Render(cfg.MountPath.String()))
	fmt.Printf("%s: %s\n", keyStyle.Render("workspace_dir"), valueStyle.Render(cfg.WorkspaceDir.String()))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("attention"))
	fmt.Printf("  build: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Attention.Build)))
	fmt.Printf("  repo_url: %s\n", valueStyle.Render(cfg.Attention.RepoURL.String()))
	if cfg.Attention.Revision != "" {
		fmt.Printf("  revision: %s\n", valueStyle.Render(cfg.Attention.Revision.String()))
	} else {
		fmt.Printf("  revision: %s\n", SubtitleStyle.Render("(default branch tip)"))
	}

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("triton"))
	fmt.Printf("  build: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Triton.Build)))
	fmt.Printf("  repo_url: %s\n", valueStyle.Render(cfg.Triton.RepoURL.String()))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("engine"))
	fmt.Printf("  source_dir: %s\n", valueStyle.Render(cfg.Engine.SourceDir.String()))
	fmt.Printf("  requirements: %s\n", valueStyle.Render(cfg.Engine.Requirements.String()))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("python"))
	fmt.Printf("  version: %s\n", valueStyle.Render(cfg.Python.Version.String()))
	fmt.Printf("  platform: %s\n", valueStyle.Render(cfg.Python.Platform.String()))

	return nil
}

func initConfig() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err = config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("%s Created default configuration at %s/%s.%s\n",
		SuccessStyle.Render("✓"), cfgDir, config.ConfigFileName, config.ConfigFileExt)
	return nil
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	fmt.Printf("Config directory: %s\n", cfgDir)
	fmt.Printf("Config file: %s\n", cfgPath)
	return nil
}

func setConfigValue(ctx context.Context, key, value string) error {
	cfg, _, err := config.Resolve(ctx, loadOptions(nil))
	if err != nil {
		return err
	}

	switch key {
	case "base_variant":
		cfg.BaseVariant = config.ImageRef(value)

	case "gfx_archs":
		archs := archspec.ParseList(value)
		for _, tok := range archs {
			if err := tok.Validate(); err != nil {
				return fmt.Errorf("invalid gfx_archs: %w", err)
			}
		}
		cfg.GfxArchs = archs

	case "mount_path":
		cfg.MountPath = types.FilesystemPath(value)

	case "workspace_dir":
		cfg.WorkspaceDir = types.FilesystemPath(value)

	case "attention.build":
		cfg.Attention.Build = value == "true" || value == "1"

	case "attention.repo_url":
		cfg.Attention.RepoURL = config.RepoURL(value)

	case "attention.revision":
		cfg.Attention.Revision = config.Revision(value)

	case "triton.build":
		cfg.Triton.Build = value == "true" || value == "1"

	case "triton.repo_url":
		cfg.Triton.RepoURL = config.RepoURL(value)

	case "engine.source_dir":
		cfg.Engine.SourceDir = types.FilesystemPath(value)

	case "engine.requirements":
		cfg.Engine.Requirements = types.FilesystemPath(value)

	case "python.version":
		cfg.Python.Version = config.PythonVersion(value)

	case "python.platform":
		cfg.Python.Platform = config.PlatformTag(value)

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: base_variant, gfx_archs, mount_path, workspace_dir, attention.build, attention.repo_url, attention.revision, triton.build, triton.repo_url, engine.source_dir, engine.requirements, python.version, python.platform", key)
	}

	// The whole config revalidates before saving so a set cannot
	// persist a value that provisioning would reject.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

func checkConfigFile(args []string) error {
	var cfgPath string
	if len(args) > 0 {
		cfgPath = args[0]
	} else {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if err := config.CheckFile(cfgPath); err != nil {
		return err
	}

	fmt.Printf("%s %s is valid\n", SuccessStyle.Render("✓"), cfgPath)
	return nil
}
