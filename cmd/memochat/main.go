package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hession/memochat/internal/app"
	"github.com/hession/memochat/internal/backup"
	"github.com/hession/memochat/internal/cli"
	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errs.UserMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "memochat",
		Short: "MemoChat - chat with OpenAI and DeepSeek models that remember",
		Long: `MemoChat is a terminal chat client for OpenAI and DeepSeek models.

It can:
  • Keep your conversation history across sessions
  • Answer "¿recuerdas...?" questions from past conversations without calling the model
  • Add your own documents to every request as reference information
  • Export and restore everything as one backup file`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return cli.Run(cmd.Context(), a)
			})
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.memochat)")

	rootCmd.AddCommand(
		newConfigCmd(),
		newVersionCmd(),
		newExportCmd(),
		newImportCmd(),
		newKBCmd(),
		newHistoryCmd(),
		newPinCmd(),
	)
	return rootCmd
}

// withApp loads config, starts logging and opens the app for fn
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		LogDir:     config.LogDir(),
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.Console,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logConfigInfo(cfg)

	prompts, err := config.LoadPromptConfig()
	if err != nil {
		logger.Warn("Failed to load prompt config, using defaults: %v", err)
		prompts = config.DefaultPromptConfig()
	}

	a, err := app.Open(ctx, cfg, prompts)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

// logConfigInfo logs the effective configuration without secrets
func logConfigInfo(cfg *config.Config) {
	logger.Info("Configuration loaded:")
	logger.Info("  Language: %s", cfg.Language)
	logger.Info("  OpenAI Base URL: %s", cfg.Providers.OpenAI.BaseURL)
	logger.Info("  OpenAI API Key: %s", config.RedactAPIKey(cfg.Secrets.GetOpenAIAPIKey()))
	logger.Info("  DeepSeek Base URL: %s", cfg.Providers.DeepSeek.BaseURL)
	logger.Info("  DeepSeek API Key: %s", config.RedactAPIKey(cfg.Secrets.GetDeepSeekAPIKey()))
	logger.Info("  Storage: mode=%s driver=%s local=%s bridge=%s", cfg.Storage.Mode, cfg.Storage.Driver, cfg.Storage.LocalPath, cfg.BridgeDataDir())
	logger.Info("  Knowledge: types=%s max=%dMB files=%d", strings.Join(cfg.Knowledge.AcceptedTypes, ","), cfg.Knowledge.MaxFileSizeMB, cfg.Knowledge.MaxFiles)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfig file path: %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MemoChat v%s\n", version)
		},
	}
}

// requirePin checks the --pin flag against the stored PIN
func requirePin(a *app.App, entered string) error {
	if a.Pin.IsSet() && !a.Pin.Check(entered) {
		return errs.New(errs.ValidationFailure, "pin.check", "incorrect PIN")
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var (
		dir        string
		pinValue   string
		withKB     bool
		omitPin    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of settings and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := requirePin(a, pinValue); err != nil {
					return err
				}
				path, err := a.Backup.ExportFile(dir, backup.ExportOptions{IncludeKnowledge: withKB, OmitPin: omitPin})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write the backup into")
	cmd.Flags().BoolVar(&withKB, "kb", false, "include knowledge files")
	cmd.Flags().BoolVar(&omitPin, "no-pin", false, "leave the PIN record out")
	cmd.Flags().StringVar(&pinValue, "pin", "", "PIN, when one is set")
	return cmd
}

func newImportCmd() *cobra.Command {
	var pinValue string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := requirePin(a, pinValue); err != nil {
					return err
				}
				res, err := a.Backup.ImportFile(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored: %s\n", strings.Join(res.Fields, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pinValue, "pin", "", "PIN, when one is set")
	return cmd
}

func newKBCmd() *cobra.Command {
	var pinValue string
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge files",
	}
	kbCmd.PersistentFlags().StringVar(&pinValue, "pin", "", "PIN, when one is set")

	kbCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List knowledge files",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app.App) error {
					if err := requirePin(a, pinValue); err != nil {
						return err
					}
					for _, f := range a.Knowledge.Files() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%s\n", f.ID, f.Name, f.Size, f.DateAdded.Format("2006-01-02"))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <file>...",
			Short: "Add knowledge files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app.App) error {
					if err := requirePin(a, pinValue); err != nil {
						return err
					}
					for _, path := range args {
						f, err := a.Knowledge.AddFile(path)
						if err != nil {
							return fmt.Errorf("%s: %s", path, errs.UserMessage(err))
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", f.Name, f.ID)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a knowledge file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app.App) error {
					if err := requirePin(a, pinValue); err != nil {
						return err
					}
					if !a.Knowledge.Delete(args[0]) {
						return fmt.Errorf("no knowledge file with id %s", args[0])
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
					return nil
				})
			},
		},
	)
	return kbCmd
}

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the conversation history",
	}
	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every stored message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				n := a.History.Len()
				a.History.Clear()
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d messages\n", n)
				return nil
			})
		},
	})
	return historyCmd
}

func newPinCmd() *cobra.Command {
	pinCmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the settings PIN",
	}

	var current string
	setCmd := &cobra.Command{
		Use:   "set <pin> <confirm>",
		Short: "Set a 6-digit PIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := requirePin(a, current); err != nil {
					return err
				}
				if err := a.Pin.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "PIN saved")
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&current, "current", "", "current PIN, when one is set")

	checkCmd := &cobra.Command{
		Use:   "check <pin>",
		Short: "Check a PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if !a.Pin.IsSet() {
					fmt.Fprintln(cmd.OutOrStdout(), "No PIN set")
					return nil
				}
				if err := requirePin(a, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "PIN correct")
				return nil
			})
		},
	}

	pinCmd.AddCommand(setCmd, checkCmd)
	return pinCmd
}
