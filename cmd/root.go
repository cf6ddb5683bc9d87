package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "heapscope",
	Short: "Post-mortem heap analysis for managed-runtime dumps",
	Long: `heapscope builds a queryable object graph from a process heap dump,
computes retained sizes via dominator-tree analysis, and reports the
types and objects keeping memory alive.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if cmd.Name() == "install" || cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}
		if !isShellSupported() || completionsExist() {
			return
		}
		fmt.Println("🔧 First run detected, setting up heapscope...")
		if installCompletions(cmd.Root()) == nil {
			fmt.Println("✅ Shell completions installed")
			fmt.Println("💡 Restart your shell to enable tab completion")
		}
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Println("Supported shells: bash, zsh, fish")
			return
		}
		if completionsExist() {
			fmt.Println("✅ Already configured!")
			return
		}
		if err := installCompletions(cmd.Root()); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(installCmd)
}

func completionsExist() bool {
	home, _ := os.UserHomeDir()

	paths := map[string]string{
		"bash": filepath.Join(home, ".local/share/bash-completion/completions/heapscope"),
		"zsh":  filepath.Join(home, ".zsh/completions/_heapscope"),
		"fish": filepath.Join(home, ".config/fish/completions/heapscope.fish"),
	}

	path := paths[detectShell()]
	_, err := os.Stat(path)
	return err == nil
}

func isShellSupported() bool {
	shell := detectShell()
	return shell == "bash" || shell == "zsh" || shell == "fish"
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "" {
		return "bash"
	}
	return shell
}

type completionConfig struct {
	dir     string
	file    string
	genFunc func(io.Writer) error
}

func installCompletions(rootCmd *cobra.Command) error {
	home, _ := os.UserHomeDir()
	shell := detectShell()

	configs := map[string]completionConfig{
		"bash": {
			dir:     filepath.Join(home, ".local/share/bash-completion/completions"),
			file:    "heapscope",
			genFunc: rootCmd.GenBashCompletion,
		},
		"zsh": {
			dir:     filepath.Join(home, ".zsh/completions"),
			file:    "_heapscope",
			genFunc: rootCmd.GenZshCompletion,
		},
		"fish": {
			dir:     filepath.Join(home, ".config/fish/completions"),
			file:    "heapscope.fish",
			genFunc: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		},
	}

	config, ok := configs[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	if err := os.MkdirAll(config.dir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(config.dir, config.file))
	if err != nil {
		return err
	}
	defer file.Close()

	return config.genFunc(file)
}
