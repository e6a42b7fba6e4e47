package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/omni/coalesce"
	"github.com/fwojciec/omni/reconcile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIBase = "http://localhost:8000"

// newRootCmd builds the command tree. Each tree owns its own viper instance
// so tests can run commands side by side.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "omni",
		Short:         "Chat with an OmniAgent backend",
		Long:          `omni streams chat turns from an OmniAgent backend and keeps generated images, audio and documents in sync with the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), v, cmd.ErrOrStderr())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default $HOME/.omni/config.yaml)")
	f.String("api-base", defaultAPIBase, "OmniAgent API base URL")
	f.String("session", "", "session id to use (default: most recently used)")
	f.Bool("new", false, "start a new session")
	f.String("provider", "", "LLM provider sent with each turn (default: backend default)")
	f.String("model", "", "model sent with each turn (default: backend default)")
	f.String("log-level", "info", "log level: trace, debug, info, warn, error")
	f.String("log-format", "text", "log format: text or json")
	f.String("log-file", "", "write logs to this file (chat logs only go to a file)")
	f.String("history", "json", "chat history store: json or sqlite")
	f.String("history-path", "", "history directory (json) or database file (sqlite) (default under $HOME/.omni)")
	f.String("classifier", "regex", "media intent classifier: regex or gemini")
	f.String("intent-patterns", "", "YAML file with intent patterns for the regex classifier")
	f.String("gemini-model", "", "model used by the gemini classifier")
	f.String("gemini-api-key", "", "API key for the gemini classifier (default $GEMINI_API_KEY)")
	f.Duration("flush-interval", coalesce.DefaultInterval, "token coalescing interval")
	f.Duration("poll-interval", reconcile.DefaultInterval, "reconciliation poll interval")
	f.Duration("poll-horizon", reconcile.DefaultHorizon, "how long to wait for missing media after a turn")
	cobra.CheckErr(v.BindPFlags(f))

	root.AddCommand(
		newChatCmd(v),
		newAskCmd(v),
		newClearCmd(v),
		newModelsCmd(v),
		newSessionsCmd(v),
	)
	return root
}

// initConfig layers the config file and OMNI_ environment variables under
// the command-line flags.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("omni")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(filepath.Join(home, ".omni"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
