/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/logging"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "perekladach",
	Short: "Multi-provider translation dispatcher",
	Long: `A CLI application that sends one text to several translation providers at
once and reports every provider's outcome, either as a single aggregate or
as a live stream of partial output.

Supported providers: OpenAI, Zhipu, Groq, Gemini, DeepSeek, Claude, ERNIE,
DeepL, Google Cloud Translation, Alibaba Machine Translation, Google (web)

Use "perekladach translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(viper.GetString("log.level"), viper.GetBool("log.development"))
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("config loaded", zap.String("file", used))
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	_ = zap.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.perekladach.yaml)")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	flags.Bool("log-dev", false, "Human-readable development logging")
	flags.String("db", "./data/perekladach.db", "Database path for translation history")
	flags.Duration("provider-timeout", 0, "Per-provider timeout applied by the dispatcher (0 = none)")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.development", flags.Lookup("log-dev"))
	viper.BindPFlag("history.db", flags.Lookup("db"))
	viper.BindPFlag("dispatch.timeout", flags.Lookup("provider-timeout"))
}

// initConfig reads the config file and PEREKLADACH_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".perekladach")
	}

	viper.SetEnvPrefix("PEREKLADACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing default config file is fine; a broken explicit one is not.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		cobra.CheckErr(err)
	}
}
