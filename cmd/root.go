/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

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
	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/triptrack/common"
	"github.com/rotblauer/triptrack/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"strings"
	"time"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "triptrack",
	Short: "Report your location to the rental web app",
	Long: `triptrack reports position to the rental web app.

  track   Continuously report a trip's location until interrupted.
  share   Share your current location once for a booking.

Location comes from a fixed coordinate (--lat/--lng) or a replayed track file (--replay).
The anti-forgery token comes from --csrf-token, or from the csrftoken cookie in --cookie.

Every flag can also be set in $HOME/.triptrack.yaml or as TRIPTRACK_<FLAG_NAME> in the environment.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	samplerDefaults := params.DefaultSamplerOptions()

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.triptrack.yaml)")
	pFlags.Int("verbosity", int(slog.LevelInfo), "Log level: -4 debug, 0 info, 4 warn, 8 error")
	pFlags.String("base-url", params.DefaultBaseURL, "Root URL of the web app")
	pFlags.String("csrf-token", "", "Anti-forgery token to send")
	pFlags.String("cookie", "", `Cookie header to send, eg. "csrftoken=abc; sessionid=def". Its csrftoken is used if --csrf-token is empty`)

	pFlags.Float64("lat", 0, "Fixed latitude to report")
	pFlags.Float64("lng", 0, "Fixed longitude to report")
	pFlags.String("replay", "", "Track file to replay as the location source (GeoJSON, or NDJSON of features or samples; .gz ok)")
	pFlags.Duration("replay-interval", time.Second, "Time each replayed sample stays current")
	pFlags.Bool("replay-loop", false, "Start the replay over when it ends")
	pFlags.Duration("sampler-timeout", samplerDefaults.Timeout, "Longest wait for a single position")
	pFlags.Bool("high-accuracy", samplerDefaults.EnableHighAccuracy, "Ask the device for its best accuracy")

	bindFlags(pFlags)
}

// bindFlags makes every flag in fs readable from viper under its own name.
func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := viper.BindPFlag(f.Name, f); err != nil {
			slog.Error("Failed to bind flag", "flag", f.Name, "error", err)
		}
	})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".triptrack")
	}

	viper.SetEnvPrefix("TRIPTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Info("Using config file", "file", viper.ConfigFileUsed())
	}
}

// setDefaultSlog installs the default logger at the configured verbosity.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	common.SetDefaultSlog(os.Stderr, slog.Level(viper.GetInt("verbosity")), "cmd", cmd.Name())
}
