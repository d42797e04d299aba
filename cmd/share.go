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
	"context"
	"encoding/json"
	"fmt"
	"github.com/rotblauer/triptrack/common"
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/share"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
)

// shareCmd represents the share command
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share your current location once for a booking",
	Long: `Shares your current location with a rental booking, once.

The position is submitted like the web app's share form, and the page the
server redirects to is printed as JSON. On failure a message saying what to
fix is printed to stderr and the exit status is 1.

Example:

  triptrack share --booking 17 --lat 47.6 --lng -122.3 --cookie "csrftoken=abc; sessionid=def"
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx, stop := common.InterruptContext(context.Background())
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("share-timeout"))
		defer cancel()

		smp, err := newSampler(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		baseURL := viper.GetString("base-url")
		client, tokens, err := newClient(baseURL)
		if err != nil {
			log.Fatalln(err)
		}

		sConfig := params.DefaultShareConfig()
		sConfig.BaseURL = baseURL
		action := share.NewAction(smp, client, tokens, sConfig)

		nav, err := action.Execute(ctx, conceptual.BookingID(viper.GetString("booking")))
		if err != nil {
			slog.Debug("Share failed", "error", err)
			fmt.Fprintln(os.Stderr, share.UserMessage(err))
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(nav); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)

	flags := shareCmd.Flags()
	flags.String("booking", "", "Booking ID to share location with")
	flags.Duration("share-timeout", 2*params.DefaultHTTPTimeout+params.DefaultSamplerOptions().Timeout, "Overall time limit")

	bindFlags(flags)
}
