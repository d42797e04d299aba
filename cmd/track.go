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
	"github.com/dustin/go-humanize"
	"github.com/rotblauer/triptrack/common"
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/daemon/observd"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/tracker"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Report a trip's location until interrupted",
	Long: `Reports location for a trip, continuously, until interrupted.

Location is sent once on start, then every --interval, and in between whenever
the device moves more than --threshold meters from the last sent position.
Failed updates are logged and tracking carries on.

Examples:

  triptrack track --trip 42 --lat 47.6 --lng -122.3 --csrf-token abc
  triptrack track --trip 42 --replay commute.json.gz --cookie "csrftoken=abc; sessionid=def" --observe localhost:3001
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		tripID := conceptual.SessionID(viper.GetString("trip"))
		if tripID.Empty() {
			log.Fatalln("--trip is required")
		}

		smp, err := newSampler(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		baseURL := viper.GetString("base-url")
		client, tokens, err := newClient(baseURL)
		if err != nil {
			log.Fatalln(err)
		}

		dConfig := params.DefaultDispatcherConfig()
		dConfig.SessionField = viper.GetString("session-field")
		dConfig.MetricsLogInterval = viper.GetDuration("metrics-interval")
		disp := dispatch.New(client, tokens, dConfig)
		defer disp.Close()

		tConfig := params.DefaultTrackingConfig()
		tConfig.UpdateInterval = viper.GetDuration("interval")
		tConfig.SignificantMovementMeters = viper.GetFloat64("threshold")
		tConfig.EndpointURL = viper.GetString("endpoint")
		if tConfig.EndpointURL == "" {
			tConfig.EndpointURL = params.JoinURL(baseURL, params.TripUpdatePath(tripID.String()))
		}
		tConfig.OnUpdate = func(s sample.Sample) {
			slog.Debug("Position", "sample", s)
		}
		tConfig.OnError = func(kind fault.Kind, detail string) {
			slog.Warn(kind.Message(), "kind", kind, "detail", detail)
		}
		session := tracker.New(smp, disp, tConfig)

		var observer *observd.ObserveDaemon
		if addr := viper.GetString("observe"); addr != "" {
			oConfig := params.DefaultObserveDaemonConfig()
			oConfig.Address = addr
			observer = observd.NewObserveDaemon(oConfig, session)
			if err := observer.Start(); err != nil {
				log.Fatalln(err)
			}
		}

		if _, err := session.Start(ctx, tripID); err != nil {
			slog.Error("Tracking did not start", "error", err, "message", fault.KindOf(err).Message())
			if observer != nil {
				observer.Interrupt()
			}
			os.Exit(1)
		}

		<-common.Interrupted()
		slog.Warn("Received interrupt, stopping")

		// The observer drains session events, so it goes after the session.
		session.Close()
		if observer != nil {
			observer.Interrupt()
			observer.Wait()
		}

		st := session.Status()
		ds := disp.Stats()
		slog.Info("Tracking done",
			"trip", tripID,
			"sent", humanize.Comma(ds.Sent),
			"succeeded", humanize.Comma(ds.Succeeded),
			"failed", humanize.Comma(ds.Failed+ds.Rejected),
			"suppressed", st.Suppressed,
			"bytes", humanize.Bytes(uint64(ds.BytesSent)),
		)
	},
}

func init() {
	rootCmd.AddCommand(trackCmd)

	tDefaults := params.DefaultTrackingConfig()
	dDefaults := params.DefaultDispatcherConfig()

	flags := trackCmd.Flags()
	flags.String("trip", "", "Trip ID to report location for")
	flags.String("endpoint", "", "Update URL. Default is the trip's update path under --base-url")
	flags.Duration("interval", tDefaults.UpdateInterval, "Time between polled updates")
	flags.Float64("threshold", tDefaults.SignificantMovementMeters, "Meters of movement that trigger an update between polls")
	flags.String("session-field", dDefaults.SessionField, "Form field the trip ID is sent in")
	flags.Duration("metrics-interval", dDefaults.MetricsLogInterval, "Interval between dispatch metrics logs, 0 to disable")
	flags.String("observe", "", "Serve a local status and websocket feed on this address, eg. localhost:3001")

	bindFlags(flags)
}
