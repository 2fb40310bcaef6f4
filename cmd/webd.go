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
	"log"
	"log/slog"

	"github.com/rotblauer/motiond/provider"
	"github.com/spf13/cobra"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves a tracker on the internet.

Devices POST their fixes to /fixes; the response, and the /socket websocket,
carry the cadence the device should sample at.

Set MOTIOND_TOKEN to require it (X-Motiond-Token header or api_token param) on POST /fixes.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		cfg := loadConfig()
		slog.Info("webd.Run", "address", cfg.Web.Address)
		if err := runTracker(cfg, &provider.Idle{}, runOptions{web: true}); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)
}
