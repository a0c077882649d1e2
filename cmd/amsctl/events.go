package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/events"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/mqtt"
)

var (
	watchOwners bool
	watchRaw    bool
)

// eventsCmd groups event stream commands
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Observe the transfer event stream",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print transfer events published on MQTT until interrupted",
	Long: `Subscribe to the service's MQTT event topics and print each event.

Examples:
  amsctl events watch
  amsctl events watch --owners
  amsctl events watch --raw`,
	RunE: runEventsWatch,
}

func init() {
	eventsWatchCmd.Flags().BoolVar(&watchOwners, "owners", false, "Also print retained asset owner updates")
	eventsWatchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Print every message under the topic prefix unparsed")
	eventsCmd.AddCommand(eventsWatchCmd)
}

func runEventsWatch(cmd *cobra.Command, _ []string) error {
	cfg := appConfig.MQTT
	cfg.Broker.ClientID += "-amsctl"

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close() //nolint:errcheck // CLI teardown
	client.SetLogger(appLog)

	out := cmd.OutOrStdout()
	topics := client.Topics()

	if watchRaw {
		err = client.Subscribe(topics.AllTopics(), client.DefaultQoS(), func(topic string, payload []byte) error {
			fmt.Fprintf(out, "%s %s\n", topic, payload)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "watching %s (Ctrl+C to stop)\n", topics.AllTopics())
		<-cmd.Context().Done()
		return nil
	}

	err = client.Subscribe(topics.AllTransferEvents(), client.DefaultQoS(), func(_ string, payload []byte) error {
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Data == nil {
			fmt.Fprintf(out, "unparsed event: %s\n", payload)
			return nil //nolint:nilerr // malformed payloads are printed, not fatal
		}
		t := ev.Data
		fmt.Fprintf(out, "%-18s %s  %s -> %s  %s\n", ev.Type, t.AssetID, t.CurrentOwner, t.NewOwner, t.Status)
		return nil
	})
	if err != nil {
		return err
	}

	if watchOwners {
		err = client.Subscribe(topics.AllAssetOwners(), client.DefaultQoS(), func(topic string, payload []byte) error {
			var st events.OwnerState
			if err := json.Unmarshal(payload, &st); err != nil {
				return nil //nolint:nilerr // ignore foreign payloads
			}
			fmt.Fprintf(out, "%-18s %s  owner=%s  tx=%s  [%s]\n", "owner", st.AssetID, st.Owner, st.LedgerTxID, topic)
			return nil
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "watching %s and %d more (Ctrl+C to stop)\n", topics.AllTransferEvents(), client.SubscriptionCount()-1)
	<-cmd.Context().Done()
	return nil
}
