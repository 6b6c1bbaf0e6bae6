package cli

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
)

const mqttConnectTimeout = 10 * time.Second

// newMQTTTestCommand checks broker connectivity with the same client stack
// the scoreboard uses, so a failing mqtt block in the config can be diagnosed
// without restarting the process.
func newMQTTTestCommand() *cobra.Command {
	var (
		broker   string
		port     int
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "mqtt-test",
		Short: "Test connectivity to an MQTT broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := fmt.Sprintf("tcp://%s:%d", broker, port)
			opts := mqtt.NewClientOptions().
				AddBroker(uri).
				SetClientID(fmt.Sprintf("scorehub-test-%d", time.Now().UnixNano())).
				SetConnectTimeout(mqttConnectTimeout).
				SetAutoReconnect(false)
			if username != "" {
				opts.SetUsername(username)
				opts.SetPassword(password)
			}

			client := mqtt.NewClient(opts)
			token := client.Connect()
			if !token.WaitTimeout(mqttConnectTimeout) {
				return fmt.Errorf("timed out connecting to %s after %s", uri, mqttConnectTimeout)
			}
			if err := token.Error(); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", uri, err)
			}
			client.Disconnect(250)
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&broker, "broker", "localhost", "Broker hostname or IP")
	cmd.Flags().IntVar(&port, "port", 1883, "Broker port")
	cmd.Flags().StringVar(&username, "username", "", "Broker username")
	cmd.Flags().StringVar(&password, "password", "", "Broker password")
	return cmd
}
