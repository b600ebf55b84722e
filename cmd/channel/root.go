package channel

import (
	"fmt"

	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/spf13/cobra"
)

var (
	theater *client.TheaterClient

	// ChannelCommands represents the channel command group
	ChannelCommands = &cobra.Command{
		Use:                "channel",
		Short:              "Open, use and close channels to actors",
		PersistentPreRunE:  setupChannelClient,
		PersistentPostRunE: closeChannelClient,
	}

	// openCmd represents the open command
	openCmd = &cobra.Command{
		Use:   "open [actorID] [initialMessage]",
		Short: "Open a channel to an actor and print the channel id",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runOpen,
	}

	// sendCmd represents the send command
	sendCmd = &cobra.Command{
		Use:   "send [channelID] [message]",
		Short: "Send a message on an open channel",
		Args:  cobra.ExactArgs(2),
		RunE:  runSend,
	}

	// closeCmd represents the close command
	closeCmd = &cobra.Command{
		Use:   "close [channelID]",
		Short: "Close a channel",
		Long:  "Close a channel using the channel id returned by the open command.",
		Args:  cobra.ExactArgs(1),
		RunE:  runClose,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to channel command
	ChannelCommands.AddCommand(openCmd)
	ChannelCommands.AddCommand(sendCmd)
	ChannelCommands.AddCommand(closeCmd)

	// Add common RPC flags to the channel command
	util.SetupRPCClientFlags(ChannelCommands)
}

// setupChannelClient initializes the Theater client
func setupChannelClient(cmd *cobra.Command, _ []string) (err error) {
	theater, err = util.NewTheaterClient(cmd)
	return err
}

func closeChannelClient(*cobra.Command, []string) error {
	if theater == nil {
		return nil
	}
	return theater.Close()
}

// runOpen executes the open command
func runOpen(cmd *cobra.Command, args []string) error {
	var initial []byte
	if len(args) == 2 {
		var err error
		if initial, err = util.ParseBytes(args[1]); err != nil {
			return err
		}
	}

	channelID, err := theater.OpenChannel(cmd.Context(), args[0], initial)
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	fmt.Printf("Channel opened successfully\n")
	fmt.Printf("Channel ID: %s\n", channelID)
	fmt.Printf("Use this ID to send on or close the channel\n")
	return nil
}

// runSend executes the send command
func runSend(cmd *cobra.Command, args []string) error {
	message, err := util.ParseBytes(args[1])
	if err != nil {
		return err
	}

	if err := theater.SendOnChannel(cmd.Context(), args[0], message); err != nil {
		return fmt.Errorf("failed to send on channel: %w", err)
	}

	fmt.Println("Message sent successfully")
	return nil
}

// runClose executes the close command
func runClose(cmd *cobra.Command, args []string) error {
	if err := theater.CloseChannel(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}

	fmt.Println("Channel closed successfully")
	return nil
}
