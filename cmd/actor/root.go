package actor

import (
	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/spf13/cobra"
)

var (
	theater *client.TheaterClient

	// ActorCommands represents the actor command group
	ActorCommands = &cobra.Command{
		Use:                "actor",
		Short:              "Manage the actors of a Theater server",
		Long:               "Manage the actors of a Theater server. Payloads are passed as text, a 0x prefix marks hex encoded bytes.",
		PersistentPreRunE:  setupActorClient,
		PersistentPostRunE: closeActorClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the actor command
	util.SetupRPCClientFlags(ActorCommands)

	// Add subcommands
	ActorCommands.AddCommand(listCmd)
	ActorCommands.AddCommand(startCmd)
	ActorCommands.AddCommand(stopCmd)
	ActorCommands.AddCommand(restartCmd)
	ActorCommands.AddCommand(stateCmd)
	ActorCommands.AddCommand(eventsCmd)
	ActorCommands.AddCommand(sendCmd)
	ActorCommands.AddCommand(requestCmd)

	startCmd.Flags().String("state", "", util.WrapString("Initial state of the actor"))
}

// setupActorClient connects to the Theater server
func setupActorClient(cmd *cobra.Command, _ []string) (err error) {
	theater, err = util.NewTheaterClient(cmd)
	return err
}

func closeActorClient(*cobra.Command, []string) error {
	if theater == nil {
		return nil
	}
	return theater.Close()
}
