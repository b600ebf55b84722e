package raw

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/spf13/cobra"
)

var (
	theater *client.TheaterClient

	// SendCmd sends a raw command and prints the raw response
	SendCmd = &cobra.Command{
		Use:   "send [json]",
		Short: "Send a raw command to the Theater server",
		Long: `Send a raw command to the Theater server and print the response as JSON.
Field-less commands are plain strings, all other commands are objects with
a single key (e.g. '"ListActors"' or '{"StopActor":{"id":"..."}}').
Error responses of the server make the command fail.`,
		Args:               cobra.MinimumNArgs(1),
		PersistentPreRunE:  setupRawClient,
		PersistentPostRunE: closeRawClient,
		RunE:               runSend,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(SendCmd)
	SendCmd.Flags().Bool("pretty", false, util.WrapString("Indent the printed response"))
}

func setupRawClient(cmd *cobra.Command, _ []string) (err error) {
	theater, err = util.NewTheaterClient(cmd)
	return err
}

func closeRawClient(*cobra.Command, []string) error {
	if theater == nil {
		return nil
	}
	return theater.Close()
}

func runSend(cmd *cobra.Command, args []string) error {
	// allow the command to be split by the shell
	command, err := common.NewRawCommand([]byte(strings.Join(args, " ")))
	if err != nil {
		return err
	}

	resp, err := theater.Send(cmd.Context(), command)
	if err != nil {
		return err
	}

	var out []byte
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		out, err = json.MarshalIndent(resp, "", "  ")
	} else {
		out, err = json.Marshal(resp)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
