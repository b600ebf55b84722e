package monitor

import (
	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/spf13/cobra"
)

var theater *client.TheaterClient

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	for _, cmd := range []*cobra.Command{WatchCmd, PerfCmd} {
		util.SetupRPCClientFlags(cmd)
		cmd.PersistentPostRunE = closeMonitorClient
	}
}

// setupMonitorClient connects to the Theater server
func setupMonitorClient(cmd *cobra.Command, _ []string) (err error) {
	theater, err = util.NewTheaterClient(cmd)
	return err
}

func closeMonitorClient(*cobra.Command, []string) error {
	if theater == nil {
		return nil
	}
	return theater.Close()
}
