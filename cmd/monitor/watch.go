package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/theaterctl/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// WatchCmd runs the heartbeat in the foreground
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ping the Theater server in a fixed interval until interrupted",
	Long: `Ping the Theater server every --heartbeat-interval seconds and print the
result of every ping. A lost connection is replaced by the next ping. Stop
with Ctrl+C.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: setupMonitorClient,
	RunE:              runWatch,
}

// printingPinger pings with ListActors and prints the outcome
type printingPinger struct {
	theater *client.TheaterClient
}

func (p printingPinger) Ping(ctx context.Context) error {
	start := time.Now()
	actors, err := p.theater.ListActors(ctx)
	ts := time.Now().Format(time.TimeOnly)
	if err != nil {
		fmt.Printf("%s  unreachable  %v\n", ts, err)
		return err
	}
	fmt.Printf("%s  ok  %d actors  %s\n", ts, len(actors), time.Since(start).Round(time.Microsecond))
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	pinger := printingPinger{theater: theater}
	interval := time.Duration(viper.GetInt("heartbeat-interval")) * time.Second
	if interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}

	fmt.Printf("watching %s every %s\n", viper.GetString("endpoint"), interval)

	// report the current state right away instead of after the first interval
	_ = pinger.Ping(cmd.Context())

	hb := client.StartHeartbeat(pinger, interval, nil)
	<-cmd.Context().Done()
	hb.Stop()

	fmt.Println("stopped")
	return nil
}
