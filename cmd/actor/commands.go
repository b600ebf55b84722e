package actor

import (
	"fmt"

	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the ids of all running actors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actors, err := theater.ListActors(cmd.Context())
			if err != nil {
				return err
			}
			if len(actors) == 0 {
				fmt.Println("no actors running")
				return nil
			}
			for _, id := range actors {
				fmt.Println(id)
			}
			return nil
		},
	}
	startCmd = &cobra.Command{
		Use:   "start [manifest]",
		Short: "Starts an actor from a manifest and prints its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state []byte
			if raw, _ := cmd.Flags().GetString("state"); raw != "" {
				var err error
				if state, err = util.ParseBytes(raw); err != nil {
					return err
				}
			}
			id, err := theater.StartActor(cmd.Context(), args[0], state)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	stopCmd = &cobra.Command{
		Use:   "stop [id]",
		Short: "Stops an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := theater.StopActor(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("stopped successfully")
			return nil
		},
	}
	restartCmd = &cobra.Command{
		Use:   "restart [id]",
		Short: "Restarts an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := theater.RestartActor(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("restarted successfully")
			return nil
		},
	}
	stateCmd = &cobra.Command{
		Use:   "state [id]",
		Short: "Prints the state of an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := theater.GetActorState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Println("<no state>")
				return nil
			}
			fmt.Println(util.FormatBytes(state))
			return nil
		},
	}
	eventsCmd = &cobra.Command{
		Use:   "events [id]",
		Short: "Prints the event chain of an actor, one JSON event per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := theater.GetActorEvents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, event := range events {
				fmt.Println(string(event))
			}
			return nil
		},
	}
	sendCmd = &cobra.Command{
		Use:   "send [id] [message]",
		Short: "Sends a one-way message to an actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := util.ParseBytes(args[1])
			if err != nil {
				return err
			}
			if err := theater.SendMessage(cmd.Context(), args[0], data); err != nil {
				return err
			}
			fmt.Println("sent successfully")
			return nil
		},
	}
	requestCmd = &cobra.Command{
		Use:   "request [id] [message]",
		Short: "Sends a request to an actor and prints the answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := util.ParseBytes(args[1])
			if err != nil {
				return err
			}
			answer, err := theater.RequestMessage(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			fmt.Println(util.FormatBytes(answer))
			return nil
		},
	}
)
