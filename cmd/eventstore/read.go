package main

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	eventstore "github.com/aneshas/cockroach-eventstore"
	"github.com/aneshas/cockroach-eventstore/internal/httpapi"
)

func newReadCommand(flags *storeFlags) *cobra.Command {
	var (
		stream     string
		streamType string
		from       int64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print events as json lines",
		Long: `Print all events, the events of a single stream (--stream) or the
events of all streams of a type (--stream-type), in global order.
--from is an event id, or a sequence number when reading a single stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stream != "" && streamType != "" {
				return fmt.Errorf("--stream and --stream-type are mutually exclusive")
			}

			es, err := flags.open()
			if err != nil {
				return err
			}

			defer es.Close()

			ctx := cmd.Context()
			opts := []eventstore.ReadOpt{eventstore.WithLimit(limit)}

			var events iter.Seq2[eventstore.Event, error]

			switch {
			case stream != "":
				id, err := parseStream(stream)
				if err != nil {
					return err
				}

				events = es.GetEventsByStream(ctx, id, from, opts...)

			case streamType != "":
				t, err := parseStreamType(streamType)
				if err != nil {
					return err
				}

				events = es.GetEventsByStreamType(ctx, t, from, opts...)

			default:
				events = es.GetEvents(ctx, from, opts...)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())

			for evt, err := range events {
				if err != nil {
					return err
				}

				if err := enc.Encode(httpapi.NewEvent(evt)); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "", "Read a single stream, given as context:name:id")
	cmd.Flags().StringVar(&streamType, "stream-type", "", "Read all streams of a type, given as context:name")
	cmd.Flags().Int64Var(&from, "from", 0, "Read events after this event id (sequence number with --stream)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events, 0 for all")

	return cmd
}
