package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	eventstore "github.com/aneshas/cockroach-eventstore"
	"github.com/aneshas/cockroach-eventstore/internal/httpapi"
)

func newAppendCommand(flags *storeFlags) *cobra.Command {
	var (
		stream        string
		expected      int64
		events        []string
		correlationID string
		transactionID string
	)

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append events to a stream",
		Long: `Append events to a single stream. Every --event is given as Type=JSON,
for example --event 'OrderPlaced={"total":10}'.
--expected is the sequence number the stream needs to be at: 0 for a new
stream, -1 for any existing stream or -2 (default) for any stream.
The stored events are printed as json lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStream(stream)
			if err != nil {
				return err
			}

			req := eventstore.AppendRequest{
				Stream:                 id,
				ExpectedSequenceNumber: expected,
			}

			for _, e := range events {
				data, err := parseEvent(e)
				if err != nil {
					return err
				}

				req.Events = append(req.Events, data)
			}

			var opts []eventstore.AppendOpt

			if correlationID != "" {
				opts = append(opts, eventstore.WithCorrelationID(correlationID))
			}

			if transactionID != "" {
				opts = append(opts, eventstore.WithTransactionID(transactionID))
			}

			es, err := flags.open()
			if err != nil {
				return err
			}

			defer es.Close()

			stored, err := es.AppendEvents(cmd.Context(), []eventstore.AppendRequest{req}, opts...)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())

			for _, evt := range stored {
				if err := enc.Encode(httpapi.NewEvent(evt)); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "", "Stream as context:name:id (required)")
	cmd.Flags().Int64Var(&expected, "expected", eventstore.AnySequenceNumber, "Expected stream sequence number")
	cmd.Flags().StringArrayVar(&events, "event", nil, "Event as Type=JSON, repeatable")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation id stored with the events")
	cmd.Flags().StringVar(&transactionID, "transaction-id", "", "Transaction id stored with the events (generated if empty)")

	if err := cmd.MarkFlagRequired("stream"); err != nil {
		panic(fmt.Sprintf("Failed to mark stream as required: %v", err))
	}

	return cmd
}

func parseEvent(s string) (eventstore.EventData, error) {
	typ, data, found := strings.Cut(s, "=")
	if !found || typ == "" {
		return eventstore.EventData{}, fmt.Errorf("event must be in Type=JSON form, got %q", s)
	}

	if !json.Valid([]byte(data)) {
		return eventstore.EventData{}, fmt.Errorf("event %s: invalid JSON payload", typ)
	}

	return eventstore.EventData{
		Type: typ,
		Data: []byte(data),
	}, nil
}
