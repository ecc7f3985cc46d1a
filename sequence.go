package eventstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type streamSequence struct {
	StreamContext string
	StreamName    string
	StreamID      string
	Sequence      int64
}

// resolveSequenceNumbers returns the highest recorded sequence number of each
// stream, 0 for streams without events. All streams are resolved with a single
// grouped query inside tx, so the result reflects the transaction's snapshot
func resolveSequenceNumbers(
	ctx context.Context,
	tx *gorm.DB,
	table string,
	streams []StreamIdentity) (map[StreamIdentity]int64, error) {

	current := make(map[StreamIdentity]int64, len(streams))
	keys := make([][]any, 0, len(streams))

	for _, s := range streams {
		if _, ok := current[s]; ok {
			continue
		}

		current[s] = 0
		keys = append(keys, []any{s.Context, s.Name, s.ID})
	}

	if len(keys) == 0 {
		return current, nil
	}

	var rows []streamSequence

	err := tx.WithContext(ctx).
		Table(table).
		Select("stream_context, stream_name, stream_id, MAX(sequence_number) AS sequence").
		Where("(stream_context, stream_name, stream_id) IN ?", keys).
		Group("stream_context, stream_name, stream_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream sequence numbers: %w", err)
	}

	for _, r := range rows {
		current[StreamIdentity{
			Context: r.StreamContext,
			Name:    r.StreamName,
			ID:      r.StreamID,
		}] = r.Sequence
	}

	return current, nil
}
