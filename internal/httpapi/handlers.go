package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

const ndjsonContentType = "application/x-ndjson"

func (s *Server) handleAppendEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appendEventsRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

			return
		}

		var opts []eventstore.AppendOpt

		if req.CorrelationID != "" {
			opts = append(opts, eventstore.WithCorrelationID(req.CorrelationID))
		}

		if req.TransactionID != "" {
			opts = append(opts, eventstore.WithTransactionID(req.TransactionID))
		}

		events, err := s.store.AppendEvents(c.Request.Context(), req.toAppendRequests(), opts...)
		if err != nil {
			s.appendFailed(c, err)

			return
		}

		c.JSON(http.StatusCreated, appendEventsResponse{Events: newEvents(events)})
	}
}

func (s *Server) appendFailed(c *gin.Context, err error) {
	var ce *eventstore.ConsistencyError

	switch {
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, errorResponse{
			Error:      err.Error(),
			Violations: newViolations(ce),
		})

	case errors.Is(err, eventstore.ErrInvalidAppendRequest),
		errors.Is(err, eventstore.ErrNoAppendRequests):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, eventstore.ErrRetryExhausted):
		s.logger.Error(c.Request.Context(), "append gave up", "error", err)

		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})

	default:
		s.logger.Error(c.Request.Context(), "append failed", "error", err)

		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to append events"})
	}
}

func (s *Server) handleGetEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, opts, ok := readParams(c)
		if !ok {
			return
		}

		s.stream(c, s.store.GetEvents(c.Request.Context(), from, opts...))
	}
}

func (s *Server) handleGetEventsByStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, opts, ok := readParams(c)
		if !ok {
			return
		}

		stream := eventstore.StreamIdentity{
			Context: c.Param("context"),
			Name:    c.Param("name"),
			ID:      c.Param("id"),
		}

		if err := stream.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

			return
		}

		s.stream(c, s.store.GetEventsByStream(c.Request.Context(), stream, from, opts...))
	}
}

func (s *Server) handleGetEventsByStreamType() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, opts, ok := readParams(c)
		if !ok {
			return
		}

		streamType := eventstore.StreamType{
			Context: c.Param("context"),
			Name:    c.Param("name"),
		}

		if err := streamType.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

			return
		}

		s.stream(c, s.store.GetEventsByStreamType(c.Request.Context(), streamType, from, opts...))
	}
}

// readParams parses the from and limit query parameters. Both default to 0
func readParams(c *gin.Context) (int64, []eventstore.ReadOpt, bool) {
	var (
		from int64
		opts []eventstore.ReadOpt
	)

	if v := c.Query("from"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("from must be a non negative integer, got %q", v),
			})

			return 0, nil, false
		}

		from = n
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("limit must be an integer, got %q", v),
			})

			return 0, nil, false
		}

		opts = append(opts, eventstore.WithLimit(n))
	}

	return from, opts, true
}

// stream writes every event as a json line. The status is committed with the
// first line, so a read error is reported in the body
func (s *Server) stream(c *gin.Context, events iter.Seq2[eventstore.Event, error]) {
	c.Header("Content-Type", ndjsonContentType)
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)

	for evt, err := range events {
		if err != nil {
			s.logger.Error(c.Request.Context(), "read failed",
				"path", c.Request.URL.Path,
				"error", err)

			_ = enc.Encode(readLine{Error: err.Error()})

			return
		}

		e := NewEvent(evt)

		if err := enc.Encode(readLine{Event: &e}); err != nil {
			return
		}

		c.Writer.Flush()
	}

	_ = enc.Encode(readLine{End: true})
}
