package weekly

import (
	"context"
	"time"
)

// streamBufferSize bounds how many events may sit undelivered before the
// consumer is declared too slow.
const streamBufferSize = 16

// StreamRunner re-expresses the core pipeline as an ordered event stream
// for the SSE facade to frame as text/event-stream.
type StreamRunner struct {
	Pipeline *Pipeline
}

// NewStreamRunner wires a StreamRunner to its pipeline.
func NewStreamRunner(p *Pipeline) *StreamRunner {
	return &StreamRunner{Pipeline: p}
}

// RunStream starts the pipeline in a goroutine and returns a channel of its
// ordered events; the channel is closed after the terminal complete/error
// event. If the caller falls behind — the buffer fills — the stream is
// cancelled with an error{kind=consumer_slow} event and the pipeline is
// aborted.
func (s *StreamRunner) RunStream(ctx context.Context, params RunParams) <-chan Event {
	// One slot beyond streamBufferSize is kept free for the consumer_slow
	// error frame.
	out := make(chan Event, streamBufferSize+1)
	runCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer cancel()

		slow := false
		emit := func(ev Event) {
			if slow {
				return
			}
			// This goroutine is the only sender, so with fewer than
			// streamBufferSize events pending the send cannot block.
			if len(out) < streamBufferSize {
				out <- ev
				return
			}
			slow = true
			cancel()
			out <- Event{Kind: EventError, At: time.Now(), Payload: ErrorPayload{
				Kind: KindConsumerSlow, Message: "consumer fell behind the event stream", At: time.Now(),
			}}
		}

		s.Pipeline.Run(runCtx, params, emit)
	}()

	return out
}
