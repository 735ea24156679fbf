package copilotsdk

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/copilotstream/copilot-sdk-go/internal/client"
	"github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/session"
)

// Query runs a single prompt against the copilot CLI and streams the
// resulting session events.
//
// It spawns the CLI, creates a streaming session, sends the prompt, and
// yields events until the turn completes. The CLI is shut down when the
// iterator finishes, whether by reaching the end of the turn, by an
// error, or by the caller breaking out of the loop.
//
// Example usage:
//
//	ctx := context.Background()
//	for ev, err := range Query(ctx, "What is 2+2?") {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    switch ev.Type {
//	    case EventMessageDelta:
//	        delta, _ := ev.MessageDelta()
//	        fmt.Print(delta.DeltaContent)
//	    case EventUsage:
//	        // token accounting
//	    }
//	}
//
// Errors are yielded inline as the second return value. Iteration stops
// after the first error: setup failures, transport failures, and context
// cancellation all surface this way. A turn that ends with an EventError
// event yields the event itself, not an error, so the caller can inspect
// the payload.
//
// For multi-turn conversations, custom tools, or permission handling,
// use NewClient with QueryConfig or a hand-built SessionConfig instead.
func Query(ctx context.Context, prompt string, opts ...Option) iter.Seq2[*Event, error] {
	return QueryConfig(ctx, prompt, nil, opts...)
}

// QueryConfig is Query with an explicit session configuration, for
// one-shot prompts that need a specific model, instructions, or custom
// tools. Streaming is always enabled; a nil cfg behaves like Query.
func QueryConfig(ctx context.Context, prompt string, cfg *SessionConfig, opts ...Option) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		options := applyOptions(opts)

		c := client.New()
		if err := c.Start(ctx, options); err != nil {
			yield(nil, err)

			return
		}
		defer c.Close()

		sessionCfg := &session.Config{}
		if cfg != nil {
			*sessionCfg = *cfg
		}
		sessionCfg.Streaming = true

		sess, err := c.CreateSession(ctx, sessionCfg)
		if err != nil {
			yield(nil, err)

			return
		}
		defer sess.Destroy(ctx)

		// Buffer so the dispatcher is not blocked between yields.
		events := make(chan *event.Event, 64)
		finished := make(chan struct{})
		defer close(finished)

		off := sess.On(func(ev *event.Event) {
			select {
			case events <- ev:
			case <-finished:
			}
		})
		defer off()

		// Send runs concurrently so events produced while the send call
		// is still in flight are consumed, not queued.
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			_, sendErr := sess.Send(egCtx, session.MessageOptions{Prompt: prompt})

			return sendErr
		})

		for {
			select {
			case ev := <-events:
				if !yield(ev, nil) {
					_ = eg.Wait()

					return
				}

				if ev.IsTerminal() {
					if waitErr := eg.Wait(); waitErr != nil {
						yield(nil, waitErr)
					}

					return
				}

			case <-egCtx.Done():
				// The send failed or the caller's context was cancelled
				// before the turn completed.
				if waitErr := eg.Wait(); waitErr != nil {
					yield(nil, waitErr)
				} else {
					yield(nil, ctx.Err())
				}

				return

			case <-c.Done():
				fatalErr := c.FatalError()
				if fatalErr == nil {
					fatalErr = errors.ErrDisconnected
				}
				yield(nil, fatalErr)

				return
			}
		}
	}
}
