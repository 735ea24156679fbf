// Package copilotsdk provides a Go SDK for driving the GitHub Copilot CLI.
//
// The SDK spawns the copilot CLI as a child process (or dials an already
// running server over TCP) and speaks JSON-RPC 2.0 with it over
// Content-Length framed messages. It supports one-shot prompts as well as
// long-lived interactive sessions with streaming events, custom tools
// serviced in-process, and permission prompts.
//
// # Basic Usage
//
// For simple, one-shot prompts, use the Query function:
//
//	ctx := context.Background()
//	for ev, err := range copilotsdk.Query(ctx, "What is 2+2?") {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if ev.Type == copilotsdk.EventMessageDelta {
//	        delta, _ := ev.MessageDelta()
//	        fmt.Print(delta.DeltaContent)
//	    }
//	}
//
// # Interactive Sessions
//
// For multi-turn conversations, use NewClient or the WithClient helper:
//
//	err := copilotsdk.WithClient(ctx, func(c copilotsdk.Client) error {
//	    sess, err := c.CreateSession(ctx, &copilotsdk.SessionConfig{Streaming: true})
//	    if err != nil {
//	        return err
//	    }
//	    defer sess.Destroy(ctx)
//
//	    off := sess.On(func(ev *copilotsdk.Event) {
//	        // process event...
//	    })
//	    defer off()
//
//	    _, err = sess.Send(ctx, copilotsdk.MessageOptions{Prompt: "Hello"})
//	    return err
//	},
//	    copilotsdk.WithLogger(slog.Default()),
//	)
//
// # Custom Tools
//
// Sessions can expose tools serviced by this process. When the model
// invokes a tool, the CLI sends a request back over the same connection
// and the SDK runs the registered handler:
//
//	cfg := &copilotsdk.SessionConfig{
//	    Tools: []copilotsdk.Tool{{
//	        Name:        "get_weather",
//	        Description: "Current weather for a city",
//	        Parameters:  copilotsdk.SimpleSchema(map[string]string{"city": "string"}),
//	        Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
//	            return "sunny, 22C", nil
//	        },
//	    }},
//	}
//
// # Error Handling
//
// All SDK errors implement the CopilotSDKError interface. Typed errors
// such as CLINotFoundError, ConnectionError, ProcessError, ProtocolError
// and RPCError can be matched with errors.As; sentinel conditions such as
// ErrRequestTimeout and ErrSessionDestroyed with errors.Is.
package copilotsdk
