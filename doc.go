// Package adkchat is a Go client for ADK-style agent services: session
// lifecycle over the /apps/{app}/users/{user}/sessions endpoints and
// streaming conversation turns over /run_sse.
//
// The package is built around four pieces:
//
//   - Client (this package): session CRUD against the remote service, with
//     deliberate degradation on failure — a fallback session when create
//     fails, not-found results instead of transport errors on reads, an
//     apology stream when a message cannot be sent.
//   - streaming.Decoder: turns the raw SSE response body into an ordered
//     sequence of text deltas, tolerant of arbitrary chunk boundaries and
//     individually malformed frames.
//   - conversation.Controller: the per-session message list and its state
//     machine (loading history, streaming a reply), guarded so that deltas
//     from an abandoned stream can never leak into another session's list.
//   - directory.Controller: the recency-sorted list of all sessions, with
//     optimistic create/delete reconciliation and active-session selection.
//
// # Quick start
//
//	client, err := adkchat.New(adkchat.ConfigFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := client.CreateSession(ctx, "Planning chat")
//
//	body := client.SendMessage(ctx, "Hello", session.ID)
//	dec := streaming.NewDecoder(body)
//	defer dec.Close()
//	for dec.Next() {
//	    fmt.Print(dec.Delta())
//	}
//	if err := dec.Err(); err != nil {
//	    log.Printf("stream ended early: %v", err)
//	}
//
// Most applications sit one level higher and drive conversation.Controller
// and directory.Controller instead of the Client directly; see cmd/adkchat
// for a complete terminal front end.
package adkchat
