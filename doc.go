// Package yardwatch keeps the pages of a logistics yard application current
// by polling their backing endpoints and pushing only what changed.
//
// Each [View] is one page fragment: a JSON endpoint cut into named regions,
// or a server-rendered HTML partial. Every view runs its own polling cycle:
//
//  1. fetch the endpoint (cache-busted, with a per-request timeout)
//  2. decode the response once, at the boundary, into a payload or a
//     single tagged error
//  3. hash the canonical form of the payload
//  4. when the hash differs from the last applied one, store the new
//     regions and notify subscribers of the regions that moved
//
// A tick that arrives while a request is in flight is dropped. A view with
// an open modal, or whose page is hidden, is suspended; polling resumes
// with one catch-up tick when the gate clears. After three consecutive
// counted failures the view halts and shows a notice until it is reloaded.
// Timeouts and aborted requests never count.
//
// # Quick Start
//
//	v, _ := yardwatch.NewView("pending", "https://yard.example.com/api/porteria/pendientes",
//	    yardwatch.WithRegion("rows", "data.rows", "rows"),
//	    yardwatch.WithItems("data.rows|rows", "id", "tipo|type"),
//	    yardwatch.WithSelection(3, "https://yard.example.com/api/porteria/autorizar"),
//	)
//	yw, _ := yardwatch.New(yardwatch.WithView(v))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	yw.Start(ctx) // blocks until ctx is cancelled
//
// # API
//
// The HTTP server exposes the latest snapshot of every view under
// /api/views, live changes over Server-Sent Events at /api/sse and over a
// WebSocket at /api/ws, and per-view controls: modal and visibility gates,
// refresh, reload after a halt, the saved filter and the capped selection.
//
// # Grids
//
// [NewViewGrid] expands a URL template over dimension values, producing one
// view per combination, for example the same page for every gate:
//
//	views, _ := yardwatch.NewViewGrid("pending",
//	    yardwatch.WithURLTemplate("https://yard.example.com/api/pendientes?gate={{.gate}}"),
//	    yardwatch.WithDimensions(map[string][]string{"gate": {"1", "2", "3"}}),
//	)
//	yw, _ := yardwatch.New(yardwatch.WithViews(views...))
package yardwatch
