// Command example runs a mock yard and a yardwatch instance polling it.
//
// Usage:
//
//	go run ./example
//
// Then follow changes with:
//
//	curl -N http://localhost:8080/api/sse
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/yardwatch"
	"github.com/jpalmerr/yardwatch/example/mockyard"
)

const mockAddr = "localhost:9999"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	yard := mockyard.New(logger.With("component", "mockyard"), "1", "2")
	go yard.Run(4*time.Second, ctx.Done())
	go func() {
		if err := http.ListenAndServe(mockAddr, yard.Handler()); err != nil {
			logger.Error("mock yard stopped", "error", err)
		}
	}()

	base := "http://" + mockAddr

	// one view per gate; gate 1 answers in the legacy layout
	gates, err := yardwatch.NewViewGrid("pending",
		yardwatch.WithURLTemplate(base+"/api/porteria/{{.gate}}/pendientes"),
		yardwatch.WithDimensions(map[string][]string{"gate": {"1", "2"}}),
		yardwatch.WithGridViewOptions(
			yardwatch.WithRegion("pending", "data.pendientes", "pendientes"),
			yardwatch.WithItems("data.pendientes|pendientes", "id", "tipo"),
			yardwatch.WithSelection(3, base+"/api/porteria/autorizar"),
		),
	)
	if err != nil {
		logger.Error("failed to create view grid", "error", err)
		os.Exit(1)
	}

	board, err := yardwatch.NewView("board", base+"/patio/tablero",
		yardwatch.WithKind(yardwatch.KindHTML),
		yardwatch.WithHTMLRegion("rows", "tabla-camiones"),
		yardwatch.WithHTMLRegion("count", "reloj"),
		yardwatch.WithInterval(10*time.Second),
	)
	if err != nil {
		logger.Error("failed to create board view", "error", err)
		os.Exit(1)
	}

	yw, err := yardwatch.New(
		yardwatch.WithViews(gates...),
		yardwatch.WithView(board),
		yardwatch.WithPollingInterval(3*time.Second),
		yardwatch.WithPort(8080),
		yardwatch.WithLogger(logger),
		yardwatch.WithTitle("Patio demo"),
		yardwatch.WithChangeCallback(func(ev yardwatch.Event) {
			if ev.Kind == yardwatch.EventChanged {
				logger.Info("view changed", "view", ev.View, "regions", ev.Changed)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create yardwatch", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  yardwatch demo")
	fmt.Println()
	fmt.Println("  views:    http://localhost:8080/api/views")
	fmt.Println("  changes:  curl -N http://localhost:8080/api/sse")
	fmt.Println("  select:   curl -X POST http://localhost:8080/api/views/pending-1/selection/1")
	fmt.Println("  submit:   curl -X POST http://localhost:8080/api/views/pending-1/selection/submit")
	fmt.Println()

	if err := yw.Start(ctx); err != nil {
		logger.Error("yardwatch error", "error", err)
		os.Exit(1)
	}
}
