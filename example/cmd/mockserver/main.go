// Standalone mock yard for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver --gates 1,2,3
//
// Then in another terminal:
//
//	go run ./cmd/yardwatch serve -c example/yardwatch.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jpalmerr/yardwatch/example/mockyard"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	gatesFlag := flag.String("gates", "1,2", "comma separated gate numbers")
	every := flag.Duration("every", 5*time.Second, "truck arrival interval")
	flag.Parse()

	var gates []string
	for _, g := range strings.Split(*gatesFlag, ",") {
		gate, err := mockyard.ParseGate(strings.TrimSpace(g))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		gates = append(gates, gate)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	yard := mockyard.New(logger, gates...)
	go yard.Run(*every, nil)

	fmt.Printf("Mock yard listening on %s (gates %s)\n", *addr, strings.Join(gates, ", "))
	fmt.Println("Press Ctrl+C to stop")

	if err := http.ListenAndServe(*addr, yard.Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
