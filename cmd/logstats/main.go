// Command logstats reads access-log lines from stdin and prints cumulative
// metrics every ten lines and on interrupt or end of input.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wehubfusion/Daedalus/pkg/process/logstats"
)

func main() {
	agg := logstats.NewAggregator(os.Stdout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		agg.WriteMetrics()
		os.Exit(0)
	}()

	if err := agg.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "logstats: %v\n", err)
		os.Exit(1)
	}
}
