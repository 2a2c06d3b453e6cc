package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	err := godotenv.Load()
	if err == nil {
		fmt.Println(".env found and loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func registerVersionMetric(reg prometheus.Registerer) {
	m := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "good_bots",
		Name:        "info",
		Help:        "Information about the good-bots build that produced the metrics.",
		ConstLabels: prometheus.Labels{"version": version},
	})
	reg.MustRegister(m)
	m.Set(1)
}
