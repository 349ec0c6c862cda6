// snowflake-to-falkordb syncs relational rows from Snowflake (or local JSON
// files) into a FalkorDB property graph, as one-shot load or as a daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/loader"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Config is the CLI surface of the loader.
var Config = new(struct {
	ConfigFile   string   `long:"config" short:"c" required:"true" description:"Path to the JSON or YAML configuration file" value-name:"PATH"`
	PurgeGraph   bool     `long:"purge-graph" description:"Delete every node and relationship before the first run"`
	PurgeMapping []string `long:"purge-mapping" description:"Delete one mapping's graph data before the first run (repeatable)" value-name:"NAME"`
	Daemon       bool     `long:"daemon" description:"Keep running, syncing once per interval"`
	IntervalSecs int      `long:"interval-secs" default:"60" description:"Seconds between daemon runs" value-name:"N"`

	Metrics struct {
		Addr string `long:"addr" env:"ADDR" default:"0.0.0.0:9898" description:"Address of the Prometheus metrics listener"`
	} `group:"Metrics" namespace:"metrics" env-namespace:"METRICS"`

	Log struct {
		Level  string `long:"level" env:"LEVEL" default:"info" description:"Logging level"`
		Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
	} `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	initLog()

	if err := run(); err != nil {
		log.WithField("err", err).Fatal("load failed")
	}
}

func run() error {
	if Config.Daemon && Config.IntervalSecs <= 0 {
		return fmt.Errorf("--interval-secs must be positive")
	}
	cfg, err := config.LoadFile(Config.ConfigFile)
	if err != nil {
		return err
	}

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		log.Info("caught signal; shutting down")
		cancel()
	}()

	go serveMetrics()

	l, err := loader.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	var purge = loader.PurgeOptions{
		Graph:    Config.PurgeGraph,
		Mappings: Config.PurgeMapping,
	}

	if Config.Daemon {
		var interval = time.Duration(Config.IntervalSecs) * time.Second
		log.WithField("interval", interval).Info("starting sync daemon")
		return l.RunDaemon(ctx, purge, interval)
	}

	if err = l.Run(ctx, purge); err != nil {
		return err
	}
	fmt.Println("Load completed successfully.")
	return nil
}

// serveMetrics exposes the loader's counters in Prometheus text format. The
// handler is mounted at the root, so GET / and GET /metrics both answer.
func serveMetrics() {
	http.Handle("/", promhttp.Handler())
	if err := http.ListenAndServe(Config.Metrics.Addr, nil); err != nil {
		log.WithField("err", err).Error("metrics listener failed")
	}
}

func initLog() {
	if Config.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if Config.Log.Format == "color" {
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}

	if lvl, err := log.ParseLevel(Config.Log.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}
