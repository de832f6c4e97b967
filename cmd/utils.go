////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/synapse/cache"
	"gitlab.com/elixxir/synapse/health"
	"gitlab.com/elixxir/synapse/messenger"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/remote"
	"gitlab.com/elixxir/synapse/session"
)

// Maximum duration the metrics server waits for open requests on exit
const metricsShutdownTimeout = 2 * time.Second

// logLevel maps the verbosity flag to a jww threshold and its name.
func logLevel(verbosity uint) (jww.Threshold, string) {
	switch {
	case verbosity > 1:
		return jww.LevelTrace, "TRACE"
	case verbosity == 1:
		return jww.LevelDebug, "DEBUG"
	default:
		return jww.LevelInfo, "INFO"
	}
}

// initLog sends jww output to logPath, or to stdout when logPath is "-" or
// empty, at the threshold picked by verbosity.
func initLog(verbosity uint, logPath string) {
	destination := "stdout"
	if logPath != "-" && logPath != "" {
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			jww.FATAL.Panicf("[LOG] Failed to open log file %s: %+v",
				logPath, err)
		}
		jww.SetStdoutOutput(io.Discard)
		jww.SetLogOutput(logOutput)
		destination = logPath
	}

	threshold, name := logLevel(verbosity)
	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	if threshold < jww.LevelInfo {
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	jww.INFO.Printf("[LOG] Logging %s and above to %s", name, destination)
	jww.INFO.Print(version())
}

// client holds everything a subcommand runs against. close releases it all.
type client struct {
	*messenger.Messenger
	remote  *remote.Client
	store   *cache.Store
	metrics *http.Server
}

// initClient connects to Redis, opens the session and the local cache and
// builds the Messenger. Failures are fatal.
func initClient() *client {
	params := initParams()
	c := &client{}

	var m *metrics.Metrics
	if addr := viper.GetString(metricsFlag); addr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		c.metrics = serveMetrics(addr, reg)
	}

	remoteParams, err := remote.GetParameters(viper.GetString(remoteParamsFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse remote params: %+v", err)
	}
	healthParams, err := health.GetParameters(viper.GetString(healthParamsFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse health params: %+v", err)
	}

	c.remote, err = remote.Dial(viper.GetString(redisFlag), remoteParams, m)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}

	kv, err := ekv.NewFilestore(viper.GetString(sessionFlag),
		viper.GetString(passwordFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to open session storage: %+v", err)
	}
	sess, err := session.Load(kv)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}

	if params.Cache.UseCache {
		c.store, err = cache.NewStore(viper.GetString(cacheFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	}

	monitor := health.Init(c.remote, healthParams)
	c.Messenger, err = messenger.New(c.remote, monitor, sess, c.store,
		params, m, netTime.Now)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	return c
}

func initParams() messenger.Params {
	params, err := messenger.GetParameters(viper.GetString(paramsFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse messenger params: %+v", err)
	}
	if viper.GetBool(noCacheFlag) {
		params.Cache.UseCache = false
	}
	return params
}

// start starts the background processes if a user is signed in.
func (c *client) start() {
	err := c.Start()
	if errors.Is(err, session.ErrNoSession) {
		jww.WARN.Printf("Nobody is signed in, run login first")
		return
	} else if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
}

// close stops the Messenger and releases every resource of the client.
func (c *client) close() {
	if err := c.Close(); err != nil {
		jww.ERROR.Printf("%+v", err)
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			jww.ERROR.Printf("%+v", err)
		}
	}
	if err := c.remote.Close(); err != nil {
		jww.ERROR.Printf("%+v", err)
	}
	if c.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(),
			metricsShutdownTimeout)
		defer cancel()
		if err := c.metrics.Shutdown(ctx); err != nil {
			jww.ERROR.Printf("Failed to stop metrics server: %+v", err)
		}
	}
}

// serveMetrics serves the collectors of reg on addr in the background.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		jww.INFO.Printf("Serving metrics on %s", addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			jww.ERROR.Printf("Metrics server failed: %+v", err)
		}
	}()
	return srv
}

// waitForExit blocks until the process is interrupted or, if set, the wait
// flag elapses.
func waitForExit() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var timeout <-chan time.Time
	if wait := viper.GetDuration(waitFlag); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s := <-sig:
		jww.INFO.Printf("Received %s, exiting", s)
	case <-timeout:
	}
}
