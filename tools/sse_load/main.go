// sse_load opens many concurrent SSE connections against the gridwire
// dashboard and reports how many portfolio snapshots each second the server
// manages to push. Useful for sizing the fan-out buffers in internal/web.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	snapshots   atomic.Int64
	heartbeats  atomic.Int64
	bytes       atomic.Int64
}

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
		rampUp      time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8088/portfolio/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 && connections > 100 {
		// spread the dial storm: one second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
		log.Printf("using default ramp-up %s for %d connections", rampUp, connections)
	}

	log.Printf("starting SSE load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, duration, rampUp)

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
		Timeout: 0, // streaming
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	var stats counters
	var wg sync.WaitGroup
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	for i := 0; i < connections; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, client, targetURL, &stats)
		}()
	}

	reportTicker := time.NewTicker(5 * time.Second)
	go func() {
		defer reportTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-reportTicker.C:
				log.Printf("status: connected=%d connect_errs=%d stream_errs=%d snapshots=%d heartbeats=%d elapsed=%s",
					stats.connected.Load(), stats.connectErrs.Load(), stats.streamErrs.Load(),
					stats.snapshots.Load(), stats.heartbeats.Load(), time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d snapshots=%d heartbeats=%d bytes=%d elapsed=%s snapshots/s=%.2f\n",
		stats.connected.Load(), stats.connectErrs.Load(), stats.streamErrs.Load(),
		stats.snapshots.Load(), stats.heartbeats.Load(), stats.bytes.Load(),
		elapsed.Truncate(time.Millisecond), float64(stats.snapshots.Load())/elapsed.Seconds())
}

func consume(ctx context.Context, client *http.Client, url string, stats *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		stats.connectErrs.Add(1)
		return
	}
	stats.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				stats.streamErrs.Add(1)
			}
			return
		}
		stats.bytes.Add(int64(len(line)))
		switch {
		case strings.HasPrefix(line, "data:"):
			stats.snapshots.Add(1)
		case strings.HasPrefix(line, ":"):
			stats.heartbeats.Add(1)
		}
	}
}
