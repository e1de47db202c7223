// Command sse_load opens many concurrent SSE subscriptions against the
// dashboard's portfolio stream and reports connection and event
// throughput numbers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type counters struct {
	connected   int64
	connectErrs int64
	streamErrs  int64
	views       int64
	heartbeats  int64
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		lastEventID  uint64
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/portfolio/stream", "portfolio SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent subscriptions to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.Uint64Var(&lastEventID, "last-event-id", 0, "replay cursor sent as Last-Event-ID (0 to start from the history head)")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}

	if rampUp == 0 && connections > 100 {
		// default ramp-up: 1 second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < 1*time.Second {
			rampUp = 1 * time.Second
		}
		log.Printf("no ramp-up specified for high connection count, using %s", rampUp)
	}

	log.Printf("starting portfolio SSE load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, testDuration, rampUp)

	transport := &http.Transport{
		MaxConnsPerHost:     connections + 100,
		MaxIdleConns:        connections + 100,
		MaxIdleConnsPerHost: connections + 100,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   0, // streaming
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("caught signal: %s, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if testDuration > 0 {
		go func() {
			timer := time.NewTimer(testDuration)
			defer timer.Stop()
			select {
			case <-timer.C:
				log.Printf("duration reached, stopping...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	var (
		stats counters
		wg    sync.WaitGroup
	)

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
			subscribe(ctx, client, targetURL, lastEventID, &stats)
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: connected=%d connect_errs=%d stream_errs=%d views=%d heartbeats=%d elapsed=%s",
					atomic.LoadInt64(&stats.connected),
					atomic.LoadInt64(&stats.connectErrs),
					atomic.LoadInt64(&stats.streamErrs),
					atomic.LoadInt64(&stats.views),
					atomic.LoadInt64(&stats.heartbeats),
					time.Since(start).Truncate(time.Second),
				)
			}
		}
	}()

	wg.Wait()
	cancel()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	perSec := float64(atomic.LoadInt64(&stats.views)) / elapsed.Seconds()

	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d views=%d elapsed=%s views/s=%.2f\n",
		atomic.LoadInt64(&stats.connected),
		atomic.LoadInt64(&stats.connectErrs),
		atomic.LoadInt64(&stats.streamErrs),
		atomic.LoadInt64(&stats.views),
		elapsed.Truncate(time.Millisecond),
		perSec,
	)
}

// subscribe holds one SSE subscription open until the context is done
// or the stream breaks, counting delivered portfolio views.
func subscribe(ctx context.Context, client *http.Client, url string, lastEventID uint64, stats *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		atomic.AddInt64(&stats.connectErrs, 1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID > 0 {
		req.Header.Set("Last-Event-ID", fmt.Sprintf("%d", lastEventID))
	}

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&stats.connectErrs, 1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&stats.connectErrs, 1)
		return
	}

	atomic.AddInt64(&stats.connected, 1)
	reader := bufio.NewReader(resp.Body)

	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.streamErrs, 1)
			}
			return
		}
		switch {
		case strings.HasPrefix(line, "event: portfolio"):
			atomic.AddInt64(&stats.views, 1)
		case strings.HasPrefix(line, ":"):
			atomic.AddInt64(&stats.heartbeats, 1)
		}
	}
}
