package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/stake-plus/geo-sink/src/cache"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ipfs"
)

var (
	gatewayFlag = flag.String("gateway", "https://ipfs.network.thegraph.com/api/v0/cat?arg=", "IPFS gateway prefix")
	timeoutFlag = flag.Duration("timeout", 60*time.Second, "Overall resolve timeout")
	redisFlag   = flag.String("redis", "", "Optional redis URL for the content cache")
	maxLenFlag  = flag.Int("max-bytes", 4000, "Maximum bytes of payload to print (0=unlimited)")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: resolve-uri [flags] <ipfs://CID | data:application/json;base64,...>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	uri := flag.Arg(0)

	var content cache.Content = cache.Nop{}
	if *redisFlag != "" {
		rc, err := cache.NewRedis(*redisFlag, 0)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		content = rc
	}

	resolver := ipfs.NewResolver(ipfs.Options{
		Gateway: *gatewayFlag,
		Timeout: *timeoutFlag,
		Cache:   content,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	payload, err := resolver.Fetch(ctx, uri)
	if err != nil {
		log.Fatalf("resolve ❌ %s: %v", describe(err), err)
	}
	fmt.Printf("resolve ✅ (%.1fs) type=%q version=%q proposal=%q\n",
		time.Since(start).Seconds(), payload.Header.Type, payload.Header.Version, payload.Header.ProposalID)

	if payload.Header.Type == "content" {
		if cp, err := events.DecodeContent(payload.Raw); err != nil {
			fmt.Printf("content ❌ %v\n", err)
		} else {
			fmt.Printf("content: %d actions, %d skipped\n", len(cp.Actions), cp.SkippedActions)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, payload.Raw, "", "  "); err != nil {
		out.Reset()
		out.Write(payload.Raw)
	}
	fmt.Println(truncate(out.String(), *maxLenFlag))
}

func describe(err error) string {
	var (
		enc     *ipfs.UnableToParseEncodingError
		fetch   *ipfs.FetchFailedError
		parse   *ipfs.UnableToParseJsonError
		timeout *ipfs.TimeoutError
	)
	switch {
	case errors.As(err, &enc):
		return "bad encoding"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &fetch):
		return "fetch failed"
	case errors.As(err, &parse):
		return "bad json"
	}
	return "error"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "\n...(truncated)"
}
