package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/dispatch"
	"github.com/hyperjson/interpstate/hosttest"
	"github.com/hyperjson/interpstate/hostwazero"
	"github.com/hyperjson/interpstate/interp"
	"github.com/hyperjson/interpstate/keycache"
)

func main() {
	var (
		contexts    = flag.Int("contexts", 2, "Number of contexts to create")
		keys        = flag.String("keys", "id,name,created_at,updated_at,value", "Keys to intern (comma-separated)")
		repeat      = flag.Int("repeat", 3, "How many times to intern each key")
		wasmFile    = flag.String("wasm", "", "Attach a wasm guest as the first context's host (optional)")
		strict      = flag.Bool("strict", false, "Panic on cross-context violations")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		interpstate.SetLogger(log)
		defer log.Sync()
	}
	interpstate.SetStrict(*strict)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*contexts, strings.Split(*keys, ","), *repeat, *wasmFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(n int, keys []string, repeat int, wasmFile string) error {
	ctx := context.Background()
	registry := interp.NewRegistry()

	caps := dispatch.Detect()
	fmt.Printf("Hardware: sse2=%v avx2=%v neon=%v\n", caps.SSE2, caps.AVX2, caps.NEON)
	fmt.Printf("Capabilities: multi-context=%v\n", interpstate.DeclareCapabilities().MultiContext)

	if err := dispatch.Default.Register("key-hash", dispatch.LevelGeneric, keycache.HashKey); err != nil {
		return err
	}
	fn, level, ok := dispatch.Default.Lookup("key-hash")
	if !ok {
		return fmt.Errorf("no key-hash kernel registered")
	}
	hash := fn.(func([]byte) uint64)
	fmt.Printf("Kernel key-hash: %s\n\n", level)

	var cs []*interp.Context
	for i := 0; i < n; i++ {
		var host interpstate.HostRuntime
		if i == 0 && wasmFile != "" {
			h, err := attachGuest(ctx, wasmFile)
			if err != nil {
				return err
			}
			defer h.Close()
			host = h
		} else {
			host = hosttest.New()
		}

		c, err := registry.OnContextCreate(host)
		if err != nil {
			return err
		}
		if err := c.EnsureInitialized(); err != nil {
			return fmt.Errorf("initialize context %d: %w", c.ID(), err)
		}
		cs = append(cs, c)
	}

	for _, c := range cs {
		cache, err := c.Keys()
		if err != nil {
			return err
		}
		id := c.ID()
		host := c.Host()
		materialize := func(b []byte) (interpstate.Handle, error) {
			ref, err := host.NewString(b)
			if err != nil {
				return interpstate.Handle{}, err
			}
			return interpstate.NewHandle(id, ref), nil
		}
		for r := 0; r < repeat; r++ {
			for _, key := range keys {
				if key == "" {
					continue
				}
				kb := []byte(key)
				if _, err := cache.GetOrCreate(id, kb, hash(kb), materialize); err != nil {
					return fmt.Errorf("intern %q in context %d: %w", key, id, err)
				}
			}
		}
	}

	fmt.Printf("%-6s %-14s %-8s %-8s %-8s %-10s\n", "CTX", "STATE", "BUNDLE", "HITS", "MISSES", "EVICTIONS")
	for _, c := range cs {
		refs, err := c.Refs()
		if err != nil {
			return err
		}
		cache, err := c.Keys()
		if err != nil {
			return err
		}
		stats := cache.Stats()
		fmt.Printf("%-6d %-14s %-8d %-8d %-8d %-10d\n",
			c.ID(), c.State(), refs.Len(), stats.Hits, stats.Misses, stats.Evictions)
	}

	fmt.Printf("\nLive contexts: %d\n", registry.Live())
	return nil
}

func attachGuest(ctx context.Context, wasmFile string) (*hostwazero.Host, error) {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	mod, err := r.Instantiate(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	if err := hostwazero.Verify(mod, nil); err != nil {
		return nil, fmt.Errorf("verify guest: %w", err)
	}
	return hostwazero.Attach(ctx, mod, nil)
}
