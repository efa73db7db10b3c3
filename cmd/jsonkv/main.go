// Command jsonkv reads and edits a JSON document by key, or serves it over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"

	"github.com/maruel/jsonkv"
	"github.com/maruel/jsonkv/internal/server"
	"github.com/maruel/jsonkv/jsontree"
	"github.com/maruel/jsonkv/keypath"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "jsonkv: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: jsonkv [flags] <command> [args]

commands:
  get <key>               print the value at key
  set <key> <value>       set key to a string
  set-null <key>          set key to null
  set-json <key> <json>   replace the subtree at key with a JSON value
  keys [prefix]           list leaf keys, optionally below prefix
  dump [-yaml] [key]      print the document or the subtree at key
  serve [-http addr]      serve the document over HTTP

flags:
`

func mainImpl() error {
	file := flag.String("file", "jsonkv.json", "JSON document to operate on")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["file"] {
		if v := os.Getenv("JSONKV_FILE"); v != "" {
			*file = v
		}
	}
	if !set["log-level"] {
		if v := os.Getenv("JSONKV_LOG_LEVEL"); v != "" {
			*logLevel = v
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0 && a.Key != "status"
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	})))

	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	return run(ctx, *file, flag.Args(), os.Stdout)
}

// run executes one command against file.
func run(ctx context.Context, file string, args []string, w io.Writer) (err error) {
	cmd, args := args[0], args[1:]
	if cmd == "serve" {
		return serve(ctx, file, args)
	}
	p, err := jsonkv.Open(jsonkv.FileSource(file), &jsonkv.Options{Optional: true})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, p.Close())
	}()
	switch cmd {
	case "get":
		if len(args) != 1 {
			return errors.New("usage: get <key>")
		}
		v, ok := p.TryGet(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", jsonkv.ErrKeyNotFound, args[0])
		}
		if v == nil {
			_, err = fmt.Fprintln(w, "null")
		} else {
			_, err = fmt.Fprintln(w, *v)
		}
		return err
	case "set":
		if len(args) != 2 {
			return errors.New("usage: set <key> <value>")
		}
		return p.SetLeaf(args[0], &args[1])
	case "set-null":
		if len(args) != 1 {
			return errors.New("usage: set-null <key>")
		}
		return p.SetLeaf(args[0], nil)
	case "set-json":
		if len(args) != 2 {
			return errors.New("usage: set-json <key> <json>")
		}
		n, err := jsontree.Parse([]byte(args[1]))
		if err != nil {
			return fmt.Errorf("invalid JSON value: %w", err)
		}
		return p.ReplaceSubtree(args[0], n)
	case "keys":
		if len(args) > 1 {
			return errors.New("usage: keys [prefix]")
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		for _, k := range p.Keys() {
			if keypath.HasPrefix(k, prefix) {
				if _, err := fmt.Fprintln(w, k); err != nil {
					return err
				}
			}
		}
		return nil
	case "dump":
		return dump(p, args, w)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func dump(p *jsonkv.Provider, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	asYAML := fs.Bool("yaml", false, "Print YAML instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("usage: dump [-yaml] [key]")
	}
	n, ok := p.Subtree(fs.Arg(0))
	if !ok {
		return fmt.Errorf("%w: %q", jsonkv.ErrKeyNotFound, fs.Arg(0))
	}
	var b []byte
	var err error
	if *asYAML {
		b, err = yaml.Marshal(jsontree.ToYAML(n))
	} else {
		b, err = jsontree.Encode(n)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func serve(ctx context.Context, file string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	httpAddr := fs.String("http", "localhost:8080", "Address to listen on")
	writesPerSecond := fs.Float64("writes-per-second", 0, "Limit of mutating requests per second, 0 for unlimited")
	maxDiskWrites := fs.Float64("max-disk-writes", 0, "Limit of file writes per second, 0 for unlimited")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p, err := jsonkv.Open(jsonkv.FileSource(file), &jsonkv.Options{
		Optional:           true,
		ReloadOnChange:     true,
		MaxWritesPerSecond: *maxDiskWrites,
		Registerer:         reg,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Failed to save document", "err", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.NewRouter(p, server.Config{Gatherer: reg, WritesPerSecond: *writesPerSecond, WriteBurst: 10}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", *httpAddr, "file", p.Path())
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}
