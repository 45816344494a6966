package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erraggy/oasguard"
	"github.com/erraggy/oasguard/httpvalidator"
	"github.com/erraggy/oasguard/openapi"
	"go.uber.org/zap"
)

// ProxyFlags contains flags for the proxy command
type ProxyFlags struct {
	Spec            string
	Upstream        string
	Listen          string
	Config          string
	Engine          string
	StripResponse   bool
	ValidateResp    bool
	ValidateHeaders bool
	ExampleResponse bool
	PassUnknown     bool
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	Log             LogFlags
}

// SetupProxyFlags creates and configures a FlagSet for the proxy command.
func SetupProxyFlags() (*flag.FlagSet, *ProxyFlags) {
	fs := flag.NewFlagSet("proxy", flag.ContinueOnError)
	flags := &ProxyFlags{}

	fs.StringVar(&flags.Spec, "spec", "", "path to the OpenAPI document (required)")
	fs.StringVar(&flags.Upstream, "upstream", "", "base URL of the service to proxy to (required)")
	fs.StringVar(&flags.Listen, "listen", ":8080", "address to listen on")
	fs.StringVar(&flags.Config, "config", "", "validator options file (yaml, json, or toml)")
	fs.StringVar(&flags.Engine, "engine", "", "schema engine: jsonschema or gojsonschema")
	fs.BoolVar(&flags.StripResponse, "strip-response", false, "remove undeclared fields from response bodies")
	fs.BoolVar(&flags.ValidateResp, "validate-response", true, "validate upstream responses")
	fs.BoolVar(&flags.ValidateHeaders, "validate-response-headers", false, "validate upstream response headers")
	fs.BoolVar(&flags.ExampleResponse, "example-response", false, "answer empty upstream responses with the documented example")
	fs.BoolVar(&flags.PassUnknown, "pass-unknown", false, "forward requests that match no documented path")
	fs.Int64Var(&flags.MaxBodySize, "max-body-size", httpvalidator.DefaultMaxBodySize, "maximum body size read for validation, in bytes")
	fs.DurationVar(&flags.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	fs.StringVar(&flags.Log.Level, "log-level", "info", "log level: debug, info, warn, or error")
	fs.StringVar(&flags.Log.File, "log-file", "", "write logs to a rotated file instead of stderr")
	fs.IntVar(&flags.Log.MaxSizeMB, "log-max-size", 100, "log file size in megabytes before rotation")
	fs.IntVar(&flags.Log.MaxBackups, "log-max-backups", 3, "rotated log files to keep")
	fs.BoolVar(&flags.Log.JSON, "log-json", false, "write JSON log lines to stderr")

	fs.Usage = func() {
		out := fs.Output()
		Writef(out, "Usage: oasguard proxy -spec <file> -upstream <url> [flags]\n\n")
		Writef(out, "Run a reverse proxy that validates every request before forwarding it\n")
		Writef(out, "and every upstream response before returning it.\n\n")
		Writef(out, "Flags:\n")
		fs.PrintDefaults()
		Writef(out, "\nFlags given on the command line override values from -config.\n")
		Writef(out, "\nExamples:\n")
		Writef(out, "  oasguard proxy -spec openapi.yaml -upstream http://localhost:9000\n")
		Writef(out, "  oasguard proxy -spec openapi.yaml -upstream http://api:9000 -config oasguard.yaml -log-file /var/log/oasguard.log\n")
	}

	return fs, flags
}

// HandleProxy executes the proxy command. It blocks until the process
// receives SIGINT or SIGTERM.
func HandleProxy(args []string) error {
	fs, flags := SetupProxyFlags()

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return fmt.Errorf("proxy command takes no positional arguments, got %q", fs.Args())
	}

	logger, err := NewLogger(flags.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	handler, err := NewProxyHandler(flags, ProxyOptions(fs, flags), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, &http.Server{
		Addr:              flags.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, flags.ShutdownTimeout, logger)
}

// ProxyOptions translates the proxy flags into validator options. Options
// from -config come first so that flags set explicitly on the command line
// win over the file.
func ProxyOptions(fs *flag.FlagSet, flags *ProxyFlags) []httpvalidator.Option {
	var opts []httpvalidator.Option
	if flags.Config != "" {
		opts = append(opts, httpvalidator.WithConfigFile(flags.Config))
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["engine"] {
		opts = append(opts, httpvalidator.WithEngine(flags.Engine))
	}
	if set["strip-response"] {
		opts = append(opts, httpvalidator.WithStripResponse(flags.StripResponse))
	}
	if set["validate-response"] {
		opts = append(opts, httpvalidator.WithValidateResponse(flags.ValidateResp))
	}
	if set["validate-response-headers"] {
		opts = append(opts, httpvalidator.WithValidateResponseHeaders(flags.ValidateHeaders))
	}
	if set["example-response"] {
		opts = append(opts, httpvalidator.WithExampleResponse(flags.ExampleResponse))
	}
	if set["pass-unknown"] {
		opts = append(opts, httpvalidator.WithPathNotFoundFatal(!flags.PassUnknown))
	}
	if set["max-body-size"] {
		opts = append(opts, httpvalidator.WithMaxBodySize(flags.MaxBodySize))
	}
	return opts
}

// NewProxyHandler builds the validating reverse proxy described by flags.
func NewProxyHandler(flags *ProxyFlags, opts []httpvalidator.Option, logger *zap.Logger) (http.Handler, error) {
	if flags.Spec == "" {
		return nil, fmt.Errorf("proxy command requires -spec")
	}
	if flags.Upstream == "" {
		return nil, fmt.Errorf("proxy command requires -upstream")
	}
	target, err := url.Parse(flags.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream '%s': %w", flags.Upstream, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream '%s': expected an http or https URL", flags.Upstream)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	doc, err := openapi.Load(flags.Spec)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	opts = append(opts, httpvalidator.WithLogger(httpvalidator.NewZapAdapter(logger)))
	v, err := httpvalidator.New(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	direct := proxy.Director
	proxy.Director = func(r *http.Request) {
		direct(r)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", oasguard.UserAgent())
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("upstream request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}

	logger.Info("proxy configured",
		zap.String("spec", doc.Source),
		zap.String("openapi", doc.Version),
		zap.String("upstream", target.String()),
		zap.String("engine", v.Options().Engine))
	return accessLog(logger, v.Middleware(proxy)), nil
}

func serve(ctx context.Context, srv *http.Server, grace time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	})
}
