package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
	"sigs.k8s.io/yaml"

	resourcev1alpha1 "github.com/konnektr-io/rest-resource/api/v1alpha1"
	"github.com/konnektr-io/rest-resource/internal/config"
	"github.com/konnektr-io/rest-resource/internal/controller"
	"github.com/konnektr-io/rest-resource/internal/util"
	"github.com/konnektr-io/rest-resource/pkg/resource"
	"github.com/konnektr-io/rest-resource/pkg/rest"
)

var setupLog = logf.Log.WithName("setup")

func main() {
	// Set defaults from env, allow override by flag
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	manifests := strings.Join(cfg.Manifests, ",")
	flag.StringVar(&manifests, "manifests", manifests, "Comma-separated list of RESTResource manifest files.")
	flag.StringVar(&cfg.MetricsAddr, "metrics-bind-address", cfg.MetricsAddr, "The address the metric endpoint binds to. Use 0 to disable.")
	flag.StringVar(&cfg.Actions, "actions", cfg.Actions, "Semicolon-separated list of sync actions to run, e.g. 'user/fetch;*/get'. Empty runs all.")
	flag.BoolVar(&cfg.Once, "once", cfg.Once, "Run every sync action once, print the resulting status and exit.")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Timeout applied to each sync action.")
	flag.DurationVar(&cfg.DefaultPollInterval, "poll-interval", cfg.DefaultPollInterval, "Poll interval for manifests that do not set one.")
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	logf.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	paths := splitList(manifests)
	if len(paths) == 0 {
		setupLog.Error(errors.New("no manifests specified"), "use -manifests or RESTRESOURCE_MANIFESTS")
		os.Exit(1)
	}
	resources, err := resourcev1alpha1.LoadManifests(paths)
	if err != nil {
		setupLog.Error(err, "unable to load manifests")
		os.Exit(1)
	}

	var selector []util.ActionRef
	if cfg.Actions != "" {
		selector, err = util.ParseActionRefs(cfg.Actions)
		if err != nil {
			setupLog.Error(err, "invalid actions selector")
			os.Exit(1)
		}
		setupLog.Info("Selecting actions", "actions", selector)
	}

	metrics := resource.NewMetricsCollector()
	authResolver := rest.NewAuthResolver(logf.Log.WithName("auth"))
	targets := make([]*controller.Target, 0, len(resources))
	for _, res := range resources {
		target, err := controller.NewTarget(res, authResolver,
			resource.WithLogger(logf.Log.WithName("resource").WithName(res.Name)),
			resource.WithMetrics(metrics),
		)
		if err != nil {
			setupLog.Error(err, "unable to create resource", "manifest", res.Name)
			os.Exit(1)
		}
		targets = append(targets, target)
	}

	reconciler := &controller.ResourceSyncReconciler{
		Store:               controller.NewStore(targets, logf.Log.WithName("store")),
		Log:                 logf.Log.WithName("controllers").WithName("ResourceSync"),
		Selector:            selector,
		RequestTimeout:      cfg.RequestTimeout,
		DefaultPollInterval: cfg.DefaultPollInterval,
	}

	ctx := signals.SetupSignalHandler()

	if cfg.Once {
		runErr := reconciler.RunOnce(ctx, targets)
		if err := printStatus(resources); err != nil {
			setupLog.Error(err, "unable to print status")
		}
		if runErr != nil {
			setupLog.Error(runErr, "sync failed")
			os.Exit(1)
		}
		return
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr)
	defer stopMetrics()

	setupLog.Info("starting sync", "resources", len(targets))
	reconciler.Run(ctx, targets)
	setupLog.Info("sync stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// serveMetrics exposes the Prometheus registry and a health check on addr.
func serveMetrics(addr string) func() {
	if addr == "" || addr == "0" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		setupLog.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setupLog.Error(err, "metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func printStatus(resources []*resourcev1alpha1.RESTResource) error {
	for i, res := range resources {
		data, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", res.Name, err)
		}
		if i > 0 {
			fmt.Println("---")
		}
		fmt.Print(string(data))
	}
	return nil
}
