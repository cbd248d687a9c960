package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sdceria/portal/internal/attendance"
	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/handler"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/store"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "SD Ceria exam attendance portal",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP portal",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "portal.db", "SQLite database path for durable data")
	f.String("session-store", "memory", "Session storage backend (memory, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address when --session-store=redis")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.Duration("session-ttl", 12*time.Hour, "Lifetime of session-scoped data")
	f.String("timezone", "Asia/Jakarta", "Time zone exam schedules are written in")
	f.StringP("lang", "l", "id", "UI language (id, en)")
	f.String("admin-username", "Admin", "Dashboard username")
	f.String("admin-password", "Admin", "Dashboard password")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /sas)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("default-link", "", "Exam URL used when no specific link matches (seeds the default entry)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the attendance log as CSV or XLSX",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "portal.db", "SQLite database path")
	f.String("format", "csv", "Output format (csv, xlsx)")
	f.String("grade", "", "Only records of this grade (4, 5, 6)")
	f.String("section", "", "Only records whose rombel contains this text (e.g. 5A)")
	f.String("subject", "", "Only records of this subject name (e.g. Matematika)")
	f.String("timezone", "Asia/Jakarta", "Time zone for the report print date")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)
	slog.SetDefault(slog.New(logHandler(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))))
}

func logHandler(w io.Writer, level, format string) slog.Handler {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
// A .env file in the working directory is loaded into the environment first.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("portal")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/portal")
	v.AddConfigPath("/etc/portal")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// normalizeBasePath turns "sas/" into "/sas" and "/" into "".
func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// linkSeeds returns the catalog links with the default entry replaced by
// defaultLink when one is given.
func linkSeeds(defaultLink string) map[string]string {
	seeds := make(map[string]string, len(catalog.DefaultLinks))
	for k, v := range catalog.DefaultLinks {
		seeds[k] = v
	}
	if u := strings.TrimSpace(defaultLink); u != "" {
		seeds[links.DefaultKey] = u
	}
	return seeds
}

// sessionBackend builds the session scope named by kind. The returned closer
// is nil when the backend holds no external resources.
func sessionBackend(ctx context.Context, v *viper.Viper) (store.Backend, io.Closer, error) {
	ttl := v.GetDuration("session-ttl")
	switch kind := strings.ToLower(v.GetString("session-store")); kind {
	case "", "memory":
		m := store.NewMemory(ttl)
		if ttl > 0 {
			go sweep(ctx, m, ttl/4)
		}
		return m, nil, nil
	case "redis":
		r, err := store.NewRedis(ctx, v.GetString("redis-addr"), v.GetString("redis-password"), v.GetInt("redis-db"), ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q (want memory or redis)", kind)
	}
}

// sweep drops expired session entries until ctx is done.
func sweep(ctx context.Context, m *store.Memory, every time.Duration) {
	if every < time.Minute {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("swept expired session entries", "count", n)
			}
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lang := v.GetString("lang")
	if !slices.Contains(appI18n.Languages(), lang) {
		return fmt.Errorf("unsupported language %q (want one of %s)", lang, strings.Join(appI18n.Languages(), ", "))
	}
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	db, err := store.NewSQLite(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	session, closer, err := sessionBackend(ctx, v)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg := model.PortalConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Location:      loc,
		AdminUsername: v.GetString("admin-username"),
		AdminPassword: v.GetString("admin-password"),
	}

	h, err := handler.New(ctx, store.NewAdapter(db, session), cfg, linkSeeds(v.GetString("default-link")))
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"timezone", loc.String(),
		"session_store", v.GetString("session-store"),
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format := strings.ToLower(v.GetString("format"))
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
	}
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	db, err := store.NewSQLite(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	attLog := attendance.NewLog(ctx, store.NewAdapter(db, nil), loc)
	filter := model.AttendanceFilter{
		Grade:   v.GetString("grade"),
		Rombel:  v.GetString("section"),
		Subject: v.GetString("subject"),
	}
	records := attendance.Filter(attLog.List(), filter)
	if len(records) == 0 {
		return attendance.ErrEmpty
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		err = attendance.WriteReport(w, records, filter, time.Now().In(loc))
	} else {
		err = attendance.WriteCSV(w, records)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	slog.Info("exported attendance", "format", format, "records", len(records), "output", outPath)
	return nil
}
