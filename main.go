package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/fetcher"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/logger"
	"github.com/scipunch/rssreader/parser"
	"github.com/scipunch/rssreader/reader"
)

func main() {
	var (
		cfgPath    string
		cleanCache bool
		addURL     string
		deleteURL  string
		list       bool
		postsURL   string
		filterList string
		watch      bool
	)
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.BoolVar(&cleanCache, "clean", false, "remove all stored feeds")
	flag.StringVar(&addURL, "add", "", "fetch and store the feed at `URL`")
	flag.StringVar(&deleteURL, "delete", "", "remove the feed at `URL` from the store")
	flag.BoolVar(&list, "list", false, "list stored feeds")
	flag.StringVar(&postsURL, "posts", "", "print the posts of the stored feed at `URL`")
	flag.StringVar(&filterList, "filters", "", "comma separated filter names applied by -posts")
	flag.BoolVar(&watch, "watch", false, "refresh all feeds periodically until interrupted")
	flag.Parse()

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	writeDefault := errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath()
	if writeDefault {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}

	lg, err := logger.New(logger.Config{
		Level:      conf.Log.Level,
		File:       conf.Log.File,
		MaxSize:    conf.Log.MaxSize,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAge,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %s", err)
	}
	defer lg.Close()
	if writeDefault {
		lg.Info("default config written", zap.String("path", cfgPath))
	}

	if err := run(lg.Logger, conf, options{
		clean:     cleanCache,
		addURL:    addURL,
		deleteURL: deleteURL,
		list:      list,
		postsURL:  postsURL,
		filters:   splitList(filterList),
		watch:     watch,
	}); err != nil {
		lg.Error("rssreader failed", zap.Error(err))
		lg.Close()
		os.Exit(1)
	}
}

type options struct {
	clean     bool
	addURL    string
	deleteURL string
	list      bool
	postsURL  string
	filters   []string
	watch     bool
}

func run(log *zap.Logger, conf config.Config, opts options) error {
	// Load credentials
	creds, err := config.ReadCredentials(config.DefaultCredentialsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	backend, err := cache.Open(conf.Storage, creds)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", conf.Storage.Driver, err)
	}
	defer backend.Close()

	sqlite, isSQLite := backend.(*cache.SQLiteKV)

	// Handle -clean flag
	if opts.clean {
		if isSQLite {
			if err := sqlite.Clear(); err != nil {
				return fmt.Errorf("failed to clear store: %w", err)
			}
		} else if err := cache.NewFeedStore(backend, cache.WithKey(conf.Storage.Key)).Clear(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		log.Info("store cleared")
		return nil
	}

	if isSQLite {
		if stats, err := sqlite.Stats(); err != nil {
			log.Warn("failed to get store stats", zap.Error(err))
		} else {
			log.Debug("store opened",
				zap.Int("entries", stats.Entries),
				zap.Int64("bytes", stats.Bytes),
				zap.Time("last_update", stats.LastUpdate))
		}
	}

	filters, err := filter.New(conf.Filters, filter.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to initialize filters: %w", err)
	}
	if names := filters.Names(); len(names) > 0 {
		log.Debug("initialized filters", zap.Strings("names", names))
	}

	store := cache.NewFeedStore(backend, cache.WithKey(conf.Storage.Key), cache.WithLogger(log))
	rd := reader.New(
		fetcher.NewHTTPFetcher(),
		parser.New(parser.WithLogger(log)),
		store,
		conf.Settings(),
		reader.WithLogger(log),
		reader.WithFilters(filters),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.addURL != "":
		f, err := rd.AddFeed(ctx, opts.addURL)
		if err != nil {
			return err
		}
		log.Info("feed added", zap.String("url", f.SourceURL), zap.String("title", f.Title), zap.Int("posts", len(f.Posts)))
	case opts.deleteURL != "":
		if err := rd.DeleteFeed(opts.deleteURL); err != nil {
			return err
		}
		log.Info("feed deleted", zap.String("url", opts.deleteURL))
	case opts.postsURL != "":
		posts, err := rd.Posts(opts.postsURL, opts.filters)
		if err != nil {
			return err
		}
		printPosts(posts)
	case opts.watch:
		interval := conf.RefreshInterval()
		log.Info("watching feeds", zap.Duration("interval", interval))
		rd.Run(ctx, interval)
	case opts.list:
		printFeeds(rd)
	default:
		if err := rd.Refresh(ctx); err != nil {
			log.Error("several feeds were not refreshed", zap.Error(err))
		}
		printFeeds(rd)
	}
	return nil
}

func printFeeds(rd *reader.Reader) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tTITLE\tPOSTS\tDEFAULT")
	for _, f := range rd.Feeds() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", f.SourceURL, f.Title, len(f.Posts), f.IsDefault)
	}
	w.Flush()
}

func printPosts(posts []feed.Post) {
	for _, p := range posts {
		published := time.UnixMilli(p.PublishedAtMs).Format(time.DateTime)
		fmt.Printf("%s  %s\n", published, p.Title)
		if p.Link != "" {
			fmt.Printf("    %s\n", p.Link)
		}
		if p.Description != "" {
			fmt.Printf("    %s\n", p.Description)
		}
	}
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
