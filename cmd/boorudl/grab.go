package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"boorudl/internal/downloader"
	"boorudl/pkg/auth"
	"boorudl/pkg/blacklist"
	"boorudl/pkg/checkpoint"
	"boorudl/pkg/config"
	errs "boorudl/pkg/errors"
	"boorudl/pkg/extractor"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
	"boorudl/pkg/sites"
	"boorudl/pkg/storage"
)

var (
	sourceName       string
	outputDir        string
	simDownloads     int
	authenticate     bool
	safeMode         bool
	saveAsID         bool
	limit            int
	disableBlacklist bool
	cbz              bool
	startPage        int
	update           bool
	excludeVideos    bool
	forcedExtension  string
	poolID           uint64
)

// newClient builds the HTTP client for the run. Tests swap it out to serve
// recorded responses.
var newClient = sites.NewClient

func init() {
	rootCmd.Flags().StringVarP(&sourceName, "source", "s", "danbooru", "imageboard to download from")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory")
	rootCmd.Flags().IntVarP(&simDownloads, "simultaneous-downloads", "d", 0, "number of concurrent downloads")
	rootCmd.Flags().BoolVar(&authenticate, "auth", false, "use the stored credentials for this source")
	rootCmd.Flags().BoolVar(&safeMode, "safe-mode", false, "download only safe-rated posts")
	rootCmd.Flags().BoolVarP(&saveAsID, "id", "i", false, "name files by post number instead of digest")
	rootCmd.Flags().IntVarP(&limit, "limit", "l", 0, "stop after this many posts")
	rootCmd.Flags().BoolVar(&disableBlacklist, "disable-blacklist", false, "skip all blacklist filtering")
	rootCmd.Flags().BoolVar(&cbz, "cbz", false, "bundle the run into a single .cbz archive")
	rootCmd.Flags().IntVarP(&startPage, "start-page", "p", 0, "start fetching at this result page")
	rootCmd.Flags().BoolVarP(&update, "update", "u", false, "download only posts newer than the previous run")
	rootCmd.Flags().BoolVar(&excludeVideos, "no-animated", false, "skip videos and animated files")
	rootCmd.Flags().StringVarP(&forcedExtension, "extension", "e", "", "download only files with this extension")
	rootCmd.Flags().Uint64Var(&poolID, "pool", 0, "download an e621 pool instead of a tag search")
}

func runGrab(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && poolID == 0 {
		return fmt.Errorf("at least one tag is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()

	board, err := sites.Parse(sourceName)
	if err != nil {
		return err
	}
	if poolID > 0 && board != sites.E621 {
		return fmt.Errorf("pool downloads are only available on e621")
	}
	if poolID > 0 && cfg.Search.Update {
		// Pool mode renumbers posts by position, so the resume marker
		// would compare apples to oranges.
		return fmt.Errorf("--pool cannot be combined with --update")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(board, cfg.Download.Timeout, cfg.Download.MaxRetries, log)
	adapter := newAdapter(board, client, args, log)

	userTags, err := applyAuth(board, adapter, log)
	if err != nil {
		return err
	}

	if poolID > 0 {
		pf, ok := adapter.(sites.PoolFetcher)
		if !ok {
			return fmt.Errorf("pool downloads are only available on e621")
		}
		if err := pf.SetPool(ctx, poolID); err != nil {
			return err
		}
	}

	filter, err := buildFilter(board, userTags, cfg)
	if err != nil {
		return err
	}

	ext := extractor.New(adapter, extractor.Options{
		Limit:     cfg.Search.Limit,
		StartPage: cfg.Search.StartPage,
		Filter:    filter,
	}, log)

	tracker := checkpoint.New(cfg.Output.Directory, board.String(), strings.Join(adapter.Tags(), " "), log)

	var counters *downloader.Counters
	var newest *post.Post
	if cfg.Output.CBZ {
		counters, newest, err = archiveRun(ctx, cfg, board, client, ext, tracker, log)
	} else {
		counters, newest, err = streamRun(ctx, cfg, board, client, ext, tracker, log)
	}
	if err != nil {
		if errors.Is(err, errs.ErrNoPostsInQueue) {
			fmt.Println("Already up to date, nothing new to download.")
			return nil
		}
		return err
	}

	if removed := ext.Removed(); removed > 0 {
		fmt.Printf("%d posts removed by the blacklist\n", removed)
	}

	// The marker is written after every completed run, so the first -u
	// run is already incremental.
	if err := tracker.Save(newest); err != nil {
		return err
	}

	fmt.Printf("%d files downloaded, %d already present\n", counters.Downloaded(), counters.Skipped())
	return nil
}

// loadConfig layers the config sources and applies the command-line flags on
// top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}
	if simDownloads > 0 {
		cfg.Download.SimultaneousDownloads = simDownloads
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if safeMode {
		cfg.Search.SafeMode = true
	}
	if saveAsID {
		cfg.Output.SaveAsID = true
	}
	if limit > 0 {
		cfg.Search.Limit = limit
	}
	if disableBlacklist {
		cfg.Search.DisableBlacklist = true
	}
	if cbz {
		cfg.Output.CBZ = true
	}
	if startPage > 0 {
		cfg.Search.StartPage = startPage
	}
	if update {
		cfg.Search.Update = true
	}
	if excludeVideos {
		cfg.Search.ExcludeVideos = true
	}
	if forcedExtension != "" {
		cfg.Search.ForcedExtension = forcedExtension
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAdapter picks the adapter implementation for the source.
func newAdapter(board sites.Imageboard, client *sites.Client, tags []string, log logger.Logger) sites.Adapter {
	switch board {
	case sites.Danbooru:
		return sites.NewDanbooru(client, tags, log)
	case sites.E621:
		return sites.NewE621(client, tags, log)
	case sites.Konachan:
		return sites.NewMoebooru(client, tags, log)
	default:
		return sites.NewGelbooru(board, client, tags, log)
	}
}

// applyAuth wires stored credentials into the adapter when requested and
// returns the account's blacklist tags.
func applyAuth(board sites.Imageboard, adapter sites.Adapter, log logger.Logger) (post.Tags, error) {
	if !authenticate {
		return nil, nil
	}
	if !board.HasAuth() {
		return nil, fmt.Errorf("%s does not support authentication", board)
	}

	creds := auth.LoadCache(board.String(), log)
	if creds == nil {
		return nil, fmt.Errorf("no stored credentials for %s, run `boorudl auth login -s %s` first", board, board)
	}

	apiKey := creds.APIKey
	if key := auth.LookupKey(board.String(), creds.Username); key != "" {
		apiKey = key
	}

	a, ok := adapter.(sites.Authenticable)
	if !ok {
		return nil, fmt.Errorf("%s does not support authentication", board)
	}
	a.SetAuth(creds.Username, apiKey)
	return creds.BlacklistTags(), nil
}

// buildFilter assembles the blacklist filter for the run.
func buildFilter(board sites.Imageboard, userTags post.Tags, cfg *config.Config) (*blacklist.Filter, error) {
	path, err := blacklist.DefaultPath()
	if err != nil {
		return nil, err
	}
	file, err := blacklist.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return blacklist.New(file, blacklist.Options{
		Disabled:        cfg.Search.DisableBlacklist,
		Source:          board.String(),
		UserTags:        userTags,
		SafeMode:        cfg.Search.SafeMode,
		ExcludeVideos:   cfg.Search.ExcludeVideos,
		ForcedExtension: cfg.Search.ForcedExtension,
	}, nil), nil
}

// archiveRun collects the whole queue first, then downloads it into a single
// archive. The archive needs the full queue up front for its manifest.
func archiveRun(ctx context.Context, cfg *config.Config, board sites.Imageboard, client *sites.Client, ext *extractor.Extractor, tracker *checkpoint.Tracker, log logger.Logger) (*downloader.Counters, *post.Post, error) {
	queue, err := ext.Extract(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Search.Update {
		if err := tracker.Apply(queue); err != nil {
			return nil, nil, err
		}
	}

	archive, err := storage.NewArchive(cfg.Output.Directory, queue, board.String(), log)
	if err != nil {
		return nil, nil, err
	}

	pool := downloader.NewPool(ctx, downloader.Options{
		Workers: cfg.Download.SimultaneousDownloads,
		Fetcher: client,
		Archive: archive,
		SaveID:  cfg.Output.SaveAsID,
		Source:  board.String(),
	}, log)
	pool.Start()
	go feed(pool, postChannel(queue.Posts), nil)

	drainResults(pool, log)

	if err := archive.Close(board.String(), queue.TagString(), len(queue.Posts)); err != nil {
		return nil, nil, err
	}
	return pool.Counters(), queue.Newest(), nil
}

// streamRun downloads loose files while later pages are still being fetched.
// Posts already covered by the resume marker are skipped before they reach
// the pool.
func streamRun(ctx context.Context, cfg *config.Config, board sites.Imageboard, client *sites.Client, ext *extractor.Extractor, tracker *checkpoint.Tracker, log logger.Logger) (*downloader.Counters, *post.Post, error) {
	var marker *post.Post
	if cfg.Search.Update {
		marker = tracker.Load()
	}

	loose, err := storage.NewLoose(tracker.Dir(), cfg.Output.SaveAsID, log)
	if err != nil {
		return nil, nil, err
	}

	out, g := ext.Stream(ctx)

	pool := downloader.NewPool(ctx, downloader.Options{
		Workers: cfg.Download.SimultaneousDownloads,
		Fetcher: client,
		Loose:   loose,
		SaveID:  cfg.Output.SaveAsID,
		Source:  board.String(),
	}, log)
	pool.Start()
	go feed(pool, out, marker)

	newest := drainResults(pool, log)

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if marker != nil && pool.Counters().Processed() == 0 {
		return nil, nil, errs.ErrNoPostsInQueue
	}
	return pool.Counters(), newest, nil
}

// feed submits every incoming post newer than the marker and stops the pool
// when the channel drains.
func feed(pool *downloader.Pool, out <-chan post.Post, marker *post.Post) {
	defer pool.Stop()
	for p := range out {
		if marker != nil && p.ID <= marker.ID {
			continue
		}
		if err := pool.Submit(p); err != nil {
			break
		}
	}
}

// postChannel adapts an already-collected queue to the feed loop.
func postChannel(posts []post.Post) <-chan post.Post {
	out := make(chan post.Post)
	go func() {
		defer close(out)
		for _, p := range posts {
			out <- p
		}
	}()
	return out
}

// drainResults logs failed downloads and returns the newest post the pool
// handled, nil when nothing came through.
func drainResults(pool *downloader.Pool, log logger.Logger) *post.Post {
	var newest *post.Post
	for result := range pool.Results() {
		if result.Error != nil {
			log.WithError(result.Error).WithField("post_id", result.Post.ID).Error("download failed")
		}
		if newest == nil || result.Post.ID > newest.ID {
			p := result.Post
			newest = &p
		}
	}
	return newest
}
