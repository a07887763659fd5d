package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blobferry/internal/config"
	"blobferry/internal/events"
	"blobferry/internal/journal"
	"blobferry/internal/keys"
	"blobferry/internal/logger"
	"blobferry/internal/metrics"
	"blobferry/internal/storage"
	"blobferry/internal/transfer"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "blobferry",
	Short: "Batch file transfer to and from S3-compatible object storage",
	Long: `blobferry uploads local file trees to an object store and downloads
objects back, running many transfers concurrently through a bounded worker pool.
Large objects can be split into chunks uploaded in parallel and composed
remotely.`,
	SilenceUsage: true,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <root> <pattern>",
	Short: "Upload all files under root matching a glob pattern",
	Long: `Expands the pattern (doublestar syntax, ** supported) under root and
uploads every match concurrently. Destination keys follow --prefix-blob,
then --sub-path/--suffix-depth, then the file's base name.

Warning: --prefix-blob maps EVERY matched file onto that one key; in a
multi-file batch the last upload wins.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var uploadLargeCmd = &cobra.Command{
	Use:   "upload-large <file> <key>",
	Short: "Upload one large file in concurrently transferred chunks",
	Long: `Splits the file into chunks of --chunk-size-mib, uploads them in
parallel, and composes the remote object from the parts. If any chunk
fails the upload is aborted and no object is composed.`,
	Args: cobra.ExactArgs(2),
	RunE: runUploadLarge,
}

var downloadCmd = &cobra.Command{
	Use:   "download <key> <dest-file>",
	Short: "Download one object to a local file",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownload,
}

var downloadPrefixCmd = &cobra.Command{
	Use:   "download-prefix <prefix> <dest-dir>",
	Short: "Download every object under a key prefix",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownloadPrefix,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (YAML)")

	pf.String("endpoint", "", "storage endpoint (host:port)")
	pf.String("access-key", "", "storage access key")
	pf.String("secret-key", "", "storage secret key")
	pf.Bool("secure", true, "use HTTPS")
	pf.String("bucket", "", "bucket name (required)")

	pf.String("prefix-blob", "", "single destination key for every file (collapses the batch, see upload --help)")
	pf.String("sub-path", "", "remote directory prepended to the kept path suffix")
	pf.Int("suffix-depth", 4, "trailing path components kept under --sub-path")
	pf.Int("workers", 0, "concurrent transfers (0 = min(8, CPUs))")
	pf.Int("chunk-size-mib", 32, "chunk size for large uploads, in MiB")

	pf.String("journal", "", "SQLite file recording per-task outcomes")
	pf.String("metrics-addr", "", "serve prometheus metrics on this address")
	pf.String("log-level", "info", "log level (debug/info/warn/error)")

	rootCmd.AddCommand(uploadCmd, uploadLargeCmd, downloadCmd, downloadPrefixCmd)
}

// session bundles everything one command run needs.
type session struct {
	cfg     *config.Config
	log     *zap.Logger
	client  storage.Client
	tracker *events.Tracker
	emitter events.Emitter
	journal journal.Store
	batchID string
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Secure:    cfg.Storage.Secure,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	tracker := events.NewTracker()
	emitters := events.Multi{events.NewLogEmitter(log), tracker}

	if cfg.MetricsAddr != "" {
		collector := metrics.New()
		emitters = append(emitters, collector)
		go func() {
			if err := collector.StartServer(cfg.MetricsAddr); err != nil {
				log.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		client:  client,
		tracker: tracker,
		emitter: emitters,
		batchID: time.Now().UTC().Format("20060102T150405.000000000"),
	}

	if cfg.Journal != "" {
		store, err := journal.NewSQLiteStore(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = store
	}

	return s, nil
}

func (s *session) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Error("Error closing journal", zap.Error(err))
		}
	}
	s.log.Sync()
}

func (s *session) naming() keys.Naming {
	return keys.Naming{
		PrefixBlob:  s.cfg.Transfer.PrefixBlob,
		SubPath:     s.cfg.Transfer.SubPath,
		SuffixDepth: s.cfg.Transfer.SuffixDepth,
	}
}

// record writes batch results to the journal, when one is configured.
func (s *session) record(op string, results []transfer.Result) {
	if s.journal == nil {
		return
	}

	for _, res := range results {
		rec := &journal.Record{
			BatchID:   s.batchID,
			Op:        op,
			Key:       res.Task.Key,
			LocalPath: res.Task.LocalPath,
			Size:      res.Task.Size,
			Status:    journal.StatusSuccess,
			Duration:  res.Duration,
		}
		if res.Err != nil {
			rec.Status = journal.StatusFailed
			rec.ErrorKind = string(res.Err.Kind)
			rec.LastError = res.Err.Error()
		}
		if err := s.journal.SaveRecord(rec); err != nil {
			s.log.Error("Failed to journal result", zap.String("key", rec.Key), zap.Error(err))
		}
	}
}

// summarize logs the batch outcome and returns an error when any task
// failed, so the process exit code reflects partial failure.
func (s *session) summarize(results []transfer.Result) error {
	stats := s.tracker.Snapshot()
	s.log.Info("Batch finished",
		zap.String("batch_id", s.batchID),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
		zap.String("bytes", events.FormatBytes(stats.BytesSucceeded)),
		zap.Duration("elapsed", stats.Elapsed()),
	)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", failed, len(results))
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, cancel
}

func runUpload(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	orch := transfer.NewOrchestrator(s.client, s.emitter, s.cfg.Transfer.MaxWorkers)
	results, err := orch.UploadBatch(ctx, args[0], args[1], transfer.BatchOptions{
		Naming:    s.naming(),
		ChunkSize: s.cfg.Transfer.ChunkSizeBytes(),
	})
	if err != nil {
		return err
	}

	s.record(string(events.OpUpload), results)
	return s.summarize(results)
}

func runUploadLarge(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	uploader := transfer.NewChunkUploader(s.client, s.emitter, s.cfg.Transfer.MaxWorkers)
	handle, err := uploader.Upload(ctx, args[0], args[1], s.cfg.Transfer.ChunkSizeBytes())
	if err != nil {
		return err
	}

	s.log.Info("Large upload finished",
		zap.String("key", handle.Key),
		zap.String("size", events.FormatBytes(handle.Size)),
		zap.String("etag", handle.ETag),
	)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	unit := transfer.NewUnit(s.client, s.emitter)
	res := unit.Download(ctx, transfer.Task{Key: args[0], LocalPath: args[1]})

	s.record(string(events.OpDownload), []transfer.Result{res})
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func runDownloadPrefix(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	orch := transfer.NewOrchestrator(s.client, s.emitter, s.cfg.Transfer.MaxWorkers)
	results, err := orch.DownloadBatch(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	s.record(string(events.OpDownload), results)
	return s.summarize(results)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
