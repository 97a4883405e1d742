package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/TripCu/chatvault/internal/config"
	"github.com/TripCu/chatvault/internal/store"
	"github.com/TripCu/chatvault/pkg/combine"
	"github.com/TripCu/chatvault/pkg/export"
	"github.com/TripCu/chatvault/pkg/loader"
	"github.com/TripCu/chatvault/pkg/server"
	"github.com/sirupsen/logrus"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("chatvault.yaml"); err == nil {
			path = "chatvault.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func runIngest(args []string, appendTo bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	exportPath := args[0]
	dbPath := cfg.Database.Path
	if len(args) == 2 {
		dbPath = args[1]
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		return fmt.Errorf("read export %s: %w", exportPath, err)
	}
	doc, err := export.DecodeDocument(data)
	if err != nil {
		return err
	}

	if !appendTo {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
			}
		}
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var res *loader.Result
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		var loadErr error
		res, loadErr = loader.Load(ctx, tx, doc)
		return loadErr
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", exportPath, err)
	}

	log.WithFields(logrus.Fields{
		"messages":     res.Messages,
		"participants": res.Participants,
		"attachments":  res.Attachments,
		"embeds":       res.Embeds,
		"stickers":     res.Stickers,
		"reactions":    res.Reactions,
	}).Debug("export loaded")
	fmt.Printf("loaded %d messages (%d participants) from %s into %s\n",
		res.Messages, res.Participants, exportPath, dbPath)
	return nil
}

func runCombine(args []string, output string, deleteEmpty, noRecursive bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	inputDir := "."
	if len(args) == 1 {
		inputDir = args[0]
	}
	if output == "" {
		output = cfg.Combine.Output
	}

	summary, err := combine.Run(combine.Options{
		InputDir:    inputDir,
		OutputPath:  output,
		Recursive:   cfg.Combine.Recursive && !noRecursive,
		DeleteEmpty: deleteEmpty || cfg.Combine.DeleteEmpty,
		Log:         log,
	})
	if err != nil {
		return err
	}

	fmt.Printf("combined %d chat file(s) into %s (skipped %d without messages)\n",
		len(summary.Combined), summary.OutputPath, len(summary.Skipped))
	for _, path := range summary.Combined {
		fmt.Printf("  + %s\n", path)
	}
	for _, path := range summary.Skipped {
		fmt.Printf("  - %s (no messages)\n", path)
	}
	return nil
}

func runStats(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if len(args) == 1 {
		dbPath = args[0]
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	fmt.Fprintf(w, "guild\t%d\n", stats.Guilds)
	fmt.Fprintf(w, "channel\t%d\n", stats.Channels)
	fmt.Fprintf(w, "participants\t%d\n", stats.Participants)
	fmt.Fprintf(w, "messages\t%d\n", stats.Messages)
	fmt.Fprintf(w, "attachments\t%d\n", stats.Attachments)
	fmt.Fprintf(w, "embeds\t%d\n", stats.Embeds)
	fmt.Fprintf(w, "stickers\t%d\n", stats.Stickers)
	fmt.Fprintf(w, "inline_emojis\t%d\n", stats.InlineEmojis)
	fmt.Fprintf(w, "reactions\t%d\n", stats.Reactions)
	fmt.Fprintf(w, "mentions\t%d\n", stats.Mentions)
	fmt.Fprintf(w, "reaction_users\t%d\n", stats.ReactionUsers)
	return w.Flush()
}

func runServe(args []string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	dbPath := cfg.Database.Path
	if len(args) == 1 {
		dbPath = args[0]
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if port == 0 {
		port = cfg.Server.Port
	}
	srv := server.New(st, port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infof("chatvault server listening on :%d", port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
