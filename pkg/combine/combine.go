// Package combine joins a directory of chat-export JSON files into one
// aggregate file, skipping exports without messages.
package combine

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls one combine run.
type Options struct {
	InputDir    string
	OutputPath  string
	Recursive   bool
	DeleteEmpty bool
	Log         *logrus.Logger
}

// Summary reports what a combine run did.
type Summary struct {
	Combined      []string
	Skipped       []string
	TotalMessages int
	OutputPath    string
}

// Run gathers every .json file under InputDir, keeps the ones containing at
// least one message, rewrites their messageCount from the actual list, and
// writes a single aggregate document. Unreadable files are logged and
// skipped; exports without messages are skipped and deleted when DeleteEmpty
// is set. The output file is excluded from its own scan.
func Run(opts Options) (*Summary, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	info, err := os.Stat(opts.InputDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("input directory does not exist or is not a directory: %s", opts.InputDir)
	}

	outputPath, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("output path is a directory, not a file: %s", outputPath)
	}

	files, err := listJSONFiles(opts.InputDir, opts.Recursive, outputPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{OutputPath: outputPath}
	var chats []map[string]any

	for _, path := range files {
		chat, err := loadChat(path)
		if err != nil {
			log.WithField("file", path).Warnf("skipping unreadable file: %v", err)
			continue
		}

		messages, ok := chat["messages"].([]any)
		if !ok || len(messages) == 0 {
			summary.Skipped = append(summary.Skipped, path)
			continue
		}

		chat["messageCount"] = len(messages)
		chats = append(chats, chat)
		summary.Combined = append(summary.Combined, path)
		summary.TotalMessages += len(messages)
	}

	if opts.DeleteEmpty {
		for _, path := range summary.Skipped {
			if err := os.Remove(path); err != nil {
				log.WithField("file", path).Warnf("failed to delete empty export: %v", err)
			}
		}
	}

	payload := map[string]any{
		"chats":         chats,
		"totalChats":    len(chats),
		"totalMessages": summary.TotalMessages,
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode combined output: %w", err)
	}
	if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write combined output: %w", err)
	}
	return summary, nil
}

// listJSONFiles returns the candidate export files in sorted order.
func listJSONFiles(dir string, recursive bool, exclude string) ([]string, error) {
	var files []string

	addCandidate := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || abs == exclude {
			return
		}
		files = append(files, path)
	}

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
				addCandidate(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
				addCandidate(filepath.Join(dir, entry.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func loadChat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chat map[string]any
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, err
	}
	return chat, nil
}
