package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"Narrator/internal/cli/api"
	"Narrator/internal/cli/bootstrap"
	"Narrator/internal/cli/model"
	"Narrator/internal/config"
)

const (
	msgSelectFile    = "Please select a file."
	msgConvertFailed = "An error occurred while converting the file. Please try again."
)

type convertCmd struct{}

func (convertCmd) Name() string { return "convert" }
func (convertCmd) Description() string {
	return "Преобразовать .pdf или .txt в речь (mp3)"
}
func (convertCmd) Usage() string { return "convert <file> [out]" }

func (convertCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(Out, msgSelectFile)
		return ErrUsage
	}
	if len(args) > 2 {
		return ErrUsage
	}
	src := args[0]
	if st, err := os.Stat(src); err != nil || st.IsDir() {
		fmt.Fprintln(Out, msgSelectFile)
		if err == nil {
			err = fmt.Errorf("%s is a directory", src)
		}
		return err
	}
	out := defaultOutput(cfg.OutputDir, src)
	if len(args) == 2 {
		out = args[1]
	}

	fmt.Fprintf(Out, "→ Converting %s...\n", filepath.Base(src))
	resp, body, err := api.PostFile(ctx, endpoint(cfg, "/text-to-speech"), src)
	if err != nil {
		fmt.Fprintln(Out, msgConvertFailed)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(Out, msgConvertFailed)
		return api.ErrorFrom(resp, body)
	}

	n, err := api.WriteFile(out, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(Out, msgConvertFailed)
		return fmt.Errorf("save audio: %w", err)
	}

	id := resp.Header.Get("X-Conversion-ID")
	link := ""
	if p := resp.Header.Get("X-Audio-URL"); p != "" {
		link = endpoint(cfg, p)
	}
	fmt.Fprintln(Out, "✓ Audio ready:")
	fmt.Fprintf(Out, "  file: %s (%d bytes)\n", out, n)
	if id != "" {
		fmt.Fprintf(Out, "  id:   %s\n", id)
	}
	if link != "" {
		fmt.Fprintf(Out, "  link: %s\n", link)
	}

	if id != "" {
		recordHistory(cfg, model.HistoryEntry{
			ConversionID: id,
			SourcePath:   absPath(src),
			OutputPath:   absPath(out),
			AudioURL:     link,
			Size:         n,
		})
	}
	return nil
}

// recordHistory пишет запись в локальную историю; сбой истории не ломает команду.
func recordHistory(cfg *config.Config, e model.HistoryEntry) {
	r, err := bootstrap.OpenHistoryRepo(cfg.HistoryDBPath)
	if err != nil {
		fmt.Fprintf(Out, "! history not saved: %v\n", err)
		return
	}
	defer r.Close()
	if _, err := r.Add(e); err != nil {
		fmt.Fprintf(Out, "! history not saved: %v\n", err)
	}
}

func defaultOutput(dir, src string) string {
	if dir == "" {
		dir = "."
	}
	base := filepath.Base(src)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".mp3")
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

func endpoint(cfg *config.Config, path string) string {
	return strings.TrimRight(cfg.ServerURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func init() { RegisterCmd(convertCmd{}) }
