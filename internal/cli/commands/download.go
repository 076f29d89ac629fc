package commands

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"Narrator/internal/cli/api"
	"Narrator/internal/config"
)

type downloadCmd struct{}

func (downloadCmd) Name() string        { return "download" }
func (downloadCmd) Description() string { return "Скачать аудио по id и токену ссылки" }
func (downloadCmd) Usage() string       { return "download <id> <token> [out]" }

func (downloadCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 || len(args) > 3 || args[0] == "" || args[1] == "" {
		return ErrUsage
	}
	id, token := args[0], args[1]
	out := filepath.Join(cfg.OutputDir, id+".mp3")
	if len(args) == 3 {
		out = args[2]
	}
	u := endpoint(cfg, "/api/conversions/"+url.PathEscape(id)+"/audio") + "?" + url.Values{"token": {token}}.Encode()
	n, err := api.Download(ctx, u, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Saved %s (%d bytes)\n", out, n)
	return nil
}

func init() { RegisterCmd(downloadCmd{}) }
