package commands

import (
	"context"
	"fmt"
	"net/url"

	"Narrator/internal/cli/api"
	"Narrator/internal/cli/model"
	"Narrator/internal/config"
)

type infoCmd struct{}

func (infoCmd) Name() string        { return "info" }
func (infoCmd) Description() string { return "Показать преобразование по id" }
func (infoCmd) Usage() string       { return "info <id>" }

func (infoCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return ErrUsage
	}
	var c model.Conversion
	if err := api.GetJSON(ctx, endpoint(cfg, "/api/conversions/"+url.PathEscape(args[0])), &c); err != nil {
		return err
	}
	fmt.Fprintf(Out, "id:        %s\n", c.ID)
	fmt.Fprintf(Out, "file:      %s (%s, %d bytes)\n", c.FileName, c.ContentType, c.SourceSize)
	fmt.Fprintf(Out, "status:    %s\n", c.Status)
	if c.Error != "" {
		fmt.Fprintf(Out, "error:     %s\n", c.Error)
	}
	fmt.Fprintf(Out, "voice:     %s/%s\n", c.Model, c.Voice)
	fmt.Fprintf(Out, "text:      %d chars in %d chunks\n", c.TextLength, c.Chunks)
	fmt.Fprintf(Out, "audio:     %d bytes\n", c.AudioSize)
	if c.Cached {
		fmt.Fprintln(Out, "cached:    yes")
	}
	if c.AudioURL != "" {
		fmt.Fprintf(Out, "link:      %s\n", endpoint(cfg, c.AudioURL))
	}
	return nil
}

func init() { RegisterCmd(infoCmd{}) }
