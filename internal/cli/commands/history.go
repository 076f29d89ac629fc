package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"Narrator/internal/cli/bootstrap"
	"Narrator/internal/config"
)

type historyCmd struct{}

func (historyCmd) Name() string        { return "history" }
func (historyCmd) Description() string { return "Локальная история преобразований" }
func (historyCmd) Usage() string       { return "history [limit]" }

func (historyCmd) Run(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	limit := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return ErrUsage
		}
		limit = n
	}
	r, err := bootstrap.OpenHistoryRepo(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer r.Close()
	list, err := r.List(limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(Out, "History is empty")
		return nil
	}
	for _, e := range list {
		at := time.Unix(0, e.CreatedAt).Local().Format("2006-01-02 15:04")
		fmt.Fprintf(Out, "- %s  %s  %s -> %s (%d bytes)\n", at, e.ConversionID, e.SourcePath, e.OutputPath, e.Size)
	}
	fmt.Fprintf(Out, "Total: %d\n", len(list))
	return nil
}

func init() { RegisterCmd(historyCmd{}) }
