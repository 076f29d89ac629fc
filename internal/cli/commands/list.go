package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"Narrator/internal/cli/api"
	"Narrator/internal/cli/model"
	"Narrator/internal/config"
)

type listCmd struct{}

func (listCmd) Name() string        { return "list" }
func (listCmd) Description() string { return "Последние преобразования на сервере" }
func (listCmd) Usage() string       { return "list [limit]" }

func (listCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	q := url.Values{}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return ErrUsage
		}
		q.Set("limit", strconv.Itoa(n))
	}
	u := endpoint(cfg, "/api/conversions")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var list []model.Conversion
	if err := api.GetJSON(ctx, u, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(Out, "No conversions")
		return nil
	}
	for _, c := range list {
		extra := ""
		if c.Cached {
			extra = " (cached)"
		}
		if c.Error != "" {
			extra = " error=" + c.Error
		}
		fmt.Fprintf(Out, "- %s  %s  %s  %s%s\n", c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Status, c.FileName, extra)
	}
	fmt.Fprintf(Out, "Total: %d\n", len(list))
	return nil
}

func init() { RegisterCmd(listCmd{}) }
