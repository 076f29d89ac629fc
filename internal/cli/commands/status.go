package commands

import (
	"context"
	"fmt"

	"Narrator/internal/cli/api"
	"Narrator/internal/config"
)

type statusCmd struct{}

func (statusCmd) Name() string        { return "status" }
func (statusCmd) Description() string { return "Проверить доступность сервера" }
func (statusCmd) Usage() string       { return "status" }

type healthResponse struct {
	Status string `json:"status"`
}

func (statusCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	var hr healthResponse
	if err := api.GetJSON(ctx, endpoint(cfg, "/healthz"), &hr); err != nil {
		return err
	}
	fmt.Fprintf(Out, "Server %s: %s\n", cfg.ServerURL, hr.Status)
	return nil
}

func init() { RegisterCmd(statusCmd{}) }
