package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"unichat/internal/adapter"
	"unichat/internal/api"
	"unichat/internal/config"
	"unichat/internal/logging"
	"unichat/internal/shell"
)

func main() {
	configPath := flag.String("config", "unichat.yaml", "path to the config file")
	startLink := flag.String("link", "", "startup selection link, e.g. ?tab=user&thread=t2")
	altScreen := flag.Bool("alt-screen", true, "run in the terminal alternate screen")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unichat: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unichat: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := api.New(cfg.API.BaseURL, cfg.API.Token, cfg.API.RequestTimeout, logger)

	echo := adapter.NewEcho(
		openai.NewClient(cfg.OpenAI.APIKey),
		cfg.OpenAI.Model,
		client,
		cfg.User.ID,
		cfg.User.Name,
		logger,
	)
	team := adapter.NewTeam(client, cfg.User.ID, cfg.User.Name, logger)
	visitor := adapter.NewVisitor(client, cfg.User.ID, cfg.User.Name, logger)

	link := *startLink
	if link == "" {
		link = cfg.UI.StartLink
	}

	model := shell.New(cfg, client, echo, team, visitor, link, logger)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if *altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		logger.Error("fatal", zap.Error(err))
		fmt.Fprintf(os.Stderr, "unichat fatal error: %v\n", err)
		os.Exit(1)
	}
}
