package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "sketch2code",
		Usage: "turn architecture diagrams into validated code",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API",
				Flags:  []cli.Flag{envFlag()},
				Action: serveAction,
			},
			{
				Name:  "index",
				Usage: "load source files from a directory into the snippet index",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "dir",
						Usage: "directory to scan",
					},
					&cli.StringFlag{
						Name:  "repo",
						Usage: "git repository url to clone and scan instead of --dir",
					},
					&cli.StringFlag{
						Name:  "ref",
						Usage: "branch or tag for --repo (default branch when empty)",
					},
					&cli.StringFlag{
						Name:  "checkout-dir",
						Usage: "where --repo clones are kept",
						Value: filepath.Join(os.TempDir(), "sketch2code-sources"),
					},
				},
				Action: indexAction,
			},
			{
				Name:  "generate",
				Usage: "run one diagram-to-code session from the command line",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "image",
						Usage:    "diagram image file (png, jpeg, gif)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "what to build from the diagram",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "directory to write generated files to",
					},
				},
				Action: generateAction,
			},
			{
				Name:  "search",
				Usage: "query the snippet index",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "q",
						Usage:    "search text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "number of results",
						Value: 5,
					},
				},
				Action: searchAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
