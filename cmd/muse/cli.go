package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/generate"
	"github.com/hpungsan/muse/internal/logging"
	"github.com/hpungsan/muse/internal/ops"
	"github.com/hpungsan/muse/internal/web"
	"github.com/hpungsan/muse/internal/wizard"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "muse",
		Usage:   "Personalized poems and portraits",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(db, cfg, logger),
			generateCmd(db, cfg, logger),
			listCmd(db),
			fetchCmd(db),
			latestCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newController wires the wizard to the configured provider and the result store.
func newController(ctx context.Context, db *sql.DB, cfg *config.Config, logger *zap.Logger) (*wizard.Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	provider, err := generate.NewProvider(ctx, cfg)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	svc := generate.NewService(provider, cfg.ProviderTimeout(), logger)
	logging.OrNop(logger).Debug("generation provider ready", zap.String("provider", svc.ProviderName()))
	return wizard.New(svc, ops.NewResultStore(db, logger), logger), nil
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the wizard in the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config, 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config, 8420)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				cfg.WebBind = bind
			}
			if port := c.Int("port"); port > 0 {
				cfg.WebPort = port
			}

			ctrl, err := newController(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			srv, err := web.NewServer(db, cfg, ctrl, logger, Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			fmt.Fprintf(os.Stderr, "muse wizard: http://%s\n", srv.Addr)
			return web.Run(srv, logger)
		},
	}
}

// generateCmd creates the generate command. It walks the same wizard the
// browser uses: details, captured images, then generation.
func generateCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a poem and portrait without the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Full name"},
			&cli.StringFlag{Name: "designation", Aliases: []string{"d"}, Required: true, Usage: "Job title"},
			&cli.StringFlag{Name: "company", Aliases: []string{"c"}, Required: true, Usage: "Company"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Email address"},
			&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "Reference photo; repeat up to 3 times, the first is the main reference"},
			&cli.StringFlag{Name: "style", Aliases: []string{"s"}, Value: string(creation.StyleProfessional), Usage: "Portrait style: " + styleNames()},
		},
		Action: func(c *cli.Context) error {
			ctrl, err := newController(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			if err := ctrl.SubmitDetails(creation.Profile{
				Name:        c.String("name"),
				Designation: c.String("designation"),
				Company:     c.String("company"),
				Email:       c.String("email"),
			}); err != nil {
				return outputError(err)
			}

			images, err := readImages(c.StringSlice("image"), cfg.MaxImageBytes)
			if err != nil {
				return outputError(err)
			}
			if err := ctrl.SetImages(images); err != nil {
				return outputError(err)
			}

			result, err := ctrl.Generate(c.Context, c.String("style"))
			printNotices(ctrl.TakeNotices())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List generated results, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum results to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Results to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a result by id",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-portrait", Usage: "Exclude portrait_url from output"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{ID: c.Args().First()}
			if c.Bool("no-portrait") {
				includePortrait := false
				input.IncludePortrait = &includePortrait
			}

			output, err := ops.Fetch(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recent result",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-portrait", Usage: "Include portrait_url in output"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Latest(c.Context, db, ops.LatestInput{
				IncludePortrait: c.Bool("include-portrait"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every result to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file path (default: ~/.muse/exports/<label>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "label", Usage: "File name prefix for the default path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path:  c.String("path"),
				Label: c.String("label"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Restore results from a JSONL export",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip|replace"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path argument is required"))
			}

			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// readImages loads each path as a captured image, in order.
func readImages(paths []string, maxBytes int64) (creation.Images, error) {
	if len(paths) > creation.MaxImages {
		return nil, errors.NewOverCapacity(creation.MaxImages)
	}
	images := make(creation.Images, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewFileNotFound(path)
			}
			return nil, errors.NewInternal(fmt.Errorf("failed to read image: %w", err))
		}
		img, err := creation.ImageFromBytes(data, maxBytes)
		if err != nil {
			var mErr *errors.MuseError
			if stderrors.As(err, &mErr) {
				return nil, errors.NewInvalidImage(i, fmt.Sprintf("%s: %s", path, mErr.Message))
			}
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func styleNames() string {
	styles := creation.AllStyles()
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = string(s)
	}
	return strings.Join(names, "|")
}

// printNotices echoes wizard notices to stderr so stdout stays JSON.
func printNotices(notices []wizard.Notice) {
	for _, n := range notices {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Level, n.Message)
	}
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. Validation errors list each field.
func outputError(err error) error {
	var mErr *errors.MuseError
	if !stderrors.As(err, &mErr) {
		return cli.Exit(err.Error(), 1)
	}

	msg := fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message)
	if fields, ok := mErr.Details["fields"].(map[string]string); ok {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			msg += fmt.Sprintf("\n  %s: %s", name, fields[name])
		}
	}
	return cli.Exit(msg, 1)
}
