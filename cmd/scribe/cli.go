package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/mcp"
	"github.com/hpungsan/scribe/internal/ops"
	"github.com/hpungsan/scribe/internal/session"
	"github.com/hpungsan/scribe/internal/web"
)

// maxStdinBytes caps a note body read from stdin.
const maxStdinBytes = ops.MaxImportFileBytes

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "scribe",
		Usage:   "Notes that save themselves",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(env),
			showCmd(env),
			saveCmd(env),
			pinCmd(env, true),
			pinCmd(env, false),
			deleteCmd(env),
			exportCmd(env),
			importCmd(env),
			editCmd(env),
			serveCmd(env),
			mcpCmd(env),
			tokenCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes, pinned first then most recently updated",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive text to match"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only notes with this tag"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.List(c.Context, deps, ops.ListInput{
				Query:  c.String("query"),
				Tag:    c.String("tag"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note with its full content",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.Fetch(c.Context, deps, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// saveCmd creates the save command.
func saveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Create a note, or update one by id (reads the body from stdin when piped)",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
			&cli.StringFlag{Name: "tags", Usage: "Replace tags (comma-separated)"},
			&cli.StringSliceFlag{Name: "add-tag", Usage: "Add a tag (repeatable)"},
			&cli.StringSliceFlag{Name: "remove-tag", Usage: "Remove a tag (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return outputError(c, errors.NewInvalidRequest(fmt.Sprintf(
					"unexpected arguments %q (flags must come before the id)", c.Args().Tail())))
			}
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			input := ops.SaveInput{
				ID:         c.Args().First(),
				AddTags:    c.StringSlice("add-tag"),
				RemoveTags: c.StringSlice("remove-tag"),
			}
			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				input.Tags = &tags
			}
			if hasPipedInput(c.App.Reader) {
				body, err := readInput(c.App.Reader, maxStdinBytes)
				if err != nil {
					return outputError(c, errors.NewInvalidRequest(err.Error()))
				}
				if body != "" {
					input.Content = &body
				}
			}

			output, err := ops.Save(c.Context, deps, input)
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// pinCmd creates the pin and unpin commands.
func pinCmd(env *appEnv, pinned bool) *cli.Command {
	name, usage := "pin", "Pin a note so it lists first"
	if !pinned {
		name, usage = "unpin", "Unpin a note"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.Pin(c.Context, deps, ops.PinInput{ID: c.Args().First(), Pinned: pinned})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a note",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.Delete(c.Context, deps, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export notes as markdown files with YAML front matter",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Target directory (default: ~/.scribe/exports)"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only notes with this tag"},
		},
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.Export(c.Context, deps, ops.ExportInput{Dir: c.String("dir"), Tag: c.String("tag")})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import every markdown file in a directory as a new note",
		ArgsUsage: "<dir>",
		Action: func(c *cli.Context) error {
			deps, err := env.Deps(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			output, err := ops.Import(c.Context, deps, ops.ImportInput{Dir: c.Args().First()})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// editCmd creates the interactive edit command.
func editCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a note line by line with autosave (:title, :tag, :untag, :save, :quit)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			store, err := env.Store(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			result, err := runEditor(c.Context, c.App.Reader, c.App.ErrWriter, autosave.Options{
				Store:        store,
				Identity:     identity.Static(env.cfg.UserID),
				Clock:        clockwork.NewRealClock(),
				Logger:       env.log,
				Debounce:     env.cfg.Debounce(),
				SavedDisplay: env.cfg.SavedDisplay(),
				WriteTimeout: env.cfg.WriteTimeout(),
			}, c.Args().First())
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, result)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and editor API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			store, err := env.Store(c.Context)
			if err != nil {
				return outputError(c, err)
			}

			sessions, err := session.NewManager(session.Options{
				Store:        store,
				Logger:       env.log.With(logger.String("component", "sessions")),
				IdleTimeout:  env.cfg.SessionIdle(),
				Debounce:     env.cfg.Debounce(),
				SavedDisplay: env.cfg.SavedDisplay(),
				WriteTimeout: env.cfg.WriteTimeout(),
			})
			if err != nil {
				return outputError(c, err)
			}

			srv, err := web.NewServer(web.Options{
				Store:    store,
				Config:   env.cfg,
				Sessions: sessions,
				Logger:   env.log,
				Version:  Version,
				Bind:     c.String("bind"),
				Port:     c.Int("port"),
			})
			if err != nil {
				return outputError(c, err)
			}
			return srv.Run(c.Context)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server over stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
				env.log.Warn("unknown tools in disabled_tools", logger.String("tools", strings.Join(unknown, ",")))
			}
			store, err := env.Store(c.Context)
			if err != nil {
				return outputError(c, err)
			}
			return mcp.Run(store, env.cfg, env.log, Version)
		},
	}
}

// tokenCmd creates the token command.
func tokenCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Mint a bearer token for the web API (needs jwt_secret)",
		ArgsUsage: "[user-id]",
		Action: func(c *cli.Context) error {
			tokens, err := identity.NewTokens(env.cfg.JWTSecret, env.cfg.TokenTTL())
			if err != nil {
				return outputError(c, errors.NewInvalidRequest("jwt_secret is not configured"))
			}

			uid := c.Args().First()
			if uid == "" {
				uid = env.cfg.UserID
			}
			tok, err := tokens.Issue(uid)
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, map[string]any{
				"user_id":    strings.TrimSpace(uid),
				"token":      tok,
				"expires_in": int64(env.cfg.TokenTTL().Seconds()),
			})
		},
	}
}

// Helper functions

// outputJSON writes v to the app's stdout as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes the error envelope to the app's stderr and returns an
// exit error with no message of its own.
func outputError(c *cli.Context, err error) error {
	sErr := errors.As(err)
	enc := json.NewEncoder(c.App.ErrWriter)
	_ = enc.Encode(map[string]any{
		"error": map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		},
	})
	return cli.Exit("", 1)
}

// hasPipedInput reports whether r carries input. A terminal stdin does not.
func hasPipedInput(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads all of r, failing if it holds more than limit bytes.
func readInput(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
