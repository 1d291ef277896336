package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/bluesky"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/classifier"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/sqlite"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "feedctl",
		Usage:   "Operate the cannect feed generator",
		Version: Version,
		Commands: []*cli.Command{
			publishCmd(),
			unpublishCmd(),
			countCmd(),
			purgeCmd(),
			removeAuthorCmd(),
			classifyCmd(),
		},
	}
	// Return errors from Run instead of exiting, so tests can inspect them.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "handle", EnvVars: []string{"BLUESKY_HANDLE"}, Required: true, Usage: "Publisher handle (e.g. cannect.space)"},
		&cli.StringFlag{Name: "password", EnvVars: []string{"BLUESKY_APP_PASSWORD"}, Required: true, Usage: "App password"},
		&cli.StringFlag{Name: "pds", EnvVars: []string{"BLUESKY_PDS"}, Value: "https://bsky.social", Usage: "PDS service URL"},
		&cli.StringFlag{Name: "rkey", EnvVars: []string{"FEEDGEN_FEED_NAME"}, Value: "cannect", Usage: "Record key / short name of the feed"},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{Name: "db", EnvVars: []string{"FEEDGEN_DB_PATH"}, Value: "./data/feed.db", Usage: "Feed store path"}
}

func login(c *cli.Context) (*bluesky.Client, error) {
	client := bluesky.NewClient(c.String("pds"))
	if err := client.Login(c.Context, c.String("handle"), c.String("password")); err != nil {
		return nil, err
	}
	fmt.Fprintf(c.App.ErrWriter, "Authenticated as %s\n", client.DID())
	return client, nil
}

// publishCmd creates the publish command.
func publishCmd() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Create or update the feed generator record",
		Flags: append(sessionFlags(),
			&cli.StringFlag{Name: "service-did", EnvVars: []string{"FEEDGEN_SERVICE_DID"}, Required: true, Usage: "Feed generator service DID (e.g. did:web:feed.cannect.space)"},
			&cli.StringFlag{Name: "name", Value: "Cannect", Usage: "Feed display name (max 24 characters)"},
			&cli.StringFlag{Name: "description", Usage: "Feed description (max 300 characters)"},
			&cli.StringFlag{Name: "avatar", Usage: "Path to a PNG or JPEG avatar"},
		),
		Action: func(c *cli.Context) error {
			record := bluesky.NewFeedGeneratorRecord(c.String("service-did"), c.String("name"), c.String("description"))
			if err := record.Validate(); err != nil {
				return err
			}

			client, err := login(c)
			if err != nil {
				return err
			}

			if path := c.String("avatar"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read avatar: %w", err)
				}
				blob, err := client.UploadBlob(c.Context, data, http.DetectContentType(data))
				if err != nil {
					return err
				}
				record.Avatar = blob
			}

			uri, err := client.PublishFeedGenerator(c.Context, c.String("rkey"), record)
			if err != nil {
				return err
			}
			return outputJSON(c, map[string]string{"uri": uri})
		},
	}
}

// unpublishCmd creates the unpublish command.
func unpublishCmd() *cli.Command {
	return &cli.Command{
		Name:  "unpublish",
		Usage: "Delete the feed generator record",
		Flags: sessionFlags(),
		Action: func(c *cli.Context) error {
			client, err := login(c)
			if err != nil {
				return err
			}
			rkey := c.String("rkey")
			if err := client.UnpublishFeedGenerator(c.Context, rkey); err != nil {
				return err
			}
			return outputJSON(c, map[string]string{
				"uri": domain.FeedURI(client.DID(), rkey),
			})
		},
	}
}

// withStore opens the feed store for one command.
func withStore(c *cli.Context, fn func(ctx context.Context, repo *sqlite.Repository) error) error {
	repo, err := sqlite.Open(c.String("db"))
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(c.Context, repo)
}

// countCmd creates the count command.
func countCmd() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Print the number of stored posts",
		Flags: []cli.Flag{dbFlag()},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, repo *sqlite.Repository) error {
				n, err := repo.Count(ctx)
				if err != nil {
					return err
				}
				return outputJSON(c, map[string]int{"posts": n})
			})
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete posts older than a given age",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{Name: "older-than", Required: true, Usage: "Age threshold: days (7d) or a Go duration (36h)"},
		},
		Action: func(c *cli.Context) error {
			age, err := parseAge(c.String("older-than"))
			if err != nil {
				return err
			}
			return withStore(c, func(ctx context.Context, repo *sqlite.Repository) error {
				deleted, err := repo.PurgeOlderThan(ctx, age)
				if err != nil {
					return err
				}
				return outputJSON(c, map[string]int64{"deleted": deleted})
			})
		},
	}
}

// removeAuthorCmd creates the remove-author command.
func removeAuthorCmd() *cli.Command {
	return &cli.Command{
		Name:  "remove-author",
		Usage: "Delete every stored post by one author",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{Name: "did", Required: true, Usage: "Author DID"},
		},
		Action: func(c *cli.Context) error {
			did := c.String("did")
			if !domain.IsDID(did) {
				return fmt.Errorf("invalid did %q", did)
			}
			return withStore(c, func(ctx context.Context, repo *sqlite.Repository) error {
				deleted, err := repo.RemoveByAuthor(ctx, did)
				if err != nil {
					return err
				}
				return outputJSON(c, map[string]any{"did": did, "deleted": deleted})
			})
		},
	}
}

// classifyResult is the classify command's output.
type classifyResult struct {
	Include      bool   `json:"include"`
	Reason       string `json:"reason"`
	ContextScore int    `json:"contextScore"`
}

// classifyCmd creates the classify command.
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Dry-run the classifier on a text (argument or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", EnvVars: []string{"FEEDGEN_CLASSIFIER_CONFIG"}, Usage: "Classifier YAML override"},
			&cli.BoolFlag{Name: "trusted", Usage: "Classify as a trusted origin author"},
		},
		Action: func(c *cli.Context) error {
			cfg := classifier.DefaultConfig()
			if path := c.String("config"); path != "" {
				var err error
				if cfg, err = classifier.LoadConfig(path); err != nil {
					return err
				}
			}
			cls, err := classifier.New(cfg)
			if err != nil {
				return err
			}

			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				data, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			var label string
			if c.Bool("trusted") {
				label = cls.TrustedLabel()
			}
			res := cls.Classify(label, text)
			return outputJSON(c, classifyResult{
				Include:      res.Include,
				Reason:       string(res.Reason),
				ContextScore: res.ContextScore,
			})
		},
	}
}

// outputJSON writes v as indented JSON to the app's writer.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAge accepts "<n>d" for days or any time.ParseDuration string.
func parseAge(s string) (time.Duration, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid age: %s", s)
		}
		if days <= 0 {
			return 0, fmt.Errorf("age must be positive")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age: %s", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("age must be positive")
	}
	return d, nil
}
