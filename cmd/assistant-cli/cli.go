package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"ai-editor-be/internal/bootstrap"
	"ai-editor-be/internal/config"
	"ai-editor-be/pkg/ai/doccontext"
	"ai-editor-be/pkg/ai/fastpath"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/lexical"

	"github.com/urfave/cli/v2"
)

// newCLIApp creates the developer CLI; out receives command output
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:      "assistant-cli",
		Usage:     "Inspect documents and exercise the editing assistant locally",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			inspectCmd(),
			patternsCmd(),
			askCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// inspectCmd prints the paragraph list and the model window for a document file
func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Parse a Lexical JSON or plain text document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "focus", Aliases: []string{"f"}, Usage: "Paragraph ids the window should center on"},
			&cli.IntFlag{Name: "max-paragraphs", Value: doccontext.DefaultConfig().MaxParagraphs, Usage: "Window size"},
		},
		Action: func(c *cli.Context) error {
			paragraphs, err := readDocument(c.Args().First())
			if err != nil {
				return err
			}

			window := doccontext.New(doccontext.Config{MaxParagraphs: c.Int("max-paragraphs")}).Build(paragraphs, c.IntSlice("focus"))
			w := c.App.Writer
			fmt.Fprintf(w, "paragraphs: %d\nhash: %s\ntruncated: %t\n\n", window.Total, window.Hash, window.Truncated)
			for _, p := range window.Paragraphs {
				fmt.Fprintf(w, "[%d] %s\n", p.ID, p.Text)
			}
			return nil
		},
	}
}

// patternsCmd validates a fast path pattern file
func patternsCmd() *cli.Command {
	return &cli.Command{
		Name:      "patterns",
		Usage:     "Validate a fast path pattern YAML file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("pattern file is required")
			}
			patterns, err := fastpath.LoadPatterns(path)
			if err != nil {
				return err
			}
			if _, err := fastpath.NewGate(patterns, nil); err != nil {
				return err
			}
			for lang := range patterns.Languages {
				fmt.Fprintf(c.App.Writer, "%s: ok\n", lang)
			}
			return nil
		},
	}
}

// askCmd runs one instruction through the full pipeline using the environment configuration
func askCmd() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Process one instruction against a document",
		ArgsUsage: "<instruction>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Document file (Lexical JSON or plain text)"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "cli", Usage: "Session id"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Language hint"},
			&cli.IntSliceFlag{Name: "select", Usage: "Selected paragraph ids"},
		},
		Action: func(c *cli.Context) error {
			instruction := strings.Join(c.Args().Slice(), " ")
			if instruction == "" {
				return fmt.Errorf("instruction is required")
			}

			var paragraphs []intent.Paragraph
			if path := c.String("doc"); path != "" {
				var err error
				if paragraphs, err = readDocument(path); err != nil {
					return err
				}
			}

			cfg := config.Load()
			cfg.App.NatsURL = ""
			container, err := bootstrap.NewContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			res := container.Pipeline.ProcessInstruction(context.Background(), pipeline.Request{
				SessionID:   c.String("session"),
				Instruction: instruction,
				Paragraphs:  paragraphs,
				Selection:   c.IntSlice("select"),
				Language:    c.String("lang"),
			})

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func readDocument(path string) ([]intent.Paragraph, error) {
	if path == "" {
		return nil, fmt.Errorf("document file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return lexical.ParseContent(string(raw)), nil
}
