package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/ron-matt163/wiki-llm/pkg/extractor"
	"github.com/ron-matt163/wiki-llm/pkg/pipeline"
	"github.com/ron-matt163/wiki-llm/server"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Derive topics for a question and print the evidence found for each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if lang == "" {
				lang = opts.cfg.Wiki.Lang
			}
			pc := opts.pipelineConfig(a, lang)

			spinner := newSpinner("Deriving topics...")
			spinning := true
			var bar *progressbar.ProgressBar
			pc.OnTopics = func(topics []string) {
				spinner.Finish()
				spinning = false
				if len(topics) > 0 {
					bar = newProgressBar(len(topics), "Fetching pages...")
				}
			}
			pc.OnProgress = func(topic string, found bool) {
				bar.Add(1)
			}

			res, err := pipeline.NewWithConfig(a.deriver, a.scraper, a.extractor, pc).Run(cmd.Context(), question)
			if spinning {
				spinner.Finish()
			}
			if bar != nil {
				bar.Finish()
			}
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Wikipedia language code (defaults to wiki.lang)")
	return cmd
}

func newTopicsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topics <question>",
		Short: "Print the Wikipedia topics the model derives for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			deriver, err := opts.newDeriver()
			if err != nil {
				return err
			}

			topics := deriver.Derive(cmd.Context(), strings.Join(args, " "))
			if len(topics) == 0 {
				color.New(color.FgYellow).Fprintln(os.Stderr, "No topics derived.")
				return nil
			}
			for _, t := range topics {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	var (
		lang   string
		markup bool
	)

	cmd := &cobra.Command{
		Use:   "page <title>",
		Short: "Fetch one Wikipedia page and print its extracted text and tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newScraper()
			if err != nil {
				return err
			}
			if lang == "" {
				lang = opts.cfg.Wiki.Lang
			}

			title := strings.Join(args, " ")
			page, ok := s.FetchMarkup(cmd.Context(), title, lang)
			if !ok {
				return fmt.Errorf("no page retrieved for %q", title)
			}
			if markup {
				fmt.Fprintln(cmd.OutOrStdout(), page)
				return nil
			}

			e := extractor.NewWithConfig(extractor.ExtractorConfig{Logger: opts.logger.Named("extractor")})
			renderEvidence(cmd.OutOrStdout(), e.Extract(page))
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Wikipedia language code (defaults to wiki.lang)")
	cmd.Flags().BoolVar(&markup, "markup", false, "Print the rendered HTML instead of extracted evidence")
	return cmd
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch any web page and print its visible text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newScraper()
			if err != nil {
				return err
			}
			text, ok := s.FetchRenderedText(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("failed to scrape %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question pipeline over a WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			srv := server.NewWSServer(server.Config{
				Addr:     addr,
				Pipeline: opts.pipelineConfig(a, opts.cfg.Wiki.Lang),
				Logger:   opts.logger.Named("server"),
			}, a.deriver, a.scraper, a.scraper, a.extractor)

			color.Green("Listening on %s (ws://%s/ws)", addr, addr)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}
