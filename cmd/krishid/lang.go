package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/loykin/krishid/internal/i18n"
	"github.com/loykin/krishid/internal/indicator"
	"github.com/loykin/krishid/internal/monitor"
	"github.com/loykin/krishid/internal/store"
)

func createLangCommand(globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Show or change the interface language",
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print the saved language",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTranslator(cmd.Context(), globalFlags, func(tr *i18n.Translator) error {
				return cmdLangGet(cmd.OutOrStdout(), tr)
			})
		},
	}
	set := &cobra.Command{
		Use:   "set <code>",
		Short: "Switch and save the language (en, hi)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTranslator(cmd.Context(), globalFlags, func(tr *i18n.Translator) error {
				if err := tr.Switch(cmd.Context(), args[0]); err != nil {
					return err
				}
				return cmdLangGet(cmd.OutOrStdout(), tr)
			})
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List supported languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range i18n.Languages() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", l.Code, l.Label, l.Name, l.Voice)
			}
			return nil
		},
	}
	cmd.AddCommand(get, set, list)
	return cmd
}

// withTranslator opens only the preference store; lang commands need nothing else.
func withTranslator(ctx context.Context, globalFlags *GlobalFlags, fn func(*i18n.Translator) error) error {
	app, err := globalFlags.newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app.Translator())
}

func cmdLangGet(out io.Writer, tr *i18n.Translator) error {
	lang := tr.Current()
	_, _ = fmt.Fprintf(out, "%s (%s, voice %s)\n", lang, i18n.Label(lang), i18n.Voice(lang))
	return nil
}

// TranslateFlags holds flags for the translate command.
type TranslateFlags struct {
	Output string
	Lang   string
	Check  bool
}

func createTranslateCommand(globalFlags *GlobalFlags, flags *TranslateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <page.html>",
		Short: "Apply translations (and optionally availability indicators) to an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := globalFlags.newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			tr := app.Translator()
			if flags.Lang != "" {
				// one-off language; the saved preference is left alone
				if tr, err = i18n.New(store.NewMemory(), app.Logger()); err != nil {
					return err
				}
				if err := tr.Switch(ctx, flags.Lang); err != nil {
					return err
				}
			}
			var m *monitor.Monitor
			if flags.Check {
				m = app.Monitor()
			}
			out := cmd.OutOrStdout()
			if flags.Output != "" {
				f, err := os.Create(flags.Output)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			return cmdTranslate(ctx, args[0], out, tr, m)
		},
	}
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "write the page here instead of stdout")
	cmd.Flags().StringVar(&flags.Lang, "lang", "", "translate into this language without saving it")
	cmd.Flags().BoolVar(&flags.Check, "check", false, "probe the service and add availability indicators")
	return cmd
}

func cmdTranslate(ctx context.Context, path string, out io.Writer, tr *i18n.Translator, m *monitor.Monitor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	page, err := indicator.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if m != nil {
		m.CheckAvailability(ctx)
		page.Render(m.Status())
	}
	page.Do(func(doc *html.Node) { tr.TranslateDocument(doc) })
	s, err := page.HTML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, s)
	return err
}
