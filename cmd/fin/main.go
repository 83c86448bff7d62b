package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"finiate/internal/config"
	"finiate/internal/db"
	"finiate/internal/engine"
	"finiate/internal/migrate"
	"finiate/internal/repo"
	"finiate/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fin [log content]",
	Short: "Finiate agenda tracker",
	Long: `Finiate tracks agendas with deadlines and keeps an append-only log of
everything done to them.
- Agendas live in slots: slot 1 is the most urgent ongoing agenda (earliest
  terminate time), slot 2 the next, and so on. Slots are recomputed after
  every command, never stored.
- add starts an ongoing agenda with a deadline; shelve parks one without.
- put-off pushes a deadline back, terminate closes an agenda for good.
- Every transition leaves exactly one log entry; bare invocation with free
  text appends a note to a slot's agenda.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(strings.Join(args, " "))
		if content == "" {
			return fmt.Errorf("no command provided and log content is empty; provide a command or log content")
		}
		slot := viper.GetInt("slot")
		return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
			l, err := e.AppendNote(ctx, slot, content)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(l)
			}
			fmt.Printf("saved in agenda slot %d, log content: %s\n", slot, l.Content)
			return nil
		})
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FINIATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "store operation timeout")
	rootCmd.Flags().IntP("slot", "s", 1, "agenda slot for bare log content")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("slot", rootCmd.Flags().Lookup("slot"))
}

func registerCommands() {
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(shelveCmd())
	rootCmd.AddCommand(putOffCmd())
	rootCmd.AddCommand(terminateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())
}

func addCmd() *cobra.Command {
	var terminateAt string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an ongoing agenda with a deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Add(ctx, args[0], terminateAt)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("add agenda %s, terminate at: %s\n", a.Title, formatMillis(a.TerminateAt))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&terminateAt, "terminate-at", "t", "", "terminate time (RFC3339, '2006-01-02 15:04', '2006-01-02', or a duration like 48h)")
	_ = cmd.MarkFlagRequired("terminate-at")
	return cmd
}

func shelveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelve <title>",
		Short: "Park an agenda without a deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Shelve(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("shelve agenda %s\n", a.Title)
				return nil
			})
		},
	}
	return cmd
}

func putOffCmd() *cobra.Command {
	var slot int
	var terminateAt string
	cmd := &cobra.Command{
		Use:   "put-off [content]",
		Short: "Postpone the agenda in a slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := ""
			if len(args) > 0 {
				content = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.PutOff(ctx, engine.PutOffOptions{
					Slot:        slot,
					TerminateAt: terminateAt,
					Content:     content,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("put off agenda %s, terminate at: %s\n", a.Title, formatMillis(a.TerminateAt))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&slot, "slot", "s", 1, "agenda slot")
	cmd.Flags().StringVarP(&terminateAt, "terminate-at", "t", "", "new terminate time (default: configured extension)")
	return cmd
}

func terminateCmd() *cobra.Command {
	var slot int
	cmd := &cobra.Command{
		Use:   "terminate [content]",
		Short: "Close the agenda in a slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := ""
			if len(args) > 0 {
				content = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Terminate(ctx, slot, content)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("terminate agenda %s\n", a.Title)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&slot, "slot", "s", 1, "agenda slot")
	return cmd
}

func statusCmd() *cobra.Command {
	var amount int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most urgent ongoing agendas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if !cmd.Flags().Changed("agenda-amount") && e.Config != nil {
					amount = e.Config.Defaults.AgendaAmount
				}
				entries, err := e.Status(ctx, amount)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				if len(entries) == 0 {
					fmt.Println("no ongoing agendas")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Slot", "Title", "Terminate At", "Logs", "Last Log"})
				for _, entry := range entries {
					last := ""
					if entry.LastLog != nil {
						last = fmt.Sprintf("[%s] %s", entry.LastLog.Type, entry.LastLog.Content)
					}
					tw.AppendRow(table.Row{entry.Slot, entry.Agenda.Title, formatMillis(entry.Agenda.TerminateAt), entry.LogCount, last})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&amount, "agenda-amount", "a", 1, "number of agendas to show (1..5)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show ongoing and terminated agendas with their logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.History(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				if len(entries) == 0 {
					fmt.Println("no agenda history")
					return nil
				}
				for _, entry := range entries {
					deadline := "no deadline"
					if entry.Agenda.HasDeadline() {
						deadline = formatMillis(entry.Agenda.TerminateAt)
					}
					fmt.Printf("%s (%s) terminate at: %s\n", entry.Agenda.Title, entry.Agenda.Status, deadline)
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Time", "Type", "Content"})
					for _, l := range entry.Logs {
						tw.AppendRow(table.Row{formatMillis(l.CreateAt), l.Type, l.Content})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(repo.New(conn), cfg)
			secret := os.Getenv("FINIATE_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("FINIATE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Finiate API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx, engine.New(repo.New(conn), cfg))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMillis(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).Local().Format("2006-01-02 15:04")
}
