package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-domain-mapper/internal/app"
	"github.com/tbourn/go-domain-mapper/internal/config"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

// errReported marks a failure whose JSON body was already written to stdout.
var errReported = errors.New("reported")

// cli carries the dependencies of every subcommand.
type cli struct {
	loadConfig func() (config.Config, error)
	build      func(ctx context.Context, cfg config.Config) (*app.App, error)
	runner     sysutil.Runner
	now        func() time.Time

	in *bufio.Reader
}

func defaultCLI() *cli {
	return &cli{
		loadConfig: config.Load,
		build:      app.Build,
		runner:     sysutil.ExecRunner{},
		now:        time.Now,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	var (
		logLevel  string
		logPretty bool
	)
	root := &cobra.Command{
		Use:           "domainctl",
		Short:         "Onboard customer domains and update the services that route them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			sysutil.SetLogLevel(logLevel)
			w := cmd.ErrOrStderr()
			if logPretty || isTerminal(w) {
				log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
			} else {
				log.Logger = zerolog.New(w).With().Timestamp().Logger()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", sysutil.FirstNonEmpty(os.Getenv("LOG_LEVEL"), "info"), "log level")
	root.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "human readable logs on stderr")

	root.AddCommand(
		c.autocfCmd(),
		c.statusCmd(),
		c.deleteCFCmd(),
		c.albCmd(),
		c.auth0Cmd(),
		c.nginxCmd(),
		c.corsCmd(),
		c.dbkpCmd(),
		c.validateDNSCmd(),
	)
	return root
}

// withApp loads the configuration, builds the services and runs fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := cmd.Context()
	a, err := c.build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(cctx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()
	return fn(ctx, a)
}

// arg returns args[i], or prompts for it on stdin when absent.
func (c *cli) arg(cmd *cobra.Command, args []string, i int, label string) (string, error) {
	if i < len(args) && strings.TrimSpace(args[i]) != "" {
		return strings.TrimSpace(args[i]), nil
	}
	if c.in == nil {
		c.in = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", label)
	line, err := c.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", fmt.Errorf("%s is required", label)
	}
	return line, nil
}

func emit(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emitResult prints res, or an error result for err, and fails the command
// when either is an error.
func emitResult(cmd *cobra.Command, res domain.Result, err error) error {
	if err != nil {
		res.Type = domain.ResultError
		if res.Message == "" {
			res.Message = err.Error()
		}
	}
	if werr := emit(cmd, res); werr != nil {
		return werr
	}
	if res.Type == domain.ResultError {
		return errReported
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
