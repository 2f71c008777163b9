package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/lsh/core"
	"github.com/josephlewis42/lsh/core/config"
	"github.com/josephlewis42/lsh/core/job"
	"github.com/josephlewis42/lsh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	debug      bool
	command    string
	exitStatus int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Printf("Couldn't load config from %q: %v", cfgPath, err)
	}
	return configuration, err
}

// openEvents opens the configured event log. Events are dropped if it's
// disabled or can't be opened.
func openEvents(configuration *config.Configuration, appLog *log.Logger) (job.EventRecorder, io.Closer) {
	fd, err := configuration.OpenEventLog()
	switch {
	case err != nil:
		appLog.Printf("Couldn't open event log: %v", err)
		return nil, io.NopCloser(nil)
	case fd == nil:
		return nil, io.NopCloser(nil)
	}
	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lsh",
	Short: "A small job control shell",
	Long: `lsh runs pipelines of programs with file redirects, background jobs and
process group job control. Without -c it reads commands from standard input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}
		if debug {
			configuration.Debug = true
		}

		appLog := log.New(io.Discard, "", 0)
		if configuration.Debug {
			appLog = log.New(cmd.ErrOrStderr(), "lsh: ", log.Ltime|log.Lmicroseconds)
		}

		events, eventLog := openEvents(configuration, appLog)
		defer eventLog.Close()

		shell := core.NewShell(core.Options{
			Config: configuration,
			Log:    appLog,
			Events: events,
		})
		defer shell.Close()

		ctx := context.Background()
		if cmd.Flags().Changed("command") {
			exitStatus = shell.RunCommand(ctx, command)
		} else {
			exitStatus = shell.Run(ctx)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultDir(), "config directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log job control activity and print parsed commands")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its status")
}

// isNotExist reports whether err means the config hasn't been initialized.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
