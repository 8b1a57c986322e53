package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"db-relay/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	connName string
	dryRun   bool

	settings *Settings
	log      *logger.Logger
)

var RootCmd = &cobra.Command{
	Use:   "db-relay",
	Short: "Move schemas and data between relational databases",
	Long: `
db-relay reflects the schema of a database, creates, drops and truncates
tables from it or from a YAML manifest, and transfers rows between tables
of one connection or across connections.

Connections are declared in db-relay.yaml:

  connections:
    - name: app
      driver: postgres
      dsn: postgres://app@localhost/app?sslmode=disable
      active: true
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		log = logger.New(&logger.Config{
			Level:  settings.Log.Level,
			Format: settings.Log.Format,
		})
		logger.SetGlobal(log)
		if f := viper.ConfigFileUsed(); f != "" {
			log.Debugf("Using config file: %s", f)
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./db-relay.yaml)")
	flags.StringVarP(&connName, "connection", "c", "", "connection name (default is the active connection)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&dryRun, "dry-run", false, "write the statements to a script instead of running them")
	flags.String("script", "", "dry-run script target: a file or s3://bucket/key (default is stdout)")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("script.out", flags.Lookup("script"))
	setDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("db-relay")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}
