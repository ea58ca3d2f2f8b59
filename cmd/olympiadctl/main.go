// Command olympiadctl manages the user store: migrations, bulk loading and listing.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"olympiad-tracker/internal/config"
	"olympiad-tracker/internal/db"
	"olympiad-tracker/internal/logging"
	"olympiad-tracker/internal/seed"
)

type env struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
	db         *db.DB
}

func (e *env) open() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
	}
	e.cfg = cfg

	if e.log, err = logging.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	// Init applies pending migrations.
	if e.db, err = db.Init(cfg.DBDriver, cfg.DBDSN); err != nil {
		return err
	}
	return nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
}

func (e *env) seeder() *seed.Seeder {
	return seed.NewSeeder(e.db, e.log)
}

func main() {
	if err := execute(&env{}, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one command line and closes the database whatever the outcome.
func execute(e *env, args []string) error {
	defer e.close()
	root := newRootCmd(e)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "olympiadctl",
		Short:         "Manage students and administrators of the olympiad tracker",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open()
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "config/app.yaml", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the user tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e.log.WithField("driver", e.db.Driver()).Info("schema up to date")
				return nil
			},
		},
		newAddStudentCmd(e),
		newAddAdminCmd(e),
		&cobra.Command{
			Use:   "seed <file>",
			Short: "Add every student and admin listed in a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.seeder().LoadFile(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "users",
			Short: "List all students and admins",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.seeder().ShowAllUsers(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)
	return root
}

func newAddStudentCmd(e *env) *cobra.Command {
	var fullName, group, password string
	cmd := &cobra.Command{
		Use:   "add-student <username>",
		Short: "Add a student; without --password the account cannot log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e.seeder().AddStudent(cmd.Context(), args[0], fullName, group, password)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().StringVar(&group, "group", "", "study group")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	return cmd
}

func newAddAdminCmd(e *env) *cobra.Command {
	var fullName, password string
	cmd := &cobra.Command{
		Use:   "add-admin <username>",
		Short: "Add an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e.seeder().AddAdmin(cmd.Context(), args[0], fullName, password)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	cobra.CheckErr(cmd.MarkFlagRequired("password"))
	return cmd
}
