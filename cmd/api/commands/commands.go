package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	httpHandlers "github.com/userdirectory/core/internal/adapters/http"
	"github.com/userdirectory/core/internal/application/services"
	"github.com/userdirectory/core/internal/domain/entities"
	"github.com/userdirectory/core/internal/infrastructure/config"
	"github.com/userdirectory/core/internal/infrastructure/logger"
	"github.com/userdirectory/core/internal/infrastructure/server"
	"github.com/userdirectory/core/internal/infrastructure/storage"
	"github.com/userdirectory/core/internal/ports"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Users Directory API server",
		Long:  "Load the users document once and serve the users API until SIGINT or SIGTERM",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewDataCommand creates the data file maintenance command
func NewDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Data file commands",
		Long:  "Create and check the JSON document that holds the users",
	}

	dataCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create an empty data file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeLog, err := openStore()
			if err != nil {
				return err
			}
			defer closeLog()

			created, err := store.Init(cmd.Context())
			if err != nil {
				return fmt.Errorf("init data file: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", store.Path())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left untouched\n", store.Path())
			}
			return nil
		},
	})

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the data file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, _ := cmd.Flags().GetBool("fix")
			return verifyData(cmd, fix)
		},
	}
	verifyCmd.Flags().Bool("fix", false, "Rewrite meta.total_users when it does not match the user count")
	dataCmd.AddCommand(verifyCmd)

	return dataCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users directly in the data file. A running server does not see them until restarted.",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := fieldsFromFlags(cmd)
			if err != nil {
				return err
			}
			return createUser(cmd, fields)
		},
	}

	createUserCmd.Flags().String("name", "", "User name (required)")
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().Int("age", 0, "User age (required)")
	createUserCmd.Flags().String("city", "", "User city (required)")
	createUserCmd.Flags().String("occupation", "", "User occupation (required)")
	createUserCmd.Flags().StringSlice("hobbies", nil, "Hobbies; one value is stored as text, several as a list (required)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Users Directory version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Users Directory v%s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.NewFileStore(cfg.Storage, appLogger)
	srv, err := server.New(ctx, cfg, store, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	appLogger.Infow("Starting Users Directory API server",
		"address", cfg.Server.Address(),
		"data_file", store.Path(),
		"environment", cfg.App.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatalw("Server failed", "error", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
		return
	}
	appLogger.Infow("Server stopped")
}

// openStore builds a FileStore from configuration for the maintenance commands.
func openStore() (*storage.FileStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	return storage.NewFileStore(cfg.Storage, appLogger), func() { _ = appLogger.Close() }, nil
}

func verifyData(cmd *cobra.Command, fix bool) error {
	store, closeLog, err := openStore()
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	doc, err := store.Inspect(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s is not usable, the server would start empty: %w", store.Path(), err)
	}

	problems := checkDocument(doc)
	if len(problems) == 0 {
		fmt.Fprintf(out, "%s: %d users, no problems found\n", store.Path(), len(doc.Users))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "- %s\n", p)
	}

	if !fix {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}

	doc.Recount()
	if !store.Save(cmd.Context(), doc) {
		return fmt.Errorf("save %s: %w", store.Path(), entities.ErrPersistence)
	}
	fmt.Fprintf(out, "Rewrote meta.total_users to %d\n", doc.Meta.TotalUsers)

	if remaining := checkDocument(doc); len(remaining) > 0 {
		return fmt.Errorf("%d problem(s) need manual repair", len(remaining))
	}
	return nil
}

// checkDocument lists the inconsistencies a loaded document can carry.
func checkDocument(doc *entities.Document) []string {
	var problems []string

	if doc.Meta.TotalUsers != len(doc.Users) {
		problems = append(problems, fmt.Sprintf("meta.total_users is %d but %d users are stored", doc.Meta.TotalUsers, len(doc.Users)))
	}

	seen := make(map[int]int)
	for _, u := range doc.Users {
		seen[u.ID]++
		if u.ID < 1 {
			problems = append(problems, fmt.Sprintf("user %q has non-positive id %d", u.Name, u.ID))
		}
	}

	var dupes []int
	for id, n := range seen {
		if n > 1 {
			dupes = append(dupes, id)
		}
	}
	sort.Ints(dupes)
	for _, id := range dupes {
		problems = append(problems, fmt.Sprintf("id %d is used by %d users", id, seen[id]))
	}

	return problems
}

// fieldsFromFlags turns the flags that were set into request fields, so
// unset flags are reported as missing the same way the API reports them.
func fieldsFromFlags(cmd *cobra.Command) (entities.Fields, error) {
	flags := cmd.Flags()
	fields := entities.Fields{}

	set := func(key string, value interface{}) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		fields[key] = raw
		return nil
	}

	for _, key := range []string{entities.FieldName, entities.FieldEmail, entities.FieldCity, entities.FieldOccupation} {
		if !flags.Changed(key) {
			continue
		}
		value, _ := flags.GetString(key)
		if err := set(key, value); err != nil {
			return nil, err
		}
	}

	if flags.Changed(entities.FieldAge) {
		age, _ := flags.GetInt(entities.FieldAge)
		if err := set(entities.FieldAge, age); err != nil {
			return nil, err
		}
	}

	if flags.Changed(entities.FieldHobbies) {
		hobbies, _ := flags.GetStringSlice(entities.FieldHobbies)
		var value interface{} = hobbies
		if len(hobbies) == 1 {
			value = hobbies[0]
		}
		if err := set(entities.FieldHobbies, value); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

func createUser(cmd *cobra.Command, fields entities.Fields) error {
	req := ports.NewCreateUserRequest(fields)
	if err := httpHandlers.NewValidator().Validate(&req); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer appLogger.Close()

	store := storage.NewFileStore(cfg.Storage, appLogger)
	if _, err := store.Inspect(cmd.Context()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("refusing to overwrite unreadable %s: %w", store.Path(), err)
	}

	users := services.NewUserService(cmd.Context(), store, appLogger)
	user, err := users.CreateUser(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User created successfully:\n")
	fmt.Fprintf(out, "  ID: %d\n", user.ID)
	fmt.Fprintf(out, "  Name: %s\n", user.Name)
	fmt.Fprintf(out, "  Email: %s\n", user.Email)
	fmt.Fprintf(out, "  Total users: %d\n", users.Count())
	return nil
}
