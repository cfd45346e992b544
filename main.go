package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/database"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/util/random"
	"github.com/postboard/postboard/web"
	"github.com/postboard/postboard/web/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// loadEnv reads .env from the working directory if there is one.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Println("load .env:", err)
	}
}

func openDB(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func startServer(configPath string) (*web.Server, *gorm.DB, error) {
	cfg, db, err := openDB(configPath)
	if err != nil {
		return nil, nil, err
	}
	server := web.NewServer(cfg, db)
	if err := server.Start(); err != nil {
		_ = database.CloseDB(db)
		return nil, nil, err
	}
	return server, db, nil
}

func stopServer(server *web.Server, db *gorm.DB) {
	if err := server.Stop(); err != nil {
		logger.Warning("stop server err:", err)
	}
	if err := database.CloseDB(db); err != nil {
		logger.Warning("close database err:", err)
	}
}

func runWebServer(configPath string) {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	level, err := logger.LevelOf(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
	defer logger.CloseLogger()

	server, db, err := startServer(configPath)
	if err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP, restarting")
			stopServer(server, db)
			server, db, err = startServer(configPath)
			if err != nil {
				log.Println(err)
				return
			}
		default:
			logger.Info("Received", sig, "shutting down")
			stopServer(server, db)
			return
		}
	}
}

func migrateDb(configPath string) {
	_, db, err := openDB(configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB(db)

	users, err := service.NewUserService(db).CountUsers(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Migration done! %d users in the store\n", users)
}

func addUser(configPath string, name string, password string, generate bool) error {
	if generate {
		password = random.Seq(16)
	}
	_, db, err := openDB(configPath)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	id, err := service.NewUserService(db).Signup(context.Background(), name, password)
	if err != nil {
		return err
	}
	fmt.Printf("user %q created with id %d\n", name, id)
	if generate {
		fmt.Println("password:", password)
	}
	return nil
}

func main() {
	loadEnv()

	var configPath string

	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "A small blog with accounts and posts",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		os.Getenv("POSTBOARD_CONFIG"), "path of the TOML config file")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer(configPath)
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb(configPath)
		},
	}

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			generate, _ := cmd.Flags().GetBool("generate-password")
			if password == "" && !generate {
				return errors.New("either --password or --generate-password is required")
			}
			return addUser(configPath, name, password, generate)
		},
	}

	addCmd.Flags().String("name", "", "user name")
	addCmd.Flags().String("password", "", "password")
	addCmd.Flags().Bool("generate-password", false, "generate a random password and print it")
	_ = addCmd.MarkFlagRequired("name")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetName(), config.GetVersion())
		},
	}

	userCmd.AddCommand(addCmd)
	rootCmd.AddCommand(runCmd, migrateCmd, userCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
