package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"docchat-service/config"
	"docchat-service/server"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

func main() {
	commandFlag := flag.String("command", "start", "Command to run: start, list-users, deactivate-user")
	usernameFlag := flag.String("username", "", "Username for deactivate-user")
	flag.Parse()

	if *commandFlag == "" {
		fmt.Println("Usage: go run main.go --command <command-name> [... other options]")
		os.Exit(1)
	}

	switch *commandFlag {
	case "start":
		server.StartServer()
	case "list-users":
		listUsers()
	case "deactivate-user":
		deactivateUser(*usernameFlag)
	default:
		fmt.Printf("Unknown command %q\n", *commandFlag)
		os.Exit(1)
	}
}

func loadConfigOrExit() *config.Config {
	server.InitLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	return cfg
}

func listUsers() {
	cfg := loadConfigOrExit()
	users, closeStore, err := server.OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to open user store", zap.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	out, _ := json.MarshalIndent(users.ListUsers(), "", "  ")
	fmt.Println(string(out))
}

func deactivateUser(username string) {
	if username == "" {
		fmt.Println("Usage: go run main.go --command deactivate-user --username <name>")
		os.Exit(1)
	}

	cfg := loadConfigOrExit()
	users, closeStore, err := server.OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to open user store", zap.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	found, err := users.Deactivate(username)
	if err != nil {
		logger.Error("Failed to deactivate user", zap.String("username", username), zap.Error(err))
		os.Exit(1)
	}
	if !found {
		fmt.Printf("User %q not found\n", username)
		os.Exit(1)
	}
	fmt.Printf("User %q deactivated\n", username)
}
