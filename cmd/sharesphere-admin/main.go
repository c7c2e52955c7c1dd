// sharesphere-admin 运维命令行：初始化部署目录、创建用户
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/internal/service"
	"sharesphere/pkg/config"
	"sharesphere/pkg/db"
	"sharesphere/pkg/logger"

	"github.com/google/uuid"
)

const usage = `usage: sharesphere-admin <command> [flags]

commands:
  init         create directories, write config, migrate database, create the admin account
  create-user  create a user account
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "init":
		return runInit(ctx, args[1:], out)
	case "create-user":
		return runCreateUser(ctx, args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(out)
	dir := fs.String("dir", ".", "deployment directory")
	configPath := fs.String("config", "", "config file to write (default: <dir>/config/config.yaml)")
	adminUser := fs.String("admin-user", "admin", "initial admin username")
	adminPassword := fs.String("admin-password", os.Getenv("SHARESPHERE_ADMIN_PASSWORD"), "initial admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *adminPassword == "" {
		return errors.New("admin password is required (-admin-password or SHARESPHERE_ADMIN_PASSWORD)")
	}

	root, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	if *configPath == "" {
		*configPath = filepath.Join(root, "config", "config.yaml")
	}

	cfg, err := config.Default()
	if err != nil {
		return err
	}
	cfg.Database.DSN = filepath.Join(root, "data", "sharesphere.db")
	cfg.Storage.Root = filepath.Join(root, "uploads")
	cfg.Log.Folder = filepath.Join(root, "logs")
	cfg.Backup.Folder = filepath.Join(root, "backups")
	cfg.JWT.Secret = uuid.NewString()
	cfg.Session.Secret = uuid.NewString()

	for _, d := range []string{cfg.Storage.Root, cfg.Log.Folder, cfg.Backup.Folder} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	if err := config.Save(*configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "config written to %s\n", *configPath)

	config.GlobalConfig = cfg
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.ProductionMode, cfg.Log.Folder); err != nil {
		return err
	}
	defer logger.Sync()

	user, err := createAccount(ctx, *adminUser, *adminPassword, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "admin account %q created (id %d)\n", user.Username, user.ID)
	return nil
}

func runCreateUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	isAdmin := fs.Bool("admin", false, "grant admin privileges")
	groups := fs.String("groups", "", "comma separated group names to join")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("-username and -password are required")
	}

	if err := config.Init(*configPath); err != nil {
		return err
	}

	var groupNames []string
	for _, g := range strings.Split(*groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groupNames = append(groupNames, g)
		}
	}

	user, err := createAccount(ctx, *username, *password, *isAdmin, groupNames...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %q created (id %d, admin=%t)\n", user.Username, user.ID, user.IsAdmin)
	return nil
}

// createAccount 连接数据库（同时完成迁移）后创建账号
func createAccount(ctx context.Context, username, password string, isAdmin bool, groups ...string) (*model.User, error) {
	if err := db.InitDB(); err != nil {
		return nil, err
	}
	defer db.Close()

	auth := service.NewAuthService(
		repository.NewTxManager(),
		repository.NewUserRepository(),
		repository.NewGroupRepository(),
		repository.NewGroupMemberRepository(),
	)
	return auth.CreateAccount(ctx, username, password, isAdmin, groups...)
}
