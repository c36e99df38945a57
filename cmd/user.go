package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/database/models"
	"github.com/anoixa/grammable/database/repo/accounts"
	"github.com/anoixa/grammable/internal/app"
	"github.com/anoixa/grammable/utils"
	"github.com/spf13/cobra"
)

// userCmd 用户管理命令
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
}

// userCreateCmd 创建用户
var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Long: `Create a user account. Registration is not exposed over HTTP, so accounts are created here.

Examples:
  grammable user create alice --password s3cret
  grammable user create bob            # prints a generated password`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, _ := cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")

		if err := runUserCreate(args[0], password, admin); err != nil {
			log.Fatalf("Create user failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("password", "", "Password (generated when empty)")
	userCreateCmd.Flags().Bool("admin", false, "Grant the admin role")
}

func runUserCreate(username, password string, admin bool) error {
	config.InitConfig()

	container := app.NewContainer(config.Get())
	if err := container.InitDatabase(); err != nil {
		return err
	}
	defer container.Close()

	if err := container.GetDatabaseFactory().AutoMigrate(); err != nil {
		return err
	}

	_, err := createUser(container.GetRepositories().Accounts, username, password, admin)
	return err
}

// createUser 创建用户，密码为空时生成随机密码并输出
func createUser(repo *accounts.Repository, username, password string, admin bool) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	generated := false
	if password == "" {
		var err error
		if password, err = utils.GenerateRandomToken(12); err != nil {
			return nil, err
		}
		generated = true
	}

	role := models.RoleUser
	if admin {
		role = models.RoleAdmin
	}

	user, err := repo.CreateUser(username, password, role)
	if err != nil {
		if errors.Is(err, accounts.ErrUserExists) {
			return nil, fmt.Errorf("user '%s' already exists", username)
		}
		return nil, err
	}

	log.Printf("Created user '%s' (id=%d, role=%s)", user.Username, user.ID, user.Role)
	if generated {
		fmt.Printf("Password: %s\n", password)
	}
	return user, nil
}
