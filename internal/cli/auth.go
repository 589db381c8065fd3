package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/existflow/agrisense/internal/session"
	"github.com/existflow/agrisense/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Sign in to the advisory backend, create an account, or sign out.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login with email and password",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout and forget the stored token",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE:  runWhoami,
}

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Login with Google in the browser",
	RunE:  runGoogle,
}

var googleTimeout time.Duration

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(whoamiCmd)
	authCmd.AddCommand(googleCmd)

	loginCmd.Flags().String("email", "", "Account email (prompted if empty)")
	googleCmd.Flags().DurationVar(&googleTimeout, "timeout", 5*time.Minute, "How long to wait for the browser")
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	s, _ := reader.ReadString('\n')
	return strings.TrimSpace(s)
}

func promptPassword(label string) string {
	fmt.Print(label)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(passwordBytes)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	reader := bufio.NewReader(os.Stdin)
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		email = prompt(reader, "Email: ")
	}
	password := promptPassword("Password: ")
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	fmt.Println("🔄 Logging in...")
	token, err := a.API.Login(cmd.Context(), email, password)
	if err != nil {
		return userError(err)
	}

	ok, err := a.SignIn(cmd.Context(), token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("login succeeded but the session could not be verified")
	}

	fmt.Printf("✅ Logged in as %s\n", a.Session.CurrentUser().Name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_ = a.Session.WaitReady(cmd.Context())
	if _, stored := a.Storage.Get(storage.TokenKey); !stored && a.Session.CurrentUser() == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Println("🔄 Logging out...")
	a.Session.Logout(cmd.Context())
	fmt.Println("✅ Logged out successfully.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	reader := bufio.NewReader(os.Stdin)
	name := prompt(reader, "Name: ")
	email := prompt(reader, "Email: ")
	password := promptPassword("Password: ")
	confirm := promptPassword("Confirm Password: ")

	if name == "" || email == "" || password == "" {
		return fmt.Errorf("name, email and password are required")
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	if err := a.API.Register(cmd.Context(), name, email, password); err != nil {
		return userError(err)
	}

	fmt.Println("✅ Account created! Log in with: agri auth login --email " + email)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireSession(cmd, a); err != nil {
		return err
	}
	user := a.Session.CurrentUser()
	name, err := a.API.Username(cmd.Context(), a.Session.Token())
	if err != nil || name == "" {
		name = user.Name
	}
	fmt.Printf("👤 %s <%s>\n", name, user.Email)
	fmt.Printf("   Backend: %s\n", a.API.BaseURL())
	return nil
}

func runGoogle(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cs, err := session.ListenCallback(a.Session)
	if err != nil {
		return err
	}
	defer func() {
		_ = cs.Close()
	}()

	authURL, err := a.API.GoogleLogin(cmd.Context(), cs.FrontendURL())
	if err != nil {
		return userError(err)
	}

	fmt.Println("🌐 Open this URL in your browser to continue:")
	fmt.Println()
	fmt.Println("   " + authURL)
	fmt.Println()
	fmt.Println("⏳ Waiting for sign-in...")

	ctx, cancel := context.WithTimeout(cmd.Context(), googleTimeout)
	defer cancel()

	user, err := cs.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Logged in as %s\n", user.Name)
	return nil
}
