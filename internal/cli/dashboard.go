package cli

import (
	"fmt"

	"github.com/existflow/agrisense/internal/tui"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Open the interactive activity dashboard",
	RunE:    runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireSession(cmd, a); err != nil {
		return err
	}

	signedOut, err := tui.Run(a)
	if err != nil {
		return err
	}
	if signedOut {
		fmt.Println("👋 Signed out. Run: agri auth login")
	}
	return nil
}
