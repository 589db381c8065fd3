package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/existflow/agrisense/internal/feed"
	"github.com/existflow/agrisense/internal/model"
	"github.com/spf13/cobra"
)

var activitiesCmd = &cobra.Command{
	Use:     "activities",
	Aliases: []string{"history", "ls"},
	Short:   "List your recent activities",
	Long: `List the recommendations you ran, newest first.

Examples:
  agri activities
  agri activities --page 2
  agri activities --type disease --all`,
	RunE: runActivities,
}

var activityShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one activity with its details",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivityShow,
}

var activityDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an activity",
	Args:    cobra.ExactArgs(1),
	RunE:    runActivityDelete,
}

var (
	activitiesPage int
	activitiesType string
	activitiesAll  bool
)

func init() {
	activitiesCmd.Flags().IntVar(&activitiesPage, "page", 1, "Page to show")
	activitiesCmd.Flags().StringVarP(&activitiesType, "type", "t", "", "Filter by type (crop, fertilizer, disease)")
	activitiesCmd.Flags().BoolVarP(&activitiesAll, "all", "a", false, "Load every page")

	activitiesCmd.AddCommand(activityShowCmd)
	activitiesCmd.AddCommand(activityDeleteCmd)
}

func runActivities(cmd *cobra.Command, args []string) error {
	var opts []feed.Option
	if activitiesType != "" {
		t := model.ActivityType(activitiesType)
		if !t.Valid() {
			return fmt.Errorf("unknown activity type %q", activitiesType)
		}
		opts = append(opts, feed.WithType(t))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	f := a.NewFeed(opts...)
	if err := f.LoadPage(cmd.Context(), activitiesPage); err != nil {
		return userError(err)
	}
	for activitiesAll && f.HasMore() {
		if err := f.LoadMore(cmd.Context()); err != nil {
			return userError(err)
		}
	}

	list := f.Snapshot()
	if len(list) == 0 {
		fmt.Println("No activities yet. Try: agri crop --help")
		return nil
	}

	fmt.Printf("\n📋 Activities for %s (page %d)\n", a.Session.CurrentUser().FirstName(), f.Page())
	fmt.Println(strings.Repeat("─", 70))
	offset := 0
	if !activitiesAll {
		offset = (activitiesPage - 1) * f.PageSize()
	}
	for i, act := range list {
		printActivity(offset+i+1, act)
	}
	fmt.Println()
	if f.HasMore() && !activitiesAll {
		fmt.Printf("More available: agri activities --page %d\n", f.Page()+1)
	}
	return nil
}

func runActivityShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	act, err := a.API.GetActivity(cmd.Context(), a.Session.Token(), model.ID(args[0]))
	if err != nil {
		return userError(err)
	}

	fmt.Printf("\n%s %s\n", typeIcons[act.Type], act.Title)
	fmt.Println(strings.Repeat("─", 70))
	if !act.CreatedAt.IsZero() {
		fmt.Printf("Date:   %s\n", act.CreatedAt.Local().Format("Jan 2, 2006 15:04"))
	}
	fmt.Printf("Status: %s\n\n", act.Status)
	fmt.Println(act.PlainResult())

	var details map[string]interface{}
	if err := act.DecodeDetails(&details); err == nil && len(details) > 0 {
		data, _ := json.MarshalIndent(details, "", "  ")
		fmt.Printf("\nDetails:\n%s\n", data)
	}
	return nil
}

func runActivityDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	if err := a.API.DeleteActivity(cmd.Context(), a.Session.Token(), model.ID(args[0])); err != nil {
		return userError(err)
	}
	fmt.Printf("🗑️  Deleted activity %s\n", args[0])
	return nil
}
