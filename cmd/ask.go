package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bureauhq/bureau/internal/agent"
)

var (
	askUserID      string
	askDepartment  string
	askPortalToken string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "cli", "user ID the question is asked as")
	askCmd.Flags().StringVar(&askDepartment, "department", "", "user's department")
	askCmd.Flags().StringVar(&askPortalToken, "portal-token", "", "portal session token for personal data")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	result := a.Orchestrator.Query(ctx, question, agent.UserContext{
		ID:          askUserID,
		Department:  askDepartment,
		PortalToken: askPortalToken,
	})

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range result.Sources {
			line := "  " + src.Filename
			if src.Department != "" {
				line += " (" + src.Department + ")"
			}
			fmt.Println(line)
		}
	}

	if !result.Success {
		return fmt.Errorf("query failed: %s", result.Err)
	}
	return nil
}
