package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wwwzy/SQLChatAgent/internal/agent"
	"github.com/wwwzy/SQLChatAgent/internal/ui"
)

var askShowSQL bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "以任务模式回答一个问题",
	Long: `以任务模式运行一次 Agent：模型可以多次调用工具，
直到通过 done_tool 给出答案或达到 agent.max_turns。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession(ctx, cfg, false, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx = agent.WithTraceID(ctx, newTraceID())
		out, err := s.ctrl.Run(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if askShowSQL {
			for _, q := range ui.QueriesSince(s.ctrl.History(), 0) {
				fmt.Fprintf(os.Stderr, "SQL: %s\n", q)
			}
		}
		fmt.Println(ui.FormatOutcome(out))
		if out.Status == agent.StatusMaxTurns {
			return fmt.Errorf("未在最大轮数内得到答案")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askShowSQL, "show-sql", false, "在 stderr 输出执行过的 SQL")
}
