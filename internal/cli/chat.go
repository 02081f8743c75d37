package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/retention"
	"github.com/wwwzy/SQLChatAgent/internal/tui"
	"github.com/wwwzy/SQLChatAgent/internal/ui"
)

var (
	chatUI      string
	chatShowSQL bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式对话模式",
	Long: `以对话模式与数据库交谈。Agent 在需要时调用 run_query 等工具，
用 ">>User" 前缀（agent.addressing_prefix）把答案交还给你。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		log := logger
		// 全屏界面下日志不能写到终端
		if chatUI == "tui" && cfg.LogFile == "" {
			log = zap.NewNop()
		}

		var uiImpl ui.ChatUI
		switch chatUI {
		case "console", "":
			uiImpl = &ui.ConsoleChatUI{In: os.Stdin, Out: os.Stdout}
		case "tui":
			uiImpl = &tui.ChatUI{}
		default:
			return fmt.Errorf("未知 ui 类型: %s (支持: console, tui)", chatUI)
		}

		s, err := openSession(ctx, cfg, true, log)
		if err != nil {
			return err
		}
		defer s.Close()

		if cfg.Retention.Enabled {
			rcfg := cfg.Retention
			rcfg.OnError = func(err error) {
				log.Warn("retention prune failed", zap.Error(err))
			}
			pruner, err := retention.NewPruner(s.store, rcfg)
			if err != nil {
				return fmt.Errorf("初始化清理任务失败: %w", err)
			}
			if err := pruner.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := pruner.Stop(); err != nil {
					log.Warn("retention pruner stopped with error", zap.Error(err))
				}
			}()
		}

		return uiImpl.Run(ctx, s.ctrl, ui.ChatOptions{ShowSQL: chatShowSQL})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatUI, "ui", "console", "交互界面类型: console/tui")
	chatCmd.Flags().BoolVar(&chatShowSQL, "show-sql", false, "显示每轮执行过的 SQL")
}
