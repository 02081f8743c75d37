package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/config"
	"github.com/wwwzy/SQLChatAgent/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

// rootCmd 是没有子命令时调用的基础命令
var rootCmd = &cobra.Command{
	Use:   "sqlchat",
	Short: "SQLChat 用自然语言查询关系型数据库",
	Long: `SQLChat 把自然语言问题交给大模型，由模型调用 run_query 等工具
在目标数据库上执行 SQL，并根据结果回答问题。支持 SQLite、PostgreSQL 和 MySQL。`,
}

// Execute 将所有子命令添加到根命令并适当设置标志。
// 这由 main.main() 调用。它只需要对 rootCmd 调用一次。
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件（默认按 ./config.yaml、$HOME/.sqlchat/config.yaml 搜索）")
}

// initConfig 读取配置文件和环境变量（如果已设置），并构造 logger。
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	l, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	logger = l
}
