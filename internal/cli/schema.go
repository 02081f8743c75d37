package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wwwzy/SQLChatAgent/internal/schema"
)

var schemaTable string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "显示目标数据库的表结构描述",
	Long: `反射目标数据库的表和列，合并 agent.context_descriptions 中的描述后输出。
这正是系统提示中提供给模型的内容。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		supplied, err := cfg.ContextDescriptions()
		if err != nil {
			return fmt.Errorf("加载表描述失败: %w", err)
		}

		db, err := openTargetDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		dialect, err := schema.DialectFromDriver(db.DriverName())
		if err != nil {
			return err
		}
		md := supplied
		if len(md) == 0 {
			reflected, err := schema.Reflect(ctx, db, dialect, cfg.Agent.MultiSchema)
			if err != nil {
				return fmt.Errorf("反射表结构失败: %w", err)
			}
			md = schema.Resolve(reflected, supplied)
		}

		if schemaTable != "" {
			desc, ok := md.Lookup(schemaTable)
			if !ok {
				return fmt.Errorf("%s is not a valid table name", schemaTable)
			}
			fmt.Println(desc.JSON())
			return nil
		}

		out, err := md.YAML()
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVar(&schemaTable, "table", "", "只输出指定表（JSON）")
}
