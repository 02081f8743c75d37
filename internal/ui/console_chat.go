package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/wwwzy/SQLChatAgent/internal/agent"
)

type ConsoleChatUI struct {
	In  io.Reader
	Out io.Writer
}

func (u *ConsoleChatUI) Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error {
	in := u.In
	if in == nil {
		return fmt.Errorf("console ui: In is nil")
	}
	out := u.Out
	if out == nil {
		return fmt.Errorf("console ui: Out is nil")
	}

	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "进入 SQLChat 对话模式。输入 exit/quit 退出。")
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "已退出。")
			return nil
		default:
		}

		fmt.Fprint(out, "你: ")
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err == io.EOF {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "已退出。")
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "已退出。")
			return nil
		}

		// 每个问题一个 TraceID，审计记录和查询日志据此串联
		runCtx := agent.WithTraceID(ctx, uuid.New().String())
		prev := len(backend.History())

		outcome, err := backend.Run(runCtx, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out, "已退出。")
				return nil
			}
			fmt.Fprintf(out, "助手: 发生错误：%v\n\n", err)
			continue
		}

		if opts.ShowSQL {
			for _, q := range QueriesSince(backend.History(), prev) {
				fmt.Fprintf(out, "SQL: %s\n", q)
			}
		}
		fmt.Fprintf(out, "助手: %s\n", FormatOutcome(outcome))
		fmt.Fprintln(out)
	}
}
