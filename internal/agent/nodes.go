package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// inputNode 清理上一次 Run 残留的信号字段
func inputNode(ctx context.Context, state turnState) (turnState, error) {
	state.Reply = nil
	state.Call = tools.Call{}
	state.Outcome = Outcome{}
	state.Turns = 0
	return state, nil
}

// chatModelNode 调用一次模型。第一次调用时带上本次 Run 的输入。
func chatModelNode(ctx context.Context, state turnState, c *Controller) (turnState, error) {
	reply, err := c.ProduceResponse(ctx, state.Input)
	if err != nil {
		return state, err
	}
	state.Input = ""
	state.Reply = reply
	state.Call = tools.Call{}
	state.Turns = c.turns
	return state, nil
}

// dispatchNode 解析回复中的工具调用并执行；没有工具调用时走 HandleUnrecognized。
func dispatchNode(ctx context.Context, state turnState, c *Controller) (turnState, error) {
	call, source, out, err := c.resolve(ctx, state.Reply)
	if err != nil {
		return state, err
	}
	state.Call = call
	if !call.IsZero() && out == nil {
		o, err := c.handle(ctx, call, source)
		if err != nil {
			return state, err
		}
		out = &o
	}
	if out == nil {
		out = &Outcome{Status: StatusContinue}
	}

	state.Outcome = *out
	// strict 重新生成也算一次模型调用
	state.Turns = c.turns
	if !state.Outcome.Terminal() && state.Turns >= c.cfg.maxTurns() {
		state.Outcome = Outcome{Status: StatusMaxTurns, Content: c.subject}
	}
	return state, nil
}

// resolve 确定本轮要执行的工具调用及其来源。
// 返回非空 Outcome 表示本轮已经以文本回复处理完毕（参数错误、澄清等）。
func (c *Controller) resolve(ctx context.Context, reply *schema.Message) (tools.Call, string, *Outcome, error) {
	call, err := c.set.FromMessage(reply)
	if err != nil {
		out := c.rejectCall(call, err)
		return tools.Call{}, "", &out, nil
	}
	if !call.IsZero() {
		return call, SourceModel, nil, nil
	}

	res, err := c.HandleUnrecognized(ctx, reply)
	if err != nil {
		return tools.Call{}, "", nil, err
	}
	if res.Err != nil {
		out := c.rejectCall(res.Call, res.Err)
		return tools.Call{}, "", &out, nil
	}
	if res.Call.IsZero() {
		return tools.Call{}, "", nil, nil
	}

	source := SourceSynthesized
	switch res.Path {
	case PathStrict:
		source = SourceStrict
	case PathHelper:
		source = SourceHelper
	}
	return res.Call, source, nil, nil
}
