package agent

import (
	"context"

	"github.com/cloudwego/eino/compose"
)

const (
	NodeInput     = "input_node"
	NodeChatModel = "chat_model_node"
	NodeDispatch  = "dispatch_node"
)

// buildGraph 构建 Agent 的处理流程图：
//
//	START -> input -> chat_model -> dispatch -> (chat_model | END)
func buildGraph(ctx context.Context, c *Controller) (compose.Runnable[turnState, turnState], error) {
	g := compose.NewGraph[turnState, turnState]()

	if err := g.AddLambdaNode(NodeInput, compose.InvokableLambda(inputNode)); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(NodeChatModel, compose.InvokableLambda(func(ctx context.Context, state turnState) (turnState, error) {
		return chatModelNode(ctx, state, c)
	})); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(NodeDispatch, compose.InvokableLambda(func(ctx context.Context, state turnState) (turnState, error) {
		return dispatchNode(ctx, state, c)
	})); err != nil {
		return nil, err
	}

	if err := g.AddEdge(compose.START, NodeInput); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeInput, NodeChatModel); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeChatModel, NodeDispatch); err != nil {
		return nil, err
	}

	// Dispatch -> ChatModel (Loop back) OR End
	err := g.AddBranch(NodeDispatch, compose.NewGraphBranch(func(ctx context.Context, state turnState) (string, error) {
		if state.Outcome.Terminal() {
			return compose.END, nil
		}
		return NodeChatModel, nil
	}, map[string]bool{
		NodeChatModel: true,
		compose.END:   true,
	}))
	if err != nil {
		return nil, err
	}

	// 每轮 chat_model + dispatch 两步，MaxTurns 由 dispatchNode 自己判断，
	// 这里的步数上限只是兜底
	maxSteps := c.cfg.maxTurns()*2 + 4
	return g.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
}
