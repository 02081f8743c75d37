package tools

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// 文本中内嵌的 JSON 工具调用使用的字段名，例如 {"request": "run_query", "query": "..."}
var textToolKeys = []string{"request", "tool", "name"}

// FromMessage 从 assistant 消息中取出本轮被采纳的工具调用：
// 优先使用原生 ToolCalls（取第一个），否则尝试从文本中解析 JSON 形式的调用。
// 返回的 error 为参数校验失败 / 工具未启用，Call 为空且 error 为 nil 表示没有识别出工具。
func (s *Set) FromMessage(msg *schema.Message) (Call, error) {
	if s == nil || msg == nil {
		return Call{}, nil
	}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		action, err := s.Decode(tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return Call{ID: tc.ID}, err
		}
		return Call{ID: tc.ID, Action: action}, nil
	}
	if call, ok := s.ParseText(msg.Content); ok {
		return call, nil
	}
	return Call{}, nil
}

// ParseText 在自由文本中查找第一个能解码为已启用工具的 JSON 对象
func (s *Set) ParseText(content string) (Call, bool) {
	for _, obj := range jsonObjects(content) {
		name, args, ok := s.splitTextCall(obj)
		if !ok {
			continue
		}
		action, err := s.Decode(name, string(args))
		if err != nil {
			continue
		}
		return Call{Action: action}, true
	}
	return Call{}, false
}

func (s *Set) splitTextCall(obj map[string]json.RawMessage) (string, []byte, bool) {
	for _, key := range textToolKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || !s.Has(name) {
			continue
		}
		rest := make(map[string]json.RawMessage, len(obj))
		for k, v := range obj {
			if k != key {
				rest[k] = v
			}
		}
		args, err := json.Marshal(rest)
		if err != nil {
			return "", nil, false
		}
		return name, args, true
	}
	return "", nil, false
}

// jsonObjects 依次尝试从每个 '{' 开始解码一个 JSON 对象
func jsonObjects(content string) []map[string]json.RawMessage {
	var out []map[string]json.RawMessage
	for i := 0; i < len(content); i++ {
		if content[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(content[i:]))
		var obj map[string]json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		out = append(out, obj)
		i += int(dec.InputOffset()) - 1
	}
	return out
}

// IsBareToolName 报告 content 是否只是一个工具名（没有任何 JSON 参数），
// 例如模型忘了用 JSON 格式而直接写了 "run_query"。
func IsBareToolName(content string) bool {
	s := strings.TrimSpace(content)
	s = strings.Trim(s, "`'\".:;!")
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "{}") {
		return false
	}
	for _, sp := range AllSpecs() {
		if strings.EqualFold(s, sp.Name) {
			return true
		}
	}
	return false
}
