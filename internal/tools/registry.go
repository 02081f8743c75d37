package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/xeipuuv/gojsonschema"
)

// Spec 描述一个工具：模型看到的 ToolInfo，以及把 JSON 参数解码为 Action 的方法
type Spec struct {
	Name   string
	Desc   string
	Params map[string]*schema.ParameterInfo

	decode func(args []byte) (Action, error)
}

// Info 返回 eino ToolInfo，用于绑定到 ChatModel
func (s Spec) Info() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: s.Name,
		Desc: s.Desc,
	}
	if len(s.Params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(s.Params)
	}
	return info
}

// JSONSchema 由 Params 生成参数的 JSON Schema（draft-07 子集），用于严格校验
func (s Spec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for name, p := range s.Params {
		props[name] = paramSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func paramSchema(p *schema.ParameterInfo) map[string]any {
	m := map[string]any{"type": string(p.Type)}
	if p.Desc != "" {
		m["description"] = p.Desc
	}
	if p.Type == schema.Array && p.ElemInfo != nil {
		m["items"] = paramSchema(p.ElemInfo)
	}
	return m
}

func decodeInto[T Action](args []byte) (Action, error) {
	var v T
	if err := json.Unmarshal(args, &v); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return v, nil
}

var (
	runQuerySpec = Spec{
		Name: RunQueryName,
		Desc: "Run a SQL query against the database and return the result. " +
			"Use it both to READ tables and to UPDATE/INSERT/DELETE rows.",
		Params: map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "The SQL query to run", Required: true},
		},
		decode: decodeInto[RunQuery],
	}
	getTableNamesSpec = Spec{
		Name:   GetTableNamesName,
		Desc:   "List the names of all tables in the database.",
		decode: decodeInto[GetTableNames],
	}
	getTableSchemaSpec = Spec{
		Name: GetTableSchemaName,
		Desc: "Get the description of the given tables: their columns and relationships.",
		Params: map[string]*schema.ParameterInfo{
			"tables": {
				Type:     schema.Array,
				Desc:     "Names of the tables to describe",
				Required: true,
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
		},
		decode: decodeInto[GetTableSchema],
	}
	getColumnDescriptionsSpec = Spec{
		Name: GetColumnDescriptionsName,
		Desc: "Get the descriptions of specific columns of one table.",
		Params: map[string]*schema.ParameterInfo{
			"table":   {Type: schema.String, Desc: "The table name", Required: true},
			"columns": {Type: schema.String, Desc: "Comma-separated column names, e.g. \"id, name\"", Required: true},
		},
		decode: decodeInto[GetColumnDescriptions],
	}
	forwardSpec = Spec{
		Name: ForwardName,
		Desc: "Forward the current message to another agent or to the User.",
		Params: map[string]*schema.ParameterInfo{
			"agent": {Type: schema.String, Desc: "Name of the recipient, e.g. \"User\"", Required: true},
		},
		decode: decodeInto[Forward],
	}
	passSpec = Spec{
		Name:   PassName,
		Desc:   "Pass the current message on unchanged.",
		decode: decodeInto[Pass],
	}
	doneSpec = Spec{
		Name: DoneName,
		Desc: "Signal that the task is finished, with content set to the final answer or result.",
		Params: map[string]*schema.ParameterInfo{
			"content": {Type: schema.String, Desc: "The final answer or result", Required: true},
		},
		decode: decodeInto[Done],
	}
	donePassSpec = Spec{
		Name:   DonePassName,
		Desc:   "Signal that the task is finished, passing on the previous message as the final answer.",
		decode: decodeInto[DonePass],
	}
)

// AllSpecs 返回所有已知工具（不区分模式）
func AllSpecs() []Spec {
	return []Spec{
		runQuerySpec,
		getTableNamesSpec,
		getTableSchemaSpec,
		getColumnDescriptionsSpec,
		forwardSpec,
		passSpec,
		doneSpec,
		donePassSpec,
	}
}

// Mode 决定启用哪些工具
type Mode struct {
	ChatMode       bool
	UseSchemaTools bool
	IsHelper       bool
}

// Set 是某个 Agent 当前启用的工具集合，顺序即模型看到的顺序
type Set struct {
	specs    []Spec
	byName   map[string]Spec
	compiled map[string]*gojsonschema.Schema
}

// Enabled 根据模式构造工具集合：
//   - run_query / forward_tool 始终启用
//   - schema 类工具仅在 UseSchemaTools 时启用
//   - done_tool / done_pass_tool 仅在非 chat 模式启用
//   - pass_tool 仅 helper 可用
func Enabled(mode Mode) (*Set, error) {
	specs := []Spec{runQuerySpec, forwardSpec}
	if mode.UseSchemaTools {
		specs = append(specs, getTableNamesSpec, getTableSchemaSpec, getColumnDescriptionsSpec)
	}
	if !mode.ChatMode {
		specs = append(specs, doneSpec, donePassSpec)
	}
	if mode.IsHelper {
		specs = append(specs, passSpec)
	}
	return NewSet(specs...)
}

// NewSet 用给定的工具构造集合，并预编译各工具参数的 JSON Schema
func NewSet(specs ...Spec) (*Set, error) {
	s := &Set{
		specs:    specs,
		byName:   make(map[string]Spec, len(specs)),
		compiled: make(map[string]*gojsonschema.Schema, len(specs)),
	}
	for _, sp := range specs {
		if _, dup := s.byName[sp.Name]; dup {
			return nil, fmt.Errorf("duplicate tool: %s", sp.Name)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(sp.JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", sp.Name, err)
		}
		s.byName[sp.Name] = sp
		s.compiled[sp.Name] = compiled
	}
	return s, nil
}

func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byName[name]
	return ok
}

// Names 按启用顺序返回工具名
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.specs))
	for _, sp := range s.specs {
		out = append(out, sp.Name)
	}
	return out
}

// NamesString 返回逗号拼接的工具名，用于提示词
func (s *Set) NamesString() string {
	return strings.Join(s.Names(), ", ")
}

// Infos 返回所有启用工具的 ToolInfo
func (s *Set) Infos() []*schema.ToolInfo {
	if s == nil {
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(s.specs))
	for _, sp := range s.specs {
		out = append(out, sp.Info())
	}
	return out
}

// ArgumentError 表示工具参数不满足 JSON Schema
type ArgumentError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// UnknownToolError 表示调用了未启用的工具
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not available", e.Tool)
}

// Decode 校验并解码一个工具调用。参数为空时按 {} 处理。
func (s *Set) Decode(name, argumentsInJSON string) (Action, error) {
	sp, ok := s.byName[name]
	if !ok {
		return nil, &UnknownToolError{Tool: name}
	}
	args := strings.TrimSpace(argumentsInJSON)
	if args == "" || args == "null" || args == "{" {
		args = "{}"
	}
	res, err := s.compiled[name].Validate(gojsonschema.NewStringLoader(args))
	if err != nil {
		return nil, &ArgumentError{Tool: name, Problems: []string{err.Error()}}
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ArgumentError{Tool: name, Problems: problems}
	}
	return sp.decode([]byte(args))
}
