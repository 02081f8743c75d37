// Package schema 保存目标数据库的表 / 列 / 关系描述。
// 描述来自反射或用户提供的文件，构造之后只读。
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableDescription 描述一张表
type TableDescription struct {
	Description string `yaml:"description" json:"description" mapstructure:"description"`
	// Columns: 列名 -> 描述
	Columns map[string]string `yaml:"columns" json:"columns" mapstructure:"columns"`
	// Relationships: 关联表名 -> 关系描述
	Relationships map[string]string `yaml:"relationships,omitempty" json:"relationships,omitempty" mapstructure:"relationships"`
}

// Metadata: 表名 -> 描述。多 schema 模式下键为 "schema.table"。
type Metadata map[string]TableDescription

// TableNames 返回排序后的全部表名
func (m Metadata) TableNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Metadata) Lookup(table string) (TableDescription, bool) {
	d, ok := m[table]
	return d, ok
}

// ColumnDescription 返回某列的描述；表或列不存在时 ok=false
func (m Metadata) ColumnDescription(table, column string) (string, bool) {
	d, ok := m[table]
	if !ok {
		return "", false
	}
	desc, ok := d.Columns[column]
	return desc, ok
}

// JSON 以缩进 JSON 渲染全部描述（键有序），用于系统提示与重试提示
func (m Metadata) JSON() string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// JSON 以紧凑 JSON 渲染单张表的描述
func (d TableDescription) JSON() string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// YAML 渲染为 YAML，供 CLI 导出后人工编辑
func (m Metadata) YAML() (string, error) {
	b, err := yaml.Marshal(map[string]TableDescription(m))
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// Parse 解析 YAML 或 JSON 格式的上下文描述
func Parse(data []byte) (Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse context descriptions: %w", err)
	}
	for name, d := range m {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("parse context descriptions: empty table name")
		}
		if d.Columns == nil {
			d.Columns = map[string]string{}
			m[name] = d
		}
	}
	return m, nil
}

// LoadFile 读取上下文描述文件（.yaml / .yml / .json）
func LoadFile(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context descriptions: %w", err)
	}
	return Parse(data)
}

// Resolve 选择最终使用的描述：用户提供的描述非空时直接使用，否则使用反射结果
func Resolve(reflected, supplied Metadata) Metadata {
	if len(supplied) > 0 {
		return supplied
	}
	if reflected == nil {
		return Metadata{}
	}
	return reflected
}
