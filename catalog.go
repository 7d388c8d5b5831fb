package iec104

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//字段名称
const (
	FieldFloat     = "IEEE STD 754"
	FieldCP56Time  = "CP56Time2a"
	FieldQuality   = "QDS"
	formatSplitter = "+"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

//TypeDef 类型标识定义
type TypeDef struct {
	ID            uint8
	Name          string
	Description   string
	ElementLength int      //每个信息体的信息元素长度,不含地址
	Format        []string //字段名称,按报文顺序
}

//Catalog 类型目录及信息元素长度表,只读
type Catalog struct {
	types   map[uint8]TypeDef
	lengths map[string]int
}

type catalogFile struct {
	ElementLengths map[string]int `yaml:"element_lengths"`
	Types          []struct {
		Type        int    `yaml:"type"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		ElementsLen int    `yaml:"elements_len"`
		Format      string `yaml:"format"`
	} `yaml:"types"`
}

//ParseFormat 解析以+分隔的字段格式
func ParseFormat(s string) []string {
	parts := strings.Split(s, formatSplitter)
	format := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			format = append(format, p)
		}
	}
	return format
}

//NewCatalog 构建类型目录并校验
func NewCatalog(types []TypeDef, lengths map[string]int) (*Catalog, error) {
	c := &Catalog{
		types:   make(map[uint8]TypeDef, len(types)),
		lengths: make(map[string]int, len(lengths)),
	}
	for name, n := range lengths {
		c.lengths[name] = n
	}
	for _, t := range types {
		if _, ok := c.types[t.ID]; ok {
			return nil, fmt.Errorf("类型%d重复定义", t.ID)
		}
		t.Format = append([]string(nil), t.Format...)
		c.types[t.ID] = t
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

//LoadCatalog 从yaml读取类型目录
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("读取类型目录失败: %w", err)
	}
	types := make([]TypeDef, 0, len(f.Types))
	for _, t := range f.Types {
		if t.Type < 1 || t.Type > 255 {
			return nil, fmt.Errorf("类型标识%d超出范围", t.Type)
		}
		types = append(types, TypeDef{
			ID:            uint8(t.Type),
			Name:          t.Name,
			Description:   t.Description,
			ElementLength: t.ElementsLen,
			Format:        ParseFormat(t.Format),
		})
	}
	return NewCatalog(types, f.ElementLengths)
}

//DefaultCatalog 内置类型目录
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := LoadCatalog(bytes.NewReader(defaultCatalogYAML))
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

//Validate 字段长度均已知时,长度之和必须等于信息元素长度
func (c *Catalog) Validate() error {
	var errs []error
	for name, n := range c.lengths {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("字段[%s]长度%d非法", name, n))
		}
	}
	for _, id := range c.TypeIDs() {
		t := c.types[id]
		if t.ElementLength <= 0 {
			errs = append(errs, fmt.Errorf("类型%d信息元素长度%d非法", id, t.ElementLength))
			continue
		}
		sum, known := 0, true
		for _, field := range t.Format {
			n, ok := c.lengths[field]
			if !ok {
				known = false
				break
			}
			sum += n
		}
		if known && len(t.Format) > 0 && sum != t.ElementLength {
			errs = append(errs, fmt.Errorf("类型%d字段长度之和%d与信息元素长度%d不一致", id, sum, t.ElementLength))
		}
	}
	return errors.Join(errs...)
}

//Lookup 查询类型定义
func (c *Catalog) Lookup(id uint8) (TypeDef, bool) {
	t, ok := c.types[id]
	if !ok {
		return TypeDef{}, false
	}
	t.Format = append([]string(nil), t.Format...)
	return t, true
}

//ElementLength 查询字段长度
func (c *Catalog) ElementLength(name string) (int, bool) {
	n, ok := c.lengths[name]
	return n, ok
}

//TypeIDs 已定义的类型标识,升序
func (c *Catalog) TypeIDs() []uint8 {
	ids := make([]uint8, 0, len(c.types))
	for id := range c.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
