package codec

import (
	"reflect"
	"strings"
	"sync"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
)

// TypeResolver 类型名与具体类型的相互解析
type TypeResolver interface {
	ResolveTypes(desc string) ([]reflect.Type, error)
	ResolveType(name string) (reflect.Type, error)
	TypeName(typ reflect.Type) (string, bool)
}

// Types 显式注册的封闭类型表
type Types struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewTypes 创建类型表 已注册基础类型
func NewTypes() *Types {
	t := &Types{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
	t.Register("int", reflect.TypeOf(int(0)), "I")
	t.Register("long", reflect.TypeOf(int64(0)), "int64", "J")
	t.Register("int32", reflect.TypeOf(int32(0)))
	t.Register("bool", reflect.TypeOf(false), "Z")
	t.Register("double", reflect.TypeOf(float64(0)), "float64", "D")
	t.Register("float", reflect.TypeOf(float32(0)), "float32", "F")
	t.Register("string", reflect.TypeOf(""))
	t.Register("bytes", reflect.TypeOf([]byte(nil)))
	t.Register("map", reflect.TypeOf(map[string]interface{}(nil)))
	t.Register("object", reflect.TypeOf((*interface{})(nil)).Elem())
	return t
}

// Register 注册类型 name为编码时写出的名称 aliases仅用于解析
func (t *Types) Register(name string, typ reflect.Type, aliases ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName[name] = typ
	t.byType[typ] = name
	for _, a := range aliases {
		t.byName[a] = typ
	}
}

func (t *Types) ResolveType(name string) (reflect.Type, error) {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "[]") {
		elem, err := t.ResolveType(strings.TrimSuffix(name, "[]"))
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	}
	t.mu.RLock()
	typ, has := t.byName[name]
	t.mu.RUnlock()
	if !has {
		return nil, gErrors.Frameworkf(gErrors.ErrClassNotFound, "type %q not registered", name)
	}
	return typ, nil
}

func (t *Types) TypeName(typ reflect.Type) (string, bool) {
	t.mu.RLock()
	name, has := t.byType[typ]
	t.mu.RUnlock()
	if has {
		return name, true
	}
	if typ.Kind() == reflect.Slice {
		if elem, ok := t.TypeName(typ.Elem()); ok {
			return elem + "[]", true
		}
	}
	return "", false
}

// ResolveTypes 解析参数描述
//
//	""               无参数
//	"(IJLcom/foo/User;[I)" 签名形式
//	"string,int[]"   名称列表
func (t *Types) ResolveTypes(desc string) ([]reflect.Type, error) {
	names, err := paramNames(desc)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	types := make([]reflect.Type, 0, len(names))
	for _, name := range names {
		typ, err := t.ResolveType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// paramNames 参数描述拆分为类型名 不做解析
func paramNames(desc string) ([]string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, nil
	}
	if strings.HasPrefix(desc, "(") {
		return signatureNames(desc)
	}
	return strings.Split(desc, ","), nil
}

func signatureNames(desc string) ([]string, error) {
	if !strings.HasSuffix(desc, ")") {
		return nil, gErrors.Frameworkf(gErrors.ErrClassNotFound, "bad parameter descriptor %q", desc)
	}
	body := desc[1 : len(desc)-1]
	var names []string
	for i := 0; i < len(body); {
		dims := 0
		for i < len(body) && body[i] == '[' {
			dims++
			i++
		}
		if i >= len(body) {
			return nil, gErrors.Frameworkf(gErrors.ErrClassNotFound, "bad parameter descriptor %q", desc)
		}
		var name string
		if body[i] == 'L' {
			end := strings.IndexByte(body[i:], ';')
			if end < 0 {
				return nil, gErrors.Frameworkf(gErrors.ErrClassNotFound, "bad parameter descriptor %q", desc)
			}
			name = strings.ReplaceAll(body[i+1:i+end], "/", ".")
			i += end + 1
		} else {
			name = body[i : i+1]
			i++
		}
		names = append(names, name+strings.Repeat("[]", dims))
	}
	return names, nil
}
