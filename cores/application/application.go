// Package application 服务路径对应的应用信息
package application

import (
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

const clientSuffix = "-client"

type Application struct {
	Application string
	Module      string
}

// Table 应用信息表 进程内启动时创建 通过参数注入使用方
type Table struct {
	apps sync.Map // path => *Application
}

func NewTable() *Table {
	return &Table{}
}

// Get 查询应用信息
// 调用方(referer)查询 path-client 不存在时基于url创建
func (t *Table) Get(u *url.URL) *Application {
	key := u.Path
	if u.IsReferer() {
		key = u.Path + clientSuffix
	}
	if v, ok := t.apps.Load(key); ok {
		return v.(*Application)
	}
	app := &Application{
		Application: u.Parameter(url.ParamApplication, url.DefaultApplication),
		Module:      u.Parameter(url.ParamModule, url.DefaultModule),
	}
	if u.IsReferer() {
		app.Application += clientSuffix
		app.Module += clientSuffix
	}
	v, _ := t.apps.LoadOrStore(key, app)
	return v.(*Application)
}

// AddService 登记服务提供方的应用信息 已存在不覆盖
func (t *Table) AddService(u *url.URL) {
	t.apps.LoadOrStore(u.Path, &Application{
		Application: u.Parameter(url.ParamApplication, url.DefaultApplication),
		Module:      u.Parameter(url.ParamModule, url.DefaultModule),
	})
}
