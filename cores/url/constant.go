package url

// 参数名
const (
	ParamGroup         = "group"
	ParamSerialization = "serialization"
	ParamNodeType      = "nodeType"
	ParamApplication   = "application"
	ParamModule        = "module"
	ParamRetryPeriod   = "retryPeriod"
	ParamWeight        = "weight"
	ParamVersion       = "version"
)

// 参数默认值
const (
	DefaultGroup         = "default_rpc"
	DefaultSerialization = "json"
	DefaultApplication   = "quiver"
	DefaultModule        = "quiver"
	DefaultRetryPeriod   = 30000 // ms
)

// nodeType
const (
	NodeTypeService = "service"
	NodeTypeReferer = "referer"
)
