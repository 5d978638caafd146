package env

// 基础环境变量
// QVR_ENV_SERVICE 当前环境(testing/pre/online) 默认testing
// QVR_CONFIG_SOURCE 配置来源(file/etcd/nacos) 默认file
// QVR_CONFIG_FORMAT 配置格式(json/yaml/xml) 默认yaml
// QVR_LOG_PATH 日志路径 默认为"./log"
// --

const (
	QvrEnvService   = "QVR_ENV_SERVICE"
	QvrConfigSource = "QVR_CONFIG_SOURCE"
	QvrConfigFormat = "QVR_CONFIG_FORMAT"
	QvrLogPath      = "QVR_LOG_PATH"
)

// Nacos相关环境变量
// QVR_NACOS_SERVER_PATH nacos地址 使用nacos注册中心或配置中心时必要
// QVR_NACOS_NAMESPACE nacos命名空间
// QVR_NACOS_ACCESS nacos的accessKey配置
// QVR_NACOS_SECRET nacos的secretKey配置
// QVR_NACOS_USERNAME nacos用户名
// QVR_NACOS_PASSWORD nacos密码
// --

const (
	QvrNacosServerPath = "QVR_NACOS_SERVER_PATH"
	QvrNacosNamespace  = "QVR_NACOS_NAMESPACE"
	QvrNacosAccess     = "QVR_NACOS_ACCESS"
	QvrNacosSecret     = "QVR_NACOS_SECRET"
	QvrNacosUsername   = "QVR_NACOS_USERNAME"
	QvrNacosPassword   = "QVR_NACOS_PASSWORD"
)

// Etcd相关环境变量
// QVR_ETCD_ENDPOINTS etcd地址列表 逗号分隔
// QVR_ETCD_USERNAME etcd用户名
// QVR_ETCD_PASSWORD etcd密码
// QVR_ETCD_DIAL_TIMEOUT 超时时间 默认10s
// --

const (
	QvrEtcdEndpoints   = "QVR_ETCD_ENDPOINTS"
	QvrEtcdUsername    = "QVR_ETCD_USERNAME"
	QvrEtcdPassword    = "QVR_ETCD_PASSWORD"
	QvrEtcdDialTimeout = "QVR_ETCD_DIAL_TIMEOUT"
)

// QVR_CONSUL_HTTP_ADDR consul http地址 逗号分隔
// QVR_REDIS_ADDR redis地址 逗号分隔
// QVR_JAEGER_ADDR jaeger收集地址 可选
// QVR_SENTRY_DSN sentry地址(错误报警) 可选
// --

const (
	QvrConsulAddr = "QVR_CONSUL_HTTP_ADDR"
	QvrRedisAddr  = "QVR_REDIS_ADDR"
	QvrJaegerAddr = "QVR_JAEGER_ADDR"
	QvrSentryDsn  = "QVR_SENTRY_DSN"
)
