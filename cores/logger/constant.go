package logger

const (
	_defaultPath = "./log"
)

const (
	_defaultSaveDays = 3
)

const (
	JsonFormat    = "json"
	ConsoleFormat = "console"
)

var (
	PathDeep = 4
)
