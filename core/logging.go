package core

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Used when no log.json is found or before the configuration is initialized
const defaultLogConfig = `{
	"level": "debug",
	"development": true,
	"encoding": "console",
	"outputPaths": ["stdout"],
	"errorOutputPaths": ["stderr"],
	"disableCaller": false,
	"disableStackTrace": false,
	"encoderConfig": {
		"messageKey": "message",
		"levelKey": "level",
		"levelEncoder": "lowercase",
		"callerKey": "caller",
		"callerEncoder": "",
		"timeKey": "ts",
		"timeEncoder": "ISO8601"
		}
	}`

// Initialized with a call to initLogger, or lazily with defaults on the
// first GetLogger if no configuration instance was created
var ilogger *zap.SugaredLogger
var loggerMutex sync.Mutex

// https://pkg.go.dev/go.uber.org/zap
// Builds the global logger instance from the "log.json" configuration object
func initLogger(cm *ConfigurationManager) {

	// Retrieve the log configuration
	jConfig, err := cm.GetRawBytesConfigObject("log.json")
	if err != nil {
		fmt.Println("using default logging configuration")
		jConfig = []byte(defaultLogConfig)
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	ilogger = buildLogger(jConfig)
}

func buildLogger(jConfig []byte) *zap.SugaredLogger {

	var cfg zap.Config
	if err := json.Unmarshal(jConfig, &cfg); err != nil {
		panic("bad logger configuration: " + err.Error())
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("logger could not be created: " + err.Error())
	}

	return logger.Sugar()
}

// Used globally to get access to the logger
func GetLogger() *zap.SugaredLogger {

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if ilogger == nil {
		ilogger = buildLogger([]byte(defaultLogConfig))
	}

	return ilogger
}
