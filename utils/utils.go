package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLog opens dir/name.log for appending and returns a logger writing to it. An empty
// dir logs to stderr.
func NewLog(dir, name string) *zap.SugaredLogger {
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if dir != "" {
		fileName := fmt.Sprintf("%s%s.log", dir, name)
		file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			panic(err)
		}
		sink = zapcore.AddSync(file)
	}
	core := zapcore.NewCore(encoder, sink, zapcore.DebugLevel)
	return zap.New(core).Named(name).Sugar()
}
